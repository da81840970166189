package ingest

import (
	"bufio"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// lessonSegment is a lesson plus its raw transcript text, produced by the
// parser and consumed by the chunking stage.
type lessonSegment struct {
	lesson Lesson
	text   string
}

var lessonMarkerRe = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.+)$`)

// parseDocument parses a raw course script: a metadata header block
// (Course Title / Course Link / Course Instructor) followed by the body,
// which is segmented on "Lesson N: Title" markers. A "Lesson Link:" line
// directly after a marker attaches to that lesson.
//
// Malformed or missing titles fall back to the filename stem; a body with
// no lesson markers becomes a single unnumbered segment. Parsing never
// fails on content - only on empty input.
func parseDocument(raw, filename string) (Course, []lessonSegment, error) {
	lines := readLines(raw)
	if len(lines) == 0 {
		return Course{}, nil, fmt.Errorf("document %s is empty", filename)
	}

	course := Course{}
	bodyStart := 0

	// The header block is at most the first few lines; stop at the first
	// lesson marker or non-header content.
	for i := 0; i < len(lines) && i < 4; i++ {
		line := strings.TrimSpace(lines[i])
		switch {
		case hasPrefixFold(line, "Course Title:"):
			course.Title = strings.TrimSpace(line[len("Course Title:"):])
			bodyStart = i + 1
		case hasPrefixFold(line, "Course Link:"):
			course.Link = strings.TrimSpace(line[len("Course Link:"):])
			bodyStart = i + 1
		case hasPrefixFold(line, "Course Instructor:"):
			course.Instructor = strings.TrimSpace(line[len("Course Instructor:"):])
			bodyStart = i + 1
		case line == "" && i == bodyStart:
			bodyStart = i + 1
		}
	}

	if course.Title == "" {
		base := filepath.Base(filename)
		course.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	segments := parseLessons(lines[bodyStart:])
	for _, seg := range segments {
		if seg.lesson.Number != NoLesson {
			course.Lessons = append(course.Lessons, seg.lesson)
		}
	}

	return course, segments, nil
}

// parseLessons splits the document body into lesson segments. Text before
// the first marker (or a body without markers) is returned as a single
// unnumbered segment.
func parseLessons(lines []string) []lessonSegment {
	var segments []lessonSegment
	current := lessonSegment{lesson: Lesson{Number: NoLesson}}
	var buf []string

	flush := func() {
		text := strings.TrimSpace(strings.Join(buf, "\n"))
		if text != "" || current.lesson.Number != NoLesson {
			current.text = text
			segments = append(segments, current)
		}
		buf = nil
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		m := lessonMarkerRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			buf = append(buf, line)
			continue
		}

		flush()
		number, _ := strconv.Atoi(m[1])
		current = lessonSegment{lesson: Lesson{Number: number, Title: strings.TrimSpace(m[2])}}

		// Optional link line directly after the marker.
		if i+1 < len(lines) {
			next := strings.TrimSpace(lines[i+1])
			if hasPrefixFold(next, "Lesson Link:") {
				current.lesson.Link = strings.TrimSpace(next[len("Lesson Link:"):])
				i++
			}
		}
	}
	flush()

	// Drop an empty leading preamble when real lessons follow it.
	if len(segments) > 1 && segments[0].lesson.Number == NoLesson && segments[0].text == "" {
		segments = segments[1:]
	}

	return segments
}

func readLines(raw string) []string {
	var lines []string
	sc := bufio.NewScanner(strings.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
