package ingest

import "testing"

const sampleDoc = `Course Title: Introduction to MCP
Course Link: https://example.com/mcp
Course Instructor: Ada Example

Lesson 0: Welcome
Lesson Link: https://example.com/mcp/lesson-0
Welcome to the course. This lesson covers the basics.

Lesson 1: Tools
Lesson Link: https://example.com/mcp/lesson-1
Tools let the model act. They are registered by name.
`

func TestParseDocument(t *testing.T) {
	course, segments, err := parseDocument(sampleDoc, "mcp.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if course.Title != "Introduction to MCP" {
		t.Errorf("expected title %q, got %q", "Introduction to MCP", course.Title)
	}
	if course.Link != "https://example.com/mcp" {
		t.Errorf("unexpected course link: %q", course.Link)
	}
	if course.Instructor != "Ada Example" {
		t.Errorf("unexpected instructor: %q", course.Instructor)
	}

	if len(course.Lessons) != 2 {
		t.Fatalf("expected 2 lessons, got %d", len(course.Lessons))
	}
	if course.Lessons[0].Number != 0 || course.Lessons[0].Title != "Welcome" {
		t.Errorf("unexpected lesson 0: %+v", course.Lessons[0])
	}
	if course.Lessons[1].Link != "https://example.com/mcp/lesson-1" {
		t.Errorf("unexpected lesson 1 link: %q", course.Lessons[1].Link)
	}

	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].text != "Welcome to the course. This lesson covers the basics." {
		t.Errorf("unexpected segment 0 text: %q", segments[0].text)
	}
}

func TestParseDocumentNoMarkers(t *testing.T) {
	raw := "Course Title: Plain Notes\n\nJust some content. No lessons at all."

	course, segments, err := parseDocument(raw, "notes.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(course.Lessons) != 0 {
		t.Errorf("expected no lessons, got %d", len(course.Lessons))
	}
	if len(segments) != 1 {
		t.Fatalf("expected a single unnumbered segment, got %d", len(segments))
	}
	if segments[0].lesson.Number != NoLesson {
		t.Errorf("expected segment without lesson number, got %d", segments[0].lesson.Number)
	}
	if segments[0].text != "Just some content. No lessons at all." {
		t.Errorf("unexpected segment text: %q", segments[0].text)
	}
}

func TestParseDocumentTitleFallback(t *testing.T) {
	course, _, err := parseDocument("Some body text without any header.", "/docs/course_4_script.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if course.Title != "course_4_script" {
		t.Errorf("expected filename-stem title, got %q", course.Title)
	}
}

func TestParseDocumentEmpty(t *testing.T) {
	if _, _, err := parseDocument("", "empty.txt"); err == nil {
		t.Fatal("expected error for empty document")
	}
}

func TestParseDocumentPreambleBeforeFirstLesson(t *testing.T) {
	raw := `Course Title: With Preamble

Some introductory remarks before the lessons start.

Lesson 1: Real Content
The actual lesson text.
`
	_, segments, err := parseDocument(raw, "preamble.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected preamble plus lesson, got %d segments", len(segments))
	}
	if segments[0].lesson.Number != NoLesson {
		t.Errorf("preamble segment should be unnumbered, got %d", segments[0].lesson.Number)
	}
	if segments[1].lesson.Title != "Real Content" {
		t.Errorf("unexpected lesson title: %q", segments[1].lesson.Title)
	}
}
