package tools

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/coursepilot/coursepilot/internal/index"
	"github.com/coursepilot/coursepilot/internal/ingest"
	"github.com/coursepilot/coursepilot/internal/llm"
)

// Store is the slice of the vector store the tools need.
type Store interface {
	Search(ctx context.Context, query, courseName string, lesson *int, limit int) index.SearchResults
	ResolveCourseName(ctx context.Context, name string) (string, error)
	GetCourse(ctx context.Context, title string) (ingest.Course, error)
	GetCourseLink(ctx context.Context, title string) (string, error)
	GetLessonLink(ctx context.Context, courseTitle string, lesson int) (string, error)
}

const searchToolSchema = `{
	"type": "object",
	"properties": {
		"query": {
			"type": "string",
			"description": "What to search for in the course content"
		},
		"course_name": {
			"type": "string",
			"description": "Course title (partial matches work, e.g. 'MCP', 'Introduction')"
		},
		"lesson_number": {
			"type": "integer",
			"description": "Specific lesson number to search within (e.g. 1, 2, 3)"
		}
	},
	"required": ["query"],
	"additionalProperties": false
}`

// SearchTool retrieves course content for the model. Results for chunks
// of the same course and lesson share one source entry.
type SearchTool struct {
	store Store
}

// NewSearchTool creates the content search tool.
func NewSearchTool(store Store) *SearchTool {
	return &SearchTool{store: store}
}

func (t *SearchTool) Schema() llm.ToolSchema {
	return llm.ToolSchema{
		Name:        "search_course_content",
		Description: "Search course materials with smart course name matching and lesson filtering",
		JSONSchema:  searchToolSchema,
	}
}

func (t *SearchTool) Execute(ctx context.Context, args map[string]any) (string, []Source, error) {
	query, _ := args["query"].(string)
	courseName, _ := args["course_name"].(string)

	var lesson *int
	if raw, ok := args["lesson_number"].(float64); ok {
		n := int(raw)
		lesson = &n
	}

	results := t.store.Search(ctx, query, courseName, lesson, 0)
	if results.Error != "" {
		return results.Error, nil, nil
	}
	if results.IsEmpty() {
		return noContentMessage(courseName, lesson), nil, nil
	}

	return t.formatResults(ctx, results)
}

func noContentMessage(courseName string, lesson *int) string {
	var filter strings.Builder
	if courseName != "" {
		fmt.Fprintf(&filter, " in course '%s'", courseName)
	}
	if lesson != nil {
		fmt.Fprintf(&filter, " in lesson %d", *lesson)
	}
	return fmt.Sprintf("No relevant content found%s.", filter.String())
}

// formatResults renders each chunk under a [Course - Lesson N] header and
// collects one deduplicated source per (course, lesson) pair.
func (t *SearchTool) formatResults(ctx context.Context, results index.SearchResults) (string, []Source, error) {
	var blocks []string
	var sources []Source
	seen := make(map[string]bool)

	for i, doc := range results.Documents {
		ref := results.Metadata[i]

		header := fmt.Sprintf("[%s]", ref.CourseTitle)
		label := ref.CourseTitle
		if ref.LessonNumber != ingest.NoLesson {
			header = fmt.Sprintf("[%s - Lesson %d]", ref.CourseTitle, ref.LessonNumber)
			label = fmt.Sprintf("%s - Lesson %d", ref.CourseTitle, ref.LessonNumber)
		}
		blocks = append(blocks, header+"\n"+doc)

		if seen[label] {
			continue
		}
		seen[label] = true
		sources = append(sources, Source{Label: label, Link: t.sourceLink(ctx, ref)})
	}

	return strings.Join(blocks, "\n\n"), sources, nil
}

// sourceLink prefers the lesson link, falling back to the course link.
func (t *SearchTool) sourceLink(ctx context.Context, ref index.ChunkRef) string {
	if ref.LessonNumber != ingest.NoLesson {
		link, err := t.store.GetLessonLink(ctx, ref.CourseTitle, ref.LessonNumber)
		if err != nil {
			log.Printf("Failed to look up lesson link for %q lesson %d: %v", ref.CourseTitle, ref.LessonNumber, err)
		} else if link != "" {
			return link
		}
	}
	link, err := t.store.GetCourseLink(ctx, ref.CourseTitle)
	if err != nil {
		log.Printf("Failed to look up course link for %q: %v", ref.CourseTitle, err)
		return ""
	}
	return link
}
