package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/coursepilot/coursepilot/internal/llm"
)

const outlineToolSchema = `{
	"type": "object",
	"properties": {
		"course_name": {
			"type": "string",
			"description": "Course title (partial matches work, e.g. 'MCP', 'Introduction')"
		}
	},
	"required": ["course_name"],
	"additionalProperties": false
}`

// OutlineTool returns a course's full lesson list from the catalog.
type OutlineTool struct {
	store Store
}

// NewOutlineTool creates the course outline tool.
func NewOutlineTool(store Store) *OutlineTool {
	return &OutlineTool{store: store}
}

func (t *OutlineTool) Schema() llm.ToolSchema {
	return llm.ToolSchema{
		Name:        "get_course_outline",
		Description: "Get the complete outline of a course: its title, link and every lesson number and title",
		JSONSchema:  outlineToolSchema,
	}
}

func (t *OutlineTool) Execute(ctx context.Context, args map[string]any) (string, []Source, error) {
	courseName, _ := args["course_name"].(string)

	title, err := t.store.ResolveCourseName(ctx, courseName)
	if err != nil {
		return "", nil, err
	}
	if title == "" {
		return fmt.Sprintf("No course found matching '%s'", courseName), nil, nil
	}

	course, err := t.store.GetCourse(ctx, title)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Course: %s\n", course.Title)
	if course.Link != "" {
		fmt.Fprintf(&b, "Course Link: %s\n", course.Link)
	}
	if course.Instructor != "" {
		fmt.Fprintf(&b, "Instructor: %s\n", course.Instructor)
	}
	fmt.Fprintf(&b, "Lessons (%d):\n", len(course.Lessons))
	for _, lesson := range course.Lessons {
		fmt.Fprintf(&b, "  Lesson %d: %s\n", lesson.Number, lesson.Title)
	}

	sources := []Source{{Label: course.Title, Link: course.Link}}
	return strings.TrimRight(b.String(), "\n"), sources, nil
}
