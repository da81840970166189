package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/coursepilot/coursepilot/internal/llm"
)

// Source is a piece of course material an answer drew on, as shown to the
// user under the response.
type Source struct {
	Label string `json:"label"`
	Link  string `json:"link,omitempty"`
}

// Tool is one operation the model can invoke. Execute returns the text
// result fed back to the model plus the sources behind it; sources travel
// with the result instead of accumulating inside the tool, so concurrent
// queries cannot see each other's sources.
type Tool interface {
	Schema() llm.ToolSchema
	Execute(ctx context.Context, args map[string]any) (string, []Source, error)
}

// Registry holds tools by name.
type Registry map[string]Tool

// Register adds a tool, rejecting duplicate names.
func (r Registry) Register(t Tool) error {
	name := t.Schema().Name
	if _, exists := r[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r[name] = t
	return nil
}

// Schemas returns all tool schemas in name order.
func (r Registry) Schemas() []llm.ToolSchema {
	schemas := make([]llm.ToolSchema, 0, len(r))
	for _, t := range r {
		schemas = append(schemas, t.Schema())
	}
	sort.Slice(schemas, func(i, j int) bool { return schemas[i].Name < schemas[j].Name })
	return schemas
}

// Execute validates args against the tool's schema and runs it. An
// unknown tool name is reported as a result string, not an error, so the
// model sees what went wrong and can correct itself.
func (r Registry) Execute(ctx context.Context, name string, args map[string]any) (string, []Source, error) {
	tool, ok := r[name]
	if !ok {
		return fmt.Sprintf("Tool '%s' not found", name), nil, nil
	}

	if err := validateArgs(tool.Schema(), args); err != nil {
		return "", nil, err
	}
	return tool.Execute(ctx, args)
}

func validateArgs(schema llm.ToolSchema, args map[string]any) error {
	if args == nil {
		args = map[string]any{}
	}
	schemaLoader := gojsonschema.NewStringLoader(schema.JSONSchema)
	documentLoader := gojsonschema.NewGoLoader(args)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("invalid arguments for %s: %s", schema.Name, strings.Join(msgs, "; "))
	}
	return nil
}
