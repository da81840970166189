package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/coursepilot/coursepilot/internal/llm"
	"github.com/coursepilot/coursepilot/internal/session"
	"github.com/coursepilot/coursepilot/internal/tools"
)

// scriptedClient replays canned responses and records every request.
type scriptedClient struct {
	responses []llm.Response
	err       error
	requests  []llm.Request
}

func (c *scriptedClient) Generate(_ context.Context, req llm.Request) (llm.Response, error) {
	c.requests = append(c.requests, req)
	if c.err != nil {
		return llm.Response{}, c.err
	}
	if len(c.responses) == 0 {
		return llm.Response{}, errors.New("scripted client exhausted")
	}
	resp := c.responses[0]
	c.responses = c.responses[1:]
	return resp, nil
}

type fakeTool struct {
	result  string
	sources []tools.Source
	err     error
	calls   []map[string]any
}

func (t *fakeTool) Schema() llm.ToolSchema {
	return llm.ToolSchema{
		Name:        "search_course_content",
		Description: "test search",
		JSONSchema:  `{"type": "object"}`,
	}
}

func (t *fakeTool) Execute(_ context.Context, args map[string]any) (string, []tools.Source, error) {
	t.calls = append(t.calls, args)
	return t.result, t.sources, t.err
}

func newTestSystem(t *testing.T, client llm.Client, tool tools.Tool) *System {
	t.Helper()
	reg := tools.Registry{}
	if tool != nil {
		if err := reg.Register(tool); err != nil {
			t.Fatalf("register failed: %v", err)
		}
	}
	return New(Options{
		Client:        client,
		Registry:      reg,
		Sessions:      session.NewManager(2),
		MaxToolRounds: 2,
	})
}

func toolUseResponse(id string, args map[string]any) llm.Response {
	return llm.Response{
		StopReason: "tool_calls",
		ToolCalls:  []llm.ToolCall{{ID: id, Name: "search_course_content", Args: args}},
	}
}

func TestQueryDirectAnswer(t *testing.T) {
	client := &scriptedClient{responses: []llm.Response{{Text: "Paris.", StopReason: "stop"}}}
	tool := &fakeTool{}
	sys := newTestSystem(t, client, tool)

	answer, sources, err := sys.Query(context.Background(), "Capital of France?", sys.NewSession())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "Paris." {
		t.Errorf("unexpected answer: %q", answer)
	}
	if len(sources) != 0 {
		t.Errorf("expected no sources for a direct answer, got %+v", sources)
	}
	if len(tool.calls) != 0 {
		t.Errorf("expected no tool calls, got %d", len(tool.calls))
	}
	if len(client.requests) != 1 {
		t.Fatalf("expected a single model call, got %d", len(client.requests))
	}
	if len(client.requests[0].Tools) != 1 {
		t.Errorf("first call must offer tools, got %d", len(client.requests[0].Tools))
	}
}

func TestQueryToolThenSynthesis(t *testing.T) {
	client := &scriptedClient{responses: []llm.Response{
		toolUseResponse("call_1", map[string]any{"query": "mcp servers"}),
		{Text: "Servers expose tools.", StopReason: "stop"},
	}}
	tool := &fakeTool{
		result:  "[Introduction to MCP - Lesson 1]\nServers expose tooling endpoints.",
		sources: []tools.Source{{Label: "Introduction to MCP - Lesson 1", Link: "https://example.com/1"}},
	}
	sys := newTestSystem(t, client, tool)

	answer, sources, err := sys.Query(context.Background(), "What do MCP servers do?", sys.NewSession())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "Servers expose tools." {
		t.Errorf("unexpected answer: %q", answer)
	}

	if len(tool.calls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(tool.calls))
	}
	if tool.calls[0]["query"] != "mcp servers" {
		t.Errorf("unexpected tool args: %+v", tool.calls[0])
	}

	if len(sources) != 1 || sources[0].Link != "https://example.com/1" {
		t.Errorf("unexpected sources: %+v", sources)
	}

	if len(client.requests) != 2 {
		t.Fatalf("expected 2 model calls, got %d", len(client.requests))
	}
	second := client.requests[1]
	if len(second.Tools) != 1 {
		t.Errorf("round 1 follow-up must still offer tools, got %d", len(second.Tools))
	}
	last := second.Messages[len(second.Messages)-1]
	if last.Role != llm.RoleTool || last.ToolCallID != "call_1" {
		t.Errorf("expected tool result message last, got %+v", last)
	}
	if !strings.Contains(last.Content, "Servers expose tooling endpoints.") {
		t.Errorf("tool result not threaded to the model: %q", last.Content)
	}
}

func TestQueryTwoSequentialRounds(t *testing.T) {
	client := &scriptedClient{responses: []llm.Response{
		toolUseResponse("call_1", map[string]any{"query": "outline"}),
		toolUseResponse("call_2", map[string]any{"query": "lesson 2"}),
		{Text: "Final answer.", StopReason: "stop"},
	}}
	tool := &fakeTool{result: "some content"}
	sys := newTestSystem(t, client, tool)

	answer, _, err := sys.Query(context.Background(), "Outline then lesson 2?", sys.NewSession())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "Final answer." {
		t.Errorf("unexpected answer: %q", answer)
	}
	if len(tool.calls) != 2 {
		t.Errorf("expected 2 tool calls, got %d", len(tool.calls))
	}
	if len(client.requests) != 3 {
		t.Fatalf("expected 3 model calls, got %d", len(client.requests))
	}
	if len(client.requests[2].Tools) != 0 {
		t.Errorf("final round must go out without tools, got %d", len(client.requests[2].Tools))
	}
}

func TestQueryRoundCapForcesAnswer(t *testing.T) {
	client := &scriptedClient{responses: []llm.Response{
		toolUseResponse("call_1", map[string]any{"query": "a"}),
		toolUseResponse("call_2", map[string]any{"query": "b"}),
		toolUseResponse("call_3", map[string]any{"query": "c"}),
		{Text: "Forced answer.", StopReason: "stop"},
	}}
	tool := &fakeTool{result: "content"}
	sys := newTestSystem(t, client, tool)

	answer, _, err := sys.Query(context.Background(), "keep searching", sys.NewSession())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "Forced answer." {
		t.Errorf("unexpected answer: %q", answer)
	}

	// Only two rounds may execute tools; the third request is refused.
	if len(tool.calls) != 2 {
		t.Errorf("expected exactly 2 executed tool calls, got %d", len(tool.calls))
	}
	if len(client.requests) != 4 {
		t.Fatalf("expected 4 model calls, got %d", len(client.requests))
	}

	final := client.requests[3]
	if len(final.Tools) != 0 {
		t.Errorf("forced final call must not offer tools")
	}
	last := final.Messages[len(final.Messages)-1]
	if last.Role != llm.RoleTool || !strings.Contains(last.Content, "Maximum tool call rounds reached") {
		t.Errorf("expected refusal tool result, got %+v", last)
	}
}

func TestQueryToolErrorBecomesResult(t *testing.T) {
	client := &scriptedClient{responses: []llm.Response{
		toolUseResponse("call_1", map[string]any{"query": "x"}),
		{Text: "Recovered.", StopReason: "stop"},
	}}
	tool := &fakeTool{err: errors.New("index unavailable")}
	sys := newTestSystem(t, client, tool)

	answer, _, err := sys.Query(context.Background(), "question", sys.NewSession())
	if err != nil {
		t.Fatalf("tool failure must not abort the query: %v", err)
	}
	if answer != "Recovered." {
		t.Errorf("unexpected answer: %q", answer)
	}

	last := client.requests[1].Messages[len(client.requests[1].Messages)-1]
	if !strings.Contains(last.Content, "Tool execution error: index unavailable") {
		t.Errorf("expected error surfaced as tool result, got %q", last.Content)
	}
}

func TestQueryModelErrorPropagates(t *testing.T) {
	client := &scriptedClient{err: errors.New("rate limited")}
	sys := newTestSystem(t, client, &fakeTool{})

	id := sys.NewSession()
	_, _, err := sys.Query(context.Background(), "question", id)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := sys.sessions.History(id); got != "" {
		t.Errorf("failed query must not be recorded, got %q", got)
	}
}

func TestQueryHistoryInSystemPrompt(t *testing.T) {
	client := &scriptedClient{responses: []llm.Response{
		{Text: "First.", StopReason: "stop"},
		{Text: "Second.", StopReason: "stop"},
	}}
	sys := newTestSystem(t, client, &fakeTool{})
	id := sys.NewSession()

	if _, _, err := sys.Query(context.Background(), "first question", id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(client.requests[0].System, "Previous conversation:") {
		t.Error("first query must not carry history")
	}

	if _, _, err := sys.Query(context.Background(), "second question", id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	system := client.requests[1].System
	if !strings.Contains(system, "Previous conversation:") ||
		!strings.Contains(system, "User: first question") ||
		!strings.Contains(system, "Assistant: First.") {
		t.Errorf("expected history in system prompt, got:\n%s", system)
	}
}

func TestQuerySourcesDoNotLeakAcrossQueries(t *testing.T) {
	tool := &fakeTool{
		result:  "content",
		sources: []tools.Source{{Label: "Course A - Lesson 1"}},
	}
	client := &scriptedClient{responses: []llm.Response{
		toolUseResponse("call_1", map[string]any{"query": "a"}),
		{Text: "With sources.", StopReason: "stop"},
		{Text: "No tools this time.", StopReason: "stop"},
	}}
	sys := newTestSystem(t, client, tool)

	_, sources, err := sys.Query(context.Background(), "first", sys.NewSession())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(sources))
	}

	_, sources, err = sys.Query(context.Background(), "second", sys.NewSession())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sources) != 0 {
		t.Errorf("sources leaked into the next query: %+v", sources)
	}
}

func TestQueryDedupesSources(t *testing.T) {
	tool := &fakeTool{
		result: "content",
		sources: []tools.Source{
			{Label: "Course A - Lesson 1", Link: "https://a/1"},
		},
	}
	client := &scriptedClient{responses: []llm.Response{
		toolUseResponse("call_1", map[string]any{"query": "a"}),
		toolUseResponse("call_2", map[string]any{"query": "b"}),
		{Text: "Done.", StopReason: "stop"},
	}}
	sys := newTestSystem(t, client, tool)

	_, sources, err := sys.Query(context.Background(), "question", sys.NewSession())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sources) != 1 {
		t.Errorf("expected duplicate sources collapsed, got %+v", sources)
	}
}

func TestGetAnalytics(t *testing.T) {
	sys := New(Options{
		Client:   &scriptedClient{},
		Registry: tools.Registry{},
		Sessions: session.NewManager(2),
		Catalog:  stubCatalog{count: 2, titles: []string{"A", "B"}},
	})

	analytics, err := sys.GetAnalytics(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if analytics.TotalCourses != 2 || len(analytics.CourseTitles) != 2 {
		t.Errorf("unexpected analytics: %+v", analytics)
	}
}

type stubCatalog struct {
	count  int
	titles []string
}

func (s stubCatalog) GetCourseCount(context.Context) (int, error) { return s.count, nil }
func (s stubCatalog) ExistingCourseTitles(context.Context) ([]string, error) {
	return s.titles, nil
}
