package rag

import (
	"context"
	"fmt"
	"log"

	"github.com/coursepilot/coursepilot/internal/ingest"
	"github.com/coursepilot/coursepilot/internal/llm"
	"github.com/coursepilot/coursepilot/internal/session"
	"github.com/coursepilot/coursepilot/internal/tools"
)

// Catalog is the slice of the vector store the system needs for
// analytics.
type Catalog interface {
	GetCourseCount(ctx context.Context) (int, error)
	ExistingCourseTitles(ctx context.Context) ([]string, error)
}

// Options wires a System together.
type Options struct {
	Client   llm.Client
	Registry tools.Registry
	Sessions *session.Manager
	Ingestor *ingest.Ingestor
	Catalog  Catalog

	Temperature   float32
	MaxTokens     int
	MaxToolRounds int
}

// System orchestrates one query end to end: conversation history into the
// system prompt, a bounded tool-calling loop against the model, and
// source collection for the answer.
type System struct {
	client   llm.Client
	registry tools.Registry
	sessions *session.Manager
	ingestor *ingest.Ingestor
	catalog  Catalog

	temperature   float32
	maxTokens     int
	maxToolRounds int
}

// New creates a query system.
func New(opts Options) *System {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 800
	}
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = 2
	}
	return &System{
		client:        opts.Client,
		registry:      opts.Registry,
		sessions:      opts.Sessions,
		ingestor:      opts.Ingestor,
		catalog:       opts.Catalog,
		temperature:   opts.Temperature,
		maxTokens:     opts.MaxTokens,
		maxToolRounds: opts.MaxToolRounds,
	}
}

// Query answers one user question. The model first decides whether to use
// tools; tool rounds are bounded, and once the budget is spent a final
// tool-less call forces a text answer. Sources from every executed tool
// are returned alongside the answer, deduplicated in call order.
func (s *System) Query(ctx context.Context, query, sessionID string) (string, []tools.Source, error) {
	system := systemPrompt
	if history := s.sessions.History(sessionID); history != "" {
		system = fmt.Sprintf("%s\n\nPrevious conversation:\n%s", systemPrompt, history)
	}

	messages := []llm.ChatMessage{{Role: llm.RoleUser, Content: query}}

	resp, err := s.generate(ctx, system, messages, true)
	if err != nil {
		return "", nil, err
	}

	var sources []tools.Source
	round := 1
	for round <= s.maxToolRounds {
		if !resp.ToolUse() {
			break
		}

		messages = append(messages, llm.ChatMessage{
			Role:      llm.RoleAssistant,
			Content:   resp.Text,
			ToolCalls: resp.ToolCalls,
		})
		messages = append(messages, s.executeToolCalls(ctx, resp.ToolCalls, &sources)...)

		// Tools are offered again only while rounds remain; the last
		// round goes out tool-less so the model must answer.
		withTools := round < s.maxToolRounds
		resp, err = s.generate(ctx, system, messages, withTools)
		if err != nil {
			return "", nil, err
		}
		round++
	}

	// The budget is spent but the model still wants tools: refuse the
	// calls and force a text answer.
	if resp.ToolUse() {
		messages = append(messages, llm.ChatMessage{
			Role:      llm.RoleAssistant,
			Content:   resp.Text,
			ToolCalls: resp.ToolCalls,
		})
		for _, tc := range resp.ToolCalls {
			messages = append(messages, llm.ChatMessage{
				Role:       llm.RoleTool,
				ToolCallID: tc.ID,
				Content:    "Maximum tool call rounds reached. Please provide your final answer based on previous results.",
			})
		}
		resp, err = s.generate(ctx, system, messages, false)
		if err != nil {
			return "", nil, err
		}
	}

	s.sessions.AddExchange(sessionID, query, resp.Text)
	return resp.Text, dedupeSources(sources), nil
}

func (s *System) generate(ctx context.Context, system string, messages []llm.ChatMessage, withTools bool) (llm.Response, error) {
	req := llm.Request{
		System:      system,
		Messages:    messages,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	}
	if withTools {
		req.Tools = s.registry.Schemas()
	}
	return s.client.Generate(ctx, req)
}

// executeToolCalls runs every call from one assistant turn and returns
// the tool messages to append. Execution failures become tool results the
// model can read instead of aborting the query.
func (s *System) executeToolCalls(ctx context.Context, calls []llm.ToolCall, sources *[]tools.Source) []llm.ChatMessage {
	msgs := make([]llm.ChatMessage, 0, len(calls))
	for _, tc := range calls {
		result, callSources, err := s.registry.Execute(ctx, tc.Name, tc.Args)
		if err != nil {
			log.Printf("Tool %s failed: %v", tc.Name, err)
			result = fmt.Sprintf("Tool execution error: %v", err)
		}
		*sources = append(*sources, callSources...)

		msgs = append(msgs, llm.ChatMessage{
			Role:       llm.RoleTool,
			ToolCallID: tc.ID,
			Content:    result,
		})
	}
	return msgs
}

func dedupeSources(sources []tools.Source) []tools.Source {
	seen := make(map[tools.Source]bool, len(sources))
	out := make([]tools.Source, 0, len(sources))
	for _, src := range sources {
		if seen[src] {
			continue
		}
		seen[src] = true
		out = append(out, src)
	}
	return out
}

// NewSession starts a conversation and returns its id.
func (s *System) NewSession() string {
	return s.sessions.Create()
}

// DeleteSession drops a conversation's history.
func (s *System) DeleteSession(id string) {
	s.sessions.Delete(id)
}

// AddCourseDocument ingests a single course document.
func (s *System) AddCourseDocument(ctx context.Context, path string) (ingest.Course, int, error) {
	return s.ingestor.AddCourseDocument(ctx, path)
}

// AddCourseFolder ingests every new course document in a folder.
func (s *System) AddCourseFolder(ctx context.Context, dir string, clearExisting bool) (int, int, error) {
	return s.ingestor.AddCourseFolder(ctx, dir, clearExisting)
}

// Analytics summarizes the indexed catalog.
type Analytics struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

// GetAnalytics reports what is currently indexed.
func (s *System) GetAnalytics(ctx context.Context) (Analytics, error) {
	count, err := s.catalog.GetCourseCount(ctx)
	if err != nil {
		return Analytics{}, err
	}
	titles, err := s.catalog.ExistingCourseTitles(ctx)
	if err != nil {
		return Analytics{}, err
	}
	if titles == nil {
		titles = []string{}
	}
	return Analytics{TotalCourses: count, CourseTitles: titles}, nil
}
