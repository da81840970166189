package llm

import (
	"context"
	"encoding/json"
	"fmt"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

// AnthropicClient implements Client on the Anthropic Messages API.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient creates an Anthropic-backed client.
func NewAnthropicClient(apiKey, modelName string) *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(apiKey),
		model:  modelName,
	}
}

func (c *AnthropicClient) Generate(ctx context.Context, req Request) (Response, error) {
	msgs, err := toAnthropicMessages(req.Messages)
	if err != nil {
		return Response{}, err
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 800
	}
	temperature := req.Temperature

	apiReq := anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
	}

	if req.System != "" {
		apiReq.MultiSystem = []anthropic.MessageSystemPart{
			{Type: "text", Text: req.System},
		}
	}

	if len(req.Tools) > 0 {
		toolDefs, err := toAnthropicTools(req.Tools)
		if err != nil {
			return Response{}, err
		}
		apiReq.Tools = toolDefs
	}

	resp, err := c.client.CreateMessages(ctx, apiReq)
	if err != nil {
		return Response{}, fmt.Errorf("anthropic request failed: %w", err)
	}

	out := Response{StopReason: normalizeStopReason(string(resp.StopReason))}
	for _, block := range resp.Content {
		switch block.Type {
		case anthropic.MessagesContentTypeText:
			if block.Text != nil {
				out.Text += *block.Text
			}
		case "tool_use":
			if block.MessageContentToolUse == nil || block.ID == "" || block.Name == "" {
				continue
			}
			args := make(map[string]any)
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &args); err != nil {
					args = make(map[string]any)
				}
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:   block.ID,
				Name: block.Name,
				Args: args,
			})
		}
	}

	if len(out.ToolCalls) > 0 {
		out.StopReason = "tool_calls"
	}
	return out, nil
}

func toAnthropicMessages(messages []ChatMessage) ([]anthropic.Message, error) {
	var msgs []anthropic.Message
	prevAssistantHadToolCalls := false

	for _, msg := range messages {
		switch msg.Role {
		case RoleUser:
			msgs = append(msgs, anthropic.Message{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(msg.Content)},
			})
			prevAssistantHadToolCalls = false

		case RoleAssistant:
			var content []anthropic.MessageContent
			if msg.Content != "" {
				content = append(content, anthropic.NewTextMessageContent(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				argsJSON, _ := json.Marshal(tc.Args)
				content = append(content, anthropic.NewToolUseMessageContent(tc.ID, tc.Name, json.RawMessage(argsJSON)))
			}
			msgs = append(msgs, anthropic.Message{
				Role:    anthropic.RoleAssistant,
				Content: content,
			})
			prevAssistantHadToolCalls = len(msg.ToolCalls) > 0

		case RoleTool:
			// Anthropic requires tool results to follow an assistant
			// message with tool_use blocks.
			if !prevAssistantHadToolCalls {
				continue
			}
			content := msg.Content
			if content == "" {
				content = "{}"
			}
			msgs = append(msgs, anthropic.Message{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					anthropic.NewToolResultMessageContent(msg.ToolCallID, content, false),
				},
			})

		case RoleSystem:
			return nil, fmt.Errorf("system messages belong in Request.System, not the transcript")
		}
	}
	return msgs, nil
}

func toAnthropicTools(tools []ToolSchema) ([]anthropic.ToolDefinition, error) {
	toolDefs := make([]anthropic.ToolDefinition, 0, len(tools))
	for _, ts := range tools {
		var schemaObj map[string]any
		if err := json.Unmarshal([]byte(ts.JSONSchema), &schemaObj); err != nil {
			return nil, fmt.Errorf("invalid tool schema JSON for %s: %w", ts.Name, err)
		}
		toolDefs = append(toolDefs, anthropic.ToolDefinition{
			Name:        ts.Name,
			Description: ts.Description,
			InputSchema: schemaObj,
		})
	}
	return toolDefs, nil
}

func normalizeStopReason(reason string) string {
	switch reason {
	case "max_tokens", "length":
		return "length"
	case "tool_use", "tool_calls":
		return "tool_calls"
	default:
		return "stop"
	}
}
