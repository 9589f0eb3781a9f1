package llm

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicAdapter implements ProviderAdapter on the native Anthropic
// messages API.
type AnthropicAdapter struct {
	client anthropic.Client
}

// NewAnthropicAdapter creates an adapter. An empty apiKey defers to the
// SDK's environment lookup (ANTHROPIC_API_KEY).
func NewAnthropicAdapter(apiKey string) *AnthropicAdapter {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &AnthropicAdapter{client: anthropic.NewClient(opts...)}
}

// Name returns the provider identifier.
func (a *AnthropicAdapter) Name() string { return "anthropic" }

// Complete sends a blocking request and returns the full response.
func (a *AnthropicAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	params, err := a.translateRequest(req)
	if err != nil {
		return nil, err
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, a.translateError(ctx, err)
	}
	return a.translateResponse(req, msg), nil
}

func (a *AnthropicAdapter) translateRequest(req Request) (anthropic.MessageNewParams, error) {
	maxTokens := defaultAnthropicMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	var system string
	var messages []anthropic.MessageParam
	var pendingResults []anthropic.ContentBlockParamUnion

	flushResults := func() {
		if len(pendingResults) > 0 {
			messages = append(messages, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			flushResults()
			if system != "" {
				system += "\n\n"
			}
			system += m.TextContent()
		case RoleUser:
			flushResults()
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.TextContent())))
		case RoleAssistant:
			flushResults()
			var blocks []anthropic.ContentBlockParamUnion
			for _, part := range m.Content {
				switch part.Kind {
				case ContentText:
					if part.Text != "" {
						blocks = append(blocks, anthropic.NewTextBlock(part.Text))
					}
				case ContentToolCall:
					var input any
					if err := json.Unmarshal(part.ToolCall.Arguments, &input); err != nil {
						input = map[string]any{}
					}
					blocks = append(blocks, anthropic.NewToolUseBlock(part.ToolCall.ID, input, part.ToolCall.Name))
				}
			}
			if len(blocks) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(blocks...))
			}
		case RoleTool:
			// Tool results for one assistant turn travel together in the
			// next user message; consecutive tool messages are merged.
			for _, part := range m.Content {
				if part.Kind == ContentToolResult && part.ToolResult != nil {
					pendingResults = append(pendingResults, anthropic.NewToolResultBlock(
						part.ToolResult.ToolCallID, part.ToolResult.Content, part.ToolResult.IsError))
				}
			}
		}
	}
	flushResults()

	params.Messages = messages
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	if len(req.Tools) > 0 {
		tools := make([]anthropic.ToolUnionParam, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: toInputSchema(t.Parameters),
			}})
		}
		params.Tools = tools
	}

	return params, nil
}

// toInputSchema lifts a JSON-schema map into the SDK's input schema shape.
func toInputSchema(parameters map[string]interface{}) anthropic.ToolInputSchemaParam {
	schema := anthropic.ToolInputSchemaParam{}
	if parameters == nil {
		return schema
	}
	if props, ok := parameters["properties"]; ok {
		schema.Properties = props
	}
	switch req := parameters["required"].(type) {
	case []string:
		schema.Required = req
	case []interface{}:
		for _, v := range req {
			if s, ok := v.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	return schema
}

func (a *AnthropicAdapter) translateResponse(req Request, msg *anthropic.Message) *Response {
	var parts []ContentPart
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			if v.Text != "" {
				parts = append(parts, TextPart(v.Text))
			}
		case anthropic.ToolUseBlock:
			parts = append(parts, ToolCallPart(v.ID, v.Name, json.RawMessage(v.JSON.Input.Raw())))
		}
	}

	reason := FinishReason{Reason: "other", Raw: string(msg.StopReason)}
	switch msg.StopReason {
	case anthropic.StopReasonEndTurn, anthropic.StopReasonStopSequence:
		reason.Reason = "stop"
	case anthropic.StopReasonToolUse:
		reason.Reason = "tool_calls"
	case anthropic.StopReasonMaxTokens:
		reason.Reason = "length"
	}

	return &Response{
		ID:       msg.ID,
		Model:    req.Model,
		Provider: a.Name(),
		Message: Message{
			Role:    RoleAssistant,
			Content: parts,
		},
		FinishReason: reason,
		Usage: Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
			TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
}

// translateError converts SDK failures into the unified error hierarchy.
func (a *AnthropicAdapter) translateError(ctx context.Context, err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return ErrorFromStatusCode(apierr.StatusCode, apierr.Error(), a.Name(), nil)
	}
	if ctx.Err() != nil {
		return &AbortError{ClientError: ClientError{Message: "request cancelled", Cause: err}}
	}
	return &NetworkError{ClientError: ClientError{Message: "anthropic request failed", Cause: err}}
}
