package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const pendingToolCallMessage = "No tool output found for function call"

// OpenAI implements Generator on the OpenAI Conversations and Responses
// endpoints.
type OpenAI struct {
	client openai.Client
}

// NewOpenAI builds the adapter. An empty baseURL uses the public API. The
// client never retries on its own; recovery is the caller's decision.
func NewOpenAI(apiKey, baseURL string, httpClient *http.Client) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &OpenAI{client: openai.NewClient(opts...)}
}

type inputMessage struct {
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

type conversationRequest struct {
	Metadata map[string]string `json:"metadata,omitempty"`
	Items    []inputMessage    `json:"items"`
}

type conversationResponse struct {
	ID string `json:"id"`
}

func (o *OpenAI) CreateConversation(ctx context.Context, metadata map[string]string, seed string) (string, error) {
	body := conversationRequest{Metadata: metadata, Items: []inputMessage{}}
	if seed != "" {
		body.Items = append(body.Items, inputMessage{Type: "message", Role: "user", Content: seed})
	}

	var out conversationResponse
	if err := o.client.Post(ctx, "conversations", body, &out); err != nil {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}
	if out.ID == "" {
		return "", errors.New("conversation created without id")
	}
	return out.ID, nil
}

type functionTool struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

type responseRequest struct {
	Model        string         `json:"model"`
	Conversation string         `json:"conversation,omitempty"`
	Input        string         `json:"input"`
	Instructions string         `json:"instructions,omitempty"`
	Tools        []functionTool `json:"tools,omitempty"`
	ToolChoice   string         `json:"tool_choice,omitempty"`
}

type outputContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type outputItem struct {
	Type      string          `json:"type"`
	Role      string          `json:"role"`
	Name      string          `json:"name"`
	Arguments string          `json:"arguments"`
	CallID    string          `json:"call_id"`
	Content   []outputContent `json:"content"`
}

type responseBody struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Output []outputItem `json:"output"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (o *OpenAI) Respond(ctx context.Context, req Request) (Response, error) {
	body := responseRequest{
		Model:        req.Model,
		Conversation: req.ConversationID,
		Input:        req.Input,
		Instructions: req.Instructions,
	}
	for _, tool := range req.Tools {
		body.Tools = append(body.Tools, functionTool{
			Type:        "function",
			Name:        tool.Name,
			Description: tool.Description,
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
				"required":   []string{},
			},
		})
	}
	if len(body.Tools) > 0 {
		body.ToolChoice = "auto"
	}

	var out responseBody
	if err := o.client.Post(ctx, "responses", body, &out); err != nil {
		if isPendingToolCall(err) {
			return Response{}, fmt.Errorf("%w: %w", ErrPendingToolCall, err)
		}
		return Response{}, fmt.Errorf("failed to create response: %w", err)
	}
	if out.Status != "completed" {
		msg := ""
		if out.Error != nil {
			msg = out.Error.Message
		}
		return Response{}, fmt.Errorf("response %s finished with status %q %s", out.ID, out.Status, msg)
	}

	return parseOutput(out), nil
}

// parseOutput takes the first function call or assistant text in output
// order.
func parseOutput(out responseBody) Response {
	res := Response{ID: out.ID}
	for _, item := range out.Output {
		switch {
		case item.Type == "function_call":
			res.ToolCall = &ToolCall{CallID: item.CallID, Name: item.Name, Arguments: item.Arguments}
			return res
		case item.Type == "message" && item.Role == "assistant":
			for _, c := range item.Content {
				if c.Type == "output_text" && c.Text != "" {
					res.Text = c.Text
					return res
				}
			}
		}
	}
	return res
}

func isPendingToolCall(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && strings.Contains(apiErr.Message, pendingToolCallMessage) {
		return true
	}
	return strings.Contains(err.Error(), pendingToolCallMessage)
}
