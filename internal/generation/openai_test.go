package generation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, body map[string]any)) *OpenAI {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("authorization = %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		handler(w, r, body)
	}))
	t.Cleanup(srv.Close)
	return NewOpenAI("sk-test", srv.URL+"/", srv.Client())
}

func TestCreateConversation(t *testing.T) {
	var got map[string]any
	gen := newTestServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		if r.URL.Path != "/conversations" {
			t.Errorf("path = %q", r.URL.Path)
		}
		got = body
		w.Write([]byte(`{"id":"conv_123","object":"conversation"}`))
	})

	id, err := gen.CreateConversation(context.Background(), map[string]string{"user_id": "42"}, "hello")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != "conv_123" {
		t.Fatalf("id = %q, want conv_123", id)
	}
	items, _ := got["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("items = %v, want one seed message", got["items"])
	}
	meta, _ := got["metadata"].(map[string]any)
	if meta["user_id"] != "42" {
		t.Fatalf("metadata = %v", got["metadata"])
	}
}

func TestCreateConversationWithoutSeed(t *testing.T) {
	var got map[string]any
	gen := newTestServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		got = body
		w.Write([]byte(`{"id":"conv_9"}`))
	})

	if _, err := gen.CreateConversation(context.Background(), nil, ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	items, ok := got["items"].([]any)
	if !ok || len(items) != 0 {
		t.Fatalf("items = %v, want empty list", got["items"])
	}
}

func TestRespond(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantText string
		wantTool string
	}{
		{
			name:     "text",
			payload:  `{"id":"resp_1","status":"completed","output":[{"type":"reasoning"},{"type":"message","role":"assistant","content":[{"type":"output_text","text":"Hi there"}]}]}`,
			wantText: "Hi there",
		},
		{
			name:     "tool call",
			payload:  `{"id":"resp_2","status":"completed","output":[{"type":"function_call","name":"get_today_events","arguments":"{}","call_id":"call_1"}]}`,
			wantTool: "get_today_events",
		},
		{
			name:    "empty",
			payload: `{"id":"resp_3","status":"completed","output":[]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]any
			gen := newTestServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
				if r.URL.Path != "/responses" {
					t.Errorf("path = %q", r.URL.Path)
				}
				got = body
				w.Write([]byte(tt.payload))
			})

			res, err := gen.Respond(context.Background(), Request{
				ConversationID: "conv_1",
				Model:          "gpt-5-mini",
				Instructions:   "be brief",
				Input:          "hello",
				Tools:          []Tool{{Name: "get_today_events", Description: "today"}},
			})
			if err != nil {
				t.Fatalf("respond: %v", err)
			}
			if res.Text != tt.wantText {
				t.Fatalf("text = %q, want %q", res.Text, tt.wantText)
			}
			if tt.wantTool == "" && res.ToolCall != nil {
				t.Fatalf("tool call = %+v, want none", res.ToolCall)
			}
			if tt.wantTool != "" && (res.ToolCall == nil || res.ToolCall.Name != tt.wantTool) {
				t.Fatalf("tool call = %+v, want %s", res.ToolCall, tt.wantTool)
			}
			if got["conversation"] != "conv_1" || got["tool_choice"] != "auto" {
				t.Fatalf("request = %v", got)
			}
			tools, _ := got["tools"].([]any)
			if len(tools) != 1 {
				t.Fatalf("tools = %v", got["tools"])
			}
		})
	}
}

func TestRespondPendingToolCall(t *testing.T) {
	gen := newTestServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"No tool output found for function call call_abc.","type":"invalid_request_error","param":"input","code":null}}`))
	})

	_, err := gen.Respond(context.Background(), Request{ConversationID: "conv_1", Model: "m", Input: "hi"})
	if !errors.Is(err, ErrPendingToolCall) {
		t.Fatalf("err = %v, want ErrPendingToolCall", err)
	}
}

func TestRespondOtherErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`},
		{"failed status", http.StatusOK, `{"id":"resp_1","status":"failed","error":{"message":"overloaded"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := newTestServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.payload))
			})
			_, err := gen.Respond(context.Background(), Request{Model: "m", Input: "hi"})
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.Is(err, ErrPendingToolCall) {
				t.Fatalf("err = %v, should not be a pending tool call", err)
			}
		})
	}
}
