// Package providers holds the HTTP error classification and wire types
// shared by the gateway's concrete provider adaptors.
//
// Grounded on MapHTTPError/ReadErrorMessage and the OpenAICompat* wire
// types of _examples/BaSui01-agentflow/llm/providers/common.go, retargeted
// from llm.Error/llm.ErrorCode onto gatewayerr.Error/gatewayerr.Kind and
// narrowed to the gateway's closed six-kind taxonomy (spec.md §6) instead
// of the teacher's broader error-code set.
package providers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Dieugene/llm-gateway/gatewayerr"
)

// MapHTTPError classifies an HTTP response status/body into the
// gateway's closed error taxonomy, matching the retryability table of
// spec.md §4.3: 429 and 5xx are Transient (retryable); other 4xx are
// PermanentProvider (not retryable), except a 400 whose message mentions
// a quota, credit or limit, which is RateLimited.
func MapHTTPError(status int, msg string, provider string) *gatewayerr.Error {
	switch status {
	case http.StatusTooManyRequests:
		return gatewayerr.New(gatewayerr.Transient, msg).WithProvider(provider).WithRetryable(true)

	case http.StatusBadRequest:
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "quota") || strings.Contains(lower, "credit") || strings.Contains(lower, "limit") {
			return gatewayerr.New(gatewayerr.RateLimited, msg).WithProvider(provider)
		}
		return gatewayerr.New(gatewayerr.PermanentProvider, msg).WithProvider(provider)

	case http.StatusUnauthorized, http.StatusForbidden:
		return gatewayerr.New(gatewayerr.PermanentProvider, msg).WithProvider(provider)

	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return gatewayerr.New(gatewayerr.Transient, msg).WithProvider(provider).WithRetryable(true)

	case 529: // model overloaded, used by some Anthropic-compatible providers
		return gatewayerr.New(gatewayerr.Transient, msg).WithProvider(provider).WithRetryable(true)

	default:
		if status >= 500 {
			return gatewayerr.New(gatewayerr.Transient, msg).WithProvider(provider).WithRetryable(true)
		}
		return gatewayerr.New(gatewayerr.PermanentProvider, msg).WithProvider(provider)
	}
}

// ReadErrorMessage reads body and extracts a human-readable error
// message, preferring a provider's structured {"error": {"message": ...}}
// shape and falling back to the raw body text.
func ReadErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(body)
	if err != nil {
		return "failed to read error response"
	}

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}

	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		if errResp.Error.Type != "" {
			return fmt.Sprintf("%s (type: %s)", errResp.Error.Message, errResp.Error.Type)
		}
		return errResp.Error.Message
	}

	return string(data)
}

// ChatMessage is the OpenAI-compatible wire shape for one message.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is the OpenAI-compatible wire shape for a tool invocation.
type ToolCall struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// Function is the OpenAI-compatible function-call payload.
type Function struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Tool is the OpenAI-compatible tool declaration.
type Tool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// Request is the OpenAI-compatible chat completion request body.
type Request struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Tools       []Tool        `json:"tools,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// Choice is one completion choice in a Response.
type Choice struct {
	Index        int         `json:"index"`
	FinishReason string      `json:"finish_reason"`
	Message      ChatMessage `json:"message"`
}

// Usage is the OpenAI-compatible token usage block.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the OpenAI-compatible chat completion response body.
type Response struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}
