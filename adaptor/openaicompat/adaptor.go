// Package openaicompat implements a ProviderAdaptor for any OpenAI
// chat-completions-compatible backend.
//
// Grounded on _examples/BaSui01-agentflow/llm/providers/openaicompat/provider.go:
// same Config shape, default-header/endpoint construction, and
// request/response marshaling via the shared OpenAICompat wire types —
// narrowed to a single non-streaming Completion call (streaming deltas
// are a gateway Non-goal) and retargeted onto gatewaytypes/gatewayerr
// instead of the teacher's llm package.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Dieugene/llm-gateway/adaptor/providers"
	"github.com/Dieugene/llm-gateway/gatewayerr"
	"github.com/Dieugene/llm-gateway/gatewaytypes"
)

// Config holds the configuration for one OpenAI-compatible backend.
type Config struct {
	ProviderName string
	EndpointPath string // defaults to "/v1/chat/completions"
	Timeout      time.Duration
	BuildHeaders func(req *http.Request, apiKey string)
}

// Adaptor is a ProviderAdaptor for OpenAI-compatible chat completions.
type Adaptor struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New creates an Adaptor for cfg.
func New(cfg Config, logger *zap.Logger) *Adaptor {
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adaptor{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger.With(zap.String("component", "adaptor."+cfg.ProviderName)),
	}
}

func (a *Adaptor) Name() string { return a.cfg.ProviderName }

func (a *Adaptor) buildHeaders(req *http.Request, apiKey string) {
	if a.cfg.BuildHeaders != nil {
		a.cfg.BuildHeaders(req, apiKey)
		return
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
}

// Invoke performs one non-streaming chat completion call.
func (a *Adaptor) Invoke(ctx context.Context, cfg gatewaytypes.ModelConfig, req gatewaytypes.Request) (gatewaytypes.Response, error) {
	body := providers.Request{
		Model:       cfg.ModelName,
		Messages:    toOpenAIMessages(req.Messages),
		Tools:       toOpenAITools(req.Tools),
		Temperature: req.Temperature,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return gatewaytypes.Response{}, gatewayerr.Newf(gatewayerr.ValidationError, "marshal request: %v", err)
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/") + a.cfg.EndpointPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return gatewaytypes.Response{}, gatewayerr.Newf(gatewayerr.ValidationError, "build request: %v", err)
	}
	a.buildHeaders(httpReq, cfg.APIKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return gatewaytypes.Response{}, gatewayerr.New(gatewayerr.Cancelled, "request cancelled").WithCause(ctx.Err())
		}
		return gatewaytypes.Response{}, gatewayerr.New(gatewayerr.Transient, err.Error()).
			WithProvider(a.Name()).WithRetryable(true).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := providers.ReadErrorMessage(resp.Body)
		return gatewaytypes.Response{}, providers.MapHTTPError(resp.StatusCode, msg, a.Name())
	}

	var oaResp providers.Response
	if err := json.NewDecoder(resp.Body).Decode(&oaResp); err != nil {
		return gatewaytypes.Response{}, gatewayerr.New(gatewayerr.Transient, err.Error()).
			WithProvider(a.Name()).WithRetryable(true).WithCause(err)
	}

	return toGatewayResponse(oaResp, req.RequestID), nil
}

func toOpenAIMessages(msgs []gatewaytypes.Message) []providers.ChatMessage {
	out := make([]providers.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		oa := providers.ChatMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			oa.ToolCalls = append(oa.ToolCalls, providers.ToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: providers.Function{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, oa)
	}
	return out
}

func toOpenAITools(tools []gatewaytypes.Tool) []providers.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]providers.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, providers.Tool{
			Type: "function",
			Function: providers.Function{
				Name:      t.Name,
				Arguments: t.Parameters,
			},
		})
	}
	return out
}

func toGatewayResponse(oa providers.Response, requestID string) gatewaytypes.Response {
	resp := gatewaytypes.Response{RequestID: requestID}
	if len(oa.Choices) == 0 {
		return resp
	}

	msg := oa.Choices[0].Message
	resp.Content = msg.Content
	for _, tc := range msg.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, gatewaytypes.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	if oa.Usage != nil {
		resp.Usage = &gatewaytypes.Usage{
			InputTokens:  oa.Usage.PromptTokens,
			OutputTokens: oa.Usage.CompletionTokens,
		}
	}
	return resp
}
