// Package anthropic implements a ProviderAdaptor for Anthropic's
// Messages API.
//
// Grounded on the protocol-differences notes in
// _examples/BaSui01-agentflow/llm/providers/anthropic/doc.go (x-api-key
// auth, system messages lifted out of the messages array, content
// blocks, tool_use/tool_result pairing) and implemented against the real
// github.com/anthropics/anthropic-sdk-go client rather than the teacher's
// hand-rolled HTTP calls, since the gateway's go.mod already carries that
// SDK as a direct dependency.
package anthropic

import (
	"context"
	"errors"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/Dieugene/llm-gateway/gatewayerr"
	"github.com/Dieugene/llm-gateway/gatewaytypes"
)

// Config holds the configuration for the Anthropic adaptor.
type Config struct {
	Timeout time.Duration
}

// Adaptor is a ProviderAdaptor backed by the Anthropic Messages API.
type Adaptor struct {
	cfg    Config
	logger *zap.Logger
}

// New creates an Adaptor. The API key and base URL travel per-request via
// the ModelConfig passed to Invoke, since the gateway may route different
// models to different Anthropic-compatible endpoints.
func New(cfg Config, logger *zap.Logger) *Adaptor {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adaptor{cfg: cfg, logger: logger.With(zap.String("component", "adaptor.anthropic"))}
}

func (a *Adaptor) Name() string { return "anthropic" }

// Invoke performs one non-streaming Messages API call.
func (a *Adaptor) Invoke(ctx context.Context, cfg gatewaytypes.ModelConfig, req gatewaytypes.Request) (gatewaytypes.Response, error) {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	client := anthropic.NewClient(opts...)

	system, messages := splitSystem(req.Messages)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(cfg.ModelName),
		MaxTokens: int64(maxTokensFor(req)),
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(req.Temperature))
	}
	if tools := toAnthropicTools(req.Tools); len(tools) > 0 {
		params.Tools = tools
	}

	callCtx := ctx
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	resp, err := client.Messages.New(callCtx, params)
	if err != nil {
		return gatewaytypes.Response{}, classifyError(ctx, err)
	}

	return toGatewayResponse(resp, req.RequestID), nil
}

// splitSystem lifts any system-role message out of the conversation (the
// Messages API takes system content as a separate top-level field) and
// converts the remainder, stitching tool_use/tool_result pairs by
// ToolCallID.
func splitSystem(msgs []gatewaytypes.Message) (string, []anthropic.MessageParam) {
	var system string
	out := make([]anthropic.MessageParam, 0, len(msgs))

	for _, m := range msgs {
		switch m.Role {
		case gatewaytypes.RoleSystem:
			if system != "" {
				system += "\n"
			}
			system += m.Content

		case gatewaytypes.RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))

		case gatewaytypes.RoleAssistant:
			blocks := []anthropic.ContentBlockParamUnion{}
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, tc.Arguments, tc.Name))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))

		case gatewaytypes.RoleTool:
			out = append(out, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false),
			))
		}
	}

	return system, out
}

func toAnthropicTools(tools []gatewaytypes.Tool) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{},
			},
		})
	}
	return out
}

func maxTokensFor(req gatewaytypes.Request) int {
	const defaultMaxTokens = 4096
	return defaultMaxTokens
}

func toGatewayResponse(resp *anthropic.Message, requestID string) gatewaytypes.Response {
	out := gatewaytypes.Response{RequestID: requestID}

	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			out.Content += variant.Text
		case anthropic.ToolUseBlock:
			out.ToolCalls = append(out.ToolCalls, gatewaytypes.ToolCall{
				ID:        variant.ID,
				Name:      variant.Name,
				Arguments: variant.Input,
			})
		}
	}

	out.Usage = &gatewaytypes.Usage{
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}
	return out
}

// classifyError maps an anthropic-sdk-go error into the gateway's closed
// taxonomy, following the same 429/5xx-retryable rule as the
// OpenAI-compatible path.
func classifyError(ctx context.Context, err error) *gatewayerr.Error {
	if ctx.Err() != nil {
		return gatewayerr.New(gatewayerr.Cancelled, "request cancelled").WithCause(ctx.Err())
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		switch {
		case status == 429 || status == 529:
			return gatewayerr.New(gatewayerr.Transient, apiErr.Error()).
				WithProvider("anthropic").WithRetryable(true).WithCause(err)
		case status >= 500:
			return gatewayerr.New(gatewayerr.Transient, apiErr.Error()).
				WithProvider("anthropic").WithRetryable(true).WithCause(err)
		default:
			return gatewayerr.New(gatewayerr.PermanentProvider, apiErr.Error()).
				WithProvider("anthropic").WithCause(err)
		}
	}

	return gatewayerr.New(gatewayerr.Transient, err.Error()).
		WithProvider("anthropic").WithRetryable(true).WithCause(err)
}
