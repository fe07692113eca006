package anthropic

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dieugene/llm-gateway/gatewayerr"
	"github.com/Dieugene/llm-gateway/gatewaytypes"
)

func TestSplitSystem_ExtractsSystemAndConvertsRemainder(t *testing.T) {
	msgs := []gatewaytypes.Message{
		{Role: gatewaytypes.RoleSystem, Content: "be terse"},
		{Role: gatewaytypes.RoleUser, Content: "hi"},
		{Role: gatewaytypes.RoleAssistant, ToolCalls: []gatewaytypes.ToolCall{
			{ID: "tool_1", Name: "lookup", Arguments: json.RawMessage(`{}`)},
		}},
		{Role: gatewaytypes.RoleTool, ToolCallID: "tool_1", Content: "result"},
	}

	system, converted := splitSystem(msgs)
	assert.Equal(t, "be terse", system)
	require.Len(t, converted, 3)
}

func TestSplitSystem_ConcatenatesMultipleSystemMessages(t *testing.T) {
	msgs := []gatewaytypes.Message{
		{Role: gatewaytypes.RoleSystem, Content: "first"},
		{Role: gatewaytypes.RoleSystem, Content: "second"},
	}

	system, converted := splitSystem(msgs)
	assert.Equal(t, "first\nsecond", system)
	assert.Empty(t, converted)
}

func TestSplitSystem_NoSystemMessageReturnsEmptyString(t *testing.T) {
	msgs := []gatewaytypes.Message{{Role: gatewaytypes.RoleUser, Content: "hi"}}

	system, converted := splitSystem(msgs)
	assert.Equal(t, "", system)
	require.Len(t, converted, 1)
}

func TestClassifyError_CancelledContextTakesPriority(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	time.Sleep(time.Millisecond)

	err := classifyError(ctx, assertError{})
	assert.Equal(t, gatewayerr.Cancelled, err.Kind)
}

func TestClassifyError_UnrecognizedErrorDefaultsToTransientRetryable(t *testing.T) {
	err := classifyError(context.Background(), assertError{})
	assert.Equal(t, gatewayerr.Transient, err.Kind)
	assert.True(t, err.Retryable)
}

type assertError struct{}

func (assertError) Error() string { return "boom" }
