package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimator_CountTokens_EmptyText(t *testing.T) {
	e := NewEstimator()
	n, err := e.CountTokens("")
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestEstimator_CountTokens_ASCIIRatio(t *testing.T) {
	e := NewEstimator()
	n, err := e.CountTokens("abcdefgh") // 8 ascii chars / 4 = 2
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestEstimator_CountTokens_CJKCostsMoreTokensPerChar(t *testing.T) {
	e := NewEstimator()
	ascii, _ := e.CountTokens("aaaaaaaaaa") // 10 ascii chars
	cjk, _ := e.CountTokens("你你你你你你你你你你")   // 10 CJK chars
	assert.Greater(t, cjk, ascii, "CJK text should estimate to more tokens than equal-length ASCII")
}

func TestEstimator_CountMessages_IncludesOverhead(t *testing.T) {
	e := NewEstimator()
	n, err := e.CountMessages([]Message{{Role: "user", Content: "hi"}})
	assert.NoError(t, err)
	assert.Greater(t, n, 0)
}

func TestCharFloor_NeverReturnsZero(t *testing.T) {
	assert.Equal(t, 1, CharFloor(""))
	assert.Equal(t, 1, CharFloor("ab"))
	assert.Equal(t, 2, CharFloor("........"))
}

func TestRegistry_PrefixMatchResolvesRegisteredTokenizer(t *testing.T) {
	Register("zzz-test-model", NewEstimator())
	t.Cleanup(func() { Unregister("zzz-test-model") })

	tok, err := Get("zzz-test-model-mini")
	assert.NoError(t, err)
	assert.Equal(t, "estimator", tok.Name())

	_, err = Get("totally-unregistered")
	assert.Error(t, err)
}

func TestGetOrEstimator_NeverFails(t *testing.T) {
	tok := GetOrEstimator("some-unregistered-model")
	assert.Equal(t, "estimator", tok.Name())
}
