package tokenizer

import "unicode/utf8"

// Estimator is a character-count-based token estimator, distinguishing
// CJK from ASCII text for better accuracy than a flat chars-per-token
// ratio. Used whenever no provider-specific tokenizer is registered for
// a model.
type Estimator struct{}

// NewEstimator creates a CJK-aware estimator.
func NewEstimator() *Estimator {
	return &Estimator{}
}

func (e *Estimator) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}

	totalChars := utf8.RuneCountInString(text)
	cjkCount := 0
	for _, r := range text {
		if isCJK(r) {
			cjkCount++
		}
	}

	// CJK characters ~1.5 chars/token, ASCII ~4 chars/token.
	cjkTokens := float64(cjkCount) / 1.5
	asciiTokens := float64(totalChars-cjkCount) / 4.0
	estimated := int(cjkTokens + asciiTokens)

	if estimated == 0 {
		estimated = 1
	}
	return estimated, nil
}

func (e *Estimator) CountMessages(messages []Message) (int, error) {
	total := 0
	for _, msg := range messages {
		tokens, err := e.CountTokens(msg.Content)
		if err != nil {
			return 0, err
		}
		total += tokens + 4 // per-message role/separator overhead
	}
	total += 3 // conversation-end overhead
	return total, nil
}

func (e *Estimator) Name() string {
	return "estimator"
}

// CharFloor is the gateway's ultimate fallback when even the CJK
// estimator cannot run (e.g. counting a raw serialized blob): spec.md
// §4.4's max(1, len(text)/4).
func CharFloor(text string) int {
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// isCJK reports whether r falls in a CJK Unicode block.
func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) || // CJK Unified Ideographs
		(r >= 0x3400 && r <= 0x4DBF) || // CJK Extension A
		(r >= 0x20000 && r <= 0x2A6DF) || // CJK Extension B
		(r >= 0xF900 && r <= 0xFAFF) || // CJK Compatibility Ideographs
		(r >= 0x3000 && r <= 0x303F) || // CJK Symbols and Punctuation
		(r >= 0xFF00 && r <= 0xFFEF) // Halfwidth and Fullwidth Forms
}
