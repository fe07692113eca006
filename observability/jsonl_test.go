package observability

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DisabledWriterIsNoop(t *testing.T) {
	w, err := New("", nil)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		w.WriteBatch(BatchRecord{Model: "gpt-4o"})
		w.WriteError(ErrorRecord{Model: "gpt-4o"})
	})
	assert.NoError(t, w.Close())
}

func TestNew_WritesOneJSONLinePerRecord(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, nil)
	require.NoError(t, err)
	defer w.Close()

	w.WriteBatch(BatchRecord{Model: "gpt-4o", BatchSize: 3, Success: true})
	w.WriteBatch(BatchRecord{Model: "gpt-4o", BatchSize: 1, Success: false, Error: "boom"})

	lines := readLines(t, filepath.Join(dir, "batches.jsonl"))
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"model":"gpt-4o"`)
	assert.Contains(t, lines[1], `"error":"boom"`)
}

func TestNew_CreatesAllFiveStreams(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, nil)
	require.NoError(t, err)
	defer w.Close()

	for _, name := range []string{"batches.jsonl", "errors.jsonl", "retries.jsonl", "rate_limits.jsonl", "responses.jsonl"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, "expected %s to exist", name)
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}
