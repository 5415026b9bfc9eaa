package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_WritesJSONAtConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := Logger(&buf, false, slog.LevelWarn)

	logger.Info("should be filtered out")
	logger.Warn("session start", "q", 0.5)

	var lines []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal(line, &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 1)
	assert.Equal(t, "session start", lines[0]["msg"])
	assert.Equal(t, float64(0.5), lines[0]["q"])
}

func TestAppendCtx_AttachesAttributesToSubsequentRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := Logger(&buf, false, slog.LevelInfo)

	ctx := AppendCtx(context.Background(), slog.String("session_id", "abc-123"))
	logger.InfoContext(ctx, "encode complete")

	var m map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m))
	assert.Equal(t, "abc-123", m["session_id"])
}

func TestAppendCtx_MergesAcrossCalls(t *testing.T) {
	ctx := AppendCtx(context.Background(), slog.String("a", "1"))
	ctx = AppendCtx(ctx, slog.String("b", "2"))

	var buf bytes.Buffer
	logger := Logger(&buf, false, slog.LevelInfo)
	logger.InfoContext(ctx, "msg")

	var m map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m))
	assert.Equal(t, "1", m["a"])
	assert.Equal(t, "2", m["b"])
}
