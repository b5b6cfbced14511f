package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habitatlab/sdmgo/pkg/errors"
)

func TestWithStackTracesAddsStacktrace(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(WithStackTraces(slog.NewJSONHandler(&buf, nil)))

	err := errors.NewValueError("op", "bad input")
	logger.Log(context.Background(), slog.LevelError, "failed", ErrAttr(err))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Contains(t, rec, StacktraceAttrKey)
	assert.NotEmpty(t, rec[StacktraceAttrKey])
}

func TestWithStackTracesPassesPlainRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(WithStackTraces(slog.NewJSONHandler(&buf, nil)))

	logger.Info("plain", slog.Int("n", 3))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.NotContains(t, rec, StacktraceAttrKey)
}
