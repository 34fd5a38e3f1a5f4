package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContextAddsProjectAndRequest(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "debug", "json")

	ctx := WithProject(context.Background(), "p-1")
	ctx = WithContext(ctx, RequestIDKey, "req-9")
	Error(ctx, "batch failed", errors.New("boom"), "batch_size", 20)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "p-1", rec["project_id"])
	assert.Equal(t, "req-9", rec["request_id"])
	assert.Equal(t, "boom", rec["error"])
	assert.EqualValues(t, 20, rec["batch_size"])
}

func TestAutoFormatFallsBackToJSONForBuffers(t *testing.T) {
	var buf bytes.Buffer
	assert.True(t, useJSON(&buf, "auto"))
	assert.False(t, useJSON(&buf, "text"))
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "warn", "json")
	Info(context.Background(), "hidden")
	assert.Zero(t, buf.Len())
	Warn(context.Background(), "shown")
	assert.Contains(t, buf.String(), "shown")
}
