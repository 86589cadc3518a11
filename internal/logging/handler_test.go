// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/accountd/accountd/internal/logging"
)

func TestSetupAddsServiceIdentity(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.Setup("accountd", "1.2.3", "json", &buf)

	logger.Info("hello", "key", "value")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "hello", record["msg"])
	assert.Equal(t, "accountd", record["service"])
	assert.Equal(t, "1.2.3", record["version"])
	assert.Equal(t, "value", record["key"])
	assert.NotContains(t, record, "trace_id", "no trace context, no trace id")
}

func TestSetupTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.Setup("accountd", "dev", "text", &buf)

	logger.Info("hello")
	assert.Contains(t, buf.String(), "service=accountd")
}

func TestSetupAddsTraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.Setup("accountd", "dev", "json", &buf)

	traceID, err := trace.TraceIDFromHex("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("0123456789abcdef")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(),
		trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: traceID,
			SpanID:  spanID,
		}))

	logger.InfoContext(ctx, "traced")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, traceID.String(), record["trace_id"])
	assert.Equal(t, spanID.String(), record["span_id"])
}
