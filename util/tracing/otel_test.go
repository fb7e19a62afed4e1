package tracing

import (
	"context"
	"testing"
	"time"

	"github.com/halocoin/halominer/errors"
	"github.com/halocoin/halominer/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))

	t.Cleanup(func() {
		otel.SetTracerProvider(noop.NewTracerProvider())
	})

	return recorder
}

func TestSpans(t *testing.T) {
	recorder := recordSpans(t)

	ctx, parent := Start(context.Background(), "parent", attribute.Int64("height", 7))
	_, child := Start(ctx, "child")

	EndSpan(child, errors.NewProcessingError("boom"))
	EndSpan(parent, nil)

	ended := recorder.Ended()
	require.Len(t, ended, 2)

	assert.Equal(t, "child", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Contains(t, ended[0].Status().Description, "boom")
	assert.Equal(t, ended[1].SpanContext().SpanID(), ended[0].Parent().SpanID())

	assert.Equal(t, "parent", ended[1].Name())
	assert.Equal(t, codes.Unset, ended[1].Status().Code)
	assert.Contains(t, ended[1].Attributes(), attribute.Int64("height", 7))
}

func TestInitTracer(t *testing.T) {
	t.Cleanup(func() {
		otel.SetTracerProvider(noop.NewTracerProvider())
	})

	tSettings := settings.NewSettings()
	tSettings.Tracing.SampleRate = 1

	tp, err := InitTracer(context.Background(), tSettings, "test")
	require.NoError(t, err)
	require.NotNil(t, tp)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, ShutdownTracer(ctx, tp))
	require.NoError(t, ShutdownTracer(ctx, nil))

	tSettings.Tracing.CollectorURL = nil

	_, err = InitTracer(context.Background(), tSettings, "test")
	require.Error(t, err)
}
