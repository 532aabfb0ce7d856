package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/thomasdelaet/kad-telemetry/config"
	"github.com/thomasdelaet/kad-telemetry/types"
)

func createTestTracer(t *testing.T) (*Tracer, *tracetest.InMemoryExporter) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSyncer(exporter),
	)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	return NewTracerWithProvider("test-service", provider), exporter
}

func attr(span tracetest.SpanStub, key string) string {
	for _, kv := range span.Attributes {
		if string(kv.Key) == key {
			return kv.Value.Emit()
		}
	}
	return ""
}

func TestDefaultProviderConfig(t *testing.T) {
	cfg := DefaultProviderConfig()

	require.Equal(t, "kad-telemetry", cfg.ServiceName)
	require.Equal(t, ExporterNone, cfg.Exporter)
	require.Equal(t, 0.1, cfg.SampleRate)
}

func TestNewProvider_Exporters(t *testing.T) {
	for _, exporter := range []string{ExporterNone, ExporterStdout, ExporterZipkin, ""} {
		t.Run(exporter, func(t *testing.T) {
			provider, err := NewProvider(ProviderConfig{
				ServiceName: "test-service",
				Exporter:    exporter,
				SampleRate:  1.0,
			})
			require.NoError(t, err)
			require.NotNil(t, provider)
			require.NoError(t, provider.Shutdown(context.Background()))
		})
	}
}

func TestNewProvider_InvalidExporter(t *testing.T) {
	_, err := NewProvider(ProviderConfig{
		ServiceName: "test-service",
		Exporter:    "invalid",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown exporter type")
}

func TestNewSampler(t *testing.T) {
	require.Equal(t, sdktrace.NeverSample().Description(), newSampler(0).Description())
	require.Equal(t, sdktrace.NeverSample().Description(), newSampler(-1).Description())
	require.Equal(t, sdktrace.AlwaysSample().Description(), newSampler(1).Description())
	require.Equal(t, sdktrace.AlwaysSample().Description(), newSampler(2).Description())
	require.Equal(t, sdktrace.TraceIDRatioBased(0.5).Description(), newSampler(0.5).Description())
}

func TestSetup_Disabled(t *testing.T) {
	tracer, shutdown, err := Setup(config.TracingConfig{Enabled: false}, "test")
	require.NoError(t, err)
	require.NotNil(t, tracer)
	require.NoError(t, shutdown(context.Background()))

	_, span := tracer.StartOpen(context.Background(), types.Contact{ID: "node-a"}, "")
	require.False(t, span.IsRecording())
	span.End()
}

func TestSetup_Enabled(t *testing.T) {
	tracer, shutdown, err := Setup(config.TracingConfig{
		Enabled:     true,
		ServiceName: "test-service",
		Exporter:    ExporterNone,
		SampleRate:  1,
	}, "test")
	require.NoError(t, err)
	require.NotNil(t, tracer)

	_, span := tracer.StartSend(context.Background(), types.Contact{ID: "node-b"}, "ping", "id-1")
	require.True(t, span.IsRecording())
	span.End()

	require.NoError(t, shutdown(context.Background()))
}

func TestTracer_Spans(t *testing.T) {
	tracer, exporter := createTestTracer(t)
	ctx := context.Background()

	_, open := tracer.StartOpen(ctx, types.Contact{ID: "node-a"}, "memory:")
	End(open, nil)

	_, send := tracer.StartSend(ctx, types.Contact{ID: "node-b"}, "ping", "id-1")
	End(send, errors.New("unknown contact"))

	_, closeSpan := tracer.StartClose(ctx, types.Contact{ID: "node-a"})
	End(closeSpan, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 3)

	require.Equal(t, SpanOpen, spans[0].Name)
	require.Equal(t, "memory:", attr(spans[0], string(AttrLocator)))
	require.Equal(t, codes.Ok, spans[0].Status.Code)

	require.Equal(t, SpanSend, spans[1].Name)
	require.Equal(t, "ping", attr(spans[1], string(AttrMethod)))
	require.Equal(t, "id-1", attr(spans[1], string(AttrMessageID)))
	require.Equal(t, codes.Error, spans[1].Status.Code)
	require.Len(t, spans[1].Events, 1)

	require.Equal(t, SpanClose, spans[2].Name)
}
