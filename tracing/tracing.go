package tracing

import (
	"context"
	"io"
	"os"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/viant/artifex"

// Span kinds accepted by StartSpan
const (
	KindInternal = "INTERNAL"
	KindServer   = "SERVER"
	KindClient   = "CLIENT"
	KindProducer = "PRODUCER"
	KindConsumer = "CONSUMER"
)

var spanKinds = map[string]trace.SpanKind{
	KindServer:   trace.SpanKindServer,
	KindClient:   trace.SpanKindClient,
	KindProducer: trace.SpanKindProducer,
	KindConsumer: trace.SpanKindConsumer,
}

// Config describes the stdout exporter set up by Init
type Config struct {
	Service string
	Version string
	// Output is a file path; empty writes to os.Stdout
	Output string
}

var (
	mu       sync.Mutex
	provider *sdktrace.TracerProvider
	output   io.Closer
)

// Init installs a global tracer provider exporting spans as JSON lines.
// Only the first call takes effect until Shutdown.
func Init(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()
	if provider != nil {
		return nil
	}
	var w io.Writer = os.Stdout
	if cfg.Output != "" {
		f, err := os.Create(cfg.Output)
		if err != nil {
			return err
		}
		w, output = f, f
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return err
	}
	return install(cfg, exporter)
}

// InitWithExporter installs a global tracer provider using exporter
func InitWithExporter(cfg Config, exporter sdktrace.SpanExporter) error {
	mu.Lock()
	defer mu.Unlock()
	if provider != nil || exporter == nil {
		return nil
	}
	return install(cfg, exporter)
}

func install(cfg Config, exporter sdktrace.SpanExporter) error {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", cfg.Service),
			attribute.String("service.version", cfg.Version),
		),
	)
	if err != nil {
		return err
	}
	provider = sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	return nil
}

// Shutdown flushes and releases the provider installed by Init
func Shutdown(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()
	if provider == nil {
		return nil
	}
	err := provider.Shutdown(ctx)
	provider = nil
	if output != nil {
		_ = output.Close()
		output = nil
	}
	return err
}

// Span wraps an OpenTelemetry span
type Span struct {
	span trace.Span
}

// WithAttributes sets string attributes in key order
func (s *Span) WithAttributes(attrs map[string]string) *Span {
	if s == nil || len(attrs) == 0 {
		return s
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	kvs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		kvs = append(kvs, attribute.String(k, attrs[k]))
	}
	s.span.SetAttributes(kvs...)
	return s
}

// WithTask tags the span with task identity
func (s *Span) WithTask(taskID, resourceKey string) *Span {
	if s == nil {
		return s
	}
	s.span.SetAttributes(attribute.String("task.id", taskID), attribute.String("resource.key", resourceKey))
	return s
}

// SetStatus records err on the span, or Ok when nil
func (s *Span) SetStatus(err error) {
	if s == nil {
		return
	}
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
		return
	}
	s.span.SetStatus(codes.Ok, "")
}

// StartSpan starts a child span; unknown kinds are internal
func StartSpan(ctx context.Context, name, kind string) (context.Context, *Span) {
	spanKind, ok := spanKinds[kind]
	if !ok {
		spanKind = trace.SpanKindInternal
	}
	ctx, span := otel.Tracer(instrumentation).Start(ctx, name, trace.WithSpanKind(spanKind))
	return ctx, &Span{span: span}
}

// EndSpan sets status from err and ends the span
func EndSpan(sp *Span, err error) {
	if sp == nil {
		return
	}
	sp.SetStatus(err)
	sp.span.End()
}
