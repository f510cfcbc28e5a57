package otel

import (
	"context"
	"sync"

	eventbus "github.com/hanpama/genrelay/internal/eventbus"
	events "github.com/hanpama/genrelay/internal/events"
	reqid "github.com/hanpama/genrelay/internal/reqid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Setup configures OpenTelemetry and attaches eventbus subscribers.
// If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)
	unregister := Register(tp)

	return func(ctx context.Context) error {
		unregister()
		return tp.Shutdown(ctx)
	}, nil
}

// Register subscribes span producers for fetch, request and server operation
// events on the global event bus, using tracers from tp.
func Register(tp trace.TracerProvider) (unregister func()) {
	s := &subscriber{tracer: tp.Tracer("genrelay")}
	return s.register()
}

type subscriber struct {
	tracer         trace.Tracer
	fetchSpans     sync.Map // rid -> trace.Span
	requestSpans   sync.Map // rid -> trace.Span
	operationSpans sync.Map // rid -> trace.Span
}

func (s *subscriber) register() func() {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.FetchStart) {
			rid, _ := reqid.FromContext(ctx)
			_, span := s.tracer.Start(ctx, "genrelay.fetch")
			span.SetAttributes(
				attribute.String("genrelay.container", e.Container),
				attribute.Bool("genrelay.force", e.Force),
				attribute.StringSlice("genrelay.queries", e.Queries),
			)
			s.fetchSpans.Store(rid, span)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.FetchReadyState) {
			rid, _ := reqid.FromContext(ctx)
			v, ok := s.fetchSpans.Load(rid)
			if !ok {
				return
			}
			span := v.(trace.Span)
			if e.Ready {
				span.AddEvent("ready", trace.WithAttributes(attribute.Bool("genrelay.stale", e.Stale)))
			}
			if !e.Aborted && !e.Done && e.Err == nil {
				return
			}
			s.fetchSpans.Delete(rid)
			span.SetAttributes(attribute.Bool("genrelay.aborted", e.Aborted))
			if e.Err != nil {
				span.RecordError(e.Err)
				span.SetStatus(codes.Error, e.Err.Error())
			}
			span.End()
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.FetchDiscarded) {
			rid, _ := reqid.FromContext(ctx)
			if v, ok := s.fetchSpans.LoadAndDelete(rid); ok {
				span := v.(trace.Span)
				span.SetAttributes(attribute.Bool("genrelay.discarded", true))
				span.End()
			}
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.RequestStart) {
			rid, _ := reqid.FromContext(ctx)
			_, span := s.tracer.Start(ctx, "genrelay.request", trace.WithSpanKind(trace.SpanKindClient))
			span.SetAttributes(
				attribute.String("graphql.operation.name", e.Name),
				semconv.HTTPURLKey.String(e.Endpoint),
			)
			s.requestSpans.Store(rid, span)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.RequestFinish) {
			rid, _ := reqid.FromContext(ctx)
			v, ok := s.requestSpans.LoadAndDelete(rid)
			if !ok {
				return
			}
			span := v.(trace.Span)
			if e.Status != 0 {
				span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
			}
			if e.Err != nil {
				span.RecordError(e.Err)
				span.SetStatus(codes.Error, e.Err.Error())
			}
			span.End()
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.OperationStart) {
			rid, _ := reqid.FromContext(ctx)
			_, span := s.tracer.Start(ctx, "genrelay.operation", trace.WithSpanKind(trace.SpanKindServer))
			span.SetAttributes(
				attribute.String("graphql.operation.name", e.OperationName),
				attribute.String("genrelay.transport", e.Transport),
			)
			s.operationSpans.Store(rid, span)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.OperationFinish) {
			rid, _ := reqid.FromContext(ctx)
			v, ok := s.operationSpans.LoadAndDelete(rid)
			if !ok {
				return
			}
			span := v.(trace.Span)
			span.SetAttributes(attribute.Int("graphql.errors", len(e.Errors)))
			for _, err := range e.Errors {
				span.RecordError(err)
			}
			if len(e.Errors) > 0 {
				span.SetStatus(codes.Error, e.Errors[0].Error())
			}
			span.End()
		}),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
