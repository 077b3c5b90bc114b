package tracing

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	UserIDKey     = attribute.Key("user.id")
	ClientIDKey   = attribute.Key("client.id")
	EventNameKey  = attribute.Key("event.name")
	DeliveredKey  = attribute.Key("dispatch.delivered")
	FailedKey     = attribute.Key("dispatch.failed")
	TransportKey  = attribute.Key("stream.transport")
	InstanceIDKey = attribute.Key("cluster.instance_id")
)

func start(ctx context.Context, name string, kind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name,
		trace.WithSpanKind(kind),
		trace.WithAttributes(attrs...),
	)
}

// RecordError marks the span in ctx as failed.
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if err == nil || !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func TraceHTTPRequest(ctx context.Context, method, route string) (context.Context, trace.Span) {
	return start(ctx, "http."+method, trace.SpanKindServer,
		semconv.HTTPMethodKey.String(method),
		semconv.HTTPRouteKey.String(route),
	)
}

// TraceDispatch covers one event written to every channel of a user.
func TraceDispatch(ctx context.Context, eventName, userID string) (context.Context, trace.Span) {
	return start(ctx, "dispatch."+eventName, trace.SpanKindInternal,
		EventNameKey.String(eventName),
		UserIDKey.String(userID),
	)
}

// TraceStreamSession spans a whole stream connection.
func TraceStreamSession(ctx context.Context, transport, userID, clientID string) (context.Context, trace.Span) {
	return start(ctx, "stream."+transport, trace.SpanKindServer,
		TransportKey.String(transport),
		UserIDKey.String(userID),
		ClientIDKey.String(clientID),
	)
}

func TraceClusterPublish(ctx context.Context, eventType, instanceID string) (context.Context, trace.Span) {
	return start(ctx, "cluster."+eventType, trace.SpanKindProducer,
		attribute.String("cluster.event_type", eventType),
		InstanceIDKey.String(instanceID),
	)
}

// TraceDatabaseOperation spans one repository call. system is the store
// (postgres, sqlite, redis) and collection the table or key family.
func TraceDatabaseOperation(ctx context.Context, system, operation, collection string) (context.Context, trace.Span) {
	return start(ctx, "db."+operation, trace.SpanKindClient,
		semconv.DBSystemKey.String(system),
		semconv.DBOperationKey.String(operation),
		attribute.String("db.collection", collection),
	)
}

// EndOperation ends span, recording *errp unless it matches one of the
// expected errors (not-found lookups are results, not failures).
func EndOperation(span trace.Span, errp *error, expected ...error) {
	defer span.End()
	if errp == nil || *errp == nil {
		return
	}
	for _, e := range expected {
		if errors.Is(*errp, e) {
			return
		}
	}
	span.RecordError(*errp)
	span.SetStatus(codes.Error, (*errp).Error())
}
