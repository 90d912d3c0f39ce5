package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { w.closed = true; return nil }

func TestNew(t *testing.T) {
	evt, err := New(AppointmentBooked, 4, 99, map[string]int{"providerId": 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if evt.ID == "" {
		t.Error("expected generated id")
	}
	if evt.Key != "99" {
		t.Errorf("expected key 99, got %q", evt.Key)
	}
	if string(evt.Data) != `{"providerId":2}` {
		t.Errorf("unexpected payload %s", evt.Data)
	}
}

func TestNew_BadPayload(t *testing.T) {
	if _, err := New(AppointmentBooked, 1, 1, make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &recordingWriter{}
	p := NewPublisherWithWriter(w, "scheduling.")

	evt, _ := New(AppointmentCancelled, 1, 7, map[string]int64{"id": 7})
	if err := p.Publish(context.Background(), evt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}

	msg := w.msgs[0]
	if msg.Topic != "scheduling.appointment.cancelled" {
		t.Errorf("unexpected topic %q", msg.Topic)
	}
	if string(msg.Key) != "7" {
		t.Errorf("unexpected key %q", msg.Key)
	}
	if HeaderValue(msg.Headers, "event_id") != evt.ID {
		t.Error("expected event_id header")
	}
	if HeaderValue(msg.Headers, "event_type") != AppointmentCancelled {
		t.Error("expected event_type header")
	}

	var decoded Event
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("decode value: %v", err)
	}
	if decoded.Type != AppointmentCancelled || decoded.BusinessID != 1 {
		t.Errorf("unexpected envelope %+v", decoded)
	}
}

func TestKafkaPublisher_EmptyAndError(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	p := NewPublisherWithWriter(w, "")

	if err := p.Publish(context.Background()); err != nil {
		t.Errorf("publishing nothing should succeed, got %v", err)
	}
	evt, _ := New(ScheduleReplaced, 1, 3, nil)
	if err := p.Publish(context.Background(), evt); err == nil {
		t.Error("expected writer error to propagate")
	}
	if p.Topic(ScheduleReplaced) != ScheduleReplaced {
		t.Errorf("expected bare topic without prefix, got %q", p.Topic(ScheduleReplaced))
	}
	if err := p.Close(); err != nil || !w.closed {
		t.Error("expected Close to close the writer")
	}
}

func TestInjectTraceHeaders(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	headers := InjectTraceHeaders(ctx, []kafka.Header{{Key: "event_id", Value: []byte("x")}})
	if HeaderValue(headers, "traceparent") == "" {
		t.Fatal("expected traceparent header")
	}
	if HeaderValue(headers, "event_id") != "x" {
		t.Error("existing headers must be kept")
	}
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	if err := p.Publish(context.Background(), Event{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
