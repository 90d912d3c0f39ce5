// Package events publishes domain events about appointments and schedules
// to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	AppointmentBooked      = "appointment.booked"
	AppointmentRescheduled = "appointment.rescheduled"
	AppointmentCancelled   = "appointment.cancelled"
	ScheduleReplaced       = "schedule.replaced"
)

// Event is the envelope written as the message value. Key partitions by
// aggregate so one provider's events stay ordered.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	BusinessID int64           `json:"businessId"`
	Key        string          `json:"-"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// New builds an event with a fresh id, marshalling data as the payload.
func New(eventType string, businessID int64, aggregateID int64, data interface{}) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		BusinessID: businessID,
		Key:        strconv.FormatInt(aggregateID, 10),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	}, nil
}

type Publisher interface {
	Publish(ctx context.Context, evts ...Event) error
	Close() error
}

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer      MessageWriter
	topicPrefix string
}

func NewKafkaPublisher(brokers []string, topicPrefix string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
	return NewPublisherWithWriter(w, topicPrefix)
}

func NewPublisherWithWriter(w MessageWriter, topicPrefix string) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topicPrefix: strings.Trim(topicPrefix, ".")}
}

// Topic maps an event type to its topic, e.g. "scheduling.appointment.booked".
func (p *KafkaPublisher) Topic(eventType string) string {
	if p.topicPrefix == "" {
		return eventType
	}
	return p.topicPrefix + "." + eventType
}

func (p *KafkaPublisher) Publish(ctx context.Context, evts ...Event) error {
	if len(evts) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(evts))
	for _, e := range evts {
		body, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", e.ID, err)
		}
		msg := kafka.Message{
			Topic: p.Topic(e.Type),
			Key:   []byte(e.Key),
			Value: body,
			Headers: []kafka.Header{
				{Key: "event_id", Value: []byte(e.ID)},
				{Key: "event_type", Value: []byte(e.Type)},
			},
		}
		msg.Headers = InjectTraceHeaders(ctx, msg.Headers)
		msgs = append(msgs, msg)
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d event(s): %w", len(msgs), err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ...Event) error { return nil }
func (NopPublisher) Close() error                            { return nil }

// InjectTraceHeaders appends W3C trace context headers from ctx.
func InjectTraceHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := &headerCarrier{headers: headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier.headers
}

// HeaderValue returns the first header with key, or "".
func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

type headerCarrier struct {
	headers []kafka.Header
}

var _ propagation.TextMapCarrier = (*headerCarrier)(nil)

func (c *headerCarrier) Get(key string) string { return HeaderValue(c.headers, key) }

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

func (c *headerCarrier) Set(key, value string) {
	for i := range c.headers {
		if c.headers[i].Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

// ReadyCheck dials the first broker.
func ReadyCheck(brokers []string) func(context.Context) error {
	return func(ctx context.Context) error {
		if len(brokers) == 0 {
			return fmt.Errorf("kafka brokers not configured")
		}
		dialer := kafka.Dialer{Timeout: 2 * time.Second}
		conn, err := dialer.DialContext(ctx, "tcp", brokers[0])
		if err != nil {
			return err
		}
		return conn.Close()
	}
}
