// Package queue carries analysis jobs between the API and the workers over a
// Valkey stream.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

// Stream names a Valkey stream and the consumer group reading it.
type Stream struct {
	Name  string
	Group string
}

// DefaultStream is the stream shared by the API and the workers.
var DefaultStream = Stream{Name: "ceindex:analyses", Group: "ceindex-workers"}

// AnalysisMessage is the payload enqueued for worker processing.
type AnalysisMessage struct {
	RunID        uuid.UUID `json:"run_id"`
	RootUUID     string    `json:"root_uuid"`
	ReportObject string    `json:"report_object"`
	Attempt      int       `json:"attempt"`
}

// Retry returns the message for the next attempt of the same run.
func (m AnalysisMessage) Retry() AnalysisMessage {
	m.Attempt++
	return m
}

// Producer enqueues analysis jobs to the Valkey stream.
type Producer struct {
	client valkey.Client
	stream Stream
}

func NewProducer(client valkey.Client, stream Stream) *Producer {
	return &Producer{client: client, stream: stream}
}

func (p *Producer) Enqueue(ctx context.Context, msg AnalysisMessage) (string, error) {
	if msg.Attempt < 1 {
		msg.Attempt = 1
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}

	resp := p.client.Do(ctx, p.client.B().Xadd().
		Key(p.stream.Name).Id("*").
		FieldValue().FieldValue("data", string(data)).
		Build())
	if err := resp.Error(); err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	id, err := resp.ToString()
	if err != nil {
		return "", fmt.Errorf("parse xadd response: %w", err)
	}
	return id, nil
}

// Handler processes one message. A returned error leaves the message pending.
type Handler func(context.Context, AnalysisMessage) error

// Consumer reads analysis jobs from the Valkey stream.
type Consumer struct {
	client     valkey.Client
	stream     Stream
	consumerID string
	logger     *slog.Logger
}

func NewConsumer(client valkey.Client, stream Stream, consumerID string, logger *slog.Logger) *Consumer {
	return &Consumer{client: client, stream: stream, consumerID: consumerID, logger: logger}
}

// EnsureGroup creates the consumer group if it doesn't exist.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	resp := c.client.Do(ctx, c.client.B().XgroupCreate().
		Key(c.stream.Name).Group(c.stream.Group).Id("0").Mkstream().Build())
	if err := resp.Error(); err != nil {
		if !strings.HasPrefix(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("xgroup create: %w", err)
		}
	}
	return nil
}

// Consume blocks until ctx is done, handing each message to handler and ACKing it
// when handler succeeds. Pending messages of a previous crash are drained first.
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	c.drainPending(ctx, handler)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		resp := c.client.Do(ctx, c.client.B().Xreadgroup().
			Group(c.stream.Group, c.consumerID).
			Count(1).Block(5000).
			Streams().Key(c.stream.Name).Id(">").
			Build())

		if err := resp.Error(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Timeout is normal for BLOCK reads
			continue
		}

		results, err := resp.AsXRead()
		if err != nil {
			continue
		}

		for _, messages := range results {
			for _, msg := range messages {
				c.processMessage(ctx, msg, handler)
			}
		}
	}
}

// drainPending reads messages previously delivered to this consumer but not ACKed.
func (c *Consumer) drainPending(ctx context.Context, handler Handler) {
	resp := c.client.Do(ctx, c.client.B().Xreadgroup().
		Group(c.stream.Group, c.consumerID).
		Count(10).
		Streams().Key(c.stream.Name).Id("0").
		Build())

	if err := resp.Error(); err != nil {
		c.logger.Warn("drain pending failed", slog.String("error", err.Error()))
		return
	}

	results, err := resp.AsXRead()
	if err != nil {
		return
	}

	for _, messages := range results {
		for _, msg := range messages {
			c.logger.Info("recovering pending message", slog.String("id", msg.ID))
			c.processMessage(ctx, msg, handler)
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg valkey.XRangeEntry, handler Handler) {
	analysis, err := Decode(msg.FieldValues)
	if err != nil {
		c.logger.Error("drop malformed message", slog.String("error", err.Error()), slog.String("id", msg.ID))
		c.ack(ctx, msg.ID)
		return
	}

	if err := handler(ctx, analysis); err != nil {
		c.logger.Error("handle message", slog.String("error", err.Error()),
			slog.String("id", msg.ID),
			slog.String("run_id", analysis.RunID.String()))
		return
	}
	c.ack(ctx, msg.ID)
}

// Decode parses the fields of a stream entry.
func Decode(fields map[string]string) (AnalysisMessage, error) {
	var msg AnalysisMessage
	data, ok := fields["data"]
	if !ok {
		return msg, fmt.Errorf("message missing data field")
	}
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		return msg, fmt.Errorf("unmarshal message: %w", err)
	}
	if msg.RunID == uuid.Nil || msg.ReportObject == "" {
		return msg, fmt.Errorf("message has no run id or report object")
	}
	if msg.Attempt < 1 {
		msg.Attempt = 1
	}
	return msg, nil
}

func (c *Consumer) ack(ctx context.Context, msgID string) {
	resp := c.client.Do(ctx, c.client.B().Xack().
		Key(c.stream.Name).Group(c.stream.Group).Id(msgID).Build())
	if err := resp.Error(); err != nil {
		c.logger.Error("xack failed", slog.String("error", err.Error()), slog.String("id", msgID))
	}
}
