package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"

	"github.com/faxe1008/dstylehub/internal/config"
	"github.com/faxe1008/dstylehub/internal/model"
)

// Event is the message published for every finished development.
type Event struct {
	JobID      uuid.UUID    `json:"job_id"`
	RunID      string       `json:"run_id"`
	Source     string       `json:"source"`
	Style      string       `json:"style,omitempty"`
	Output     string       `json:"output"`
	Status     model.Status `json:"status"`
	Error      string       `json:"error,omitempty"`
	DurationMS int64        `json:"duration_ms"`
	FinishedAt time.Time    `json:"finished_at"`
}

// NewEvent builds the event for a development of the given run.
func NewEvent(runID string, d model.Development) Event {
	e := Event{
		JobID:      d.Job.ID,
		RunID:      runID,
		Source:     filepath.Base(d.Job.Source),
		Style:      d.Job.StyleName(),
		Output:     d.Filename(),
		Status:     d.Status,
		Error:      d.Error,
		DurationMS: d.Duration.Milliseconds(),
		FinishedAt: d.FinishedAt,
	}
	if e.Error == "" && d.Err != nil {
		e.Error = d.Err.Error()
	}
	return e
}

// sender is the part of the wbf producer used here.
type sender interface {
	SendWithRetry(ctx context.Context, strategy retry.Strategy, key, value []byte) error
	Close() error
}

// Producer publishes development events to Kafka.
type Producer struct {
	client   sender
	strategy retry.Strategy
}

// New creates a new Producer.
// - cfg: Kafka configuration struct
// - s: retry strategy
func New(cfg *config.Kafka, s retry.Strategy) *Producer {
	return &Producer{
		client:   wbfkafka.NewProducer(cfg.Brokers, cfg.Topic),
		strategy: s,
	}
}

// Produce serializes the development event to JSON and sends it to Kafka.
// The job ID is used as the message key.
func (p *Producer) Produce(ctx context.Context, runID string, d model.Development) error {
	data, err := json.Marshal(NewEvent(runID, d))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	key := []byte(d.Job.ID.String())

	if err := p.client.SendWithRetry(ctx, p.strategy, key, data); err != nil {
		return fmt.Errorf("failed to send event: %w", err)
	}

	return nil
}

// Close closes the underlying Kafka writer.
func (p *Producer) Close() error {
	return p.client.Close()
}
