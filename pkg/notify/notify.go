// Package notify fans MetadataExtracted events out to listeners.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/bookmeta/internal/models"
	"github.com/feichai0017/bookmeta/pkg/logger"
)

const (
	// Channel is the pub/sub channel completion events are published on.
	Channel = "metadata-extracted"

	statusKeyPrefix = "extraction_status:"
	StatusTTL       = 24 * time.Hour
)

// Listener receives completion events. Errors are logged by the Notifier and
// never reach the run.
type Listener interface {
	Name() string
	OnExtracted(ctx context.Context, ev models.MetadataExtracted, run *models.OrchestrationRun) error
}

// Notifier delivers each event to every listener in registration order.
type Notifier struct {
	listeners []Listener
	logger    logger.Logger
}

func NewNotifier(log logger.Logger, listeners ...Listener) *Notifier {
	return &Notifier{listeners: listeners, logger: log}
}

func (n *Notifier) Add(l Listener) {
	n.listeners = append(n.listeners, l)
}

func (n *Notifier) Publish(ctx context.Context, ev models.MetadataExtracted, run *models.OrchestrationRun) {
	for _, l := range n.listeners {
		if err := l.OnExtracted(ctx, ev, run); err != nil {
			n.logger.Warn("Completion listener failed",
				logger.String("listener", l.Name()),
				logger.String("runId", ev.RunID),
				logger.Error(err),
			)
		}
	}
}

// RedisPublisher publishes the event as JSON on Channel.
type RedisPublisher struct {
	client redis.UniversalClient
}

func NewRedisPublisher(client redis.UniversalClient) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Name() string { return "redis-pubsub" }

func (p *RedisPublisher) OnExtracted(ctx context.Context, ev models.MetadataExtracted, _ *models.OrchestrationRun) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, Channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Status is the polling read-model written per book.
type Status struct {
	BookID            string                 `json:"bookId"`
	RunID             string                 `json:"runId"`
	State             models.RunState        `json:"state"`
	Strategy          models.Strategy        `json:"strategy"`
	OverallConfidence float64                `json:"overallConfidence"`
	Attempts          []models.StrandAttempt `json:"attempts"`
	UpdatedAt         time.Time              `json:"updatedAt"`
}

func statusFrom(ev models.MetadataExtracted, run *models.OrchestrationRun) Status {
	st := Status{
		BookID:            ev.BookID,
		RunID:             ev.RunID,
		State:             ev.TerminalState,
		OverallConfidence: ev.OverallConfidence,
		Attempts:          []models.StrandAttempt{},
		UpdatedAt:         ev.OccurredAt,
	}
	if run != nil {
		st.Strategy = run.Strategy
		if run.Attempts != nil {
			st.Attempts = run.Attempts
		}
	}
	return st
}

// StatusStore reads and writes the per-book status read-model.
type StatusStore interface {
	Listener
	Status(ctx context.Context, bookID string) (*Status, bool, error)
}

// RedisStatus stores the last run status under extraction_status:<bookId>.
type RedisStatus struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisStatus(client redis.UniversalClient) *RedisStatus {
	return &RedisStatus{client: client, ttl: StatusTTL}
}

func (s *RedisStatus) Name() string { return "redis-status" }

func (s *RedisStatus) OnExtracted(ctx context.Context, ev models.MetadataExtracted, run *models.OrchestrationRun) error {
	data, err := json.Marshal(statusFrom(ev, run))
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	if err := s.client.Set(ctx, statusKeyPrefix+ev.BookID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save status: %w", err)
	}
	return nil
}

func (s *RedisStatus) Status(ctx context.Context, bookID string) (*Status, bool, error) {
	data, err := s.client.Get(ctx, statusKeyPrefix+bookID).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get status from redis: %w", err)
	}
	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal status: %w", err)
	}
	return &st, true, nil
}

// LogListener writes one structured line per completed run.
type LogListener struct {
	logger logger.Logger
}

func NewLogListener(log logger.Logger) *LogListener {
	return &LogListener{logger: log}
}

func (l *LogListener) Name() string { return "log" }

func (l *LogListener) OnExtracted(_ context.Context, ev models.MetadataExtracted, run *models.OrchestrationRun) error {
	fields := []logger.Field{
		logger.String("bookId", ev.BookID),
		logger.String("runId", ev.RunID),
		logger.String("state", string(ev.TerminalState)),
		logger.Float64("overallConfidence", ev.OverallConfidence),
	}
	if run != nil {
		fields = append(fields,
			logger.Int("attempts", len(run.Attempts)),
			logger.Float64("costEstimate", run.TotalCost()),
		)
	}
	l.logger.Info("Metadata extracted", fields...)
	return nil
}
