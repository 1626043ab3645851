// pkg/queue/queue.go
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/bookmeta/internal/models"
	"github.com/feichai0017/bookmeta/pkg/logger"
)

// Task types
const (
	TaskTypeExtract          = "metadata:extract"
	TaskTypeReplayDeadLetter = "metadata:replay-dead-letter"
)

// Queue names, highest priority first.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Priorities weights the queues for the worker.
var Priorities = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

// Config defines the queue connection and task options.
type Config struct {
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	MaxRetries     int
	ProcessTimeout time.Duration
}

func (c *Config) RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}

// TaskStatus is what the inspector knows about an event's task.
type TaskStatus struct {
	EventID string `json:"eventId"`
	Queue   string `json:"queue"`
	State   string `json:"state"`
	Retried int    `json:"retried"`
	Error   string `json:"error,omitempty"`
}

// AsynqQueue publishes upload events as asynq tasks.
type AsynqQueue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	cfg       Config
	logger    logger.Logger
}

func NewAsynqQueue(cfg *Config, log logger.Logger) *AsynqQueue {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = 10 * time.Minute
	}
	redisOpt := cfg.RedisOpt()
	return &AsynqQueue{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		cfg:       *cfg,
		logger:    log,
	}
}

// NewExtractTask wraps ev in a task.
func NewExtractTask(ev models.UploadEvent) (*asynq.Task, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return asynq.NewTask(TaskTypeExtract, payload), nil
}

// ParseExtractTask is the inverse of NewExtractTask.
func ParseExtractTask(t *asynq.Task) (models.UploadEvent, error) {
	var ev models.UploadEvent
	if err := json.Unmarshal(t.Payload(), &ev); err != nil {
		return ev, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return ev, nil
}

func queueFor(src models.EventSource) string {
	switch src {
	case models.EventManualRetry:
		return QueueCritical
	case models.EventReplay:
		return QueueLow
	default:
		return QueueDefault
	}
}

// PublishEvent enqueues one extraction run. The event id doubles as the task
// id, so a duplicate delivery of an event still in flight is a no-op.
func (q *AsynqQueue) PublishEvent(ctx context.Context, ev models.UploadEvent) error {
	task, err := NewExtractTask(ev)
	if err != nil {
		return err
	}
	opts := []asynq.Option{
		asynq.MaxRetry(q.cfg.MaxRetries),
		asynq.Timeout(q.cfg.ProcessTimeout),
		asynq.Queue(queueFor(ev.Source)),
	}
	if ev.EventID != "" {
		opts = append(opts, asynq.TaskID(ev.EventID))
	}

	info, err := q.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		q.logger.Info("Duplicate event ignored",
			logger.String("eventId", ev.EventID),
			logger.String("bookId", ev.BookID),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	q.logger.Info("Enqueued extraction task",
		logger.String("taskId", info.ID),
		logger.String("queue", info.Queue),
		logger.String("bookId", ev.BookID),
		logger.String("source", string(ev.Source)),
	)
	return nil
}

// Status looks the event's task up in every queue.
func (q *AsynqQueue) Status(eventID string) (*TaskStatus, error) {
	var lastErr error
	for _, name := range []string{QueueCritical, QueueDefault, QueueLow} {
		info, err := q.inspector.GetTaskInfo(name, eventID)
		if err != nil {
			lastErr = err
			continue
		}
		return &TaskStatus{
			EventID: eventID,
			Queue:   info.Queue,
			State:   info.State.String(),
			Retried: info.Retried,
			Error:   info.LastErr,
		}, nil
	}
	return nil, fmt.Errorf("task not found in any queue: %w", lastErr)
}

func (q *AsynqQueue) Close() error {
	if err := q.inspector.Close(); err != nil {
		return err
	}
	return q.client.Close()
}
