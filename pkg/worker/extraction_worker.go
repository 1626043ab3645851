package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/bookmeta/internal/apperr"
	"github.com/feichai0017/bookmeta/internal/models"
	"github.com/feichai0017/bookmeta/internal/service/extraction"
	"github.com/feichai0017/bookmeta/pkg/logger"
	"github.com/feichai0017/bookmeta/pkg/queue"
)

// Runner executes one orchestration run.
type Runner interface {
	Run(ctx context.Context, ev models.UploadEvent) (*models.OrchestrationRun, error)
}

// Replayer drains the dead-letter channel back onto the queue.
type Replayer interface {
	Replay(ctx context.Context, max int) (*extraction.ReplayReport, error)
}

type ExtractionWorker struct {
	BaseWorker
	runner    Runner
	replayer  Replayer
	scheduler *asynq.Scheduler
	replayMax int
}

func NewExtractionWorker(cfg *Config, runner Runner, replayer Replayer, log logger.Logger) (*ExtractionWorker, error) {
	w := &ExtractionWorker{
		BaseWorker: newBaseWorker(cfg, log),
		runner:     runner,
		replayer:   replayer,
		replayMax:  cfg.ReplayMax,
	}

	if cfg.ReplaySchedule != "" && replayer != nil {
		w.scheduler = asynq.NewScheduler(cfg.redisOpt(), &asynq.SchedulerOpts{
			Logger: asynqLogger{log.Named("scheduler")},
		})
		payload, err := json.Marshal(replayPayload{Max: cfg.ReplayMax})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal replay payload: %w", err)
		}
		entryID, err := w.scheduler.Register(cfg.ReplaySchedule,
			asynq.NewTask(queue.TaskTypeReplayDeadLetter, payload),
			asynq.Queue(queue.QueueLow), asynq.MaxRetry(0))
		if err != nil {
			return nil, fmt.Errorf("failed to schedule dead-letter replay: %w", err)
		}
		log.Info("Scheduled dead-letter replay",
			logger.String("schedule", cfg.ReplaySchedule),
			logger.String("entryId", entryID),
		)
	}

	w.registerHandlers()
	return w, nil
}

type replayPayload struct {
	Max int `json:"max"`
}

func (w *ExtractionWorker) registerHandlers() {
	w.mux.HandleFunc(queue.TaskTypeExtract, w.handleExtract)
	if w.replayer != nil {
		w.mux.HandleFunc(queue.TaskTypeReplayDeadLetter, w.handleReplay)
	}
}

func writeResult(t *asynq.Task, v interface{}) {
	rw := t.ResultWriter()
	if rw == nil {
		return
	}
	if data, err := json.Marshal(v); err == nil {
		_, _ = rw.Write(data)
	}
}

func (w *ExtractionWorker) handleExtract(ctx context.Context, t *asynq.Task) error {
	ev, err := queue.ParseExtractTask(t)
	if err != nil {
		w.logger.Error("Failed to unmarshal task",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	w.logger.Info("Processing extraction task",
		logger.String("eventId", ev.EventID),
		logger.String("bookId", ev.BookID),
		logger.String("key", ev.Key),
	)

	run, err := w.runner.Run(ctx, ev)
	if errors.Is(err, apperr.ErrInvalidQuery) {
		w.logger.Error("Invalid extraction event", logger.String("eventId", ev.EventID), logger.Error(err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}

	writeResult(t, map[string]interface{}{
		"runId":             run.RunID,
		"state":             run.State,
		"overallConfidence": run.Result.Confidence.Overall,
	})
	return nil
}

func (w *ExtractionWorker) handleReplay(ctx context.Context, t *asynq.Task) error {
	var p replayPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("failed to unmarshal replay payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	if p.Max <= 0 {
		p.Max = w.replayMax
	}
	report, err := w.replayer.Replay(ctx, p.Max)
	if err != nil {
		return err
	}
	writeResult(t, report)
	return nil
}

func (w *ExtractionWorker) Start(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("failed to start worker server: %w", err)
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			w.server.Shutdown()
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	go func() {
		select {
		case <-ctx.Done():
			w.Stop()
		case <-w.stopChan:
		}
	}()
	return nil
}

func (w *ExtractionWorker) Stop() error {
	w.stopOnce.Do(func() {
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		close(w.stopChan)
		w.server.Shutdown()
	})
	return nil
}
