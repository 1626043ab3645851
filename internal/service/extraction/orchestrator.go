// Package extraction runs the strands for one upload event, merges what they
// produce and applies the result to the book record.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/feichai0017/bookmeta/internal/agent"
	"github.com/feichai0017/bookmeta/internal/apperr"
	"github.com/feichai0017/bookmeta/internal/models"
	"github.com/feichai0017/bookmeta/internal/service/book"
	"github.com/feichai0017/bookmeta/pkg/deadletter"
	"github.com/feichai0017/bookmeta/pkg/logger"
	"github.com/feichai0017/bookmeta/pkg/storage"
)

// Publisher receives the completion event of every run.
type Publisher interface {
	Publish(ctx context.Context, ev models.MetadataExtracted, run *models.OrchestrationRun)
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Registry    *agent.Registry
	Storage     storage.Storage
	Books       book.Store
	DeadLetters deadletter.Queue
	Publisher   Publisher
}

type Orchestrator struct {
	registry    *agent.Registry
	storage     storage.Storage
	books       book.Store
	deadLetters deadletter.Queue
	publisher   Publisher
	cfg         Config
	logger      logger.Logger

	now   func() time.Time
	newID func() string
}

func NewOrchestrator(deps Deps, cfg Config, log logger.Logger) (*Orchestrator, error) {
	if deps.Registry == nil || deps.Storage == nil || deps.Books == nil || deps.DeadLetters == nil {
		return nil, errors.New("orchestrator requires registry, storage, books and dead letters")
	}
	return &Orchestrator{
		registry:    deps.Registry,
		storage:     deps.Storage,
		books:       deps.Books,
		deadLetters: deps.DeadLetters,
		publisher:   deps.Publisher,
		cfg:         cfg.withDefaults(),
		logger:      log.Named("extraction"),
		now:         time.Now,
		newID:       uuid.NewString,
	}, nil
}

// Run executes one orchestration run for ev. Strand failures never surface
// here; the returned error is non-nil only when the event is unusable or the
// failed run could not be dead-lettered.
func (o *Orchestrator) Run(ctx context.Context, ev models.UploadEvent) (*models.OrchestrationRun, error) {
	if ev.BookID == "" || ev.OwnerID == "" || ev.Key == "" {
		return nil, apperr.InvalidQuery("orchestrator.Run", "event needs bookId, ownerId and key")
	}

	strategy, ok := models.ParseStrategy(string(ev.Strategy))
	if ev.Strategy == "" || !ok {
		strategy = o.cfg.DefaultStrategy
	}

	run := &models.OrchestrationRun{
		RunID:     o.newID(),
		Event:     ev,
		Strategy:  strategy,
		State:     models.RunCreated,
		Attempts:  []models.StrandAttempt{},
		StartedAt: o.now().UTC(),
	}
	log := logger.ForRun(o.logger, run.RunID, ev.BookID)
	run.Transition(models.RunRunning)
	log.Info("Starting extraction run",
		logger.String("strategy", string(strategy)),
		logger.String("image", ev.ImageRef().String()),
		logger.String("source", string(ev.Source)),
	)

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.RunBudget)
	defer cancel()

	in := &agent.Input{RunID: run.RunID, Image: ev.ImageRef()}
	in.Data, in.ImageErr = storage.ReadImage(runCtx, o.storage, ev.ImageRef(), o.cfg.MaxImageBytes)
	if in.ImageErr != nil {
		log.Warn("Failed to fetch cover image", logger.Error(in.ImageErr))
	} else if ct, ok := agent.ContentTypeFor(ev.Key, ev.ContentType); ok {
		in.Image.ContentType = ct
	}

	var (
		contribs   []Contribution
		provenance = []models.ProvenanceEntry{}
		merged     = Merge(nil, o.cfg.Weights)
	)
	for i, st := range o.plan(strategy) {
		order := i + 1
		var entry models.ProvenanceEntry
		switch {
		case runCtx.Err() != nil:
			entry = skipped(st.strand, order, "run budget exhausted")
		default:
			if st.gate != nil {
				if ok, reason := st.gate(merged); !ok {
					entry = skipped(st.strand, order, reason)
					break
				}
			}
			in.Current = merged.Metadata.Clone()
			entry = o.attempt(runCtx, st.strand, in, order, log)
		}

		provenance = append(provenance, entry)
		run.Attempts = append(run.Attempts, models.StrandAttempt{
			Strand:       entry.Strand,
			Kind:         entry.Kind,
			Outcome:      entry.Outcome,
			ElapsedMs:    entry.ElapsedMs,
			CostEstimate: entry.CostEstimate,
			Error:        entry.Error,
		})
		if entry.Outcome == models.OutcomeSucceeded {
			contribs = append(contribs, Contribution{
				Strand:     entry.Strand,
				Kind:       entry.Kind,
				Order:      order,
				Metadata:   entry.Contribution,
				Confidence: entry.Confidence,
			})
			merged = Merge(contribs, o.cfg.Weights)
		}
	}

	finished := o.now().UTC()
	run.FinishedAt = finished
	run.Result = models.NewAdvancedMetadata(finished, ev.ImageRef(), merged.Metadata, merged.Confidence, provenance)
	run.Transition(o.terminalState(merged))

	log.Info("Extraction run finished",
		logger.String("state", string(run.State)),
		logger.Float64("overallConfidence", merged.Confidence.Overall),
		logger.Int("attempts", len(run.Attempts)),
		logger.Float64("costEstimate", run.TotalCost()),
		logger.Duration("elapsed", finished.Sub(run.StartedAt)),
	)

	// the caller's context may already be gone; the outcome still has to land
	detached := context.WithoutCancel(ctx)

	var runErr error
	if run.State == models.RunFailed {
		runErr = o.deadLetter(detached, run, log)
	} else {
		o.patch(detached, run, merged, log)
	}

	if o.publisher != nil {
		o.publisher.Publish(detached, models.MetadataExtracted{
			BookID:            ev.BookID,
			RunID:             run.RunID,
			TerminalState:     run.State,
			OverallConfidence: merged.Confidence.Overall,
			OccurredAt:        finished,
		}, run)
	}
	return run, runErr
}

func (o *Orchestrator) terminalState(m Merged) models.RunState {
	if m.Metadata.IsEmpty() {
		return models.RunFailed
	}
	if m.Confidence.Overall >= o.cfg.SuccessThreshold && hasAny(m.Metadata, models.FieldTitle, models.FieldAuthor) {
		return models.RunSucceeded
	}
	return models.RunPartial
}

func skipped(s agent.Strand, order int, reason string) models.ProvenanceEntry {
	return models.ProvenanceEntry{
		Strand:     s.Name(),
		Kind:       s.Kind(),
		Order:      order,
		Outcome:    models.OutcomeSkipped,
		Confidence: models.FieldConfidence{},
		Detail:     reason,
	}
}

type strandResult struct {
	out *agent.Output
	err error
}

// invoke runs s under its own deadline. A strand that ignores its context is
// abandoned when the deadline passes; it works on a private copy of in.
func (o *Orchestrator) invoke(ctx context.Context, s agent.Strand, in *agent.Input) (*agent.Output, error) {
	sctx, cancel := context.WithTimeout(ctx, o.cfg.StrandTimeout)
	defer cancel()

	local := *in
	done := make(chan strandResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- strandResult{err: fmt.Errorf("strand %s panicked: %v", s.Name(), r)}
			}
		}()
		out, err := s.Run(sctx, &local)
		done <- strandResult{out: out, err: err}
	}()

	select {
	case r := <-done:
		return r.out, r.err
	case <-sctx.Done():
		return nil, apperr.ProviderTimeout(s.Name(), sctx.Err())
	}
}

func (o *Orchestrator) attempt(ctx context.Context, s agent.Strand, in *agent.Input, order int, log logger.Logger) models.ProvenanceEntry {
	start := time.Now()
	out, err := o.invoke(ctx, s, in)
	entry := models.ProvenanceEntry{
		Strand:     s.Name(),
		Kind:       s.Kind(),
		Order:      order,
		Confidence: models.FieldConfidence{},
		ElapsedMs:  time.Since(start).Milliseconds(),
	}

	if err != nil {
		entry.Error = err.Error()
		var costErr *agent.CostError
		switch {
		case errors.As(err, &costErr):
			entry.CostEstimate = costErr.Cost
		case errors.Is(err, apperr.ErrProviderTimeout) || errors.Is(err, context.DeadlineExceeded):
			if p, ok := s.(agent.Priced); ok {
				entry.CostEstimate = p.BaseRate()
			}
		}
		switch {
		case errors.Is(err, apperr.ErrInvalidQuery):
			entry.Outcome = models.OutcomeSkipped
		case errors.Is(err, apperr.ErrProviderTimeout) || errors.Is(err, context.DeadlineExceeded):
			entry.Outcome = models.OutcomeTimeout
		default:
			entry.Outcome = models.OutcomeFailed
		}
		log.Warn("Strand did not produce metadata",
			logger.String("strand", s.Name()),
			logger.String("outcome", string(entry.Outcome)),
			logger.Error(err),
		)
		return entry
	}

	if out != nil {
		entry.CostEstimate = out.Cost
		entry.Detail = out.Detail
		entry.Candidates = out.Candidates
	}
	if out.Empty() {
		entry.Outcome = models.OutcomeNoResult
		return entry
	}

	entry.Outcome = models.OutcomeSucceeded
	entry.Contribution = out.Metadata.Clone()
	for _, f := range out.Metadata.Populated() {
		entry.Confidence[f] = clamp(out.Confidence[f])
	}
	log.Debug("Strand produced metadata",
		logger.String("strand", s.Name()),
		logger.Int("fields", len(entry.Confidence)),
		logger.Int64("elapsedMs", entry.ElapsedMs),
	)
	return entry
}

// patch applies the run result in one conditional update. Losing the owner
// guard or the record itself is expected and only logged.
func (o *Orchestrator) patch(ctx context.Context, run *models.OrchestrationRun, merged Merged, log logger.Logger) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.PatchTimeout)
	defer cancel()

	p := models.BookPatch{
		FillTitle:        merged.Metadata.Title,
		FillAuthor:       merged.Metadata.Author,
		FillDescription:  merged.Metadata.Description,
		AdvancedMetadata: run.Result,
		MetadataSource:   models.SourceAutoProcessed,
		LastExtractionAt: &run.FinishedAt,
	}
	err := o.books.Patch(ctx, run.Event.BookID, run.Event.OwnerID, p)
	switch {
	case err == nil:
		log.Info("Book record updated", logger.String("metadataSource", string(models.SourceAutoProcessed)))
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrConcurrentModification):
		log.Warn("Dropped extraction result", logger.Error(err))
	default:
		log.Error("Failed to update book record", logger.Error(err))
	}
}

func (o *Orchestrator) deadLetter(ctx context.Context, run *models.OrchestrationRun, log logger.Logger) error {
	entry := models.DeadLetterEntry{
		RunID:    run.RunID,
		Event:    run.Event,
		Run:      *run,
		FailedAt: run.FinishedAt,
	}
	if err := o.deadLetters.Push(ctx, entry); err != nil {
		log.Error("Failed to dead-letter run", logger.Error(err))
		return fmt.Errorf("dead-letter run %s: %w", run.RunID, err)
	}
	log.Warn("Run exhausted every strand, dead-lettered", logger.Error(apperr.RunExhausted(run.RunID)))
	return nil
}
