package models

import (
	"time"
)

// Strategy selects which strands run and in what order.
type Strategy string

const (
	StrategyCostOptimized Strategy = "cost-optimized"
	StrategyBestEffort    Strategy = "best-effort"
	StrategyAccuracyFirst Strategy = "accuracy-first"
)

// ParseStrategy maps a name to a Strategy, defaulting to best-effort.
func ParseStrategy(s string) (Strategy, bool) {
	switch Strategy(s) {
	case StrategyCostOptimized, StrategyBestEffort, StrategyAccuracyFirst:
		return Strategy(s), true
	case "":
		return StrategyBestEffort, true
	}
	return StrategyBestEffort, false
}

// RunState is the orchestration state machine.
type RunState string

const (
	RunCreated   RunState = "created"
	RunRunning   RunState = "running"
	RunSucceeded RunState = "succeeded"
	RunPartial   RunState = "partial"
	RunFailed    RunState = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s RunState) Terminal() bool {
	return s == RunSucceeded || s == RunPartial || s == RunFailed
}

// EventSource describes what produced an UploadEvent.
type EventSource string

const (
	EventObjectCreated EventSource = "object-created"
	EventManualRetry   EventSource = "manual-retry"
	EventReplay        EventSource = "replay"
)

// UploadEvent triggers exactly one orchestration run.
type UploadEvent struct {
	EventID     string      `json:"eventId"`
	Bucket      string      `json:"bucket"`
	Key         string      `json:"key"`
	ContentType string      `json:"contentType"`
	Size        int64       `json:"size"`
	OwnerID     string      `json:"ownerId"`
	BookID      string      `json:"bookId"`
	Strategy    Strategy    `json:"strategy,omitempty"`
	Source      EventSource `json:"source"`
	OccurredAt  time.Time   `json:"occurredAt"`
}

// ImageRef returns the object the event refers to.
func (e UploadEvent) ImageRef() ImageRef {
	return ImageRef{Bucket: e.Bucket, Key: e.Key, ContentType: e.ContentType, Size: e.Size}
}

// StrandAttempt is one entry of a run's ordered attempt log.
type StrandAttempt struct {
	Strand       string     `json:"strand"`
	Kind         StrandKind `json:"kind"`
	Outcome      Outcome    `json:"outcome"`
	ElapsedMs    int64      `json:"elapsedMs"`
	CostEstimate float64    `json:"costEstimate"`
	Error        string     `json:"error,omitempty"`
}

// OrchestrationRun is the ephemeral record of one end-to-end attempt.
type OrchestrationRun struct {
	RunID      string            `json:"runId"`
	Event      UploadEvent       `json:"event"`
	Strategy   Strategy          `json:"strategy"`
	State      RunState          `json:"state"`
	Attempts   []StrandAttempt   `json:"attempts"`
	Result     *AdvancedMetadata `json:"result,omitempty"`
	StartedAt  time.Time         `json:"startedAt"`
	FinishedAt time.Time         `json:"finishedAt"`
}

// Transition moves the run forward. Terminal states are final.
func (r *OrchestrationRun) Transition(to RunState) bool {
	if r.State.Terminal() {
		return false
	}
	switch {
	case r.State == RunCreated && to == RunRunning:
	case r.State == RunRunning && to.Terminal():
	default:
		return false
	}
	r.State = to
	return true
}

// TotalCost sums the cost estimates of every attempt.
func (r *OrchestrationRun) TotalCost() float64 {
	var total float64
	for _, a := range r.Attempts {
		total += a.CostEstimate
	}
	return total
}

// MetadataExtracted is the completion notification of a run.
type MetadataExtracted struct {
	BookID            string    `json:"bookId"`
	RunID             string    `json:"runId"`
	TerminalState     RunState  `json:"terminalState"`
	OverallConfidence float64   `json:"overallConfidence"`
	OccurredAt        time.Time `json:"occurredAt"`
}

// DeadLetterEntry captures a failed run for replay.
type DeadLetterEntry struct {
	RunID    string           `json:"runId"`
	Event    UploadEvent      `json:"event"`
	Run      OrchestrationRun `json:"run"`
	FailedAt time.Time        `json:"failedAt"`
}
