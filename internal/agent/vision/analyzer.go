package vision

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/feichai0017/bookmeta/internal/agent"
	"github.com/feichai0017/bookmeta/internal/models"
	"github.com/feichai0017/bookmeta/pkg/logger"
)

// Result is the outcome of one Analyze call. Failures are reported through
// Success/Reason, never as an error or panic.
type Result struct {
	Success      bool
	Reason       string
	Metadata     models.Metadata
	Confidence   models.FieldConfidence
	CostEstimate float64
	ModelID      string
	Elapsed      time.Duration
}

// Analyzer dispatches to the backend registered for a model's provider.
type Analyzer struct {
	models   map[string]Model
	backends map[string]Backend
	policy   agent.NetworkPolicy
	logger   logger.Logger
}

func NewAnalyzer(policy agent.NetworkPolicy, log logger.Logger) *Analyzer {
	return &Analyzer{
		models:   make(map[string]Model),
		backends: make(map[string]Backend),
		policy:   policy,
		logger:   log,
	}
}

// RegisterBackend makes provider available for models that name it.
func (a *Analyzer) RegisterBackend(provider string, b Backend) {
	a.backends[provider] = b
}

func (a *Analyzer) AddModel(m Model) {
	a.models[m.ID] = m
}

func (a *Analyzer) Model(id string) (Model, bool) {
	m, ok := a.models[id]
	return m, ok
}

func (a *Analyzer) Analyze(ctx context.Context, ref models.ImageRef, data []byte, modelID string) (res Result) {
	res.ModelID = modelID
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = Result{ModelID: modelID, Reason: fmt.Sprintf("backend panic: %v", r)}
		}
		res.Elapsed = time.Since(start)
	}()

	if !a.policy.AllowExternalCalls {
		res.Reason = "external calls disabled"
		return res
	}

	m, ok := a.models[modelID]
	if !ok {
		res.Reason = fmt.Sprintf("unknown model %s", modelID)
		return res
	}
	backend, ok := a.backends[m.Provider]
	if !ok {
		res.Reason = fmt.Sprintf("no backend for provider %s", m.Provider)
		return res
	}
	if len(data) == 0 {
		res.Reason = "no image bytes"
		return res
	}

	mimeType := ref.ContentType
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	res.CostEstimate = EstimateCost(m, len(data))
	raw, err := backend.Invoke(ctx, m.ID, data, mimeType, Prompt)
	if err != nil {
		a.logger.Warn("Vision model call failed",
			logger.String("model", m.ID),
			logger.String("image", ref.String()),
			logger.Error(err),
		)
		res.Reason = err.Error()
		return res
	}

	md, conf := parseResponse(raw)
	res.Metadata = md
	res.Confidence = conf
	res.Success = true
	return res
}
