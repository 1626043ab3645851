package vision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/feichai0017/bookmeta/internal/agent"
	"github.com/feichai0017/bookmeta/internal/apperr"
	"github.com/feichai0017/bookmeta/internal/models"
)

// Strand runs one configured model through the Analyzer.
type Strand struct {
	analyzer *Analyzer
	model    Model
}

func NewStrand(a *Analyzer, m Model) *Strand {
	a.AddModel(m)
	return &Strand{analyzer: a, model: m}
}

func (s *Strand) Name() string            { return "vision:" + s.model.ID }
func (s *Strand) Kind() models.StrandKind { return models.KindVision }
func (s *Strand) BaseRate() float64       { return s.model.BaseRate }

func (s *Strand) Run(ctx context.Context, in *agent.Input) (*agent.Output, error) {
	op := s.Name()
	if err := in.RequireImage(op); err != nil {
		return nil, err
	}

	res := s.analyzer.Analyze(ctx, in.Image, in.Data, s.model.ID)
	if !res.Success {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &agent.CostError{Cost: res.CostEstimate, Err: apperr.ExtractionUnavailable(op, errors.New(res.Reason))}
	}

	conf := models.FieldConfidence{}
	for _, f := range res.Metadata.Populated() {
		conf[f] = res.Confidence[f]
	}
	return &agent.Output{
		Metadata:   res.Metadata,
		Confidence: conf,
		Cost:       res.CostEstimate,
		Detail:     fmt.Sprintf("%s/%s in %s", s.model.Provider, s.model.ID, res.Elapsed.Round(time.Millisecond)),
	}, nil
}
