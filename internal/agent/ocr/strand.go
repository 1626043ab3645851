package ocr

import (
	"context"
	"fmt"

	"github.com/feichai0017/bookmeta/internal/agent"
	"github.com/feichai0017/bookmeta/internal/models"
	"github.com/feichai0017/bookmeta/pkg/logger"
)

// DefaultMinLineConfidence is the title-line cutoff when none is configured.
const DefaultMinLineConfidence = 60.0

// Strand wraps an Extractor and the cover parser.
type Strand struct {
	extractor     Extractor
	minConfidence float64
	logger        logger.Logger
}

func NewStrand(ex Extractor, minConfidence float64, log logger.Logger) *Strand {
	if minConfidence <= 0 {
		minConfidence = DefaultMinLineConfidence
	}
	return &Strand{extractor: ex, minConfidence: minConfidence, logger: log}
}

func (s *Strand) Name() string            { return "ocr" }
func (s *Strand) Kind() models.StrandKind { return models.KindOCR }

func (s *Strand) Run(ctx context.Context, in *agent.Input) (*agent.Output, error) {
	if err := in.RequireImage("ocr"); err != nil {
		return nil, err
	}

	res, err := s.extractor.ExtractText(ctx, in.Image, in.Data)
	if err != nil {
		return nil, err
	}

	md := ParseLines(res.Lines, s.minConfidence)
	conf := models.FieldConfidence{}
	for _, f := range md.Populated() {
		conf[f] = res.OverallConfidence
	}

	s.logger.Debug("OCR parsed cover",
		logger.String("engine", res.Engine),
		logger.Int("lines", len(res.Lines)),
		logger.Float64("confidence", res.OverallConfidence),
		logger.Int("fields", len(conf)),
	)

	return &agent.Output{
		Metadata:   md,
		Confidence: conf,
		Detail:     fmt.Sprintf("%s: %d lines", res.Engine, len(res.Lines)),
		Candidates: RankCandidates(res.Lines),
	}, nil
}
