package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/feichai0017/bookmeta/internal/apperr"
	"github.com/feichai0017/bookmeta/internal/models"
	"github.com/feichai0017/bookmeta/pkg/logger"
)

type TesseractConfig struct {
	Languages   []string
	PageSegMode gosseract.PageSegMode
	Preprocess  PreprocessConfig
}

func DefaultTesseractConfig() TesseractConfig {
	return TesseractConfig{
		Languages:   []string{"eng"},
		PageSegMode: gosseract.PSM_AUTO,
		Preprocess:  DefaultPreprocessConfig(),
	}
}

// TesseractExtractor runs a local tesseract engine. A new client is created
// per call since gosseract clients are not safe for concurrent use.
type TesseractExtractor struct {
	cfg    TesseractConfig
	chain  []Preprocessor
	logger logger.Logger
}

func NewTesseractExtractor(cfg TesseractConfig, log logger.Logger) *TesseractExtractor {
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"eng"}
	}
	return &TesseractExtractor{
		cfg:    cfg,
		chain:  Pipeline(cfg.Preprocess),
		logger: log,
	}
}

func (e *TesseractExtractor) ExtractText(ctx context.Context, ref models.ImageRef, data []byte) (*TextResult, error) {
	const op = "tesseract.ExtractText"
	if len(data) == 0 {
		return nil, apperr.ExtractionUnavailable(op, errors.New("no image bytes"))
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.ExtractionUnavailable(op, fmt.Errorf("failed to decode image: %w", err))
	}

	processed, err := applyPipeline(img, e.chain)
	if err != nil {
		return nil, apperr.ExtractionUnavailable(op, fmt.Errorf("preprocessing failed: %w", err))
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, processed, &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.cfg.Languages...); err != nil {
		return nil, apperr.ExtractionUnavailable(op, fmt.Errorf("failed to set language: %w", err))
	}
	if err := client.SetPageSegMode(e.cfg.PageSegMode); err != nil {
		return nil, apperr.ExtractionUnavailable(op, fmt.Errorf("failed to set page segmentation mode: %w", err))
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, apperr.ExtractionUnavailable(op, fmt.Errorf("failed to set image: %w", err))
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, apperr.ExtractionUnavailable(op, fmt.Errorf("failed to get text lines: %w", err))
	}

	var lines []TextLine
	for _, box := range boxes {
		text := strings.TrimSpace(box.Word)
		if text == "" {
			continue
		}
		lines = append(lines, TextLine{
			Text:       text,
			Confidence: box.Confidence,
			Area:       float64(box.Box.Dx() * box.Box.Dy()),
		})
	}

	e.logger.Debug("Tesseract recognized lines",
		logger.String("image", ref.String()),
		logger.Int("lines", len(lines)),
	)

	return &TextResult{
		Lines:             lines,
		OverallConfidence: meanConfidence(lines),
		Engine:            "tesseract",
	}, nil
}
