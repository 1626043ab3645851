package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/aws/smithy-go"

	"github.com/feichai0017/bookmeta/internal/apperr"
	"github.com/feichai0017/bookmeta/internal/models"
	"github.com/feichai0017/bookmeta/pkg/logger"
)

// TextractAPI is the subset of the Textract client the extractor uses.
type TextractAPI interface {
	DetectDocumentText(ctx context.Context, params *textract.DetectDocumentTextInput, optFns ...func(*textract.Options)) (*textract.DetectDocumentTextOutput, error)
}

type TextractConfig struct {
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string
}

type TextractExtractor struct {
	client TextractAPI
	logger logger.Logger
}

func NewTextractExtractor(ctx context.Context, cfg *TextractConfig, log logger.Logger) (*TextractExtractor, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	client := textract.NewFromConfig(awsCfg, func(o *textract.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = &cfg.Endpoint
		}
	})
	return NewTextractExtractorWithClient(client, log), nil
}

func NewTextractExtractorWithClient(client TextractAPI, log logger.Logger) *TextractExtractor {
	return &TextractExtractor{client: client, logger: log}
}

func (e *TextractExtractor) ExtractText(ctx context.Context, ref models.ImageRef, data []byte) (*TextResult, error) {
	const op = "textract.DetectDocumentText"
	if len(data) == 0 {
		return nil, apperr.ExtractionUnavailable(op, errors.New("no image bytes"))
	}

	out, err := e.client.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
		Document: &types.Document{Bytes: data},
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorFault() == smithy.FaultClient {
			e.logger.Warn("Textract rejected image",
				logger.String("image", ref.String()),
				logger.String("code", apiErr.ErrorCode()),
			)
		}
		return nil, apperr.ExtractionUnavailable(op, err)
	}

	lines := linesFromBlocks(out.Blocks)
	return &TextResult{
		Lines:             lines,
		OverallConfidence: meanConfidence(lines),
		Engine:            "textract",
	}, nil
}

func linesFromBlocks(blocks []types.Block) []TextLine {
	var lines []TextLine
	for _, block := range blocks {
		if block.BlockType != types.BlockTypeLine || block.Text == nil {
			continue
		}
		text := strings.TrimSpace(*block.Text)
		if text == "" {
			continue
		}
		line := TextLine{Text: text}
		if block.Confidence != nil {
			line.Confidence = float64(*block.Confidence)
		}
		if g := block.Geometry; g != nil && g.BoundingBox != nil {
			// relative box, scaled to a nominal megapixel
			line.Area = float64(g.BoundingBox.Width*g.BoundingBox.Height) * 1e6
		}
		lines = append(lines, line)
	}
	return lines
}
