// Package agent holds the contract shared by every extraction strand.
package agent

import (
	"context"

	"github.com/feichai0017/bookmeta/internal/apperr"
	"github.com/feichai0017/bookmeta/internal/models"
)

// NetworkPolicy gates every outbound call a strand may make. It is injected
// at construction instead of being read from the environment.
type NetworkPolicy struct {
	AllowExternalCalls bool
}

// Input is what a strand sees. Current is the merge of everything earlier
// strands in the same run produced.
type Input struct {
	RunID    string
	Image    models.ImageRef
	Data     []byte
	ImageErr error
	Current  models.Metadata
}

// RequireImage returns ExtractionUnavailable when the image bytes could not be fetched.
func (in *Input) RequireImage(op string) error {
	if len(in.Data) > 0 {
		return nil
	}
	return apperr.ExtractionUnavailable(op, in.ImageErr)
}

// Output is one strand's contribution. Fields left nil were not extracted.
type Output struct {
	Metadata   models.Metadata
	Confidence models.FieldConfidence
	Cost       float64
	Detail     string
	Candidates *models.Candidates
}

// Empty reports whether the strand produced no field.
func (o *Output) Empty() bool {
	return o == nil || o.Metadata.IsEmpty()
}

// Strand is one fallible extraction stage.
type Strand interface {
	Name() string
	Kind() models.StrandKind
	Run(ctx context.Context, in *Input) (*Output, error)
}

// Priced is implemented by strands with a per-call base rate, used to pick
// the cheapest vision model.
type Priced interface {
	BaseRate() float64
}

// CostError carries the estimated cost of a failed call so it still shows in provenance.
type CostError struct {
	Cost float64
	Err  error
}

func (e *CostError) Error() string { return e.Err.Error() }
func (e *CostError) Unwrap() error { return e.Err }
