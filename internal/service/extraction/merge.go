package extraction

import (
	"math"

	"github.com/feichai0017/bookmeta/internal/models"
)

// Weights scores each field's share of the overall confidence.
type Weights map[models.Field]float64

func DefaultWeights() Weights {
	return Weights{
		models.FieldTitle:         0.30,
		models.FieldAuthor:        0.25,
		models.FieldISBN13:        0.15,
		models.FieldISBN10:        0.10,
		models.FieldPublisher:     0.08,
		models.FieldPublishedDate: 0.07,
		models.FieldDescription:   0.05,
	}
}

// Contribution is one successful strand output entering the merge.
type Contribution struct {
	Strand     string
	Kind       models.StrandKind
	Order      int
	Metadata   models.Metadata
	Confidence models.FieldConfidence
}

// Merged is the combined view of every contribution so far.
type Merged struct {
	Metadata   models.Metadata
	Confidence models.Confidence
	// Sources names the strand each populated field came from.
	Sources map[models.Field]string
}

// beats reports whether a should replace b for a field scored ca against cb.
func beats(a Contribution, ca float64, b Contribution, cb float64) bool {
	if ca != cb {
		return ca > cb
	}
	if a.Kind.Rank() != b.Kind.Rank() {
		return a.Kind.Rank() < b.Kind.Rank()
	}
	return a.Order < b.Order
}

// Merge picks, per field, the value with the highest confidence. Ties go to
// the more reliable strand kind, then to the earlier strand. The result does
// not depend on the order of contribs.
func Merge(contribs []Contribution, weights Weights) Merged {
	out := Merged{
		Confidence: models.Confidence{Fields: models.FieldConfidence{}},
		Sources:    map[models.Field]string{},
	}
	for _, f := range models.AllFields {
		var (
			best     *Contribution
			bestConf float64
			bestVal  string
		)
		for i := range contribs {
			c := &contribs[i]
			v, ok := c.Metadata.Get(f)
			if !ok {
				continue
			}
			conf := clamp(c.Confidence[f])
			if best == nil || beats(*c, conf, *best, bestConf) {
				best, bestConf, bestVal = c, conf, v
			}
		}
		if best == nil {
			continue
		}
		out.Metadata.Set(f, bestVal)
		out.Confidence.Fields[f] = bestConf
		out.Sources[f] = best.Strand
	}
	out.Confidence.Overall = Overall(out.Confidence.Fields, weights)
	return out
}

// Overall is the weighted mean of the populated fields only; absent fields
// neither add nor subtract.
func Overall(fields models.FieldConfidence, weights Weights) float64 {
	var sum, total float64
	for f, c := range fields {
		w := weights[f]
		if w <= 0 {
			continue
		}
		sum += w * c
		total += w
	}
	if total == 0 {
		return 0
	}
	return math.Round(sum/total*100) / 100
}

func clamp(c float64) float64 {
	switch {
	case math.IsNaN(c) || c < 0:
		return 0
	case c > 100:
		return 100
	}
	return c
}
