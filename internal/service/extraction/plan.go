package extraction

import (
	"fmt"

	"github.com/feichai0017/bookmeta/internal/agent"
	"github.com/feichai0017/bookmeta/internal/models"
)

// step is one planned strand. gate, when set, decides at execution time
// whether the strand still runs given the merge so far; the string is the
// reason recorded when it does not.
type step struct {
	strand agent.Strand
	gate   func(m Merged) (bool, string)
}

func first(strands []agent.Strand) agent.Strand {
	if len(strands) == 0 {
		return nil
	}
	return strands[0]
}

func hasAny(md models.Metadata, fields ...models.Field) bool {
	for _, f := range fields {
		if _, ok := md.Get(f); ok {
			return true
		}
	}
	return false
}

// catalogSeedable is true when an ISBN or both title and author are known.
func catalogSeedable(m Merged) (bool, string) {
	if hasAny(m.Metadata, models.FieldISBN13, models.FieldISBN10) {
		return true, ""
	}
	if hasAny(m.Metadata, models.FieldTitle) && hasAny(m.Metadata, models.FieldAuthor) {
		return true, ""
	}
	return false, "no isbn or title and author to query with"
}

// plan lays out the strands a strategy runs, in order.
func (o *Orchestrator) plan(strategy models.Strategy) []step {
	var steps []step
	add := func(s agent.Strand, gate func(Merged) (bool, string)) {
		if s != nil {
			steps = append(steps, step{strand: s, gate: gate})
		}
	}

	if o.cfg.FilenameStrand {
		add(first(o.registry.ByKind(models.KindFilename)), nil)
	}

	ocr := first(o.registry.ByKind(models.KindOCR))
	visions := o.registry.ByKind(models.KindVision)
	catalog := first(o.registry.ByKind(models.KindCatalog))

	switch strategy {
	case models.StrategyCostOptimized:
		if cheapest, ok := o.registry.Cheapest(models.KindVision); ok {
			add(cheapest, nil)
		} else if len(visions) > 0 {
			add(visions[0], nil)
		} else {
			add(ocr, nil)
		}
		add(catalog, catalogSeedable)

	case models.StrategyAccuracyFirst:
		add(ocr, nil)
		for _, v := range visions {
			add(v, nil)
		}
		add(catalog, catalogSeedable)

	default:
		add(ocr, nil)
		if len(visions) > 0 {
			add(visions[0], nil)
		}
		if len(visions) > 1 {
			threshold := o.cfg.VisionFallbackThreshold
			add(visions[1], func(m Merged) (bool, string) {
				if m.Confidence.Overall < threshold {
					return true, ""
				}
				return false, fmt.Sprintf("merged confidence %.2f at or above fallback threshold %.0f", m.Confidence.Overall, threshold)
			})
		}
		add(catalog, catalogSeedable)
	}
	return steps
}
