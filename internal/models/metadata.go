package models

import (
	"strings"
	"time"
)

// Field names one bibliographic attribute extracted from a cover.
type Field string

const (
	FieldTitle         Field = "title"
	FieldAuthor        Field = "author"
	FieldISBN10        Field = "isbn10"
	FieldISBN13        Field = "isbn13"
	FieldPublisher     Field = "publisher"
	FieldPublishedDate Field = "publishedDate"
	FieldDescription   Field = "description"
)

// AllFields lists every metadata field in canonical order.
var AllFields = []Field{
	FieldTitle,
	FieldAuthor,
	FieldISBN10,
	FieldISBN13,
	FieldPublisher,
	FieldPublishedDate,
	FieldDescription,
}

// Metadata holds extracted fields. A nil pointer means "not extracted".
type Metadata struct {
	Title         *string `json:"title"`
	Author        *string `json:"author"`
	ISBN10        *string `json:"isbn10"`
	ISBN13        *string `json:"isbn13"`
	Publisher     *string `json:"publisher"`
	PublishedDate *string `json:"publishedDate"`
	Description   *string `json:"description"`
}

func (m *Metadata) ptr(f Field) **string {
	switch f {
	case FieldTitle:
		return &m.Title
	case FieldAuthor:
		return &m.Author
	case FieldISBN10:
		return &m.ISBN10
	case FieldISBN13:
		return &m.ISBN13
	case FieldPublisher:
		return &m.Publisher
	case FieldPublishedDate:
		return &m.PublishedDate
	case FieldDescription:
		return &m.Description
	}
	return nil
}

// Get returns the value of f, or "" with ok=false when unset.
func (m Metadata) Get(f Field) (string, bool) {
	p := m.ptr(f)
	if p == nil || *p == nil {
		return "", false
	}
	return **p, true
}

// Set stores v under f. Blank values clear the field.
func (m *Metadata) Set(f Field, v string) {
	p := m.ptr(f)
	if p == nil {
		return
	}
	v = strings.TrimSpace(v)
	if v == "" {
		*p = nil
		return
	}
	*p = &v
}

// Populated lists the fields that carry a value, in canonical order.
func (m Metadata) Populated() []Field {
	var out []Field
	for _, f := range AllFields {
		if _, ok := m.Get(f); ok {
			out = append(out, f)
		}
	}
	return out
}

// IsEmpty reports whether no field is set.
func (m Metadata) IsEmpty() bool {
	return len(m.Populated()) == 0
}

// Clone returns a deep copy.
func (m Metadata) Clone() Metadata {
	var out Metadata
	for _, f := range AllFields {
		if v, ok := m.Get(f); ok {
			out.Set(f, v)
		}
	}
	return out
}

// FieldConfidence maps fields to a score in [0,100].
type FieldConfidence map[Field]float64

// Confidence is the scored view of a Metadata value.
type Confidence struct {
	Fields  FieldConfidence `json:"fields"`
	Overall float64         `json:"overall"`
}

// StrandKind groups strands for tie-breaking during the merge.
type StrandKind string

const (
	KindCatalog  StrandKind = "catalog"
	KindVision   StrandKind = "vision"
	KindOCR      StrandKind = "ocr"
	KindFilename StrandKind = "filename"
)

// Rank orders kinds by reliability; lower wins a confidence tie.
func (k StrandKind) Rank() int {
	switch k {
	case KindCatalog:
		return 0
	case KindVision:
		return 1
	case KindOCR:
		return 2
	case KindFilename:
		return 3
	}
	return 4
}

// Outcome is the result class of one strand attempt.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeNoResult  Outcome = "no_result"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeSkipped   Outcome = "skipped"
)

// ProvenanceEntry records what one strand contributed to a run.
type ProvenanceEntry struct {
	Strand       string          `json:"strand"`
	Kind         StrandKind      `json:"kind"`
	Order        int             `json:"order"`
	Outcome      Outcome         `json:"outcome"`
	Contribution Metadata        `json:"contribution"`
	Confidence   FieldConfidence `json:"confidence"`
	CostEstimate float64         `json:"costEstimate"`
	ElapsedMs    int64           `json:"elapsedMs"`
	Error        string          `json:"error,omitempty"`
	Detail       string          `json:"detail,omitempty"`
	Candidates   *Candidates     `json:"candidates,omitempty"`
}

// Candidate is a ranked guess for a field kept for debugging.
type Candidate struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Candidates holds the OCR ranked title/author guesses.
type Candidates struct {
	Titles  []Candidate `json:"titles"`
	Authors []Candidate `json:"authors"`
}

// AdvancedMetadata is the structured extraction result stored on a BookRecord.
type AdvancedMetadata struct {
	ExtractedAt time.Time         `json:"extractedAt"`
	Source      ImageRef          `json:"source"`
	Metadata    Metadata          `json:"metadata"`
	Confidence  Confidence        `json:"confidence"`
	Provenance  []ProvenanceEntry `json:"provenance"`
}

// NewAdvancedMetadata builds a value whose confidence and provenance are
// always present, even when nothing was extracted.
func NewAdvancedMetadata(at time.Time, src ImageRef, md Metadata, conf Confidence, prov []ProvenanceEntry) *AdvancedMetadata {
	if conf.Fields == nil {
		conf.Fields = FieldConfidence{}
	}
	if prov == nil {
		prov = []ProvenanceEntry{}
	}
	return &AdvancedMetadata{
		ExtractedAt: at,
		Source:      src,
		Metadata:    md,
		Confidence:  conf,
		Provenance:  prov,
	}
}

// Normalize restores the confidence/provenance invariant after decoding.
func (a *AdvancedMetadata) Normalize() {
	if a.Confidence.Fields == nil {
		a.Confidence.Fields = FieldConfidence{}
	}
	if a.Provenance == nil {
		a.Provenance = []ProvenanceEntry{}
	}
}
