package converters

import (
	"time"

	"github.com/feichai0017/bookmeta/internal/models"
)

// LegacyBook is the flat shape older clients read. Every value is derived
// from the record and its AdvancedMetadata; nothing here is stored.
type LegacyBook struct {
	BookID           string     `json:"bookId"`
	OwnerID          string     `json:"ownerId"`
	Title            string     `json:"title"`
	Author           string     `json:"author"`
	Description      string     `json:"description"`
	Status           string     `json:"status"`
	ISBN10           string     `json:"isbn10,omitempty"`
	ISBN13           string     `json:"isbn13,omitempty"`
	ISBN             string     `json:"isbn,omitempty"`
	Publisher        string     `json:"publisher,omitempty"`
	PublishedDate    string     `json:"publishedDate,omitempty"`
	MetadataSource   string     `json:"metadataSource"`
	Confidence       float64    `json:"confidence"`
	CoverKey         string     `json:"coverKey,omitempty"`
	LastExtractionAt *time.Time `json:"lastExtractionAt,omitempty"`
}

type LegacyConverter struct{}

func NewLegacyConverter() *LegacyConverter {
	return &LegacyConverter{}
}

// Convert projects rec. User-owned fields win; extracted values only show
// where the user left the field empty.
func (c *LegacyConverter) Convert(rec *models.BookRecord) *LegacyBook {
	if rec == nil {
		return nil
	}
	out := &LegacyBook{
		BookID:           rec.ID,
		OwnerID:          rec.OwnerID,
		Title:            rec.Title,
		Author:           rec.Author,
		Description:      rec.Description,
		Status:           string(rec.Status),
		MetadataSource:   string(rec.MetadataSource),
		CoverKey:         rec.SourceImageRef.Key,
		LastExtractionAt: rec.LastExtractionAt,
	}

	am := rec.AdvancedMetadata
	if am == nil {
		return out
	}
	md := am.Metadata
	fill(&out.Title, md.Title)
	fill(&out.Author, md.Author)
	fill(&out.Description, md.Description)
	fill(&out.ISBN10, md.ISBN10)
	fill(&out.ISBN13, md.ISBN13)
	fill(&out.Publisher, md.Publisher)
	fill(&out.PublishedDate, md.PublishedDate)

	out.ISBN = out.ISBN13
	if out.ISBN == "" {
		out.ISBN = out.ISBN10
	}
	out.Confidence = am.Confidence.Overall
	return out
}

func fill(dst *string, v *string) {
	if *dst == "" && v != nil {
		*dst = *v
	}
}
