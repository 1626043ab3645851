package catalog

import (
	"context"
	"strings"

	"github.com/feichai0017/bookmeta/internal/agent"
	"github.com/feichai0017/bookmeta/internal/models"
)

const (
	isbnMatchConfidence        = 95.0
	titleAuthorMatchConfidence = 80.0
)

// Strand seeds a catalog query from what earlier strands extracted.
type Strand struct {
	client *Client
}

func NewStrand(c *Client) *Strand {
	return &Strand{client: c}
}

func (s *Strand) Name() string            { return "catalog" }
func (s *Strand) Kind() models.StrandKind { return models.KindCatalog }

// QueryFrom prefers ISBN-13, then ISBN-10, then title and author.
func QueryFrom(md models.Metadata) Query {
	if v, ok := md.Get(models.FieldISBN13); ok {
		return Query{ISBN: v}
	}
	if v, ok := md.Get(models.FieldISBN10); ok {
		return Query{ISBN: v}
	}
	title, _ := md.Get(models.FieldTitle)
	author, _ := md.Get(models.FieldAuthor)
	return Query{Title: title, Author: author}
}

func (s *Strand) Run(ctx context.Context, in *agent.Input) (*agent.Output, error) {
	res, err := s.client.Lookup(ctx, QueryFrom(in.Current))
	if err != nil {
		return nil, err
	}
	if res == nil {
		return &agent.Output{Confidence: models.FieldConfidence{}, Detail: "no catalog match"}, nil
	}

	score := titleAuthorMatchConfidence
	if res.MatchedBy == MatchISBN {
		score = isbnMatchConfidence
	}

	var md models.Metadata
	md.Set(models.FieldTitle, res.Title)
	md.Set(models.FieldAuthor, strings.Join(res.Authors, ", "))
	md.Set(models.FieldISBN10, res.ISBN10)
	md.Set(models.FieldISBN13, res.ISBN13)
	md.Set(models.FieldPublisher, res.Publisher)
	md.Set(models.FieldPublishedDate, res.PublishedDate)
	md.Set(models.FieldDescription, res.Description)

	conf := models.FieldConfidence{}
	for _, f := range md.Populated() {
		conf[f] = score
	}
	return &agent.Output{
		Metadata:   md,
		Confidence: conf,
		Detail:     res.Provider + " by " + string(res.MatchedBy),
	}, nil
}
