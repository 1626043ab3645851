package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/books/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GoogleBooks queries the Books API volumes endpoint.
type GoogleBooks struct {
	svc *books.Service
}

// NewGoogleBooks builds the service; extra options (endpoint, http client)
// are appended after the API key.
func NewGoogleBooks(ctx context.Context, apiKey string, opts ...option.ClientOption) (*GoogleBooks, error) {
	if apiKey != "" {
		opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	}
	svc, err := books.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create books service: %w", err)
	}
	return &GoogleBooks{svc: svc}, nil
}

func (g *GoogleBooks) Name() string { return "googlebooks" }

func (g *GoogleBooks) LookupISBN(ctx context.Context, isbn string) (*CatalogResult, error) {
	return g.query(ctx, "isbn:"+isbn)
}

func (g *GoogleBooks) Search(ctx context.Context, title, author string) (*CatalogResult, error) {
	var terms []string
	if title != "" {
		terms = append(terms, "intitle:"+title)
	}
	if author != "" {
		terms = append(terms, "inauthor:"+author)
	}
	return g.query(ctx, strings.Join(terms, " "))
}

func (g *GoogleBooks) query(ctx context.Context, q string) (*CatalogResult, error) {
	vols, err := g.svc.Volumes.List(q).MaxResults(1).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("google books query failed: %w", err)
	}
	if vols == nil || vols.TotalItems == 0 || len(vols.Items) == 0 || vols.Items[0].VolumeInfo == nil {
		return nil, nil
	}

	info := vols.Items[0].VolumeInfo
	res := &CatalogResult{
		Title:         info.Title,
		Authors:       info.Authors,
		Publisher:     info.Publisher,
		PublishedDate: info.PublishedDate,
		Description:   info.Description,
	}
	if info.Subtitle != "" {
		res.Title = info.Title + ": " + info.Subtitle
	}
	for _, id := range info.IndustryIdentifiers {
		if id == nil {
			continue
		}
		switch id.Type {
		case "ISBN_13":
			res.ISBN13 = NormalizeISBN(id.Identifier)
		case "ISBN_10":
			res.ISBN10 = NormalizeISBN(id.Identifier)
		}
	}
	return res, nil
}
