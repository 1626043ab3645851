// Package catalog looks books up in bibliographic catalogs, with a shared
// cache in front of the providers.
package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Query holds the search terms. ISBN takes precedence when present.
type Query struct {
	ISBN   string `json:"isbn,omitempty"`
	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"`
}

// MatchKind says which terms produced a hit.
type MatchKind string

const (
	MatchISBN        MatchKind = "isbn"
	MatchTitleAuthor MatchKind = "title_author"
)

// CatalogResult is the normalized record returned by any provider.
type CatalogResult struct {
	Title         string    `json:"title"`
	Authors       []string  `json:"authors,omitempty"`
	ISBN10        string    `json:"isbn10,omitempty"`
	ISBN13        string    `json:"isbn13,omitempty"`
	Publisher     string    `json:"publisher,omitempty"`
	PublishedDate string    `json:"publishedDate,omitempty"`
	Description   string    `json:"description,omitempty"`
	Provider      string    `json:"provider"`
	MatchedBy     MatchKind `json:"matchedBy"`
}

// Provider is one catalog backend. Both lookups return nil, nil when the
// catalog definitively has no match and an error only for transport or
// service failures.
type Provider interface {
	Name() string
	LookupISBN(ctx context.Context, isbn string) (*CatalogResult, error)
	Search(ctx context.Context, title, author string) (*CatalogResult, error)
}

// NormalizeISBN keeps digits and a trailing X.
func NormalizeISBN(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= '0' && r <= '9') || r == 'X' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (q Query) normalized() Query {
	return Query{
		ISBN:   NormalizeISBN(q.ISBN),
		Title:  strings.TrimSpace(q.Title),
		Author: strings.TrimSpace(q.Author),
	}
}

// Empty reports whether the query has no usable search term.
func (q Query) Empty() bool {
	n := q.normalized()
	return n.ISBN == "" && n.Title == "" && n.Author == ""
}

// Fingerprint is the cache key for q.
func Fingerprint(q Query) string {
	n := q.normalized()
	var basis string
	if n.ISBN != "" {
		basis = "isbn:" + n.ISBN
	} else {
		basis = "ta:" + strings.ToLower(n.Title) + "|" + strings.ToLower(n.Author)
	}
	sum := sha256.Sum256([]byte(basis))
	return "catalog:" + hex.EncodeToString(sum[:])
}
