package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const openLibraryURL = "https://openlibrary.org"

// OpenLibrary queries the public Open Library JSON API.
type OpenLibrary struct {
	BaseURL    string
	httpClient *http.Client
}

func NewOpenLibrary(baseURL string) *OpenLibrary {
	if baseURL == "" {
		baseURL = openLibraryURL
	}
	return &OpenLibrary{
		BaseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (o *OpenLibrary) Name() string { return "openlibrary" }

// errNotFound is internal; callers see nil, nil.
var errNotFound = fmt.Errorf("not found")

func (o *OpenLibrary) getJSON(ctx context.Context, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch from Open Library: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("Open Library returned status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode Open Library response: %w", err)
	}
	return nil
}

type olEdition struct {
	Title       string   `json:"title"`
	Publishers  []string `json:"publishers"`
	PublishDate string   `json:"publish_date"`
	ISBN10      []string `json:"isbn_10"`
	ISBN13      []string `json:"isbn_13"`
	Authors     []struct {
		Key string `json:"key"`
	} `json:"authors"`
	Description json.RawMessage `json:"description"`
}

func (o *OpenLibrary) LookupISBN(ctx context.Context, isbn string) (*CatalogResult, error) {
	var ed olEdition
	err := o.getJSON(ctx, "/isbn/"+url.PathEscape(isbn)+".json", &ed)
	if err == errNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	res := &CatalogResult{
		Title:         ed.Title,
		PublishedDate: ed.PublishDate,
		Description:   olText(ed.Description),
		ISBN10:        first(ed.ISBN10),
		ISBN13:        first(ed.ISBN13),
		Publisher:     first(ed.Publishers),
	}
	for _, a := range ed.Authors {
		var author struct {
			Name string `json:"name"`
		}
		// author names are a nice-to-have; the edition is already a hit
		if err := o.getJSON(ctx, a.Key+".json", &author); err == nil && author.Name != "" {
			res.Authors = append(res.Authors, author.Name)
		}
	}
	return res, nil
}

func (o *OpenLibrary) Search(ctx context.Context, title, author string) (*CatalogResult, error) {
	params := url.Values{}
	if title != "" {
		params.Set("title", title)
	}
	if author != "" {
		params.Set("author", author)
	}
	params.Set("limit", "1")

	var out struct {
		NumFound int `json:"numFound"`
		Docs     []struct {
			Title            string   `json:"title"`
			AuthorName       []string `json:"author_name"`
			ISBN             []string `json:"isbn"`
			Publisher        []string `json:"publisher"`
			FirstPublishYear int      `json:"first_publish_year"`
		} `json:"docs"`
	}
	err := o.getJSON(ctx, "/search.json?"+params.Encode(), &out)
	if err == errNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if out.NumFound == 0 || len(out.Docs) == 0 {
		return nil, nil
	}

	doc := out.Docs[0]
	res := &CatalogResult{
		Title:     doc.Title,
		Authors:   doc.AuthorName,
		Publisher: first(doc.Publisher),
	}
	if doc.FirstPublishYear > 0 {
		res.PublishedDate = strconv.Itoa(doc.FirstPublishYear)
	}
	for _, isbn := range doc.ISBN {
		switch n := NormalizeISBN(isbn); len(n) {
		case 13:
			if res.ISBN13 == "" {
				res.ISBN13 = n
			}
		case 10:
			if res.ISBN10 == "" {
				res.ISBN10 = n
			}
		}
	}
	return res, nil
}

// olText reads Open Library text fields, which are either a string or {"value": ...}.
func olText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var v struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &v); err == nil {
		return v.Value
	}
	return ""
}

func first(xs []string) string {
	if len(xs) == 0 {
		return ""
	}
	return xs[0]
}
