package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/feichai0017/bookmeta/internal/agent"
	"github.com/feichai0017/bookmeta/internal/apperr"
	"github.com/feichai0017/bookmeta/internal/models"
	"github.com/feichai0017/bookmeta/pkg/logger"
)

type fakeProvider struct {
	mu      sync.Mutex
	name    string
	byISBN  map[string]*CatalogResult
	byTitle map[string]*CatalogResult
	err     error
	block   bool
	calls   []string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeProvider) wait(ctx context.Context) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

func (f *fakeProvider) LookupISBN(ctx context.Context, isbn string) (*CatalogResult, error) {
	f.record("isbn:" + isbn)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if r, ok := f.byISBN[isbn]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeProvider) Search(ctx context.Context, title, author string) (*CatalogResult, error) {
	f.record("ta:" + title + "|" + author)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if r, ok := f.byTitle[title]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func newClient(primary, secondary Provider, cache Cache) *Client {
	return NewClient(primary, secondary, cache, agent.NetworkPolicy{AllowExternalCalls: true},
		ClientConfig{CallTimeout: 50 * time.Millisecond}, logger.NewTestLogger())
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, Fingerprint(Query{ISBN: "978-0-13-235088-4"}), Fingerprint(Query{ISBN: "9780132350884", Title: "ignored"}))
	assert.Equal(t, Fingerprint(Query{Title: " Dune ", Author: "FRANK Herbert"}), Fingerprint(Query{Title: "dune", Author: "frank herbert"}))
	assert.NotEqual(t, Fingerprint(Query{Title: "Dune"}), Fingerprint(Query{Author: "Dune"}))
	assert.True(t, strings.HasPrefix(Fingerprint(Query{Title: "x"}), "catalog:"))
}

func TestLookup_InvalidQuery(t *testing.T) {
	c := newClient(&fakeProvider{name: "p"}, nil, NewMemoryCache())
	_, err := c.Lookup(context.Background(), Query{Title: "  "})
	assert.ErrorIs(t, err, apperr.ErrInvalidQuery)
}

func TestLookup_PolicyDisabledSkipsEverything(t *testing.T) {
	p := &fakeProvider{name: "p"}
	cache := NewMemoryCache()
	c := NewClient(p, nil, cache, agent.NetworkPolicy{}, ClientConfig{}, logger.NewTestLogger())

	res, err := c.Lookup(context.Background(), Query{ISBN: "9780132350884"})
	assert.NoError(t, err)
	assert.Nil(t, res)
	assert.Empty(t, p.calls)
	assert.Equal(t, 0, cache.Len())

	_, err = c.Lookup(context.Background(), Query{})
	assert.ErrorIs(t, err, apperr.ErrInvalidQuery)
}

func TestLookup_FallbackOrder(t *testing.T) {
	primary := &fakeProvider{name: "primary"}
	secondary := &fakeProvider{name: "secondary", byTitle: map[string]*CatalogResult{
		"Dune": {Title: "Dune", Authors: []string{"Frank Herbert"}},
	}}
	c := newClient(primary, secondary, NewMemoryCache())

	res, err := c.Lookup(context.Background(), Query{ISBN: "0441172717", Title: "Dune", Author: "Frank Herbert"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "secondary", res.Provider)
	assert.Equal(t, MatchTitleAuthor, res.MatchedBy)

	assert.Equal(t, []string{"isbn:0441172717", "ta:Dune|Frank Herbert"}, primary.calls)
	assert.Equal(t, []string{"isbn:0441172717", "ta:Dune|Frank Herbert"}, secondary.calls)
}

func TestLookup_HitIsCached(t *testing.T) {
	p := &fakeProvider{name: "p", byISBN: map[string]*CatalogResult{"9780132350884": {Title: "Clean Code"}}}
	c := newClient(p, nil, NewMemoryCache())

	for i := 0; i < 3; i++ {
		res, err := c.Lookup(context.Background(), Query{ISBN: "978-0-13-235088-4"})
		require.NoError(t, err)
		assert.Equal(t, "Clean Code", res.Title)
	}
	assert.Len(t, p.calls, 1)
}

func TestLookup_NegativeCacheBound(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewMemoryCacheWithClock(func() time.Time { return now })
	p := &fakeProvider{name: "p"}
	c := newClient(p, nil, cache)
	q := Query{Title: "Unknown Book"}

	for i := 0; i < 5; i++ {
		res, err := c.Lookup(context.Background(), q)
		require.NoError(t, err)
		assert.Nil(t, res)
	}
	assert.Len(t, p.calls, 1, "negative result served from cache within TTL")

	now = now.Add(DefaultTTL + time.Second)
	_, err := c.Lookup(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, p.calls, 2, "provider consulted again after expiry")
}

func TestLookup_TransientErrorNotCached(t *testing.T) {
	p := &fakeProvider{name: "p", err: errors.New("503 service unavailable")}
	cache := NewMemoryCache()
	c := newClient(p, nil, cache)

	_, err := c.Lookup(context.Background(), Query{ISBN: "9780132350884"})
	assert.Error(t, err)
	assert.Equal(t, 0, cache.Len())

	_, err = c.Lookup(context.Background(), Query{ISBN: "9780132350884"})
	assert.Error(t, err)
	assert.Len(t, p.calls, 2)
}

func TestLookup_TimeoutThenSecondaryHit(t *testing.T) {
	slow := &fakeProvider{name: "slow", block: true}
	fast := &fakeProvider{name: "fast", byISBN: map[string]*CatalogResult{"9780132350884": {Title: "Clean Code"}}}
	c := newClient(slow, fast, NewMemoryCache())

	res, err := c.Lookup(context.Background(), Query{ISBN: "9780132350884"})
	require.NoError(t, err)
	assert.Equal(t, "fast", res.Provider)
}

func TestLookup_TimeoutOnly(t *testing.T) {
	c := newClient(&fakeProvider{name: "slow", block: true}, nil, NewMemoryCache())

	_, err := c.Lookup(context.Background(), Query{ISBN: "9780132350884"})
	assert.ErrorIs(t, err, apperr.ErrProviderTimeout)
}

func TestStrand_QuerySeededFromCurrent(t *testing.T) {
	p := &fakeProvider{name: "p", byISBN: map[string]*CatalogResult{
		"9780132350884": {Title: "Clean Code", Authors: []string{"Robert C. Martin"}, Publisher: "Prentice Hall"},
	}}
	s := NewStrand(newClient(p, nil, NewMemoryCache()))

	var current models.Metadata
	current.Set(models.FieldISBN13, "9780132350884")
	current.Set(models.FieldTitle, "Clean Cod")

	out, err := s.Run(context.Background(), &agent.Input{Current: current})
	require.NoError(t, err)
	title, _ := out.Metadata.Get(models.FieldTitle)
	assert.Equal(t, "Clean Code", title)
	assert.Equal(t, isbnMatchConfidence, out.Confidence[models.FieldPublisher])
}

func TestStrand_EmptyCurrentIsInvalidQuery(t *testing.T) {
	s := NewStrand(newClient(&fakeProvider{name: "p"}, nil, NewMemoryCache()))
	_, err := s.Run(context.Background(), &agent.Input{})
	assert.ErrorIs(t, err, apperr.ErrInvalidQuery)
}

func TestOpenLibrary_ISBNAndSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/isbn/9780132350884.json":
			_, _ = w.Write([]byte(`{"title":"Clean Code","publishers":["Prentice Hall"],"publish_date":"2008",
				"isbn_13":["9780132350884"],"authors":[{"key":"/authors/OL1A"}],"description":{"value":"A handbook"}}`))
		case r.URL.Path == "/authors/OL1A.json":
			_, _ = w.Write([]byte(`{"name":"Robert C. Martin"}`))
		case r.URL.Path == "/search.json":
			assert.Equal(t, "Dune", r.URL.Query().Get("title"))
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"numFound": 1,
				"docs": []map[string]interface{}{{
					"title": "Dune", "author_name": []string{"Frank Herbert"},
					"isbn": []string{"0441172717", "9780441172719"}, "first_publish_year": 1965,
				}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ol := NewOpenLibrary(srv.URL)

	res, err := ol.LookupISBN(context.Background(), "9780132350884")
	require.NoError(t, err)
	assert.Equal(t, "Clean Code", res.Title)
	assert.Equal(t, []string{"Robert C. Martin"}, res.Authors)
	assert.Equal(t, "A handbook", res.Description)

	res, err = ol.LookupISBN(context.Background(), "0000000000")
	assert.NoError(t, err)
	assert.Nil(t, res)

	res, err = ol.Search(context.Background(), "Dune", "")
	require.NoError(t, err)
	assert.Equal(t, "9780441172719", res.ISBN13)
	assert.Equal(t, "0441172717", res.ISBN10)
	assert.Equal(t, "1965", res.PublishedDate)
}

func TestOpenLibrary_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewOpenLibrary(srv.URL).LookupISBN(context.Background(), "9780132350884")
	assert.Error(t, err)
}

func TestGoogleBooks_Volume(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "isbn:9780441172719", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"totalItems":1,"items":[{"volumeInfo":{"title":"Dune","authors":["Frank Herbert"],
			"industryIdentifiers":[{"type":"ISBN_13","identifier":"9780441172719"}]}}]}`))
	}))
	defer srv.Close()

	gb, err := NewGoogleBooks(context.Background(), "", option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
	require.NoError(t, err)

	res, err := gb.LookupISBN(context.Background(), "9780441172719")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "Dune", res.Title)
	assert.Equal(t, "9780441172719", res.ISBN13)
}
