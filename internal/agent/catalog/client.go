package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/feichai0017/bookmeta/internal/agent"
	"github.com/feichai0017/bookmeta/internal/apperr"
	"github.com/feichai0017/bookmeta/pkg/logger"
)

// DefaultCallTimeout bounds every single provider call.
const DefaultCallTimeout = 10 * time.Second

type ClientConfig struct {
	TTL         time.Duration
	CallTimeout time.Duration
}

// Client queries a primary and an optional secondary provider through the cache.
type Client struct {
	primary   Provider
	secondary Provider
	cache     Cache
	policy    agent.NetworkPolicy
	cfg       ClientConfig
	logger    logger.Logger
	now       func() time.Time
}

func NewClient(primary, secondary Provider, cache Cache, policy agent.NetworkPolicy, cfg ClientConfig, log logger.Logger) *Client {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	return &Client{
		primary:   primary,
		secondary: secondary,
		cache:     cache,
		policy:    policy,
		cfg:       cfg,
		logger:    log,
		now:       time.Now,
	}
}

type attempt struct {
	provider Provider
	match    MatchKind
}

func (c *Client) plan(q Query) []attempt {
	var out []attempt
	providers := []Provider{c.primary, c.secondary}
	if q.ISBN != "" {
		for _, p := range providers {
			if p != nil {
				out = append(out, attempt{provider: p, match: MatchISBN})
			}
		}
	}
	if q.Title != "" || q.Author != "" {
		for _, p := range providers {
			if p != nil {
				out = append(out, attempt{provider: p, match: MatchTitleAuthor})
			}
		}
	}
	return out
}

// Lookup returns nil, nil when nothing matches or external calls are
// disabled; an empty query is rejected either way. Negative outcomes are
// cached only when every attempt answered definitively.
func (c *Client) Lookup(ctx context.Context, q Query) (*CatalogResult, error) {
	const op = "catalog.Lookup"
	if q.Empty() {
		return nil, apperr.InvalidQuery(op, "query needs an isbn, title or author")
	}
	if !c.policy.AllowExternalCalls {
		return nil, nil
	}

	q = q.normalized()
	key := Fingerprint(q)

	if c.cache != nil {
		entry, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			c.logger.Warn("Catalog cache read failed", logger.String("key", key), logger.Error(err))
		} else if ok {
			if entry.Negative {
				return nil, nil
			}
			return entry.Result, nil
		}
	}

	var lastErr error
	for _, a := range c.plan(q) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := c.call(ctx, a, q)
		if err != nil {
			c.logger.Warn("Catalog provider failed",
				logger.String("provider", a.provider.Name()),
				logger.String("match", string(a.match)),
				logger.Error(err),
			)
			lastErr = err
			continue
		}
		if res == nil {
			continue
		}

		res.Provider = a.provider.Name()
		res.MatchedBy = a.match
		c.store(ctx, key, CacheEntry{Result: res, StoredAt: c.now()})
		return res, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	c.store(ctx, key, CacheEntry{Negative: true, StoredAt: c.now()})
	return nil, nil
}

func (c *Client) call(ctx context.Context, a attempt, q Query) (*CatalogResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	var (
		res *CatalogResult
		err error
	)
	if a.match == MatchISBN {
		res, err = a.provider.LookupISBN(callCtx, q.ISBN)
	} else {
		res, err = a.provider.Search(callCtx, q.Title, q.Author)
	}
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return nil, apperr.ProviderTimeout(a.provider.Name(), err)
	}
	return res, err
}

func (c *Client) store(ctx context.Context, key string, entry CacheEntry) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, key, entry, c.cfg.TTL); err != nil {
		c.logger.Warn("Catalog cache write failed", logger.String("key", key), logger.Error(err))
	}
}
