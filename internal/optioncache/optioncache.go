package optioncache

import (
	"context"
	"sync"
	"time"

	"leadscout/internal/services"
	"leadscout/internal/store"
)

// Options is the cached set of filter values offered by the CLI.
type Options struct {
	Sources []string
	Themes  []string
	Flairs  []string
	Stats   map[store.Status]int
}

// Cache memoizes filter options and status counts with a TTL. Writes that
// change the stored item set call Invalidate so readers never serve values
// older than the last mutation.
type Cache struct {
	store *store.Store
	ttl   time.Duration
	now   func() time.Time

	mu        sync.Mutex
	cached    *Options
	fetchedAt time.Time
}

// New builds a cache over the store with the given TTL. A non-positive TTL
// disables caching entirely.
func New(st *store.Store, ttl time.Duration) *Cache {
	return &Cache{
		store: st,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get returns the cached options, refreshing from the store when the cache
// is empty or expired.
func (c *Cache) Get(ctx context.Context) (Options, error) {
	c.mu.Lock()
	if c.cached != nil && c.ttl > 0 && c.now().Sub(c.fetchedAt) < c.ttl {
		options := *c.cached
		c.mu.Unlock()
		return options, nil
	}
	c.mu.Unlock()

	options, err := c.load(ctx)
	if err != nil {
		return Options{}, err
	}

	c.mu.Lock()
	c.cached = &options
	c.fetchedAt = c.now()
	c.mu.Unlock()
	return options, nil
}

// Invalidate drops the cached values. The next Get reloads from the store.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}

func (c *Cache) load(ctx context.Context) (Options, error) {
	sources, err := c.store.DistinctSources(ctx)
	if err != nil {
		return Options{}, services.Wrap(services.ErrStorage, "optioncache", "load", "load sources", err)
	}
	themes, err := c.store.DistinctThemes(ctx)
	if err != nil {
		return Options{}, services.Wrap(services.ErrStorage, "optioncache", "load", "load themes", err)
	}
	flairs, err := c.store.DistinctFlairs(ctx)
	if err != nil {
		return Options{}, services.Wrap(services.ErrStorage, "optioncache", "load", "load flairs", err)
	}
	stats, err := c.store.Stats(ctx)
	if err != nil {
		return Options{}, services.Wrap(services.ErrStorage, "optioncache", "load", "load stats", err)
	}
	return Options{
		Sources: sources,
		Themes:  themes,
		Flairs:  flairs,
		Stats:   stats,
	}, nil
}
