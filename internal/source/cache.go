package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/agis/avail/internal/contract"
)

const defaultCacheSize = 64

type cacheEntry struct {
	events   []contract.Event
	storedAt time.Time
}

// CachedSource wraps another source with an LRU of recent event queries.
// Repeated availability scans over the same window (the common agent
// pattern) hit the cache instead of the upstream API.
type CachedSource struct {
	inner Source
	ttl   time.Duration
	lru   *lru.Cache[string, cacheEntry]
	now   func() time.Time
}

func NewCachedSource(inner Source, size int, ttl time.Duration) (*CachedSource, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	c, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("create event cache: %w", err)
	}
	return &CachedSource{inner: inner, ttl: ttl, lru: c, now: time.Now}, nil
}

func (s *CachedSource) Doctor(ctx context.Context) ([]contract.SourceCheck, error) {
	checks, err := s.inner.Doctor(ctx)
	if err != nil {
		return checks, err
	}
	checks = append(checks, contract.SourceCheck{
		Name:    "event cache",
		Status:  "ok",
		Message: fmt.Sprintf("%d cached quer(ies)", s.lru.Len()),
	})
	return checks, nil
}

func (s *CachedSource) ListCalendars(ctx context.Context) ([]contract.Calendar, error) {
	return s.inner.ListCalendars(ctx)
}

func (s *CachedSource) ListEvents(ctx context.Context, f Filter) ([]contract.Event, error) {
	key := filterKey(f)
	if entry, ok := s.lru.Get(key); ok {
		if s.ttl <= 0 || s.now().Sub(entry.storedAt) < s.ttl {
			return entry.events, nil
		}
		s.lru.Remove(key)
	}
	events, err := s.inner.ListEvents(ctx, f)
	if err != nil {
		return nil, err
	}
	s.lru.Add(key, cacheEntry{events: events, storedAt: s.now()})
	return events, nil
}

func filterKey(f Filter) string {
	return strings.Join([]string{
		strings.Join(f.Calendars, ","),
		f.From.UTC().Format(time.RFC3339),
		f.To.UTC().Format(time.RFC3339),
		f.Query,
		fmt.Sprint(f.Limit),
	}, "|")
}
