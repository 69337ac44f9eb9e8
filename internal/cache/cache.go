// Package cache stores fetched bar series keyed by symbol, timeframe and
// as-of date. Every backend treats misses, expiry and corrupt payloads alike:
// the entry is absent. Writes are best effort.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"SwingScanner/internal/model"
)

// Key identifies one cached series. Entries with different as-of dates coexist.
type Key struct {
	Symbol    string
	Timeframe model.Timeframe
	AsOf      time.Time
}

// String renders the key as symbol:timeframe:yyyy-mm-dd.
func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Symbol, k.Timeframe, k.AsOf.Format(model.DateLayout))
}

// Entry is a cached series with the time it was fetched.
type Entry struct {
	Key
	FetchedAt time.Time
	Bars      []model.Bar
}

// Series converts the entry back into a model.Series.
func (e Entry) Series() model.Series {
	return model.Series{Symbol: e.Symbol, Timeframe: e.Timeframe, Bars: e.Bars}
}

// Store is a series cache. Get returns false for anything it cannot serve;
// Put never fails the caller.
type Store interface {
	Get(ctx context.Context, key Key, ttl time.Duration) (Entry, bool)
	Put(ctx context.Context, entry Entry)
	Close() error
}

// Purger is implemented by stores that can drop stale entries on demand.
type Purger interface {
	Purge(ctx context.Context, olderThan time.Duration) (int64, error)
}

// fresh reports whether an entry fetched at fetchedAt is still valid at now.
// A zero ttl is never fresh.
func fresh(fetchedAt, now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(fetchedAt) < ttl
}

type payload struct {
	FetchedAt time.Time   `json:"fetched_at"`
	Bars      []model.Bar `json:"bars"`
}

func encode(e Entry) ([]byte, error) {
	return json.Marshal(payload{FetchedAt: e.FetchedAt.UTC(), Bars: e.Bars})
}

func decode(data []byte) (payload, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return p, err
	}
	if p.Bars == nil {
		return p, fmt.Errorf("payload has no bars")
	}
	return p, nil
}
