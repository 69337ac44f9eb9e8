package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SwingScanner/internal/model"
)

var (
	asOf    = time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)
	fetched = time.Date(2024, 6, 28, 10, 0, 0, 0, time.UTC)
)

func sampleBars() []model.Bar {
	return []model.Bar{
		{Date: time.Date(2024, 6, 27, 0, 0, 0, 0, time.UTC), Open: 100, High: 102, Low: 99, Close: 101, Volume: 12000},
		{Date: time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC), Open: 101, High: 104, Low: 100, Close: 103, Volume: 15000},
	}
}

func sampleEntry() Entry {
	return Entry{
		Key:       Key{Symbol: "INFY.NS", Timeframe: model.Daily, AsOf: asOf},
		FetchedAt: fetched,
		Bars:      sampleBars(),
	}
}

func clock(t time.Time) func() time.Time { return func() time.Time { return t } }

func newSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// storeSuite runs the behaviour every backend must share.
func storeSuite(t *testing.T, store Store, setNow func(time.Time)) {
	ctx := context.Background()
	e := sampleEntry()
	setNow(fetched.Add(time.Hour))

	t.Run("miss on empty", func(t *testing.T) {
		_, ok := store.Get(ctx, e.Key, 24*time.Hour)
		assert.False(t, ok)
	})

	store.Put(ctx, e)

	t.Run("round trip", func(t *testing.T) {
		got, ok := store.Get(ctx, e.Key, 24*time.Hour)
		require.True(t, ok)
		assert.Equal(t, e.Bars, got.Bars)
		assert.True(t, got.FetchedAt.Equal(fetched))
	})

	t.Run("zero ttl always misses", func(t *testing.T) {
		_, ok := store.Get(ctx, e.Key, 0)
		assert.False(t, ok)
	})

	t.Run("expired", func(t *testing.T) {
		_, ok := store.Get(ctx, e.Key, 30*time.Minute)
		assert.False(t, ok)
	})

	t.Run("as-of dates coexist", func(t *testing.T) {
		other := sampleEntry()
		other.AsOf = asOf.AddDate(0, 0, -7)
		other.Bars = other.Bars[:1]
		store.Put(ctx, other)

		got, ok := store.Get(ctx, other.Key, 24*time.Hour)
		require.True(t, ok)
		assert.Len(t, got.Bars, 1)
		got, ok = store.Get(ctx, e.Key, 24*time.Hour)
		require.True(t, ok)
		assert.Len(t, got.Bars, 2)
	})

	t.Run("put replaces", func(t *testing.T) {
		replaced := sampleEntry()
		replaced.Bars = replaced.Bars[1:]
		store.Put(ctx, replaced)

		got, ok := store.Get(ctx, e.Key, 24*time.Hour)
		require.True(t, ok)
		assert.Equal(t, replaced.Bars, got.Bars)
	})
}

func TestSQLiteStore(t *testing.T) {
	s := newSQLite(t)
	storeSuite(t, s, func(now time.Time) { s.now = clock(now) })
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore()
	storeSuite(t, m, func(now time.Time) { m.now = clock(now) })
}

func TestSQLiteStore_CorruptEntryIsMiss(t *testing.T) {
	s := newSQLite(t)
	s.now = clock(fetched)
	_, err := s.db.Exec(`INSERT INTO market_data_cache (symbol, timeframe, as_of, fetched_at, data)
		VALUES (?, ?, ?, ?, ?)`, "INFY.NS", "1d", "2024-06-28", fetched.UnixMilli(), []byte("{not json"))
	require.NoError(t, err)

	_, ok := s.Get(context.Background(), sampleEntry().Key, time.Hour)
	assert.False(t, ok)
}

func TestSQLiteStore_Purge(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)

	old := sampleEntry()
	old.AsOf = asOf.AddDate(0, 0, -30)
	old.FetchedAt = fetched.AddDate(0, 0, -30)
	s.Put(ctx, old)
	s.Put(ctx, sampleEntry())

	s.now = clock(fetched.Add(time.Hour))
	n, err := s.Purge(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok := s.Get(ctx, sampleEntry().Key, 24*time.Hour)
	assert.True(t, ok)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	s.Put(ctx, sampleEntry())
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()
	s.now = clock(fetched.Add(time.Minute))
	_, ok := s.Get(ctx, sampleEntry().Key, time.Hour)
	assert.True(t, ok)
}

func TestMemoryStore_Isolation(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	m.now = clock(fetched)
	e := sampleEntry()
	m.Put(ctx, e)
	e.Bars[0].Close = -1

	got, ok := m.Get(ctx, e.Key, time.Hour)
	require.True(t, ok)
	assert.Equal(t, 101.0, got.Bars[0].Close)
}

func TestOpen(t *testing.T) {
	s, err := Open(Options{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(Options{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "c.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	s.Close()

	_, err = Open(Options{Backend: "sqlite"})
	assert.Error(t, err)
	_, err = Open(Options{Backend: "etcd"})
	assert.Error(t, err)
}

func TestKeyString(t *testing.T) {
	k := Key{Symbol: "TCS.NS", Timeframe: model.Weekly, AsOf: asOf}
	assert.Equal(t, "TCS.NS:1wk:2024-06-28", k.String())
}
