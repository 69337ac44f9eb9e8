package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SwingScanner/internal/cache"
	"SwingScanner/internal/model"
)

var asOf = time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)

func dailyBars(n int, last time.Time) []model.Bar {
	bars := make([]model.Bar, n)
	for i := range bars {
		p := 100 + float64(i)
		bars[i] = model.Bar{
			Date:   model.Day(last).AddDate(0, 0, i-n+1),
			Open:   p,
			High:   p + 1,
			Low:    p - 1,
			Close:  p,
			Volume: 1000,
		}
	}
	return bars
}

// scripted fails a fixed number of times before serving bars. fails < 0
// fails forever.
type scripted struct {
	name  string
	fails int
	bars  []model.Bar
	err   error

	mu       sync.Mutex
	calls    int
	bySymbol map[string]int
}

func (s *scripted) Name() string { return s.name }

func (s *scripted) Fetch(_ context.Context, symbol string, _, _ time.Time, tf model.Timeframe) (model.Series, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.bySymbol == nil {
		s.bySymbol = map[string]int{}
	}
	s.bySymbol[symbol]++
	if s.fails < 0 || s.calls <= s.fails {
		if s.err != nil {
			return model.Series{}, s.err
		}
		return model.Series{}, fmt.Errorf("%s: boom", s.name)
	}
	return model.Series{Symbol: symbol, Timeframe: tf, Bars: s.bars}, nil
}

func (s *scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *scripted) CallsFor(symbol string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bySymbol[symbol]
}

func testOptions() Options {
	o := DefaultOptions()
	o.RequestsPerSecond = 1000
	return o
}

// newTestCollector records requested sleeps instead of sleeping.
func newTestCollector(opts Options, store cache.Store, sources ...Fetcher) (*Collector, *[]time.Duration) {
	c := New(opts, store, sources...)
	var slept []time.Duration
	var mu sync.Mutex
	c.sleep = func(_ context.Context, d time.Duration) error {
		mu.Lock()
		slept = append(slept, d)
		mu.Unlock()
		return nil
	}
	return c, &slept
}

func TestFetch_PrimarySucceeds(t *testing.T) {
	store := cache.NewMemoryStore()
	nse := &scripted{name: "nse", bars: dailyBars(30, asOf)}
	yahoo := &scripted{name: "yahoo", bars: dailyBars(30, asOf)}
	c, slept := newTestCollector(testOptions(), store, nse, yahoo)

	got, err := c.Fetch(context.Background(), "INFY.NS", asOf)
	require.NoError(t, err)
	assert.Equal(t, model.FromPrimary, got.Provenance)
	assert.Equal(t, "nse", got.Source)
	assert.Equal(t, 30, got.Series.Len())
	assert.Equal(t, 1, nse.Calls())
	assert.Zero(t, yahoo.Calls())
	assert.Empty(t, *slept)
}

func TestFetch_RetriesWithBackoffThenSucceeds(t *testing.T) {
	nse := &scripted{name: "nse", fails: 2, bars: dailyBars(30, asOf)}
	c, slept := newTestCollector(testOptions(), nil, nse)

	got, err := c.Fetch(context.Background(), "INFY.NS", asOf)
	require.NoError(t, err)
	assert.Equal(t, model.FromPrimary, got.Provenance)
	assert.Equal(t, 3, nse.Calls())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *slept)
}

func TestFetch_FallsBackAfterMaxRetries(t *testing.T) {
	nse := &scripted{name: "nse", fails: -1}
	yahoo := &scripted{name: "yahoo", bars: dailyBars(30, asOf)}
	c, slept := newTestCollector(testOptions(), nil, nse, yahoo)

	got, err := c.Fetch(context.Background(), "INFY.NS", asOf)
	require.NoError(t, err)
	assert.Equal(t, model.FromFallback, got.Provenance)
	assert.Equal(t, "yahoo", got.Source)
	assert.Equal(t, 3, nse.Calls())
	assert.Equal(t, 1, yahoo.Calls())
	// no sleep after the last primary attempt
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *slept)
}

func TestFetch_AllSourcesFail(t *testing.T) {
	nse := &scripted{name: "nse", fails: -1}
	yahoo := &scripted{name: "yahoo", fails: -1, err: ErrEmptySeries}
	c, _ := newTestCollector(testOptions(), nil, nse, yahoo)

	_, err := c.Fetch(context.Background(), "INFY.NS", asOf)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, ErrEmptySeries)
	assert.Equal(t, 3, nse.Calls())
	assert.Equal(t, 3, yahoo.Calls())
}

func TestFetch_EmptyAndInvalidSeriesAreFailures(t *testing.T) {
	bad := dailyBars(3, asOf)
	bad[2].Date = bad[1].Date
	nse := &scripted{name: "nse", bars: []model.Bar{}}
	yahoo := &scripted{name: "yahoo", bars: bad}
	c, _ := newTestCollector(testOptions(), nil, nse, yahoo)

	_, err := c.Fetch(context.Background(), "INFY.NS", asOf)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 3, nse.Calls())
	assert.Equal(t, 3, yahoo.Calls())
}

func TestFetch_CacheHitSkipsSourcesAndLimiter(t *testing.T) {
	store := cache.NewMemoryStore()
	nse := &scripted{name: "nse", bars: dailyBars(30, asOf)}
	opts := testOptions()
	opts.RequestsPerSecond = 0.001
	c, _ := newTestCollector(opts, store, nse)

	first, err := c.Fetch(context.Background(), "INFY.NS", asOf)
	require.NoError(t, err)

	// The single token is spent: any limiter wait now exceeds the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	second, err := c.Fetch(ctx, "INFY.NS", asOf)
	require.NoError(t, err)
	assert.Equal(t, model.FromCache, second.Provenance)
	assert.Equal(t, "cache", second.Source)
	assert.Equal(t, first.Series.Bars, second.Series.Bars)
	assert.Equal(t, 1, nse.Calls())
}

func TestFetch_ZeroTTLAlwaysRefetches(t *testing.T) {
	opts := testOptions()
	opts.TTLDaily = 0
	nse := &scripted{name: "nse", bars: dailyBars(30, asOf)}
	c, _ := newTestCollector(opts, cache.NewMemoryStore(), nse)

	for i := 0; i < 2; i++ {
		got, err := c.Fetch(context.Background(), "INFY.NS", asOf)
		require.NoError(t, err)
		assert.Equal(t, model.FromPrimary, got.Provenance)
	}
	assert.Equal(t, 2, nse.Calls())
}

func TestFetch_DifferentAsOfDatesDoNotShareCache(t *testing.T) {
	nse := &scripted{name: "nse", bars: dailyBars(30, asOf)}
	c, _ := newTestCollector(testOptions(), cache.NewMemoryStore(), nse)

	_, err := c.Fetch(context.Background(), "INFY.NS", asOf)
	require.NoError(t, err)
	got, err := c.Fetch(context.Background(), "INFY.NS", asOf.AddDate(0, 0, -7))
	require.NoError(t, err)
	assert.Equal(t, model.FromPrimary, got.Provenance)
	assert.Equal(t, 2, nse.Calls())
}

func TestFetch_OpenBreakerSkipsToNextSource(t *testing.T) {
	opts := testOptions()
	opts.MaxRetries = 5
	opts.BreakerFailures = 2
	nse := &scripted{name: "nse", fails: -1}
	yahoo := &scripted{name: "yahoo", bars: dailyBars(30, asOf)}
	c, _ := newTestCollector(opts, nil, nse, yahoo)

	got, err := c.Fetch(context.Background(), "INFY.NS", asOf)
	require.NoError(t, err)
	assert.Equal(t, model.FromFallback, got.Provenance)
	assert.Equal(t, 2, nse.Calls())

	// Still open for the next symbol: the primary is not called at all.
	_, err = c.Fetch(context.Background(), "TCS.NS", asOf)
	require.NoError(t, err)
	assert.Equal(t, 2, nse.Calls())
}

func TestFetchAll_DefaultsGiveEverySymbolFullRetries(t *testing.T) {
	opts := DefaultOptions()
	opts.RequestsPerSecond = 1000
	nse := &scripted{name: "nse", fails: -1}
	yahoo := &scripted{name: "yahoo", bars: dailyBars(30, asOf)}
	c, _ := newTestCollector(opts, nil, nse, yahoo)

	symbols := []string{"A.NS", "B.NS", "C.NS"}
	results := c.FetchAll(context.Background(), symbols, asOf)
	require.Len(t, results, len(symbols))
	for i, r := range results {
		require.NoError(t, r.Err, r.Symbol)
		assert.Equal(t, symbols[i], r.Symbol)
		assert.Equal(t, model.FromFallback, r.Fetched.Provenance, r.Symbol)
		assert.Equal(t, opts.MaxRetries, nse.CallsFor(r.Symbol), r.Symbol)
	}
	assert.Equal(t, opts.MaxRetries*len(symbols), nse.Calls())
	assert.Equal(t, len(symbols), yahoo.Calls())
}

func TestFetch_CancelledContext(t *testing.T) {
	nse := &scripted{name: "nse", fails: -1}
	c, _ := newTestCollector(testOptions(), nil, nse)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Fetch(ctx, "INFY.NS", asOf)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, nse.Calls())
}

func TestFetchAll_KeepsOrder(t *testing.T) {
	symbols := []string{"A.NS", "B.NS", "C.NS", "D.NS", "E.NS", "F.NS", "G.NS", "H.NS"}
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			opts := testOptions()
			opts.Workers = workers
			nse := &scripted{name: "nse", bars: dailyBars(30, asOf)}
			c, _ := newTestCollector(opts, nil, nse)

			results := c.FetchAll(context.Background(), symbols, asOf)
			require.Len(t, results, len(symbols))
			for i, r := range results {
				assert.Equal(t, symbols[i], r.Symbol)
				assert.Equal(t, symbols[i], r.Fetched.Series.Symbol)
				assert.NoError(t, r.Err)
			}
			assert.Equal(t, len(symbols), nse.Calls())
		})
	}
}

func TestFetchAll_OneSymbolFailing(t *testing.T) {
	nse := &scripted{name: "nse", bars: dailyBars(30, asOf)}
	c, _ := newTestCollector(testOptions(), nil, &perSymbol{ok: nse, failing: "BAD.NS"})

	results := c.FetchAll(context.Background(), []string{"A.NS", "BAD.NS", "C.NS"}, asOf)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, ErrUnavailable)
	assert.NoError(t, results[2].Err)
}

func TestFetchAll_CancelledBetweenSymbols(t *testing.T) {
	nse := &scripted{name: "nse", bars: dailyBars(30, asOf)}
	c, _ := newTestCollector(testOptions(), nil, nse)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := c.FetchAll(ctx, []string{"A.NS", "B.NS"}, asOf)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
	assert.Zero(t, nse.Calls())
}

func TestMockFetcher_GeneratesWeekdays(t *testing.T) {
	m := &MockFetcher{Price: 100}
	s, err := m.Fetch(context.Background(), "X.NS", asOf.AddDate(0, 0, -13), asOf, model.Daily)
	require.NoError(t, err)
	assert.Equal(t, 10, s.Len())
	for _, b := range s.Bars {
		assert.NotEqual(t, time.Saturday, b.Date.Weekday())
		assert.NotEqual(t, time.Sunday, b.Date.Weekday())
	}
	assert.Equal(t, 1, m.Calls())
}

type perSymbol struct {
	ok      Fetcher
	failing string
}

func (p *perSymbol) Name() string { return "nse" }

func (p *perSymbol) Fetch(ctx context.Context, symbol string, start, end time.Time, tf model.Timeframe) (model.Series, error) {
	if symbol == p.failing {
		return model.Series{}, errors.New("not found")
	}
	return p.ok.Fetch(ctx, symbol, start, end, tf)
}
