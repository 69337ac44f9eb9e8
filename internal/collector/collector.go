package collector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"SwingScanner/internal/cache"
	"SwingScanner/internal/metrics"
	"SwingScanner/internal/model"
)

// Options controls acquisition. Zero values are replaced by DefaultOptions.
type Options struct {
	Timeframe         model.Timeframe `yaml:"timeframe" validate:"omitempty,oneof=1d 1wk"`
	LookbackDays      int             `yaml:"lookback_days" validate:"gte=0"`
	TTLDaily          time.Duration   `yaml:"ttl_daily" validate:"gte=0"`
	TTLWeekly         time.Duration   `yaml:"ttl_weekly" validate:"gte=0"`
	MaxRetries        int             `yaml:"max_retries" validate:"gte=0"`
	RetryDelay        time.Duration   `yaml:"retry_delay" validate:"gte=0"`
	RetryBackoff      float64         `yaml:"retry_backoff" validate:"gte=0"`
	RequestsPerSecond float64         `yaml:"requests_per_second" validate:"gte=0"`
	BreakerFailures   uint32          `yaml:"breaker_failures"`
	BreakerCooldown   time.Duration   `yaml:"breaker_cooldown" validate:"gte=0"`
	Workers           int             `yaml:"workers" validate:"gte=0"`
}

// DefaultOptions mirrors the scanner's historical constants. The breaker is
// off unless BreakerFailures is set.
func DefaultOptions() Options {
	return Options{
		Timeframe:         model.Daily,
		LookbackDays:      365,
		TTLDaily:          24 * time.Hour,
		TTLWeekly:         7 * 24 * time.Hour,
		MaxRetries:        3,
		RetryDelay:        2 * time.Second,
		RetryBackoff:      2,
		RequestsPerSecond: 2,
		BreakerFailures:   0,
		BreakerCooldown:   time.Minute,
		Workers:           1,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Timeframe == "" {
		o.Timeframe = d.Timeframe
	}
	if o.LookbackDays == 0 {
		o.LookbackDays = d.LookbackDays
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = d.MaxRetries
	}
	if o.RetryBackoff == 0 {
		o.RetryBackoff = d.RetryBackoff
	}
	if o.RequestsPerSecond == 0 {
		o.RequestsPerSecond = d.RequestsPerSecond
	}
	if o.BreakerCooldown == 0 {
		o.BreakerCooldown = d.BreakerCooldown
	}
	if o.Workers == 0 {
		o.Workers = d.Workers
	}
	return o
}

// TTL returns the cache freshness window for a timeframe.
func (o Options) TTL(tf model.Timeframe) time.Duration {
	if tf == model.Weekly {
		return o.TTLWeekly
	}
	return o.TTLDaily
}

// Result is the outcome of one symbol in a batch.
type Result struct {
	Symbol  string
	Fetched model.Fetched
	Err     error
}

// Collector acquires series: cache first, then each source in priority order
// with retries, a shared rate limit and a per-source circuit breaker.
type Collector struct {
	opts     Options
	sources  []Fetcher
	cache    cache.Store
	limiter  *rate.Limiter
	breakers map[string]*gobreaker.CircuitBreaker
	metrics  *metrics.Registry

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New creates a Collector. The first source is the primary; the rest are
// fallbacks tried in order. A nil store disables caching.
func New(opts Options, store cache.Store, sources ...Fetcher) *Collector {
	opts = opts.withDefaults()
	if store == nil {
		store = cache.NewMemoryStore()
		opts.TTLDaily, opts.TTLWeekly = 0, 0
	}
	c := &Collector{
		opts:     opts,
		sources:  sources,
		cache:    store,
		limiter:  rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		breakers: make(map[string]*gobreaker.CircuitBreaker, len(sources)),
		sleep:    sleepCtx,
		now:      time.Now,
	}
	if opts.BreakerFailures > 0 {
		for _, src := range sources {
			c.breakers[src.Name()] = newBreaker(src.Name(), opts.BreakerFailures, opts.BreakerCooldown)
		}
	}
	return c
}

// WithMetrics attaches a metrics registry.
func (c *Collector) WithMetrics(m *metrics.Registry) *Collector {
	c.metrics = m
	return c
}

// Options returns the effective options.
func (c *Collector) Options() Options { return c.opts }

func newBreaker(name string, failures uint32, cooldown time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("source", name).Str("from", from.String()).Str("to", to.String()).Msg("breaker state change")
		},
	})
}

// Fetch returns the series of symbol ending at asOf. A zero asOf means today.
func (c *Collector) Fetch(ctx context.Context, symbol string, asOf time.Time) (model.Fetched, error) {
	if asOf.IsZero() {
		asOf = c.now()
	}
	end := model.Day(asOf)
	start := end.AddDate(0, 0, -c.opts.LookbackDays)
	tf := c.opts.Timeframe
	key := cache.Key{Symbol: symbol, Timeframe: tf, AsOf: end}

	if entry, ok := c.cache.Get(ctx, key, c.opts.TTL(tf)); ok {
		c.metrics.CacheLookup(true)
		log.Debug().Str("symbol", symbol).Msg("cache hit")
		return model.Fetched{Series: entry.Series(), Provenance: model.FromCache, Source: "cache"}, nil
	}
	c.metrics.CacheLookup(false)

	var lastErr error
	for i, src := range c.sources {
		series, err := c.fetchSource(ctx, src, symbol, start, end, tf)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return model.Fetched{}, ctx.Err()
			}
			log.Warn().Err(err).Str("symbol", symbol).Str("source", src.Name()).Msg("source failed")
			continue
		}

		c.cache.Put(ctx, cache.Entry{Key: key, FetchedAt: c.now(), Bars: series.Bars})
		prov := model.FromPrimary
		if i > 0 {
			prov = model.FromFallback
		}
		log.Info().Str("symbol", symbol).Str("source", src.Name()).Int("bars", series.Len()).Msg("fetched series")
		return model.Fetched{Series: series, Provenance: prov, Source: src.Name()}, nil
	}

	c.metrics.SymbolUnavailable()
	if lastErr == nil {
		return model.Fetched{}, fmt.Errorf("%s: %w: no sources configured", symbol, ErrUnavailable)
	}
	return model.Fetched{}, fmt.Errorf("%s: %w: %w", symbol, ErrUnavailable, lastErr)
}

// fetchSource runs the retry loop for one source. Delays grow as
// RetryDelay × RetryBackoff^attempt and are only slept between attempts.
func (c *Collector) fetchSource(ctx context.Context, src Fetcher, symbol string, start, end time.Time, tf model.Timeframe) (model.Series, error) {
	delays := c.retrySchedule()
	var lastErr error
	for attempt := 0; attempt < c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, delays.NextBackOff()); err != nil {
				return model.Series{}, err
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return model.Series{}, err
		}

		series, err := c.attempt(ctx, src, symbol, start, end, tf)
		c.metrics.FetchAttempt(src.Name(), err == nil)
		if err == nil {
			return series, nil
		}
		lastErr = err
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return model.Series{}, err
		}
		if ctx.Err() != nil {
			return model.Series{}, ctx.Err()
		}
		log.Debug().Err(err).Str("symbol", symbol).Str("source", src.Name()).Int("attempt", attempt+1).Msg("fetch attempt failed")
	}
	return model.Series{}, lastErr
}

func (c *Collector) attempt(ctx context.Context, src Fetcher, symbol string, start, end time.Time, tf model.Timeframe) (model.Series, error) {
	call := func() (model.Series, error) {
		s, err := src.Fetch(ctx, symbol, start, end, tf)
		if err != nil {
			return model.Series{}, err
		}
		if s.Len() == 0 {
			return model.Series{}, ErrEmptySeries
		}
		if err := s.Validate(); err != nil {
			return model.Series{}, fmt.Errorf("%s: invalid series: %w", src.Name(), err)
		}
		return s, nil
	}

	cb, ok := c.breakers[src.Name()]
	if !ok {
		return call()
	}
	out, err := cb.Execute(func() (interface{}, error) { return call() })
	if err != nil {
		return model.Series{}, err
	}
	return out.(model.Series), nil
}

func (c *Collector) retrySchedule() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.RetryDelay
	b.Multiplier = c.opts.RetryBackoff
	b.RandomizationFactor = 0
	b.MaxInterval = time.Duration(math.MaxInt64)
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// FetchAll fetches every symbol and returns results in input order. With
// Workers > 1 symbols are fetched concurrently; the limiter stays shared.
func (c *Collector) FetchAll(ctx context.Context, symbols []string, asOf time.Time) []Result {
	results := make([]Result, len(symbols))
	one := func(i int) {
		sym := symbols[i]
		results[i].Symbol = sym
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			return
		}
		results[i].Fetched, results[i].Err = c.Fetch(ctx, sym, asOf)
	}

	if c.opts.Workers <= 1 {
		for i := range symbols {
			one(i)
		}
		return results
	}

	sem := make(chan struct{}, c.opts.Workers)
	var wg sync.WaitGroup
	for i := range symbols {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			one(i)
		}(i)
	}
	wg.Wait()
	return results
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
