package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"SwingScanner/internal/model"
)

var (
	// ErrUnavailable means every source failed for a symbol.
	ErrUnavailable = errors.New("market data unavailable")
	// ErrEmptySeries means a source answered without any usable bars.
	ErrEmptySeries = errors.New("empty series")
)

// Fetcher is one source of historical bars. Start and end are inclusive dates.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string, start, end time.Time, tf model.Timeframe) (model.Series, error)
	Name() string
}

// newHTTPClient builds a client with an optional proxy and cookie jar.
func newHTTPClient(proxyURL string, timeout time.Duration, withJar bool) *http.Client {
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	client := &http.Client{Timeout: timeout, Transport: transport}
	if withJar {
		jar, _ := cookiejar.New(nil)
		client.Jar = jar
	}
	return client
}

// clip keeps bars dated within [start, end].
func clip(bars []model.Bar, start, end time.Time) []model.Bar {
	start, end = model.Day(start), model.Day(end)
	out := bars[:0:0]
	for _, b := range bars {
		if b.Date.Before(start) || b.Date.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// finish clips, resamples and validates a fetched daily series.
func finish(symbol string, daily []model.Bar, start, end time.Time, tf model.Timeframe) (model.Series, error) {
	bars := clip(daily, start, end)
	if tf == model.Weekly {
		bars = ResampleWeekly(bars, end)
	}
	if len(bars) == 0 {
		return model.Series{}, ErrEmptySeries
	}
	s := model.Series{Symbol: symbol, Timeframe: tf, Bars: bars}
	if err := s.Validate(); err != nil {
		return model.Series{}, err
	}
	return s, nil
}
