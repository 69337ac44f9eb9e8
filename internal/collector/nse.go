package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"SwingScanner/internal/model"
)

const nseDateLayout = "02-01-2006"

// NSEFetcher reads daily equity history from the NSE website API. The API
// needs session cookies, so the home page is visited before the first call
// and again after the session is rejected.
type NSEFetcher struct {
	BaseURL   string
	Client    *http.Client
	ChunkDays int

	mu     sync.Mutex
	primed bool
}

// NewNSEFetcher creates a fetcher with its own cookie jar.
func NewNSEFetcher(baseURL, proxyURL string, timeout time.Duration) *NSEFetcher {
	return &NSEFetcher{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Client:    newHTTPClient(proxyURL, timeout, true),
		ChunkDays: 100,
	}
}

func (f *NSEFetcher) Name() string { return "nse" }

type nseRecord struct {
	Timestamp string  `json:"CH_TIMESTAMP"`
	Open      float64 `json:"CH_OPENING_PRICE"`
	High      float64 `json:"CH_TRADE_HIGH_PRICE"`
	Low       float64 `json:"CH_TRADE_LOW_PRICE"`
	Close     float64 `json:"CH_CLOSING_PRICE"`
	Volume    float64 `json:"CH_TOT_TRADED_QTY"`
}

type nseResponse struct {
	Data []nseRecord `json:"data"`
}

// nseSymbol strips exchange suffixes: RELIANCE.NS → RELIANCE.
func nseSymbol(symbol string) string {
	s := strings.TrimSuffix(symbol, ".NS")
	return strings.TrimSuffix(s, ".BO")
}

// Fetch downloads daily bars in windows of ChunkDays and derives weekly bars
// when asked.
func (f *NSEFetcher) Fetch(ctx context.Context, symbol string, start, end time.Time, tf model.Timeframe) (model.Series, error) {
	if err := f.prime(ctx); err != nil {
		return model.Series{}, err
	}

	chunk := f.ChunkDays
	if chunk <= 0 {
		chunk = 100
	}
	byDate := map[time.Time]model.Bar{}
	from := model.Day(start)
	last := model.Day(end)
	for !from.After(last) {
		to := from.AddDate(0, 0, chunk-1)
		if to.After(last) {
			to = last
		}
		bars, err := f.fetchWindow(ctx, nseSymbol(symbol), from, to)
		if err != nil {
			return model.Series{}, err
		}
		for _, b := range bars {
			byDate[b.Date] = b
		}
		from = to.AddDate(0, 0, 1)
	}

	daily := make([]model.Bar, 0, len(byDate))
	for _, b := range byDate {
		daily = append(daily, b)
	}
	sort.Slice(daily, func(i, j int) bool { return daily[i].Date.Before(daily[j].Date) })
	log.Debug().Str("symbol", symbol).Int("bars", len(daily)).Msg("nse fetched")
	return finish(symbol, daily, start, end, tf)
}

func (f *NSEFetcher) fetchWindow(ctx context.Context, symbol string, from, to time.Time) ([]model.Bar, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("series", `["EQ"]`)
	q.Set("from", from.Format(nseDateLayout))
	q.Set("to", to.Format(nseDateLayout))
	endpoint := f.BaseURL + "/api/historical/cm/equity?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	setBrowserHeaders(req)
	req.Header.Set("Referer", f.BaseURL+"/get-quotes/equity?symbol="+url.QueryEscape(symbol))

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nse fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("nse read body: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		f.mu.Lock()
		f.primed = false
		f.mu.Unlock()
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nse: status %d", resp.StatusCode)
	}

	var parsed nseResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("nse decode: %w", err)
	}
	bars := make([]model.Bar, 0, len(parsed.Data))
	for _, r := range parsed.Data {
		d, err := time.Parse(model.DateLayout, r.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("nse decode date %q: %w", r.Timestamp, err)
		}
		bars = append(bars, model.Bar{
			Date:   model.Day(d),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}
	return bars, nil
}

// prime visits the home page so the jar holds the session cookies.
func (f *NSEFetcher) prime(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.primed {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.BaseURL+"/", nil)
	if err != nil {
		return err
	}
	setBrowserHeaders(req)
	resp, err := f.Client.Do(req)
	if err != nil {
		return fmt.Errorf("nse session: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("nse session: status %d", resp.StatusCode)
	}
	f.primed = true
	return nil
}

func setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
}
