package model

import (
	"fmt"
	"strings"
	"time"
)

// Timeframe is the bar interval of a series.
type Timeframe string

const (
	Daily  Timeframe = "1d"
	Weekly Timeframe = "1wk"
)

// ParseTimeframe accepts the canonical names plus a few common aliases.
func ParseTimeframe(s string) (Timeframe, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1d", "d", "daily", "day":
		return Daily, nil
	case "1wk", "1w", "w", "weekly", "week":
		return Weekly, nil
	}
	return "", fmt.Errorf("unknown timeframe %q", s)
}

// Provenance records which source produced a series.
type Provenance string

const (
	FromCache    Provenance = "cache"
	FromPrimary  Provenance = "primary"
	FromFallback Provenance = "fallback"
)

// Bar represents a single OHLCV candle. Date is the trading day at UTC midnight.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Series is an ordered, date-indexed run of bars for one symbol.
type Series struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
	Bars      []Bar     `json:"bars"`
}

// Len returns the number of bars.
func (s Series) Len() int { return len(s.Bars) }

// Last returns the latest bar. The series must not be empty.
func (s Series) Last() Bar { return s.Bars[len(s.Bars)-1] }

// Tail returns a copy of the last n bars.
func (s Series) Tail(n int) []Bar {
	if n > len(s.Bars) {
		n = len(s.Bars)
	}
	out := make([]Bar, n)
	copy(out, s.Bars[len(s.Bars)-n:])
	return out
}

// Validate checks the invariants every stage relies on: non-negative fields
// and strictly increasing dates.
func (s Series) Validate() error {
	for i, b := range s.Bars {
		if b.Open < 0 || b.High < 0 || b.Low < 0 || b.Close < 0 || b.Volume < 0 {
			return fmt.Errorf("bar %d (%s): negative field", i, b.Date.Format(DateLayout))
		}
		if i > 0 && !b.Date.After(s.Bars[i-1].Date) {
			return fmt.Errorf("bar %d (%s): date not after previous bar", i, b.Date.Format(DateLayout))
		}
	}
	return nil
}

// Fetched is an acquired series tagged with where it came from.
type Fetched struct {
	Series     Series     `json:"series"`
	Provenance Provenance `json:"provenance"`
	Source     string     `json:"source"`
}

// DateLayout is the layout used for as-of dates everywhere.
const DateLayout = "2006-01-02"

// Day truncates t to its calendar date at UTC midnight, keeping the wall-clock
// date of t's own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
