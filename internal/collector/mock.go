package collector

import (
	"context"
	"sync"
	"time"

	"SwingScanner/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// With no Bars it generates a gentle uptrend of weekday bars around Price.
type MockFetcher struct {
	Price float64
	Bars  []model.Bar
	Err   error

	mu    sync.Mutex
	calls int
}

func (m *MockFetcher) Name() string { return "mock" }

// Calls reports how many times Fetch ran.
func (m *MockFetcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockFetcher) Fetch(_ context.Context, symbol string, start, end time.Time, tf model.Timeframe) (model.Series, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.Err != nil {
		return model.Series{}, m.Err
	}
	bars := m.Bars
	if bars == nil {
		bars = generateMockBars(m.Price, start, end)
	}
	return finish(symbol, bars, start, end, tf)
}

func generateMockBars(basePrice float64, start, end time.Time) []model.Bar {
	var days []time.Time
	for d := model.Day(start); !d.After(model.Day(end)); d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			days = append(days, d)
		}
	}
	count := len(days)
	bars := make([]model.Bar, count)
	for i, d := range days {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.Bar{
			Date:   d,
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}
