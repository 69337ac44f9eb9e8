package collector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SwingScanner/internal/model"
)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func weekdays(from, to time.Time) []model.Bar {
	var bars []model.Bar
	i := 0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		p := 100 + float64(i)
		bars = append(bars, model.Bar{Date: d, Open: p, High: p + 2, Low: p - 2, Close: p + 1, Volume: 10})
		i++
	}
	return bars
}

func TestResampleWeekly_Aggregates(t *testing.T) {
	// Mon 3 Jun .. Fri 14 Jun 2024: two full weeks
	daily := weekdays(day(2024, 6, 3), day(2024, 6, 14))
	weekly := ResampleWeekly(daily, day(2024, 6, 14))
	require.Len(t, weekly, 2)

	w := weekly[0]
	assert.Equal(t, day(2024, 6, 7), w.Date)
	assert.Equal(t, 100.0, w.Open)
	assert.Equal(t, 106.0, w.High)
	assert.Equal(t, 98.0, w.Low)
	assert.Equal(t, 105.0, w.Close)
	assert.Equal(t, 50.0, w.Volume)
	assert.Equal(t, day(2024, 6, 14), weekly[1].Date)
}

func TestResampleWeekly_KeepsWeekInProgress(t *testing.T) {
	daily := weekdays(day(2024, 6, 3), day(2024, 6, 12))
	weekly := ResampleWeekly(daily, day(2024, 6, 12))
	require.Len(t, weekly, 2)
	assert.Equal(t, day(2024, 6, 12), weekly[1].Date)
	assert.Equal(t, 30.0, weekly[1].Volume)
}

func TestResampleWeekly_DropsTruncatedTrailingWeek(t *testing.T) {
	// window reaches Saturday but data stops on Wednesday
	daily := weekdays(day(2024, 6, 3), day(2024, 6, 12))
	weekly := ResampleWeekly(daily, day(2024, 6, 15))
	require.Len(t, weekly, 1)
	assert.Equal(t, day(2024, 6, 7), weekly[0].Date)
}

func TestResampleWeekly_YearBoundary(t *testing.T) {
	// Mon 30 Dec 2024 and Thu 2 Jan 2025 share ISO week 2025-W01
	daily := weekdays(day(2024, 12, 30), day(2025, 1, 3))
	weekly := ResampleWeekly(daily, day(2025, 1, 3))
	require.Len(t, weekly, 1)
	assert.Equal(t, 50.0, weekly[0].Volume)
}

func TestResampleWeekly_Empty(t *testing.T) {
	assert.Nil(t, ResampleWeekly(nil, day(2024, 6, 14)))
}

func TestFridayOf(t *testing.T) {
	assert.Equal(t, day(2024, 6, 14), fridayOf(day(2024, 6, 10)))
	assert.Equal(t, day(2024, 6, 14), fridayOf(day(2024, 6, 14)))
	assert.Equal(t, day(2024, 6, 14), fridayOf(day(2024, 6, 16)))
}
