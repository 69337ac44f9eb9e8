package collector

import (
	"time"

	"SwingScanner/internal/model"
)

// ResampleWeekly aggregates daily bars into ISO weeks: open of the first day,
// highest high, lowest low, close of the last day and summed volume. Each
// weekly bar is dated by its last trading day.
//
// The trailing week is dropped when the requested window reaches that week's
// Friday but the data stops earlier, since the source then failed to deliver
// the rest of the week. A week still in progress (end before Friday) is kept.
func ResampleWeekly(daily []model.Bar, end time.Time) []model.Bar {
	if len(daily) == 0 {
		return nil
	}
	var weekly []model.Bar
	var week model.Bar
	var weekKey int
	started := false

	for _, d := range daily {
		y, w := d.Date.ISOWeek()
		key := y*100 + w
		if !started || key != weekKey {
			if started {
				weekly = append(weekly, week)
			}
			week = d
			weekKey = key
			started = true
			continue
		}
		if d.High > week.High {
			week.High = d.High
		}
		if d.Low < week.Low {
			week.Low = d.Low
		}
		week.Close = d.Close
		week.Volume += d.Volume
		week.Date = d.Date
	}
	weekly = append(weekly, week)

	friday := fridayOf(week.Date)
	if !model.Day(end).Before(friday) && week.Date.Before(friday) {
		weekly = weekly[:len(weekly)-1]
	}
	return weekly
}

// fridayOf returns the Friday of t's ISO week.
func fridayOf(t time.Time) time.Time {
	offset := (int(time.Friday) - int(t.Weekday()) + 7) % 7
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		offset -= 7
	}
	return model.Day(t).AddDate(0, 0, offset)
}
