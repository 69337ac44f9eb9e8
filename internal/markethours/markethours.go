// Package markethours gates live scans to the NSE cash session.
package markethours

import (
	"time"

	"github.com/rs/zerolog/log"
)

// IST is India Standard Time. A fixed zone avoids depending on tzdata.
var IST = time.FixedZone("IST", 5*3600+30*60)

// Session is a daily trading window in IST, Monday to Friday.
type Session struct {
	OpenHour, OpenMinute   int
	CloseHour, CloseMinute int
}

// NSE is the regular equity session, 09:15 to 15:30.
var NSE = Session{OpenHour: 9, OpenMinute: 15, CloseHour: 15, CloseMinute: 30}

// Open reports whether t falls inside the session, bounds included.
func (s Session) Open(t time.Time) bool {
	local := t.In(IST)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		log.Info().Str("day", local.Weekday().String()).Msg("outside market days")
		return false
	}
	minutes := local.Hour()*60 + local.Minute()
	open := s.OpenHour*60 + s.OpenMinute
	closing := s.CloseHour*60 + s.CloseMinute
	if minutes < open || minutes > closing || (minutes == closing && local.Second() > 0) {
		log.Info().Str("ist", local.Format("15:04:05")).Msg("outside market hours")
		return false
	}
	return true
}

// IsOpen reports whether the NSE session is open now.
func IsOpen() bool { return NSE.Open(time.Now()) }
