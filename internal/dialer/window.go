package dialer

import (
	"fmt"
	"strings"
	"time"

	"github.com/acme/predictive-dialer/internal/config"
	apperrors "github.com/acme/predictive-dialer/pkg/errors"
)

// callingWindow is a weekly interval in minutes of the day.
type callingWindow struct {
	day   time.Weekday
	start int
	end   int
}

// CallingHours restricts dialing to weekly windows in one time zone. A nil
// or empty value allows dialing at any time.
type CallingHours struct {
	loc     *time.Location
	windows []callingWindow
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ParseCallingHours builds CallingHours from configuration. Day "daily"
// or "*" expands to every day of the week.
func ParseCallingHours(tz string, windows []config.CallingWindow) (*CallingHours, error) {
	if len(windows) == 0 {
		return nil, nil
	}
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: calling hours: time zone %q: %v", apperrors.ErrValidation, tz, err)
	}

	hours := &CallingHours{loc: loc}
	for _, w := range windows {
		start, err := parseClock(w.Start)
		if err != nil {
			return nil, err
		}
		end, err := parseClock(w.End)
		if err != nil {
			return nil, err
		}

		day := strings.ToLower(strings.TrimSpace(w.Day))
		if day == "daily" || day == "*" {
			for d := time.Sunday; d <= time.Saturday; d++ {
				hours.windows = append(hours.windows, callingWindow{day: d, start: start, end: end})
			}
			continue
		}
		wd, ok := weekdays[day]
		if !ok {
			return nil, fmt.Errorf("%w: calling hours: unknown day %q", apperrors.ErrValidation, w.Day)
		}
		hours.windows = append(hours.windows, callingWindow{day: wd, start: start, end: end})
	}
	return hours, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: calling hours: bad time %q", apperrors.ErrValidation, s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Allows reports whether t falls inside any window.
func (h *CallingHours) Allows(t time.Time) bool {
	if h == nil || len(h.windows) == 0 {
		return true
	}

	local := t.In(h.loc)
	minuteOfDay := local.Hour()*60 + local.Minute()
	weekday := local.Weekday()

	for _, w := range h.windows {
		if w.end <= w.start {
			// spans midnight
			if w.day == weekday && minuteOfDay >= w.start {
				return true
			}
			if (w.day+1)%7 == weekday && minuteOfDay < w.end {
				return true
			}
			continue
		}
		if w.day == weekday && minuteOfDay >= w.start && minuteOfDay < w.end {
			return true
		}
	}
	return false
}
