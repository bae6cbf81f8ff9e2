// Package markethours decides whether the scanner is inside its trading
// session. The default session is Monday to Saturday, 07:50 to 20:00
// America/Havana.
package markethours

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Session is a daily trading window on a set of weekdays.
type Session struct {
	Loc      *time.Location
	Open     int // minutes after midnight
	Close    int // minutes after midnight, exclusive
	Days     [7]bool
	holidays map[string]bool
}

// Default returns the Mon–Sat 07:50–20:00 Havana session. A missing tz
// database falls back to UTC-5.
func Default() *Session {
	s, err := Parse("America/Havana", "07:50-20:00", "1-6")
	if err != nil {
		s, _ = Parse("", "07:50-20:00", "1-6")
		s.Loc = time.FixedZone("CST", -5*3600)
	}
	return s
}

// Parse builds a session from a tz name ("" means UTC), an "HH:MM-HH:MM"
// window and a weekday spec such as "1-6" or "1,2,3,4,5" (0 is Sunday).
func Parse(tz, hours, days string) (*Session, error) {
	loc := time.UTC
	if tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("markethours: load %s: %w", tz, err)
		}
		loc = l
	}
	from, to, ok := strings.Cut(hours, "-")
	if !ok {
		return nil, fmt.Errorf("markethours: bad window %q", hours)
	}
	open, err := clock(from)
	if err != nil {
		return nil, err
	}
	cl, err := clock(to)
	if err != nil {
		return nil, err
	}
	if cl <= open {
		return nil, fmt.Errorf("markethours: window %q closes before it opens", hours)
	}
	s := &Session{Loc: loc, Open: open, Close: cl, holidays: map[string]bool{}}
	for _, part := range strings.Split(days, ",") {
		lo, hi, isRange := strings.Cut(strings.TrimSpace(part), "-")
		if !isRange {
			hi = lo
		}
		a, err1 := strconv.Atoi(lo)
		b, err2 := strconv.Atoi(hi)
		if err1 != nil || err2 != nil || a < 0 || b > 6 || a > b {
			return nil, fmt.Errorf("markethours: bad day spec %q", part)
		}
		for d := a; d <= b; d++ {
			s.Days[d] = true
		}
	}
	return s, nil
}

func clock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("markethours: bad time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// IsOpen returns true if t falls within the session on a trading day.
func (s *Session) IsOpen(t time.Time) bool {
	lt := t.In(s.Loc)
	if !s.IsTradingDay(lt) {
		return false
	}
	hm := lt.Hour()*60 + lt.Minute()
	return hm >= s.Open && hm < s.Close
}

// IsTradingDay returns true if t is a session weekday and not a holiday.
func (s *Session) IsTradingDay(t time.Time) bool {
	lt := t.In(s.Loc)
	return s.Days[lt.Weekday()] && !s.IsHoliday(lt)
}

// NextOpen returns the next session open at or after t. If t is inside the
// session, today's open (already passed) is skipped.
func (s *Session) NextOpen(t time.Time) time.Time {
	lt := t.In(s.Loc)
	for i := 0; i < 15; i++ {
		d := lt.AddDate(0, 0, i)
		open := time.Date(d.Year(), d.Month(), d.Day(), s.Open/60, s.Open%60, 0, 0, s.Loc)
		if s.IsTradingDay(open) && !open.Before(lt) {
			return open
		}
	}
	return time.Date(lt.Year(), lt.Month(), lt.Day()+1, s.Open/60, s.Open%60, 0, 0, s.Loc)
}

// TodayClose returns the session close on t's local day.
func (s *Session) TodayClose(t time.Time) time.Time {
	lt := t.In(s.Loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), s.Close/60, s.Close%60, 0, 0, s.Loc)
}

// TimeUntilOpen returns the wait until the next open, or 0 while open.
func (s *Session) TimeUntilOpen(t time.Time) time.Duration {
	if s.IsOpen(t) {
		return 0
	}
	return s.NextOpen(t).Sub(t)
}

// StatusString returns a human-readable session status.
func (s *Session) StatusString(t time.Time) string {
	if s.IsOpen(t) {
		return fmt.Sprintf("Session open, closes in %s", fmtDur(s.TodayClose(t).Sub(t)))
	}
	next := s.NextOpen(t)
	lt := next.In(s.Loc)
	return fmt.Sprintf("Session closed, opens %s %s (%s)",
		lt.Weekday().String()[:3], lt.Format("15:04"), fmtDur(next.Sub(t)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
