package markethours

import (
	"fmt"
	"time"
)

// AddHolidays marks dates ("2006-01-02", session-local) as closed.
func (s *Session) AddHolidays(dates ...string) error {
	if s.holidays == nil {
		s.holidays = map[string]bool{}
	}
	for _, d := range dates {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return fmt.Errorf("markethours: bad holiday %q: %w", d, err)
		}
		s.holidays[d] = true
	}
	return nil
}

// IsHoliday returns true if t's session-local date was added as a holiday.
func (s *Session) IsHoliday(t time.Time) bool {
	return s.holidays[t.In(s.Loc).Format("2006-01-02")]
}
