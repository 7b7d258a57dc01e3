package engine

import (
	"fmt"
	"time"

	"github.com/greyfinance/limitguard/internal/domain"
)

// Window is the time range a periodic limit aggregates over. Both bounds
// are inclusive; End is always the reference timestamp.
type Window struct {
	Start time.Time
	End   time.Time
}

// PeriodWindow converts a period kind and a reference timestamp (the
// transaction's creation time) into the aggregate window. Calendar periods
// truncate in the reference's location.
func PeriodWindow(period domain.Period, reference time.Time) (Window, error) {
	switch period {
	case domain.PeriodOneHour:
		return Window{Start: reference.Add(-time.Hour), End: reference}, nil
	case domain.PeriodTwentyFourHours:
		return Window{Start: reference.Add(-24 * time.Hour), End: reference}, nil
	case domain.PeriodBeginningOfHour:
		y, m, d := reference.Date()
		return Window{
			Start: time.Date(y, m, d, reference.Hour(), 0, 0, 0, reference.Location()),
			End:   reference,
		}, nil
	case domain.PeriodBeginningOfDay:
		y, m, d := reference.Date()
		return Window{
			Start: time.Date(y, m, d, 0, 0, 0, 0, reference.Location()),
			End:   reference,
		}, nil
	default:
		return Window{}, fmt.Errorf("unknown period %q: %w", period, domain.ErrLimitConfig)
	}
}
