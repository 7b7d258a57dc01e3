package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greyfinance/limitguard/internal/domain"
)

func TestPeriodWindow(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	reference := time.Date(2026, 3, 14, 15, 30, 45, 123456789, loc)

	cases := []struct {
		name      string
		period    domain.Period
		wantStart time.Time
	}{
		{
			name:      "one_hour",
			period:    domain.PeriodOneHour,
			wantStart: reference.Add(-time.Hour),
		},
		{
			name:      "twenty_four_hours",
			period:    domain.PeriodTwentyFourHours,
			wantStart: reference.Add(-24 * time.Hour),
		},
		{
			name:      "beginning_of_hour",
			period:    domain.PeriodBeginningOfHour,
			wantStart: time.Date(2026, 3, 14, 15, 0, 0, 0, loc),
		},
		{
			name:      "beginning_of_day",
			period:    domain.PeriodBeginningOfDay,
			wantStart: time.Date(2026, 3, 14, 0, 0, 0, 0, loc),
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			window, err := PeriodWindow(tc.period, reference)
			require.NoError(t, err)
			assert.True(t, window.Start.Equal(tc.wantStart), "start %s != %s", window.Start, tc.wantStart)
			assert.True(t, window.End.Equal(reference))
		})
	}
}

func TestPeriodWindowCalendarTruncationKeepsLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	reference := time.Date(2026, 7, 1, 0, 0, 0, 1, loc)

	window, err := PeriodWindow(domain.PeriodBeginningOfDay, reference)
	require.NoError(t, err)
	assert.Equal(t, loc, window.Start.Location())
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, loc), window.Start)
}

func TestPeriodWindowUnknownPeriod(t *testing.T) {
	_, err := PeriodWindow(domain.Period("FORTNIGHT"), time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLimitConfig)
}
