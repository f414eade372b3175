package core

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePeriod(t *testing.T) {
	now := time.Date(2025, 3, 30, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		token string
		span  time.Duration
	}{
		{PeriodMonth, 30 * 24 * time.Hour},
		{PeriodThreeMonths, 90 * 24 * time.Hour},
		{PeriodSixMonths, 180 * 24 * time.Hour},
		{PeriodYear, 365 * 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			start, end, err := ResolvePeriod(tt.token, now)
			require.NoError(t, err)
			assert.Equal(t, now, end)
			assert.Equal(t, tt.span, end.Sub(start))
		})
	}
}

func TestResolvePeriodAllPrecedesEverything(t *testing.T) {
	now := time.Date(2025, 3, 30, 12, 0, 0, 0, time.UTC)
	start, end, err := ResolvePeriod(PeriodAll, now)
	require.NoError(t, err)
	assert.Equal(t, now, end)
	assert.True(t, start.IsZero())
	assert.True(t, start.Before(time.Date(1, 1, 1, 0, 0, 1, 0, time.UTC)))
	assert.True(t, start.Before(time.Unix(0, 0)))
}

func TestResolvePeriodIsDeterministic(t *testing.T) {
	now := time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC)
	for _, token := range PeriodTokens() {
		s1, e1, err1 := ResolvePeriod(token, now)
		s2, e2, err2 := ResolvePeriod(token, now)
		require.NoError(t, err1)
		require.NoError(t, err2)
		assert.Equal(t, s1, s2, token)
		assert.Equal(t, e1, e2, token)
	}
}

func TestResolvePeriodRejectsUnknownToken(t *testing.T) {
	for _, token := range []string{"", "week", "Month", "12months"} {
		_, _, err := ResolvePeriod(token, time.Now())
		var ipe *InvalidPeriodError
		require.True(t, errors.As(err, &ipe), "token %q", token)
		assert.Equal(t, token, ipe.Token)
		assert.Equal(t, KindValidation, KindOf(err))
	}
}
