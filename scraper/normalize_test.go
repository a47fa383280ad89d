package scraper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tajaa/matcha-recruit-sub002/models"
)

func TestJurisdictionKey(t *testing.T) {
	tests := []struct {
		name, jurisdiction, state, level, want string
	}{
		{"city", "San Francisco", "CA", models.LevelCity, "san_francisco_ca"},
		{"county keeps suffix", "Los Angeles County", "CA", models.LevelCounty, "los_angeles_county_ca"},
		{"state has no suffix", "California", "CA", models.LevelState, "california"},
		{"city suffix stripped", "Berkeley city", "CA", models.LevelCity, "berkeley_ca"},
		{"comma city suffix stripped", "Flagstaff, City", "AZ", models.LevelCity, "flagstaff_az"},
		{"punctuation collapsed", "St. Paul", "MN", models.LevelCity, "st_paul_mn"},
		{"whitespace trimmed", "  Seattle ", "wa", models.LevelCity, "seattle_wa"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, JurisdictionKey(tt.jurisdiction, tt.state, tt.level))
		})
	}
}

func TestNumericValue(t *testing.T) {
	v := NumericValue("$16.50")
	require.NotNil(t, v)
	assert.InDelta(t, 16.50, *v, 0.0001)

	v = NumericValue("$15 per hour")
	require.NotNil(t, v)
	assert.InDelta(t, 15.0, *v, 0.0001)

	v = NumericValue("7.25")
	require.NotNil(t, v)
	assert.InDelta(t, 7.25, *v, 0.0001)

	assert.Nil(t, NumericValue("N/A"))
	assert.Nil(t, NumericValue("No minimum wage law"))
	assert.Nil(t, NumericValue("varies"))
	assert.Nil(t, NumericValue(""))
}

func TestJurisdictionLevel(t *testing.T) {
	assert.Equal(t, models.LevelState, JurisdictionLevel("Los Angeles County", models.CoverageState))
	assert.Equal(t, models.LevelCounty, JurisdictionLevel("Los Angeles County", models.CoverageCityCounty))
	assert.Equal(t, models.LevelCounty, JurisdictionLevel("Jefferson Parish", models.CoverageCityCounty))
	assert.Equal(t, models.LevelCity, JurisdictionLevel("Oakland", models.CoverageCityCounty))
}

func TestParseDate(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		in   string
		want *time.Time
	}{
		{"January 1, 2024", ptr(day(2024, time.January, 1))},
		{"Jan 1, 2024", ptr(day(2024, time.January, 1))},
		{"7/1/2024", ptr(day(2024, time.July, 1))},
		{"2024-07-01", ptr(day(2024, time.July, 1))},
		{"July 2025", ptr(day(2025, time.July, 1))},
		{"effective sometime in 2025", ptr(day(2025, time.January, 1))},
		{"Sept. 30th 2025", ptr(day(2025, time.September, 1))},
		{"Sept 30, 2025", ptr(day(2025, time.September, 30))},
		{"Sept. 30, 2025", ptr(day(2025, time.September, 30))},
		{"Jan. 15, 2026", ptr(day(2026, time.January, 15))},
		{"sep 5, 2025", ptr(day(2025, time.September, 5))},
		{"TBD", nil},
		{"n/a", nil},
		{"-", nil},
		{"", nil},
		{"someday", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseDate(tt.in)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "got %s", got)
		})
	}
}

func TestSplitFutureChanges(t *testing.T) {
	value, date := SplitFutureChanges("$19.18 effective July 1, 2026")
	assert.Equal(t, "$19.18", value)
	require.NotNil(t, date)
	assert.Equal(t, "2026-07-01", formatDate(date))

	value, date = SplitFutureChanges("Increases to $18.00 on 1/1/2026")
	assert.Equal(t, "$18.00", value)
	require.NotNil(t, date)
	assert.Equal(t, "2026-01-01", formatDate(date))

	value, date = SplitFutureChanges("$17.50 (Jan. 1, 2026)")
	assert.Equal(t, "$17.50", value)
	require.NotNil(t, date)
	assert.Equal(t, "2026-01-01", formatDate(date))

	value, date = SplitFutureChanges("$21.00 by 07/01/2027")
	assert.Equal(t, "$21.00", value)
	require.NotNil(t, date)
	assert.Equal(t, "2027-07-01", formatDate(date))

	value, date = SplitFutureChanges("CPI adjustment pending")
	assert.Empty(t, value)
	assert.Nil(t, date)

	value, date = SplitFutureChanges("")
	assert.Empty(t, value)
	assert.Nil(t, date)
}

func TestValidateRequirement(t *testing.T) {
	now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	wage := func(v float64) *float64 { return &v }

	ok := &models.ParsedRequirement{NumericValue: wage(16.50), EffectiveDate: ptr(now.AddDate(-1, 0, 0))}
	assert.NoError(t, ValidateRequirement(ok, now))

	assert.NoError(t, ValidateRequirement(&models.ParsedRequirement{}, now), "absent values are not checked")

	assert.Error(t, ValidateRequirement(&models.ParsedRequirement{NumericValue: wage(-1)}, now))
	assert.Error(t, ValidateRequirement(&models.ParsedRequirement{NumericValue: wage(1500)}, now))
	assert.Error(t, ValidateRequirement(&models.ParsedRequirement{EffectiveDate: ptr(now.AddDate(-31, 0, 0))}, now))
	assert.Error(t, ValidateRequirement(&models.ParsedRequirement{EffectiveDate: ptr(now.AddDate(6, 0, 0))}, now))
	assert.Error(t, ValidateRequirement(&models.ParsedRequirement{NextScheduledDate: ptr(now.AddDate(10, 0, 0))}, now))
	assert.Error(t, ValidateRequirement(&models.ParsedRequirement{NextScheduledValue: "$250.00"}, now))
}

func ptr(t time.Time) *time.Time { return &t }
