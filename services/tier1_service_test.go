package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tajaa/matcha-recruit-sub002/models"
	"github.com/tajaa/matcha-recruit-sub002/scraper"
)

func tier1Row(name, level, state, category, rateType string) models.Tier1Row {
	v := 16.5
	eff := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	row := models.Tier1Row{SourceName: "Wage Feed", SourceKey: "feed"}
	row.SourceID = uuid.NewSHA1(uuid.NameSpaceURL, []byte("feed"))
	row.JurisdictionKey = scraper.JurisdictionKey(name, state, level)
	row.JurisdictionName = name
	row.JurisdictionLevel = level
	row.State = state
	row.Category = category
	row.RateType = rateType
	row.CurrentValue = "$16.50"
	row.NumericValue = &v
	row.EffectiveDate = &eff
	row.SourceURL = "https://example.com/feed"
	return row
}

func TestLookupKey(t *testing.T) {
	tests := []struct {
		city, county, state string
		want                string
	}{
		{"San Francisco", "", "CA", "san_francisco_ca"},
		{"San Francisco", "San Francisco County", "CA", "san_francisco_ca"},
		{"", "Los Angeles County", "CA", "los_angeles_county_ca"},
		{"", "Los Angeles", "CA", "los_angeles_county_ca"},
		{"", "  los angeles county ", "CA", "los_angeles_county_ca"},
		{"", "Orleans", "LA", "orleans_parish_la"},
		{"", "Orleans Parish", "LA", "orleans_parish_la"},
		{"  ", "", "CA", "california"},
		{"", "", "DC", "district_of_columbia"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LookupKey(tt.city, tt.county, tt.state), "%q/%q/%q", tt.city, tt.county, tt.state)
	}
}

func TestGetTier1DataDefaults(t *testing.T) {
	store := newFakeStore()
	store.tier1["minimum_wage"] = []models.Tier1Row{tier1Row("California", models.LevelState, "CA", "minimum_wage", "general")}
	svc := newTestService(store, staticParser())

	records, ok := svc.GetTier1Data(context.Background(), models.Tier1Query{City: "San Francisco", State: "california"})

	require.True(t, ok)
	require.Len(t, records, 1)
	require.Len(t, store.lookups, 1)
	assert.Equal(t, models.CacheLookup{
		State:           "CA",
		Category:        "minimum_wage",
		JurisdictionKey: "san_francisco_ca",
		FetchedSince:    serviceNow.Add(-168 * time.Hour),
	}, store.lookups[0])
}

func TestGetTier1DataFreshnessOverride(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, staticParser(), WithDefaultFreshnessHours(72))

	svc.GetTier1Data(context.Background(), models.Tier1Query{State: "TX"})
	svc.GetTier1Data(context.Background(), models.Tier1Query{State: "TX", FreshnessHours: 24})

	require.Len(t, store.lookups, 2)
	assert.Equal(t, serviceNow.Add(-72*time.Hour), store.lookups[0].FetchedSince)
	assert.Equal(t, serviceNow.Add(-24*time.Hour), store.lookups[1].FetchedSince)
	assert.Equal(t, "texas", store.lookups[0].JurisdictionKey)
}

func TestGetTier1DataAbsent(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, staticParser())

	records, ok := svc.GetTier1Data(context.Background(), models.Tier1Query{City: "Austin", State: "TX"})
	assert.False(t, ok)
	assert.Nil(t, records)

	records, ok = svc.GetTier1Data(context.Background(), models.Tier1Query{City: "Atlantis", State: "ZZ"})
	assert.False(t, ok)
	assert.Nil(t, records)
	assert.Len(t, store.lookups, 1)
}

func TestGetTier1DataIgnoresOtherStates(t *testing.T) {
	store := newFakeStore()
	store.tier1["minimum_wage"] = []models.Tier1Row{tier1Row("California", models.LevelState, "CA", "minimum_wage", "general")}
	svc := newTestService(store, staticParser())

	records, ok := svc.GetTier1Data(context.Background(), models.Tier1Query{State: "NV"})
	assert.False(t, ok)
	assert.Nil(t, records)

	records, ok = svc.GetTier1Data(context.Background(), models.Tier1Query{County: "Los Angeles", State: "CA"})
	require.True(t, ok)
	require.Len(t, records, 1)
	assert.Equal(t, "los_angeles_county_ca", store.lookups[1].JurisdictionKey)
}

func TestGetTier1DataMergesCategoriesByLevel(t *testing.T) {
	store := newFakeStore()
	store.tier1["minimum_wage"] = []models.Tier1Row{
		tier1Row("California", models.LevelState, "CA", "minimum_wage", "general"),
	}
	store.tier1["paid_sick_leave"] = []models.Tier1Row{
		tier1Row("Los Angeles County", models.LevelCounty, "CA", "paid_sick_leave", "general"),
		tier1Row("Los Angeles", models.LevelCity, "CA", "paid_sick_leave", "general"),
	}
	store.tier1["overtime"] = []models.Tier1Row{
		tier1Row("Los Angeles", models.LevelCity, "CA", "overtime", "general"),
		tier1Row("Nevada", models.LevelState, "NV", "overtime", "general"),
	}
	store.tier1Err["scheduling"] = errors.New("deadlock")
	svc := newTestService(store, staticParser())

	records, ok := svc.GetTier1Data(context.Background(), models.Tier1Query{
		City:       "Los Angeles",
		State:      "CA",
		Categories: []string{"minimum_wage", "scheduling", "paid_sick_leave", "overtime"},
	})

	require.True(t, ok)
	require.Len(t, records, 3)
	assert.Equal(t, models.LevelCity, records[0].JurisdictionLevel)
	assert.Equal(t, "paid_sick_leave", records[0].Category)
	assert.Equal(t, models.LevelCity, records[1].JurisdictionLevel)
	assert.Equal(t, "overtime", records[1].Category)
	assert.Equal(t, "California", records[2].JurisdictionName)
	assert.Len(t, store.lookups, 4)
}

func TestTier1RecordShape(t *testing.T) {
	row := tier1Row("Texas", models.LevelState, "TX", "minimum_wage", "tipped")
	row.CurrentValue = "$2.13"
	next := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	row.NextScheduledDate = &next
	row.NextScheduledValue = "$2.50"
	row.Notes = "Tip credit applies."

	rec := toTier1Record(row)

	assert.Equal(t, "Texas Tipped Minimum Wage", rec.Title)
	assert.Equal(t, "2025-01-01", rec.EffectiveDate)
	assert.Equal(t, Tier1SourceTier, rec.SourceTier)
	assert.Equal(t, row.SourceID, rec.StructuredSourceID)
	assert.Equal(t, "tipped", rec.RateType)
	assert.Equal(t,
		"Tipped minimum wage for Texas: $2.13 (effective 2025-01-01). Next scheduled change: $2.50 on 2026-01-01. Tip credit applies.",
		rec.Description)

	city := tier1Row("San Francisco", models.LevelCity, "CA", "minimum_wage", "general")
	city.EffectiveDate = nil
	city.CurrentValue = ""
	rec = toTier1Record(city)
	assert.Equal(t, "San Francisco Minimum Wage", rec.Title)
	assert.Empty(t, rec.EffectiveDate)
	assert.Equal(t, "Minimum wage for San Francisco, CA: -.", rec.Description)
}

func TestLookupMetrics(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	store := newFakeStore()
	store.tier1["minimum_wage"] = []models.Tier1Row{tier1Row("California", models.LevelState, "CA", "minimum_wage", "general")}
	svc := newTestService(store, staticParser(), WithMetrics(metrics))

	svc.GetTier1Data(context.Background(), models.Tier1Query{State: "CA"})
	svc.GetTier1Data(context.Background(), models.Tier1Query{State: "NV"})
	svc.GetTier1Data(context.Background(), models.Tier1Query{State: "??"})

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.lookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.lookups.WithLabelValues("miss")))
}
