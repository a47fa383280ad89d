// backend/scraper/validate.go
package scraper

import (
	"fmt"
	"time"

	"github.com/tajaa/matcha-recruit-sub002/models"
)

// Sanity bounds applied to every parsed row before it is accepted.
const (
	MinHourlyWage = 0.0
	MaxHourlyWage = 100.0

	// Effective dates must fall within [now - maxDateAgeYears, now + maxDateLeadYears].
	maxDateAgeYears  = 30
	maxDateLeadYears = 5
)

// ValidateRequirement checks wage and date bounds. A non-nil error means the row must be skipped.
func ValidateRequirement(req *models.ParsedRequirement, now time.Time) error {
	if req.NumericValue != nil {
		v := *req.NumericValue
		if v < MinHourlyWage || v > MaxHourlyWage {
			return fmt.Errorf("wage %.2f outside sane range [%.2f, %.2f]", v, MinHourlyWage, MaxHourlyWage)
		}
	}
	if err := checkDateWindow("effective_date", req.EffectiveDate, now); err != nil {
		return err
	}
	if err := checkDateWindow("next_scheduled_date", req.NextScheduledDate, now); err != nil {
		return err
	}
	if next := NumericValue(req.NextScheduledValue); next != nil {
		if *next < MinHourlyWage || *next > MaxHourlyWage {
			return fmt.Errorf("scheduled wage %.2f outside sane range [%.2f, %.2f]", *next, MinHourlyWage, MaxHourlyWage)
		}
	}
	return nil
}

func checkDateWindow(field string, d *time.Time, now time.Time) error {
	if d == nil {
		return nil
	}
	earliest := now.AddDate(-maxDateAgeYears, 0, 0)
	latest := now.AddDate(maxDateLeadYears, 0, 0)
	if d.Before(earliest) || d.After(latest) {
		return fmt.Errorf("%s %s outside sane window [%s, %s]", field, d.Format("2006-01-02"),
			earliest.Format("2006-01-02"), latest.Format("2006-01-02"))
	}
	return nil
}
