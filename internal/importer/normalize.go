package importer

import (
	"fmt"
	"strings"
	"time"

	"github.com/amaumene/trackarr/internal/models"
	"github.com/shopspring/decimal"
)

var (
	ratingFloor   = decimal.Zero
	ratingCeiling = decimal.NewFromInt(100)
)

// ratingMultipliers rescale each source's rating onto 0-100
var ratingMultipliers = map[models.ImportSource]int64{
	models.ImportSourceMovary:    10, // 0-10
	models.ImportSourceTrakt:     10, // 1-10
	models.ImportSourceGoodreads: 20, // 0-5 stars
}

// ScaleRating rescales a source rating and clamps it into [0, 100]
func ScaleRating(source models.ImportSource, rating decimal.Decimal) decimal.Decimal {
	multiplier, ok := ratingMultipliers[source]
	if !ok {
		multiplier = 1
	}
	scaled := rating.Mul(decimal.NewFromInt(multiplier))
	switch {
	case scaled.LessThan(ratingFloor):
		return ratingFloor
	case scaled.GreaterThan(ratingCeiling):
		return ratingCeiling
	}
	return scaled
}

// Dates without a zone are read as midnight UTC. Zoned timestamps are converted
// to UTC first, so the calendar date is always the UTC one.
var naiveLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
}

// ParseDate reads a date or timestamp and returns it in UTC
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return NaiveToUTC(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

// NaiveToUTC promotes a zone-less date to midnight UTC of the same calendar day
func NaiveToUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseOptionalDate is ParseDate for columns that may be blank
func ParseOptionalDate(raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := ParseDate(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
