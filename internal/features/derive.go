// Package features derives the time-of-day bucket and season features.
package features

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/casualty.report/internal/monitoring"
	"github.com/banshee-data/casualty.report/internal/schema"
	"github.com/banshee-data/casualty.report/internal/table"
)

// bucketHours is the width of a time_period bucket.
const bucketHours = 4

// dateLayouts are tried in order when parsing the date column.
var dateLayouts = []string{
	"02/01/2006",
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// TimePeriod returns the 4-hour bucket label for an "HH:MM" time, e.g.
// "14:30" -> "12:00 - 16:00". Unparseable input yields schema.Missing.
func TimePeriod(hhmm string) string {
	s := strings.TrimSpace(hhmm)
	if schema.IsMissing(s) {
		return schema.Missing
	}
	hourText := s
	if i := strings.IndexByte(s, ':'); i >= 0 {
		hourText = s[:i]
	} else if len(s) > 2 {
		hourText = s[:2]
	}
	hour, err := strconv.Atoi(hourText)
	if err != nil || hour < 0 || hour > 23 {
		return schema.Missing
	}
	start := hour / bucketHours * bucketHours
	return fmt.Sprintf("%d:00 - %d:00", start, start+bucketHours)
}

// Season maps a calendar month to its season label.
func Season(month time.Month) string {
	switch month {
	case time.March, time.April, time.May:
		return "spring"
	case time.June, time.July, time.August:
		return "summer"
	case time.September, time.October, time.November:
		return "autumn"
	default:
		return "winter"
	}
}

// Month parses a date cell and returns its month.
func Month(date string) (time.Month, bool) {
	s := strings.TrimSpace(date)
	if schema.IsMissing(s) {
		return 0, false
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d.Month(), true
		}
	}
	return 0, false
}

// Derive adds time_period when the layout has a time column, and season when
// it has a date column. The date column is dropped once season is derived.
func Derive(t *table.Table, l *schema.Layout) {
	if l.HasTime {
		t.AddColumn(schema.TimePeriod, schema.Missing)
		for i := 0; i < t.Len(); i++ {
			t.Set(i, schema.TimePeriod, TimePeriod(t.Get(i, schema.Time)))
		}
	}
	if l.HasDate {
		t.AddColumn(schema.Season, schema.Missing)
		bad := 0
		for i := 0; i < t.Len(); i++ {
			m, ok := Month(t.Get(i, schema.Date))
			if !ok {
				bad++
				continue
			}
			t.Set(i, schema.Season, Season(m))
		}
		t.Drop(schema.Date)
		if bad > 0 {
			monitoring.Logf("features: %d rows without a parseable date, season left %s", bad, schema.Missing)
		}
	}
}
