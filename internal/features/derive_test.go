package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/casualty.report/internal/monitoring"
	"github.com/banshee-data/casualty.report/internal/schema"
	"github.com/banshee-data/casualty.report/internal/testutil"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

func TestTimePeriod(t *testing.T) {
	testCases := []struct {
		input string
		want  string
	}{
		{"14:30", "12:00 - 16:00"},
		{"00:05", "0:00 - 4:00"},
		{"03:59", "0:00 - 4:00"},
		{"04:00", "4:00 - 8:00"},
		{"9:15", "8:00 - 12:00"},
		{"23:59", "20:00 - 24:00"},
		{"1730", "16:00 - 20:00"},
		{"24:10", schema.Missing},
		{"ab:cd", schema.Missing},
		{schema.Missing, schema.Missing},
		{"", schema.Missing},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.want, TimePeriod(tc.input))
		})
	}
}

func TestSeason(t *testing.T) {
	want := map[time.Month]string{
		time.January: "winter", time.February: "winter", time.March: "spring",
		time.April: "spring", time.May: "spring", time.June: "summer",
		time.July: "summer", time.August: "summer", time.September: "autumn",
		time.October: "autumn", time.November: "autumn", time.December: "winter",
	}
	for m, s := range want {
		assert.Equal(t, s, Season(m), m.String())
	}
}

func TestMonth(t *testing.T) {
	testCases := []struct {
		input string
		want  time.Month
		ok    bool
	}{
		{"14/04/2022", time.April, true},
		{"2022-12-01", time.December, true},
		{"2022-07-09 00:00:00", time.July, true},
		{"2022-10-02T08:00:00Z", time.October, true},
		{"April 2022", 0, false},
		{schema.Missing, 0, false},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			m, ok := Month(tc.input)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, m)
		})
	}
}

func TestDerive(t *testing.T) {
	tbl := testutil.FromRows(t, []string{"date", "time", "road_type"},
		[]string{"14/04/2022", "14:30", "Single carriageway"},
		[]string{"2022-12-24", "00:05", "Roundabout"},
		[]string{schema.Missing, schema.Missing, "Slip road"},
	)

	Derive(tbl, &schema.Layout{HasTime: true, HasDate: true})

	assert.False(t, tbl.Has("date"))
	assert.True(t, tbl.Has("time"), "time is kept for later selection")
	assert.Equal(t, []string{"spring", "winter", schema.Missing}, tbl.Column("season"))
	assert.Equal(t, []string{"12:00 - 16:00", "0:00 - 4:00", schema.Missing}, tbl.Column("time_period"))
}

func TestDerive_OptionalColumnsAbsent(t *testing.T) {
	tbl := testutil.FromRows(t, []string{"road_type"}, []string{"Roundabout"})

	Derive(tbl, &schema.Layout{})

	assert.Equal(t, []string{"road_type"}, tbl.Columns())
}
