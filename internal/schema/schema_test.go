package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/casualty.report/internal/monitoring"
	"github.com/banshee-data/casualty.report/internal/table"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

var sentinels = []string{"", "NA", "Data missing or out of range", "unknown (self reported)", "Unknown", "Not known"}

func TestNormalize(t *testing.T) {
	tbl := table.MustNew("accident_index", "longitude.x", "latitude.x", "latitude", "age_of_driver")
	require.NoError(t, tbl.Append([]string{"A1", "-0.12", "51.5", "51.6", "Not known"}))
	require.NoError(t, tbl.Append([]string{"A2", " NA ", "", "", "Data missing or out of range"}))
	require.NoError(t, tbl.Append([]string{"A3", "Missing", "52.0", "52.1", "44"}))

	Normalize(tbl, map[string]string{
		"longitude.x": "longitude",
		"latitude.x":  "latitude",
		"date.x":      "date",
	}, sentinels, nil)

	assert.True(t, tbl.Has("longitude"))
	assert.True(t, tbl.Has("latitude.x"), "alias kept when canonical column exists")
	assert.False(t, tbl.Has("date"))

	assert.Equal(t, Missing, tbl.Get(0, "age_of_driver"))
	assert.Equal(t, Missing, tbl.Get(1, "longitude"))
	assert.Equal(t, Missing, tbl.Get(1, "latitude"))
	assert.Equal(t, Missing, tbl.Get(1, "age_of_driver"))
	assert.Equal(t, Missing, tbl.Get(2, "longitude"))
	assert.Equal(t, "-0.12", tbl.Get(0, "longitude"))
	assert.Equal(t, "44", tbl.Get(2, "age_of_driver"))
}

func TestNormalize_SentinelScope(t *testing.T) {
	tbl := table.MustNew("T2M", "sex_of_driver", "journey_purpose_of_driver", "driver_home_area_type", "junction_control")
	require.NoError(t, tbl.Append([]string{"-1", "Not known", "unknown (self reported)", "Unknown", "-1"}))
	require.NoError(t, tbl.Append([]string{"-1.5", "Male", "Commuting to/from work", "Urban area", "Give way or uncontrolled"}))

	Normalize(tbl, nil, sentinels, map[string][]string{"junction_control": {"-1"}})

	assert.Equal(t, []string{"-1", Missing, Missing, Missing, Missing}, tbl.Row(0))
	assert.Equal(t, "-1.5", tbl.Get(1, "T2M"), "negative measurements are real values")
	assert.Equal(t, "Give way or uncontrolled", tbl.Get(1, "junction_control"))
}

func TestIsMissing(t *testing.T) {
	assert.True(t, IsMissing(Missing))
	assert.True(t, IsMissing(""))
	assert.True(t, IsMissing("  "))
	assert.False(t, IsMissing("0"))
	assert.False(t, IsMissing("Unknown"))
}

func TestValidate_RequiredColumns(t *testing.T) {
	for _, drop := range Required {
		t.Run(drop, func(t *testing.T) {
			tbl := table.MustNew(Required...)
			tbl.Drop(drop)

			_, err := Validate(tbl, Columns{})
			var mce *MissingColumnError
			require.True(t, errors.As(err, &mce), "got %v", err)
			assert.Equal(t, drop, mce.Column)
		})
	}
}

func TestValidate_Layout(t *testing.T) {
	cols := append(append([]string{}, Required...), "time", "sex_of_casualty", "engine_capacity_cc")
	tbl := table.MustNew(cols...)

	l, err := Validate(tbl, Columns{
		Casualty: []string{"date", "time", "sex_of_casualty"},
		Vehicle:  []string{"vehicle_type", "vehicle_subtype", "engine_capacity_cc", "age_of_vehicle"},
		Driver:   []string{"age_of_driver"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"time", "sex_of_casualty"}, l.Casualty)
	assert.Equal(t, []string{"vehicle_type", "vehicle_subtype", "engine_capacity_cc"}, l.Vehicle)
	assert.Empty(t, l.Driver)
	assert.ElementsMatch(t, []string{"date", "age_of_vehicle", "age_of_driver"}, l.Absent)
	assert.True(t, l.HasTime)
	assert.False(t, l.HasDate)
}
