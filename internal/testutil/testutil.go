// Package testutil provides shared fixtures for building raw collision tables
// in tests.
package testutil

import (
	"strconv"
	"testing"

	"github.com/banshee-data/casualty.report/internal/schema"
	"github.com/banshee-data/casualty.report/internal/table"
)

// Record is one raw vehicle×casualty row.
type Record struct {
	Accident    string
	Vehicle     string
	Casualty    string
	VehicleType string
	Vehicles    int
	// Attrs fills any extra columns by name; unset columns are left blank.
	Attrs map[string]string
}

// CollisionTable builds a raw table with the required identifier columns
// followed by extra, one row per record.
func CollisionTable(tb testing.TB, extra []string, recs ...Record) *table.Table {
	tb.Helper()
	cols := append([]string{
		schema.AccidentIndex,
		schema.VehicleReference,
		schema.CasualtyReference,
		schema.VehicleType,
		schema.NumberOfVehicles,
	}, extra...)
	t, err := table.New(cols)
	if err != nil {
		tb.Fatalf("fixture header: %v", err)
	}
	for _, r := range recs {
		row := []string{r.Accident, r.Vehicle, r.Casualty, r.VehicleType, strconv.Itoa(r.Vehicles)}
		for _, c := range extra {
			row = append(row, r.Attrs[c])
		}
		if err := t.Append(row); err != nil {
			tb.Fatalf("fixture row: %v", err)
		}
	}
	return t
}

// FromRows builds a table from a header and literal rows.
func FromRows(tb testing.TB, header []string, rows ...[]string) *table.Table {
	tb.Helper()
	t, err := table.New(header)
	if err != nil {
		tb.Fatalf("fixture header: %v", err)
	}
	for _, r := range rows {
		if err := t.Append(r); err != nil {
			tb.Fatalf("fixture row: %v", err)
		}
	}
	return t
}
