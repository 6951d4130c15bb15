// Package schema normalises raw collision tables: canonical column names, a
// single missing-value marker, and a one-time check of which columns exist.
package schema

import (
	"fmt"
	"strings"

	"github.com/banshee-data/casualty.report/internal/monitoring"
	"github.com/banshee-data/casualty.report/internal/table"
)

// Missing is the canonical marker for an absent value.
const Missing = "Missing"

// Identifier and join-key columns.
const (
	AccidentIndex     = "accident_index"
	VehicleReference  = "vehicle_reference"
	CasualtyReference = "casualty_reference"
	VehicleType       = "vehicle_type"
	NumberOfVehicles  = "number_of_vehicles"
)

// Derived and optional feature columns.
const (
	VehicleSubtype      = "vehicle_subtype"
	AdjustedVehicleType = "vehicle_type_adjusted"
	EngineCapacity      = "engine_capacity_cc"
	PropulsionCode      = "propulsion_code"
	Time                = "time"
	Date                = "date"
	TimePeriod          = "time_period"
	Season              = "season"
)

// Required lists the columns without which records cannot be expanded.
var Required = []string{AccidentIndex, VehicleReference, CasualtyReference, VehicleType, NumberOfVehicles}

// MissingColumnError reports a required column absent from the input.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("required column %q is missing from input", e.Column)
}

// IsMissing reports whether v is the missing marker or blank.
func IsMissing(v string) bool {
	return v == Missing || strings.TrimSpace(v) == ""
}

// Normalize renames alias columns to their canonical names and replaces every
// sentinel cell with Missing. sentinels apply to all columns; perColumn adds
// sentinels honoured only in the named column. An alias is left alone when its
// canonical name is already present.
func Normalize(t *table.Table, aliases map[string]string, sentinels []string, perColumn map[string][]string) {
	for from, to := range aliases {
		if t.Has(to) {
			continue
		}
		// Rename only fails when the target exists, checked above.
		_ = t.Rename(from, to)
	}

	global := toSet(sentinels)
	cols := t.Columns()
	local := make([]map[string]bool, len(cols))
	for j, c := range cols {
		if extra, ok := perColumn[c]; ok {
			local[j] = toSet(extra)
		}
	}
	replaced := 0
	for i := 0; i < t.Len(); i++ {
		row := t.Row(i)
		for j, v := range row {
			if v == Missing {
				continue
			}
			key := strings.TrimSpace(v)
			if global[key] || local[j][key] {
				row[j] = Missing
				replaced++
			}
		}
	}
	monitoring.Logf("schema: normalised %d rows, %d sentinel cells marked %s", t.Len(), replaced, Missing)
}

func toSet(list []string) map[string]bool {
	set := make(map[string]bool, len(list))
	for _, s := range list {
		set[strings.TrimSpace(s)] = true
	}
	return set
}

// Columns groups the configured casualty-side, vehicle-side and driver-side
// attribute names.
type Columns struct {
	Casualty []string
	Vehicle  []string
	Driver   []string
}

// Layout records which configured columns exist in a normalised table. It is
// computed once so later stages never search the header themselves.
type Layout struct {
	Casualty []string
	Vehicle  []string
	Driver   []string
	// Absent lists configured attribute columns not found in the input.
	Absent []string

	HasTime bool
	HasDate bool
}

// Validate checks required identifiers and resolves the optional columns.
// VehicleSubtype counts as present because the classifier always adds it.
func Validate(t *table.Table, cols Columns) (*Layout, error) {
	for _, c := range Required {
		if !t.Has(c) {
			return nil, &MissingColumnError{Column: c}
		}
	}

	l := &Layout{}
	present := func(list []string) []string {
		var out []string
		for _, c := range list {
			if t.Has(c) || c == VehicleSubtype {
				out = append(out, c)
			} else {
				l.Absent = append(l.Absent, c)
			}
		}
		return out
	}
	l.Casualty = present(cols.Casualty)
	l.Vehicle = present(cols.Vehicle)
	l.Driver = present(cols.Driver)
	l.HasTime = contains(l.Casualty, Time)
	l.HasDate = contains(l.Casualty, Date)

	if len(l.Absent) > 0 {
		monitoring.Warnf("schema: %d optional columns absent: %s", len(l.Absent), strings.Join(l.Absent, ", "))
	}
	return l, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
