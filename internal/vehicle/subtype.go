// Package vehicle derives the ordered vehicle subtype used to pick one
// representative vehicle per expanded casualty.
package vehicle

import (
	"strings"

	"github.com/banshee-data/casualty.report/internal/schema"
	"github.com/banshee-data/casualty.report/internal/table"
)

// Subtype is a vehicle category. Lower values take priority when several
// vehicles could be joined to one casualty.
type Subtype int

const (
	HGV Subtype = iota + 1
	Agricultural
	Bus
	Van
	Car
	Motorbike
	Bike
	Unknown
)

var labels = map[Subtype]string{
	HGV:          "HGV",
	Agricultural: "Agricultural",
	Bus:          "Bus",
	Van:          "Van",
	Car:          "Car",
	Motorbike:    "Motorbike",
	Bike:         "Bike",
	Unknown:      "Unknown",
}

// String returns the label written to the vehicle_subtype column.
func (s Subtype) String() string {
	if l, ok := labels[s]; ok {
		return l
	}
	return labels[Unknown]
}

// Rank is the sort key; HGV is 1 and Unknown is 8.
func (s Subtype) Rank() int { return int(s) }

// ParseSubtype maps a label back to its Subtype. Unrecognised labels are
// Unknown.
func ParseSubtype(label string) Subtype {
	for s, l := range labels {
		if strings.EqualFold(l, label) {
			return s
		}
	}
	return Unknown
}

// Raw vehicle_type strings matched exactly (upper-cased).
const (
	vanGoods     = "VAN / GOODS 3.5 TONNES MGW OR UNDER"
	minibus      = "MINIBUS (8 - 16 PASSENGER SEATS)"
	agricultural = "AGRICULTURAL VEHICLE"
	busOrCoach   = "BUS OR COACH (17 OR MORE PASS SEATS)"
	pedalCycle   = "PEDAL CYCLE"
)

// Classify maps a raw vehicle_type string to its Subtype. The first matching
// rule wins; vans are tested before the GOODS substring so light goods
// vehicles are not ranked as HGVs.
func Classify(vehicleType string) Subtype {
	v := strings.ToUpper(strings.TrimSpace(vehicleType))
	switch {
	case v == vanGoods || v == minibus:
		return Van
	case strings.Contains(v, "GOODS"):
		return HGV
	case v == agricultural:
		return Agricultural
	case v == busOrCoach:
		return Bus
	case strings.Contains(v, "CAR"):
		return Car
	case strings.Contains(v, "MOTORCYCLE"):
		return Motorbike
	case v == pedalCycle:
		return Bike
	default:
		return Unknown
	}
}

// Annotate writes the classified subtype of every row's vehicle_type into the
// vehicle_subtype column, adding the column when needed.
func Annotate(t *table.Table) {
	t.AddColumn(schema.VehicleSubtype, Unknown.String())
	for i := 0; i < t.Len(); i++ {
		t.Set(i, schema.VehicleSubtype, Classify(t.Get(i, schema.VehicleType)).String())
	}
}

// Of returns the subtype of row i, preferring an existing vehicle_subtype
// label over re-classifying vehicle_type.
func Of(t *table.Table, i int) Subtype {
	if t.Has(schema.VehicleSubtype) {
		if l := t.Get(i, schema.VehicleSubtype); !schema.IsMissing(l) {
			return ParseSubtype(l)
		}
	}
	return Classify(t.Get(i, schema.VehicleType))
}

// SetForBikes writes value into col for every bicycle row and returns the
// number of rows written. It does nothing when col is absent.
func SetForBikes(t *table.Table, col, value string) int {
	if !t.Has(col) {
		return 0
	}
	n := 0
	for i := 0; i < t.Len(); i++ {
		if Of(t, i) == Bike {
			t.Set(i, col, value)
			n++
		}
	}
	return n
}
