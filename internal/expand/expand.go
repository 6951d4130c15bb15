// Package expand turns the raw vehicle×casualty records into one row per
// bicycle casualty, joined with a single prioritised vehicle record.
package expand

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/banshee-data/casualty.report/internal/monitoring"
	"github.com/banshee-data/casualty.report/internal/schema"
	"github.com/banshee-data/casualty.report/internal/table"
	"github.com/banshee-data/casualty.report/internal/vehicle"
)

// Stats summarises an expansion run.
type Stats struct {
	InputRows    int
	Accidents    int
	Casualties   int
	SelfFallback int
}

type accident struct {
	rows     []int
	vehicles int
}

type casualtyKey struct {
	accident  string
	reference string
}

// Expand emits one row per distinct (accident_index, casualty_reference)
// whose record vehicle is a bicycle. Casualty columns come from that record;
// vehicle and driver columns come from the highest-priority eligible record in
// the same accident. A record is eligible when it belongs to another casualty
// in a multi-vehicle accident, or to any casualty in a single-vehicle accident.
// Ties on subtype keep input order.
func Expand(t *table.Table, l *schema.Layout) (*table.Table, Stats, error) {
	header := make([]string, 0, len(l.Casualty)+len(l.Vehicle)+len(l.Driver))
	header = append(header, l.Casualty...)
	header = append(header, l.Vehicle...)
	header = append(header, l.Driver...)
	out, err := table.New(header)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("expand: column roles overlap: %w", err)
	}

	accidents := groupAccidents(t)
	subtypes := make([]vehicle.Subtype, t.Len())
	for i := range subtypes {
		subtypes[i] = vehicle.Of(t, i)
	}

	stats := Stats{InputRows: t.Len(), Accidents: len(accidents)}
	seen := make(map[casualtyKey]bool)
	for i := 0; i < t.Len(); i++ {
		ref := t.Get(i, schema.CasualtyReference)
		if subtypes[i] != vehicle.Bike || schema.IsMissing(ref) {
			continue
		}
		key := casualtyKey{accident: t.Get(i, schema.AccidentIndex), reference: ref}
		if seen[key] {
			continue
		}
		seen[key] = true

		acc := accidents[key.accident]
		pick, ok := selectVehicle(t, acc, subtypes, ref)
		if !ok {
			pick = i
			stats.SelfFallback++
		}

		row := make([]string, 0, len(header))
		row = appendCells(row, t, i, l.Casualty)
		row = appendCells(row, t, pick, l.Vehicle)
		row = appendCells(row, t, pick, l.Driver)
		if err := out.Append(row); err != nil {
			return nil, stats, fmt.Errorf("expand: %w", err)
		}
		stats.Casualties++
	}

	if stats.SelfFallback > 0 {
		monitoring.Warnf("expand: %d bicycle casualties had no eligible vehicle record and were self-paired", stats.SelfFallback)
	}
	monitoring.Logf("expand: %d rows across %d accidents -> %d bicycle casualties", stats.InputRows, stats.Accidents, stats.Casualties)
	return out, stats, nil
}

// selectVehicle returns the eligible record with the lowest subtype rank.
func selectVehicle(t *table.Table, acc *accident, subtypes []vehicle.Subtype, ref string) (int, bool) {
	candidates := make([]int, 0, len(acc.rows))
	for _, r := range acc.rows {
		other := t.Get(r, schema.CasualtyReference) != ref
		if (other && acc.vehicles > 1) || acc.vehicles == 1 {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return subtypes[candidates[a]].Rank() < subtypes[candidates[b]].Rank()
	})
	return candidates[0], true
}

// groupAccidents indexes rows by accident_index and resolves each accident's
// vehicle count: the largest parseable number_of_vehicles, or the number of
// distinct vehicle references when none parse.
func groupAccidents(t *table.Table) map[string]*accident {
	out := make(map[string]*accident)
	for i := 0; i < t.Len(); i++ {
		id := t.Get(i, schema.AccidentIndex)
		acc, ok := out[id]
		if !ok {
			acc = &accident{}
			out[id] = acc
		}
		acc.rows = append(acc.rows, i)
		if n, ok := parseCount(t.Get(i, schema.NumberOfVehicles)); ok && n > acc.vehicles {
			acc.vehicles = n
		}
	}

	for id, acc := range out {
		if acc.vehicles > 0 {
			continue
		}
		refs := make(map[string]bool)
		for _, r := range acc.rows {
			if v := t.Get(r, schema.VehicleReference); !schema.IsMissing(v) {
				refs[v] = true
			}
		}
		acc.vehicles = len(refs)
		monitoring.Warnf("expand: accident %s has no usable number_of_vehicles, using %d distinct vehicle references", id, acc.vehicles)
	}
	return out
}

func parseCount(s string) (int, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return int(f), true
}

func appendCells(row []string, t *table.Table, i int, cols []string) []string {
	for _, c := range cols {
		if t.Has(c) {
			row = append(row, t.Get(i, c))
		} else {
			row = append(row, schema.Missing)
		}
	}
	return row
}
