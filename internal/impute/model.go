// Package impute fits missing-value lookups on a reference table and fills
// other tables with them: categorical values by sampling the fitted category
// frequencies, continuous values by grouped median with a global-median
// fallback.
package impute

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/banshee-data/casualty.report/internal/monitoring"
	"github.com/banshee-data/casualty.report/internal/schema"
	"github.com/banshee-data/casualty.report/internal/table"
	"github.com/banshee-data/casualty.report/internal/vehicle"
)

// ErrNoCarReference is returned by Fit when engine capacity is imputed but
// the reference has no car engine capacities to scale the bicycle value from.
var ErrNoCarReference = errors.New("impute: reference has no car engine capacities")

// Options selects the columns the model is fitted over.
type Options struct {
	// Continuous columns are filled by median; every other column that is not
	// excluded is treated as categorical.
	Continuous []string
	// Groupings maps a continuous column to the categorical column whose value
	// selects the grouped median.
	Groupings map[string]string
	// Exclude lists columns that are neither imputed nor checked.
	Exclude []string
	// BikeEngineFactor scales the car median engine capacity to the value
	// written for bicycles.
	BikeEngineFactor float64
	// KeyRemap, when set, derives a grouping column that Groupings may name.
	KeyRemap *KeyRemap
}

// KeyRemap derives Column from Source by replacing the values listed in
// Values; unlisted values are copied as they are. The derived column only
// exists while continuous columns are filled and never reaches the output.
type KeyRemap struct {
	Source string            `json:"source"`
	Column string            `json:"column"`
	Values map[string]string `json:"values"`
}

// addTo adds the derived column to t and reports whether it did. t is left
// alone when the source is absent or the column already exists.
func (r *KeyRemap) addTo(t *table.Table) bool {
	if r == nil || !t.Has(r.Source) || t.Has(r.Column) {
		return false
	}
	t.AddColumn(r.Column, schema.Missing)
	for i := 0; i < t.Len(); i++ {
		v := t.Get(i, r.Source)
		if mapped, ok := r.Values[v]; ok {
			v = mapped
		}
		t.Set(i, r.Column, v)
	}
	return true
}

// GroupedMedian is a median lookup keyed on a companion column's value.
type GroupedMedian struct {
	By      string             `json:"by"`
	Medians map[string]float64 `json:"medians"`
}

// Model is the fitted imputation state. It is not modified after Fit.
type Model struct {
	Categorical        map[string]Distribution  `json:"categorical"`
	Continuous         []string                 `json:"continuous"`
	GroupedMedians     map[string]GroupedMedian `json:"grouped_medians"`
	GlobalMedians      map[string]float64       `json:"global_medians"`
	BikeEngineCapacity *float64                 `json:"bike_engine_capacity_cc,omitempty"`
	KeyRemap           *KeyRemap                `json:"key_remap,omitempty"`
	Exclude            []string                 `json:"exclude,omitempty"`
}

// Fit derives the model from a reference table whose missing cells hold
// schema.Missing.
func Fit(t *table.Table, opts Options) (*Model, error) {
	m := &Model{
		Categorical:    make(map[string]Distribution),
		GroupedMedians: make(map[string]GroupedMedian),
		GlobalMedians:  make(map[string]float64),
		KeyRemap:       opts.KeyRemap,
		Exclude:        append([]string(nil), opts.Exclude...),
	}

	continuous := toSet(opts.Continuous)
	excluded := toSet(opts.Exclude)

	for _, col := range t.Columns() {
		if continuous[col] || excluded[col] {
			continue
		}
		d := FitDistribution(t.Column(col))
		if len(d) == 0 {
			monitoring.Warnf("impute: categorical column %s has no observed values", col)
		}
		m.Categorical[col] = d
	}

	keyed := t
	if opts.KeyRemap != nil {
		keyed = t.Clone()
		opts.KeyRemap.addTo(keyed)
	}

	for _, col := range opts.Continuous {
		if !t.Has(col) {
			continue
		}
		m.Continuous = append(m.Continuous, col)
		values, _ := parseColumn(t, col)

		var all []float64
		for _, v := range values {
			if v != nil {
				all = append(all, *v)
			}
		}
		if len(all) == 0 {
			monitoring.Warnf("impute: continuous column %s has no observed values", col)
		} else {
			m.GlobalMedians[col] = Median(all)
		}

		by, ok := opts.Groupings[col]
		if !ok || !keyed.Has(by) {
			continue
		}
		groups := make(map[string][]float64)
		for i, v := range values {
			key := keyed.Get(i, by)
			if v == nil || schema.IsMissing(key) {
				continue
			}
			groups[key] = append(groups[key], *v)
		}
		gm := GroupedMedian{By: by, Medians: make(map[string]float64, len(groups))}
		for key, vals := range groups {
			gm.Medians[key] = Median(vals)
		}
		m.GroupedMedians[col] = gm
	}

	if continuous[schema.EngineCapacity] && t.Has(schema.EngineCapacity) {
		values, _ := parseColumn(t, schema.EngineCapacity)
		var cars []float64
		for i, v := range values {
			if v != nil && vehicle.Of(t, i) == vehicle.Car {
				cars = append(cars, *v)
			}
		}
		if len(cars) == 0 {
			return nil, ErrNoCarReference
		}
		bike := opts.BikeEngineFactor * Median(cars)
		m.BikeEngineCapacity = &bike
	}

	monitoring.Logf("impute: fitted %d categorical and %d continuous columns on %d rows",
		len(m.Categorical), len(m.Continuous), t.Len())
	return m, nil
}

// Median returns the middle value of xs, averaging the two middle values for
// an even count. xs is not modified.
func Median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// parseColumn parses col as floats. Missing and unparseable cells are nil;
// the count of unparseable non-missing cells is returned alongside.
func parseColumn(t *table.Table, col string) ([]*float64, int) {
	raw := t.Column(col)
	out := make([]*float64, len(raw))
	bad := 0
	for i, s := range raw {
		if schema.IsMissing(s) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			bad++
			continue
		}
		out[i] = &v
	}
	return out, bad
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func toSet(list []string) map[string]bool {
	out := make(map[string]bool, len(list))
	for _, s := range list {
		out[s] = true
	}
	return out
}

// ResidualMissingError reports cells still missing after imputation.
type ResidualMissingError struct {
	Counts map[string]int
}

func (e *ResidualMissingError) Error() string {
	cols := make([]string, 0, len(e.Counts))
	for c := range e.Counts {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	parts := make([]string, len(cols))
	total := 0
	for i, c := range cols {
		parts[i] = fmt.Sprintf("%s=%d", c, e.Counts[c])
		total += e.Counts[c]
	}
	return fmt.Sprintf("impute: %d missing values remain after imputation (%s)", total, strings.Join(parts, ", "))
}
