package encode

import (
	"fmt"
	"sort"

	"github.com/banshee-data/casualty.report/internal/monitoring"
	"github.com/banshee-data/casualty.report/internal/table"
)

// One-hot cell values.
const (
	Hot  = "1"
	Cold = "0"
)

// ColumnSet maps each source categorical column to the sorted one-hot column
// names produced for it.
type ColumnSet map[string][]string

// Names returns every one-hot column name in lexicographic order.
func (cs ColumnSet) Names() []string {
	var out []string
	for _, names := range cs {
		out = append(out, names...)
	}
	sort.Strings(out)
	return out
}

// DummyName is the one-hot column name for a category of col.
func DummyName(col, category string) string {
	return col + "_" + category
}

// OneHot replaces each present column in cols with one indicator column per
// observed category. It fails when an indicator name is already taken by
// another column, for example "a"="b_c" next to "a_b"="c".
func OneHot(t *table.Table, cols []string) (*table.Table, ColumnSet, error) {
	out := t.Clone()
	cs := make(ColumnSet)
	for _, col := range cols {
		if !out.Has(col) {
			continue
		}
		values := out.Column(col)
		seen := make(map[string]bool)
		var categories []string
		for _, v := range values {
			if !seen[v] {
				seen[v] = true
				categories = append(categories, v)
			}
		}
		sort.Strings(categories)

		names := make([]string, len(categories))
		for k, c := range categories {
			names[k] = DummyName(col, c)
			if out.Has(names[k]) {
				return nil, nil, fmt.Errorf("encode: one-hot column %q for %s=%q collides with an existing column", names[k], col, c)
			}
			out.AddColumn(names[k], Cold)
		}
		for i, v := range values {
			out.Set(i, DummyName(col, v), Hot)
		}
		out.Drop(col)
		cs[col] = names
	}
	return out, cs, nil
}

// Align forces the one-hot columns of t to match ref: reference columns that
// t lacks are added as Cold, and columns in got that ref never produced
// (categories unseen at fit time) are dropped.
func Align(t *table.Table, got, ref ColumnSet) *table.Table {
	out := t.Clone()
	want := make(map[string]bool)
	added := 0
	for _, names := range ref {
		for _, n := range names {
			want[n] = true
			if !out.Has(n) {
				out.AddColumn(n, Cold)
				added++
			}
		}
	}
	var extra []string
	for src, names := range got {
		if _, pinned := ref[src]; !pinned {
			continue
		}
		for _, n := range names {
			if !want[n] {
				extra = append(extra, n)
			}
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		monitoring.Warnf("encode: dropping %d one-hot columns for categories unseen at fit time: %v", len(extra), extra)
		out.Drop(extra...)
	}
	if added > 0 {
		monitoring.Logf("encode: added %d reference one-hot columns absent from input", added)
	}
	return out
}

// Options selects the columns an Encoder is fitted over.
type Options struct {
	Continuous []string
	// Geographic columns are continuous but left unscaled.
	Geographic []string
	// Exclude lists columns passed through untouched (date/time text, target).
	Exclude []string
}

// Encoder holds the fitted scaler and the one-hot column reference.
type Encoder struct {
	Scaler      *MinMaxScaler `json:"scaler"`
	Categorical []string      `json:"categorical"`
	Columns     ColumnSet     `json:"columns"`
}

// Fit fits the scaler over the non-geographic continuous columns of
// reference and records the one-hot columns produced for every other
// non-excluded column of t. reference is normally the table before
// imputation, so filled medians and fixed bicycle values leave the scaled
// range alone; t is the imputed table.
func Fit(reference, t *table.Table, opts Options) (*Encoder, error) {
	skip := make(map[string]bool)
	for _, c := range opts.Geographic {
		skip[c] = true
	}
	var scaled []string
	for _, c := range opts.Continuous {
		if !skip[c] {
			scaled = append(scaled, c)
		}
	}
	scaler := FitMinMax(reference, scaled)

	for _, c := range opts.Continuous {
		skip[c] = true
	}
	for _, c := range opts.Exclude {
		skip[c] = true
	}
	e := &Encoder{Scaler: scaler}
	for _, c := range t.Columns() {
		if !skip[c] {
			e.Categorical = append(e.Categorical, c)
		}
	}
	var err error
	if _, e.Columns, err = OneHot(t, e.Categorical); err != nil {
		return nil, err
	}

	monitoring.Logf("encode: fitted scaler on %d columns, %d categorical columns -> %d one-hot columns",
		len(scaler.Columns), len(e.Categorical), len(e.Columns.Names()))
	return e, nil
}

// Apply scales, one-hot encodes and aligns t to the fitted column set, then
// sorts the columns lexicographically. It does not modify t, so repeated
// calls on the same input give identical output.
func (e *Encoder) Apply(t *table.Table) (*table.Table, error) {
	scaled, err := e.Scaler.Transform(t)
	if err != nil {
		return nil, err
	}
	encoded, got, err := OneHot(scaled, e.Categorical)
	if err != nil {
		return nil, err
	}
	return Align(encoded, got, e.Columns).SortColumns(), nil
}
