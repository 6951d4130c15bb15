// Package encode turns an imputed table into model inputs: min-max scaled
// continuous columns and one-hot encoded categoricals whose column set is
// pinned to the one produced at fit time.
package encode

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/casualty.report/internal/monitoring"
	"github.com/banshee-data/casualty.report/internal/schema"
	"github.com/banshee-data/casualty.report/internal/table"
)

// MinMaxScaler rescales columns linearly so the fitted range maps to [0, 1].
type MinMaxScaler struct {
	Columns []string           `json:"columns"`
	Min     map[string]float64 `json:"min"`
	Max     map[string]float64 `json:"max"`
}

// FitMinMax records the range of the observed values of each present column.
// Missing and unparseable cells are ignored, so t may be the table before
// imputation. A column with no observed values is not scaled.
func FitMinMax(t *table.Table, cols []string) *MinMaxScaler {
	s := &MinMaxScaler{Min: make(map[string]float64), Max: make(map[string]float64)}
	for _, col := range cols {
		if !t.Has(col) {
			continue
		}
		values, bad := observedFloats(t, col)
		if bad > 0 {
			monitoring.Warnf("encode: ignoring %d unparseable %s values when fitting the scaler", bad, col)
		}
		if len(values) == 0 {
			monitoring.Warnf("encode: continuous column %s has no observed values, left unscaled", col)
			continue
		}
		s.Columns = append(s.Columns, col)
		s.Min[col] = floats.Min(values)
		s.Max[col] = floats.Max(values)
	}
	return s
}

// Scale maps v into the fitted range of col. Values outside the fitted range
// are not clipped. A constant column scales to 0.
func (s *MinMaxScaler) Scale(col string, v float64) float64 {
	lo, hi := s.Min[col], s.Max[col]
	if hi == lo {
		return 0
	}
	return (v - lo) / (hi - lo)
}

// Transform returns a copy of t with every fitted column rescaled.
func (s *MinMaxScaler) Transform(t *table.Table) (*table.Table, error) {
	out := t.Clone()
	for _, col := range s.Columns {
		if !out.Has(col) {
			continue
		}
		values, err := parseFloats(out, col)
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			out.Set(i, col, strconv.FormatFloat(s.Scale(col, v), 'f', -1, 64))
		}
	}
	return out, nil
}

func observedFloats(t *table.Table, col string) ([]float64, int) {
	var out []float64
	bad := 0
	for _, v := range t.Column(col) {
		if schema.IsMissing(v) {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			bad++
			continue
		}
		out = append(out, f)
	}
	return out, bad
}

func parseFloats(t *table.Table, col string) ([]float64, error) {
	raw := t.Column(col)
	out := make([]float64, len(raw))
	for i, v := range raw {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("encode: column %s row %d: %q is not numeric", col, i, v)
		}
		out[i] = f
	}
	return out, nil
}
