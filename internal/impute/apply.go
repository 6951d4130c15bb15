package impute

import (
	"math/rand/v2"
	"sort"

	"github.com/banshee-data/casualty.report/internal/monitoring"
	"github.com/banshee-data/casualty.report/internal/schema"
	"github.com/banshee-data/casualty.report/internal/table"
	"github.com/banshee-data/casualty.report/internal/vehicle"
)

// Distribution maps a category to its observed share of non-missing values.
type Distribution map[string]float64

// FitDistribution counts the non-missing values and normalises them to sum
// to 1. An all-missing column yields an empty distribution.
func FitDistribution(values []string) Distribution {
	counts := make(map[string]int)
	n := 0
	for _, v := range values {
		if schema.IsMissing(v) {
			continue
		}
		counts[v]++
		n++
	}
	d := make(Distribution, len(counts))
	for k, c := range counts {
		d[k] = float64(c) / float64(n)
	}
	return d
}

// sampler draws categories by inverse CDF over the sorted category list so a
// given seed always produces the same sequence.
type sampler struct {
	categories []string
	cumulative []float64
}

func newSampler(d Distribution) *sampler {
	if len(d) == 0 {
		return nil
	}
	s := &sampler{categories: make([]string, 0, len(d))}
	for k := range d {
		s.categories = append(s.categories, k)
	}
	sort.Strings(s.categories)
	total := 0.0
	for _, k := range s.categories {
		total += d[k]
		s.cumulative = append(s.cumulative, total)
	}
	return s
}

func (s *sampler) sample(rng *rand.Rand) string {
	u := rng.Float64() * s.cumulative[len(s.cumulative)-1]
	i := sort.Search(len(s.cumulative), func(i int) bool { return s.cumulative[i] > u })
	if i == len(s.categories) {
		i--
	}
	return s.categories[i]
}

// Sample draws n values from d using rng.
func (d Distribution) Sample(rng *rand.Rand, n int) []string {
	s := newSampler(d)
	if s == nil {
		return nil
	}
	out := make([]string, n)
	for i := range out {
		out[i] = s.sample(rng)
	}
	return out
}

// Apply returns a filled copy of t. Categorical columns are filled first, in
// sorted column order, by sampling from rng; continuous columns then use the
// grouped median for the row's (already filled) companion value and fall back
// to the global median. A derived grouping column from the model's KeyRemap
// is added for the median lookup and dropped again. Bicycle rows always receive the fitted bicycle engine
// capacity. Any cell still missing afterwards is a *ResidualMissingError.
func (m *Model) Apply(t *table.Table, rng *rand.Rand) (*table.Table, error) {
	out := t.Clone()

	cats := make([]string, 0, len(m.Categorical))
	for c := range m.Categorical {
		cats = append(cats, c)
	}
	sort.Strings(cats)

	sampled := 0
	for _, col := range cats {
		if !out.Has(col) {
			continue
		}
		s := newSampler(m.Categorical[col])
		if s == nil {
			continue
		}
		for i := 0; i < out.Len(); i++ {
			if schema.IsMissing(out.Get(i, col)) {
				out.Set(i, col, s.sample(rng))
				sampled++
			}
		}
	}

	derived := m.KeyRemap.addTo(out)
	grouped, global := 0, 0
	for _, col := range m.Continuous {
		if !out.Has(col) {
			continue
		}
		values, bad := parseColumn(out, col)
		if bad > 0 {
			monitoring.Warnf("impute: %d unparseable %s values treated as missing", bad, col)
		}
		gm, hasGroups := m.GroupedMedians[col]
		median, hasGlobal := m.GlobalMedians[col]
		for i, v := range values {
			if v != nil {
				continue
			}
			if hasGroups {
				if g, ok := gm.Medians[out.Get(i, gm.By)]; ok {
					out.Set(i, col, formatFloat(g))
					grouped++
					continue
				}
			}
			if hasGlobal {
				out.Set(i, col, formatFloat(median))
				global++
			} else {
				out.Set(i, col, schema.Missing)
			}
		}
	}

	if derived {
		out.Drop(m.KeyRemap.Column)
	}

	overridden := 0
	if m.BikeEngineCapacity != nil && out.Has(schema.EngineCapacity) {
		bike := formatFloat(*m.BikeEngineCapacity)
		for i := 0; i < out.Len(); i++ {
			if vehicle.Of(out, i) == vehicle.Bike {
				out.Set(i, schema.EngineCapacity, bike)
				overridden++
			}
		}
	}

	monitoring.Logf("impute: sampled %d categorical cells, %d grouped and %d global medians, %d bicycle engine capacities",
		sampled, grouped, global, overridden)

	if err := m.CheckComplete(out); err != nil {
		return nil, err
	}
	return out, nil
}

// CheckComplete fails when any non-excluded column still holds a missing cell.
func (m *Model) CheckComplete(t *table.Table) error {
	excluded := toSet(m.Exclude)
	residual := make(map[string]int)
	for col, n := range MissingCounts(t) {
		if n > 0 && !excluded[col] {
			residual[col] = n
		}
	}
	if len(residual) > 0 {
		return &ResidualMissingError{Counts: residual}
	}
	return nil
}

// MissingCounts tallies missing cells per column.
func MissingCounts(t *table.Table) map[string]int {
	cols := t.Columns()
	counts := make(map[string]int, len(cols))
	for _, c := range cols {
		counts[c] = 0
	}
	for i := 0; i < t.Len(); i++ {
		for j, v := range t.Row(i) {
			if schema.IsMissing(v) {
				counts[cols[j]]++
			}
		}
	}
	return counts
}
