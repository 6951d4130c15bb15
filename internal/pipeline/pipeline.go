// Package pipeline chains the preprocessing stages: schema normalisation,
// vehicle classification, record expansion, feature derivation, imputation
// and encoding. Fit learns the artifacts from a training table; Apply reuses
// them on any other table so both sides share one column set.
package pipeline

import (
	"fmt"
	"math/rand/v2"

	"github.com/banshee-data/casualty.report/internal/config"
	"github.com/banshee-data/casualty.report/internal/encode"
	"github.com/banshee-data/casualty.report/internal/expand"
	"github.com/banshee-data/casualty.report/internal/features"
	"github.com/banshee-data/casualty.report/internal/impute"
	"github.com/banshee-data/casualty.report/internal/monitoring"
	"github.com/banshee-data/casualty.report/internal/schema"
	"github.com/banshee-data/casualty.report/internal/table"
	"github.com/banshee-data/casualty.report/internal/timeutil"
	"github.com/banshee-data/casualty.report/internal/vehicle"
)

// IncompleteTargetError reports training rows without a target label.
type IncompleteTargetError struct {
	Column  string
	Missing int
}

func (e *IncompleteTargetError) Error() string {
	return fmt.Sprintf("pipeline: target column %q has %d missing labels", e.Column, e.Missing)
}

// Prepare normalises raw, classifies vehicles, expands to one row per bicycle
// casualty, fixes the bicycle propulsion code, derives features and drops the
// configured columns. raw is modified in place by normalisation and
// classification.
func Prepare(raw *table.Table, cfg *config.PipelineConfig) (*table.Table, expand.Stats, error) {
	schema.Normalize(raw, cfg.GetColumnAliases(), cfg.GetMissingSentinels(), cfg.GetColumnSentinels())
	layout, err := schema.Validate(raw, schema.Columns{
		Casualty: cfg.GetCasualtyColumns(),
		Vehicle:  cfg.GetVehicleColumns(),
		Driver:   cfg.GetDriverColumns(),
	})
	if err != nil {
		return nil, expand.Stats{}, err
	}
	vehicle.Annotate(raw)

	out, stats, err := expand.Expand(raw, layout)
	if err != nil {
		return nil, stats, err
	}
	vehicle.SetForBikes(out, schema.PropulsionCode, cfg.GetBikePropulsionCode())
	features.Derive(out, layout)
	out.Drop(cfg.GetDropColumns()...)

	monitoring.Logf("pipeline: prepared %d bicycle casualties from %d records (%d accidents, %d self-paired)",
		stats.Casualties, stats.InputRows, stats.Accidents, stats.SelfFallback)
	return out, stats, nil
}

// Fit prepares raw, learns the imputation model and the encoder, and returns
// the transformed training table with its artifacts.
func Fit(raw *table.Table, cfg *config.PipelineConfig, clock timeutil.Clock) (*table.Table, *Artifacts, error) {
	prepared, _, err := Prepare(raw, cfg)
	if err != nil {
		return nil, nil, err
	}
	target := cfg.GetTargetColumn()
	if err := checkTarget(prepared, target); err != nil {
		return nil, nil, err
	}

	art := newArtifacts(clock, cfg.GetSeed())
	art.Missing = impute.MissingCounts(prepared)

	model, err := impute.Fit(prepared, imputeOptions(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("pipeline: fit imputation: %w", err)
	}
	art.Imputation = model

	imputed, err := model.Apply(prepared, newRand(art.Seed))
	if err != nil {
		return nil, nil, fmt.Errorf("pipeline: impute training table: %w", err)
	}
	if !cfg.GetEncode() {
		return imputed, art, nil
	}

	enc, err := encode.Fit(prepared, imputed, encodeOptions(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("pipeline: fit encoder: %w", err)
	}
	art.Encoding = enc
	out, err := enc.Apply(imputed)
	if err != nil {
		return nil, nil, fmt.Errorf("pipeline: encode training table: %w", err)
	}
	monitoring.Logf("pipeline: fit run %s produced %d rows x %d columns", art.RunID, out.Len(), len(out.Columns()))
	return out, art, nil
}

// Apply prepares raw and transforms it with previously fitted artifacts. The
// target column may hold missing labels here.
func Apply(raw *table.Table, art *Artifacts, cfg *config.PipelineConfig) (*table.Table, error) {
	if art == nil || art.Imputation == nil {
		return nil, fmt.Errorf("pipeline: artifacts have no imputation model")
	}
	prepared, _, err := Prepare(raw, cfg)
	if err != nil {
		return nil, err
	}
	imputed, err := art.Imputation.Apply(prepared, newRand(art.Seed))
	if err != nil {
		return nil, fmt.Errorf("pipeline: impute: %w", err)
	}
	if art.Encoding == nil {
		return imputed, nil
	}
	out, err := art.Encoding.Apply(imputed)
	if err != nil {
		return nil, fmt.Errorf("pipeline: encode: %w", err)
	}
	monitoring.Logf("pipeline: applied run %s to %d rows x %d columns", art.RunID, out.Len(), len(out.Columns()))
	return out, nil
}

func checkTarget(t *table.Table, target string) error {
	if !t.Has(target) {
		monitoring.Warnf("pipeline: target column %q not present", target)
		return nil
	}
	n := 0
	for _, v := range t.Column(target) {
		if schema.IsMissing(v) {
			n++
		}
	}
	if n > 0 {
		return &IncompleteTargetError{Column: target, Missing: n}
	}
	return nil
}

func imputeOptions(cfg *config.PipelineConfig) impute.Options {
	return impute.Options{
		Continuous:       cfg.GetContinuousColumns(),
		Groupings:        cfg.GetMedianGroupings(),
		Exclude:          []string{cfg.GetTargetColumn()},
		BikeEngineFactor: cfg.GetBikeEngineFactor(),
		KeyRemap: &impute.KeyRemap{
			Source: schema.VehicleType,
			Column: schema.AdjustedVehicleType,
			Values: cfg.GetAdjustedVehicleTypes(),
		},
	}
}

func encodeOptions(cfg *config.PipelineConfig) encode.Options {
	return encode.Options{
		Continuous: cfg.GetContinuousColumns(),
		Geographic: cfg.GetGeographicColumns(),
		Exclude:    []string{cfg.GetTargetColumn(), schema.Date, schema.Time},
	}
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}
