package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPipelineConfig(t *testing.T) {
	cfg := DefaultPipelineConfig()

	if cfg.BikeEngineFactor == nil || *cfg.BikeEngineFactor != 0.00065 {
		t.Errorf("Expected BikeEngineFactor 0.00065, got %v", cfg.BikeEngineFactor)
	}
	if cfg.TargetColumn == nil || *cfg.TargetColumn != "casualty_severity" {
		t.Errorf("Expected TargetColumn casualty_severity, got %v", cfg.TargetColumn)
	}
	assert.Equal(t, "vehicle_type_adjusted", cfg.GetMedianGroupings()["engine_capacity_cc"])
	assert.Equal(t, "Motorcycle 50cc and under", cfg.GetAdjustedVehicleTypes()["Electric motorcycle"])
	assert.Equal(t, "Undefined", cfg.GetBikePropulsionCode())
	assert.NotContains(t, cfg.GetContinuousColumns(), "speed_limit")
	assert.Empty(t, cfg.GetColumnSentinels())
	assert.Equal(t, uint64(42), cfg.GetSeed())
	assert.True(t, cfg.GetEncode())
	assert.NoError(t, cfg.Validate())
}

func TestDefaultMissingSentinels(t *testing.T) {
	sentinels := DefaultPipelineConfig().GetMissingSentinels()

	tests := []struct {
		value   string
		missing bool
	}{
		{"Data missing or out of range", true},
		{"unknown (self reported)", true},
		{"Unknown", true},
		{"Not known", true},
		{"Undefined", true},
		{"NA", true},
		{"-1", false},
		{"0", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			if tt.missing {
				assert.Contains(t, sentinels, tt.value)
			} else {
				assert.NotContains(t, sentinels, tt.value)
			}
		})
	}
}

func TestEmptyConfig_GettersFallBack(t *testing.T) {
	empty := EmptyPipelineConfig()
	def := DefaultPipelineConfig()

	assert.Equal(t, def.GetColumnAliases(), empty.GetColumnAliases())
	assert.Equal(t, def.GetMissingSentinels(), empty.GetMissingSentinels())
	assert.Equal(t, def.GetCasualtyColumns(), empty.GetCasualtyColumns())
	assert.Equal(t, def.GetVehicleColumns(), empty.GetVehicleColumns())
	assert.Equal(t, def.GetDriverColumns(), empty.GetDriverColumns())
	assert.Equal(t, def.GetDropColumns(), empty.GetDropColumns())
	assert.Equal(t, def.GetContinuousColumns(), empty.GetContinuousColumns())
	assert.Equal(t, def.GetGeographicColumns(), empty.GetGeographicColumns())
	assert.Equal(t, def.GetAdjustedVehicleTypes(), empty.GetAdjustedVehicleTypes())
	assert.Equal(t, def.GetBikePropulsionCode(), empty.GetBikePropulsionCode())
	assert.Equal(t, 0.00065, empty.GetBikeEngineFactor())
	assert.NoError(t, empty.Validate())

	// Getters must not hand out the shared defaults.
	empty.GetDropColumns()[0] = "mutated"
	assert.Equal(t, "time", empty.GetDropColumns()[0])
}

func TestDefaultsFileMatchesDefaultPipelineConfig(t *testing.T) {
	cfg, err := LoadPipelineConfig(filepath.Join("..", "..", DefaultConfigPath))
	require.NoError(t, err)

	if diff := cmp.Diff(DefaultPipelineConfig(), cfg); diff != "" {
		t.Errorf("defaults file drifted from DefaultPipelineConfig (-code +file):\n%s", diff)
	}
}

func TestLoadPipelineConfig(t *testing.T) {
	tmpDir := t.TempDir()

	testCases := []struct {
		name    string
		file    string
		content string
	}{
		{"json", "cfg.json", `{"seed": 7, "encode": false, "drop_columns": ["lsoa_of_casualty"]}`},
		{"yaml", "cfg.yaml", "seed: 7\nencode: false\ndrop_columns:\n  - lsoa_of_casualty\n"},
		{"yml", "cfg.yml", "seed: 7\nencode: false\ndrop_columns: [lsoa_of_casualty]\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tc.file)
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0644))

			cfg, err := LoadPipelineConfig(path)
			require.NoError(t, err)
			assert.Equal(t, uint64(7), cfg.GetSeed())
			assert.False(t, cfg.GetEncode())
			assert.Equal(t, []string{"lsoa_of_casualty"}, cfg.GetDropColumns())
			// Untouched fields keep defaults.
			assert.Equal(t, "casualty_severity", cfg.GetTargetColumn())
		})
	}
}

func TestLoadPipelineConfig_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	testCases := []struct {
		name    string
		file    string
		content string
	}{
		{"bad_extension", "cfg.toml", `seed = 1`},
		{"bad_json", "bad.json", `{"seed": `},
		{"factor_out_of_range", "factor.json", `{"bike_engine_factor": 1.5}`},
		{"grouping_not_continuous", "group.json", `{"median_groupings": {"sex_of_driver": "vehicle_subtype"}}`},
		{"grouping_by_continuous", "bycont.json", `{"median_groupings": {"age_of_driver": "age_of_casualty"}}`},
		{"target_dropped", "drop.json", `{"drop_columns": ["casualty_severity"]}`},
		{"target_continuous", "tc.json", `{"target_column": "age_of_casualty"}`},
		{"empty_target", "et.json", `{"target_column": ""}`},
		{"geographic_not_continuous", "geo.json", `{"geographic_columns": ["road_type"]}`},
		{"empty_column_sentinel", "cs.json", `{"column_sentinels": {"junction_control": [""]}}`},
		{"empty_bike_propulsion_code", "bp.json", `{"bike_propulsion_code": ""}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tc.file)
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0644))
			_, err := LoadPipelineConfig(path)
			assert.Error(t, err)
		})
	}

	_, err := LoadPipelineConfig(filepath.Join(tmpDir, "missing.json"))
	assert.Error(t, err)
}
