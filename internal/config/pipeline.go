package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical pipeline defaults file.
// DefaultPipelineConfig mirrors its contents.
const DefaultConfigPath = "config/pipeline.defaults.json"

// PipelineConfig describes which columns play which role in the pipeline and
// how missing values are filled. Nil fields fall back to the defaults returned
// by the Get* accessors, so partial files are safe.
type PipelineConfig struct {
	// Schema normalisation
	ColumnAliases    map[string]string `json:"column_aliases,omitempty" yaml:"column_aliases,omitempty" validate:"omitempty,dive,keys,required,endkeys,required"`
	MissingSentinels []string          `json:"missing_sentinels,omitempty" yaml:"missing_sentinels,omitempty"`

	// ColumnSentinels are extra sentinels honoured only in the named column,
	// e.g. numeric codes such as "-1" in a coded categorical.
	ColumnSentinels map[string][]string `json:"column_sentinels,omitempty" yaml:"column_sentinels,omitempty" validate:"omitempty,dive,keys,required,endkeys,dive,required"`

	// Record expansion: which side of the join each column comes from
	CasualtyColumns []string `json:"casualty_columns,omitempty" yaml:"casualty_columns,omitempty" validate:"omitempty,dive,required"`
	VehicleColumns  []string `json:"vehicle_columns,omitempty" yaml:"vehicle_columns,omitempty" validate:"omitempty,dive,required"`
	DriverColumns   []string `json:"driver_columns,omitempty" yaml:"driver_columns,omitempty" validate:"omitempty,dive,required"`

	// Feature selection
	DropColumns  []string `json:"drop_columns,omitempty" yaml:"drop_columns,omitempty" validate:"omitempty,dive,required"`
	TargetColumn *string  `json:"target_column,omitempty" yaml:"target_column,omitempty" validate:"omitempty,min=1"`

	// BikePropulsionCode is the fixed propulsion_code category written for
	// bicycle vehicle records.
	BikePropulsionCode *string `json:"bike_propulsion_code,omitempty" yaml:"bike_propulsion_code,omitempty" validate:"omitempty,min=1"`

	// Imputation
	ContinuousColumns []string          `json:"continuous_columns,omitempty" yaml:"continuous_columns,omitempty" validate:"omitempty,dive,required"`
	MedianGroupings   map[string]string `json:"median_groupings,omitempty" yaml:"median_groupings,omitempty" validate:"omitempty,dive,keys,required,endkeys,required"`
	BikeEngineFactor  *float64          `json:"bike_engine_factor,omitempty" yaml:"bike_engine_factor,omitempty" validate:"omitempty,gt=0,lt=1"`
	Seed              *uint64           `json:"seed,omitempty" yaml:"seed,omitempty"`

	// AdjustedVehicleTypes relabels vehicle_type values that lack engine
	// capacities onto the closest type that has them. The result is the
	// vehicle_type_adjusted grouping key, which never reaches the output.
	AdjustedVehicleTypes map[string]string `json:"adjusted_vehicle_types,omitempty" yaml:"adjusted_vehicle_types,omitempty" validate:"omitempty,dive,keys,required,endkeys,required"`

	// Encoding
	GeographicColumns []string `json:"geographic_columns,omitempty" yaml:"geographic_columns,omitempty" validate:"omitempty,dive,required"`
	Encode            *bool    `json:"encode,omitempty" yaml:"encode,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrUint64(v uint64) *uint64    { return &v }

var (
	defaultAliases = map[string]string{
		"longitude.x": "longitude",
		"latitude.x":  "latitude",
		"date.x":      "date",
	}

	defaultSentinels = []string{
		"", "NA", "N/A", "NaN", "nan", "NULL", "null", "None",
		"Data missing or out of range", "unknown (self reported)", "Unknown",
		"Not known", "Undefined",
	}

	defaultCasualtyColumns = []string{
		"longitude", "latitude", "date", "day_of_week", "time",
		"first_road_class", "road_type", "speed_limit", "junction_detail",
		"junction_control", "second_road_class",
		"pedestrian_crossing_human_control", "pedestrian_crossing_physical_facilities",
		"light_conditions", "weather_conditions", "road_surface_conditions",
		"special_conditions_at_site", "carriageway_hazards", "urban_or_rural_area",
		"RH2M", "T2M", "PRECTOTCORR", "WS2M",
		"sex_of_casualty", "age_of_casualty", "age_band_of_casualty",
		"casualty_severity", "casualty_home_area_type", "casualty_imd_decile",
		"lsoa_of_casualty",
	}

	defaultVehicleColumns = []string{
		"vehicle_type", "vehicle_subtype", "towing_and_articulation",
		"vehicle_manoeuvre", "vehicle_location_restricted_lane", "junction_location",
		"skidding_and_overturning", "hit_object_in_carriageway",
		"vehicle_leaving_carriageway", "hit_object_off_carriageway",
		"first_point_of_impact", "vehicle_left_hand_drive",
		"engine_capacity_cc", "propulsion_code", "age_of_vehicle",
	}

	defaultDriverColumns = []string{
		"journey_purpose_of_driver", "sex_of_driver", "age_of_driver",
		"age_band_of_driver", "driver_imd_decile", "driver_home_area_type",
		"lsoa_of_driver",
	}

	defaultDropColumns = []string{"time", "lsoa_of_casualty", "lsoa_of_driver"}

	defaultContinuousColumns = []string{
		"longitude", "latitude", "RH2M", "T2M", "PRECTOTCORR", "WS2M",
		"age_of_casualty", "engine_capacity_cc", "age_of_vehicle", "age_of_driver",
	}

	defaultMedianGroupings = map[string]string{
		"engine_capacity_cc": "vehicle_type_adjusted",
		"age_of_vehicle":     "vehicle_subtype",
		"age_of_casualty":    "age_band_of_casualty",
		"age_of_driver":      "age_band_of_driver",
	}

	defaultAdjustedVehicleTypes = map[string]string{
		"Agricultural vehicle":                 "Goods over 3.5t. and under 7.5t",
		"Goods vehicle - unknown weight":       "Goods over 3.5t. and under 7.5t",
		"Electric motorcycle":                  "Motorcycle 50cc and under",
		"Motorcycle - unknown cc":              "Motorcycle 125cc and under",
		"Unknown vehicle type (self rep only)": "Car",
	}

	defaultGeographicColumns = []string{"longitude", "latitude"}
)

const (
	defaultTargetColumn       = "casualty_severity"
	defaultBikePropulsionCode = "Undefined"
	defaultBikeEngineFactor   = 0.00065
	defaultSeed               = 42
)

// DefaultPipelineConfig returns a config with every field populated with the
// canonical defaults.
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		ColumnAliases:        copyMap(defaultAliases),
		MissingSentinels:     copyStrings(defaultSentinels),
		ColumnSentinels:      map[string][]string{},
		CasualtyColumns:      copyStrings(defaultCasualtyColumns),
		VehicleColumns:       copyStrings(defaultVehicleColumns),
		DriverColumns:        copyStrings(defaultDriverColumns),
		DropColumns:          copyStrings(defaultDropColumns),
		TargetColumn:         ptrString(defaultTargetColumn),
		BikePropulsionCode:   ptrString(defaultBikePropulsionCode),
		ContinuousColumns:    copyStrings(defaultContinuousColumns),
		MedianGroupings:      copyMap(defaultMedianGroupings),
		AdjustedVehicleTypes: copyMap(defaultAdjustedVehicleTypes),
		BikeEngineFactor:     ptrFloat64(defaultBikeEngineFactor),
		Seed:                 ptrUint64(defaultSeed),
		GeographicColumns:    copyStrings(defaultGeographicColumns),
		Encode:               ptrBool(true),
	}
}

// EmptyPipelineConfig returns a config with all fields unset.
func EmptyPipelineConfig() *PipelineConfig {
	return &PipelineConfig{}
}

// LoadPipelineConfig loads a PipelineConfig from a JSON (.json) or YAML
// (.yaml, .yml) file. Fields omitted from the file keep their defaults.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyPipelineConfig()
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", ext, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints and the relationships between column
// roles after defaults are applied.
func (c *PipelineConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	continuous := make(map[string]bool)
	for _, col := range c.GetContinuousColumns() {
		continuous[col] = true
	}
	target := c.GetTargetColumn()
	if continuous[target] {
		return fmt.Errorf("target_column %q cannot also be continuous", target)
	}
	for col, by := range c.GetMedianGroupings() {
		if !continuous[col] {
			return fmt.Errorf("median_groupings key %q is not a continuous column", col)
		}
		if continuous[by] {
			return fmt.Errorf("median_groupings %q groups by continuous column %q", col, by)
		}
	}
	for _, col := range c.GetGeographicColumns() {
		if !continuous[col] {
			return fmt.Errorf("geographic column %q is not a continuous column", col)
		}
	}
	for _, col := range c.GetDropColumns() {
		if col == target {
			return fmt.Errorf("drop_columns cannot contain the target column %q", target)
		}
	}
	return nil
}

// GetColumnAliases returns the column_aliases value or the default.
func (c *PipelineConfig) GetColumnAliases() map[string]string {
	if c.ColumnAliases == nil {
		return copyMap(defaultAliases)
	}
	return c.ColumnAliases
}

// GetMissingSentinels returns the missing_sentinels value or the default.
func (c *PipelineConfig) GetMissingSentinels() []string {
	if c.MissingSentinels == nil {
		return copyStrings(defaultSentinels)
	}
	return c.MissingSentinels
}

// GetColumnSentinels returns the column_sentinels value, empty by default.
func (c *PipelineConfig) GetColumnSentinels() map[string][]string {
	if c.ColumnSentinels == nil {
		return map[string][]string{}
	}
	return c.ColumnSentinels
}

// GetCasualtyColumns returns the casualty_columns value or the default.
func (c *PipelineConfig) GetCasualtyColumns() []string {
	if c.CasualtyColumns == nil {
		return copyStrings(defaultCasualtyColumns)
	}
	return c.CasualtyColumns
}

// GetVehicleColumns returns the vehicle_columns value or the default.
func (c *PipelineConfig) GetVehicleColumns() []string {
	if c.VehicleColumns == nil {
		return copyStrings(defaultVehicleColumns)
	}
	return c.VehicleColumns
}

// GetDriverColumns returns the driver_columns value or the default.
func (c *PipelineConfig) GetDriverColumns() []string {
	if c.DriverColumns == nil {
		return copyStrings(defaultDriverColumns)
	}
	return c.DriverColumns
}

// GetDropColumns returns the drop_columns value or the default.
func (c *PipelineConfig) GetDropColumns() []string {
	if c.DropColumns == nil {
		return copyStrings(defaultDropColumns)
	}
	return c.DropColumns
}

// GetTargetColumn returns the target_column value or the default.
func (c *PipelineConfig) GetTargetColumn() string {
	if c.TargetColumn == nil {
		return defaultTargetColumn
	}
	return *c.TargetColumn
}

// GetBikePropulsionCode returns the bike_propulsion_code value or the default.
func (c *PipelineConfig) GetBikePropulsionCode() string {
	if c.BikePropulsionCode == nil {
		return defaultBikePropulsionCode
	}
	return *c.BikePropulsionCode
}

// GetContinuousColumns returns the continuous_columns value or the default.
func (c *PipelineConfig) GetContinuousColumns() []string {
	if c.ContinuousColumns == nil {
		return copyStrings(defaultContinuousColumns)
	}
	return c.ContinuousColumns
}

// GetMedianGroupings returns the median_groupings value or the default.
func (c *PipelineConfig) GetMedianGroupings() map[string]string {
	if c.MedianGroupings == nil {
		return copyMap(defaultMedianGroupings)
	}
	return c.MedianGroupings
}

// GetAdjustedVehicleTypes returns the adjusted_vehicle_types value or the
// default.
func (c *PipelineConfig) GetAdjustedVehicleTypes() map[string]string {
	if c.AdjustedVehicleTypes == nil {
		return copyMap(defaultAdjustedVehicleTypes)
	}
	return c.AdjustedVehicleTypes
}

// GetBikeEngineFactor returns the bike_engine_factor value or the default.
func (c *PipelineConfig) GetBikeEngineFactor() float64 {
	if c.BikeEngineFactor == nil {
		return defaultBikeEngineFactor
	}
	return *c.BikeEngineFactor
}

// GetSeed returns the seed value or the default.
func (c *PipelineConfig) GetSeed() uint64 {
	if c.Seed == nil {
		return defaultSeed
	}
	return *c.Seed
}

// GetGeographicColumns returns the geographic_columns value or the default.
func (c *PipelineConfig) GetGeographicColumns() []string {
	if c.GeographicColumns == nil {
		return copyStrings(defaultGeographicColumns)
	}
	return c.GeographicColumns
}

// GetEncode returns the encode value or the default.
func (c *PipelineConfig) GetEncode() bool {
	if c.Encode == nil {
		return true
	}
	return *c.Encode
}

func copyStrings(s []string) []string { return append([]string(nil), s...) }

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
