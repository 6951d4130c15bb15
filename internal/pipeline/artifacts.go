package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/casualty.report/internal/encode"
	"github.com/banshee-data/casualty.report/internal/fsutil"
	"github.com/banshee-data/casualty.report/internal/impute"
	"github.com/banshee-data/casualty.report/internal/timeutil"
	"github.com/banshee-data/casualty.report/internal/version"
)

// Artifacts is everything Fit learns from the training table. Apply needs
// nothing else to transform a new table the same way.
type Artifacts struct {
	RunID    uuid.UUID `json:"run_id"`
	Version  string    `json:"version"`
	FittedAt time.Time `json:"fitted_at"`
	Seed     uint64    `json:"seed"`

	Imputation *impute.Model   `json:"imputation"`
	Encoding   *encode.Encoder `json:"encoding,omitempty"`

	// Missing holds per-column missing counts of the prepared training table
	// before imputation.
	Missing map[string]int `json:"missing_before_imputation,omitempty"`
}

func newArtifacts(clock timeutil.Clock, seed uint64) *Artifacts {
	return &Artifacts{
		RunID:    uuid.New(),
		Version:  version.String(),
		FittedAt: clock.Now().UTC(),
		Seed:     seed,
	}
}

// SaveArtifacts writes art as indented JSON.
func SaveArtifacts(fsys fsutil.FileSystem, path string, art *Artifacts) error {
	data, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode artifacts: %w", err)
	}
	if err := fsys.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write artifacts %s: %w", path, err)
	}
	return nil
}

// LoadArtifacts reads artifacts written by SaveArtifacts.
func LoadArtifacts(fsys fsutil.FileSystem, path string) (*Artifacts, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifacts %s: %w", path, err)
	}
	var art Artifacts
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("failed to parse artifacts %s: %w", path, err)
	}
	if art.Imputation == nil {
		return nil, fmt.Errorf("artifacts %s have no imputation model", path)
	}
	return &art, nil
}
