package matching

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// CalibrationConfig holds optional overrides for the compiled-in field
// weights. The decay constants in scorer.go are compile-time constants and
// are not overridable here. spec §6 treats weights as compile-time
// constants; this exists only for an offline calibration pass (spec §9's
// open question on the decay constants) and is never required at runtime.
type CalibrationConfig struct {
	// FieldWeights overrides individual entries of the Field Registry by
	// name (e.g. "locality": 0.5).
	FieldWeights map[string]float64 `yaml:"field_weights"`
}

var (
	calibration   *CalibrationConfig
	calibrationMu sync.RWMutex
)

// LoadCalibrationConfig loads an optional YAML override file from
// configDir/matching_weights.yaml. A missing file is not an error: the
// compiled-in registry weights remain in effect, mirroring the teacher's
// LoadScorerConfig fallback-to-defaults shape.
func LoadCalibrationConfig(configDir string) error {
	path := filepath.Join(configDir, "matching_weights.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read matching calibration file: %w", err)
	}

	var cfg CalibrationConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse matching calibration file: %w", err)
	}

	calibrationMu.Lock()
	calibration = &cfg
	calibrationMu.Unlock()

	fmt.Printf("[INFO] Loaded matching calibration from %s with %d weight overrides\n", path, len(cfg.FieldWeights))
	return nil
}

// ResetCalibrationConfig discards any loaded override, restoring the
// compiled-in defaults. Intended for tests.
func ResetCalibrationConfig() {
	calibrationMu.Lock()
	calibration = nil
	calibrationMu.Unlock()
}

// weightOf returns the effective weight for a registry entry: the
// calibration override if one is loaded and present, else the compiled-in
// default.
func weightOf(name string, defaultWeight float64) float64 {
	calibrationMu.RLock()
	defer calibrationMu.RUnlock()

	if calibration != nil {
		if w, ok := calibration.FieldWeights[name]; ok {
			return w
		}
	}
	return defaultWeight
}
