package qfactor

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is an immutable snapshot of every threshold and cap the analysis
// uses. It is passed by value into each Analyze call so concurrent analyses
// with different settings cannot interfere.
type Config struct {
	// EigenvalueThreshold is the Kaiser retention threshold: components whose
	// eigenvalue clears it are kept as factors.
	EigenvalueThreshold float64 `yaml:"eigenvalue_threshold"`

	// MinFactorLoading is the absolute loading a participant needs to count
	// as significantly associated with a factor.
	MinFactorLoading float64 `yaml:"min_factor_loading"`

	// RotationMaxIterations caps varimax sweeps; RotationTolerance is the
	// largest per-sweep loading change still considered converged.
	RotationMaxIterations int     `yaml:"rotation_max_iterations"`
	RotationTolerance     float64 `yaml:"rotation_tolerance"`

	// NFactors, when non-zero, overrides the eigenvalue-based factor-count
	// decision entirely. Must be at least 2 and at most the participant count.
	NFactors int `yaml:"n_factors"`

	// ScoreMin/ScoreMax bound the integer score range agreed with the
	// upstream forced-distribution sorter.
	ScoreMin int `yaml:"score_min"`
	ScoreMax int `yaml:"score_max"`

	// CheckForcedDistribution, when set, flags rows deviating from the
	// canonical forced distribution as data-quality warnings.
	CheckForcedDistribution bool `yaml:"check_forced_distribution"`

	// ConsensusThreshold is the max Z-score spread across factors for a
	// statement to count as consensus; DistinguishingThreshold is the min
	// Z-score distance from every other factor for a distinguishing statement.
	ConsensusThreshold      float64 `yaml:"consensus_threshold"`
	DistinguishingThreshold float64 `yaml:"distinguishing_threshold"`

	// InterpretationTopN is how many top/bottom statements per factor to
	// surface for downstream interpretation.
	InterpretationTopN int `yaml:"interpretation_top_n"`
}

// DefaultConfig returns the production analysis configuration.
func DefaultConfig() Config {
	return Config{
		EigenvalueThreshold:     1.0, // Kaiser's rule
		MinFactorLoading:        0.4,
		RotationMaxIterations:   100,
		RotationTolerance:       1e-5,
		NFactors:                0, // eigenvalue-based decision
		ScoreMin:                -5,
		ScoreMax:                5,
		CheckForcedDistribution: false,
		ConsensusThreshold:      0.5,
		DistinguishingThreshold: 1.0,
		InterpretationTopN:      5,
	}
}

// LoadConfigFromFile reads a YAML analysis configuration, applying defaults
// for any field the file leaves unset.
func LoadConfigFromFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that every threshold and cap is usable.
func (c Config) Validate() error {
	if c.EigenvalueThreshold <= 0 {
		return fmt.Errorf("eigenvalue_threshold must be positive, got %.4f", c.EigenvalueThreshold)
	}
	if c.MinFactorLoading <= 0 || c.MinFactorLoading >= 1 {
		return fmt.Errorf("min_factor_loading %.4f outside (0, 1)", c.MinFactorLoading)
	}
	if c.RotationMaxIterations < 1 {
		return fmt.Errorf("rotation_max_iterations must be at least 1, got %d", c.RotationMaxIterations)
	}
	if c.RotationTolerance <= 0 {
		return fmt.Errorf("rotation_tolerance must be positive, got %g", c.RotationTolerance)
	}
	if c.NFactors != 0 && c.NFactors < 2 {
		return fmt.Errorf("n_factors override must be at least 2, got %d", c.NFactors)
	}
	if c.ScoreMin >= c.ScoreMax {
		return fmt.Errorf("score range [%d, %d] is empty", c.ScoreMin, c.ScoreMax)
	}
	if c.ConsensusThreshold <= 0 {
		return fmt.Errorf("consensus_threshold must be positive, got %.4f", c.ConsensusThreshold)
	}
	if c.DistinguishingThreshold <= 0 {
		return fmt.Errorf("distinguishing_threshold must be positive, got %.4f", c.DistinguishingThreshold)
	}
	if c.InterpretationTopN < 1 {
		return fmt.Errorf("interpretation_top_n must be at least 1, got %d", c.InterpretationTopN)
	}
	return nil
}
