package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/sarsim/internal/units"
)

// DefaultConfigPath is the conventional location of the radar defaults file.
const DefaultConfigPath = "config/radar.defaults.json"

const maxConfigFileSize = 1 * 1024 * 1024 // 1MB

// RadarConfig describes the scene, the transmitted chirp and the scan
// geometry. It is loaded once and never mutated during a run; values
// computed by stages live in sar.State instead.
//
// Fields omitted from the file fall back to the defaults returned by the
// Get* accessors, so partial configs are safe.
type RadarConfig struct {
	// Scene
	SceneRows     *int     `json:"scene_rows,omitempty" yaml:"scene_rows,omitempty"`
	SceneCols     *int     `json:"scene_cols,omitempty" yaml:"scene_cols,omitempty"`
	SceneSpacingM *float64 `json:"scene_spacing_m,omitempty" yaml:"scene_spacing_m,omitempty"`

	// Chirp
	StartFrequencyHz *float64 `json:"start_frequency_hz,omitempty" yaml:"start_frequency_hz,omitempty"`
	BandwidthHz      *float64 `json:"bandwidth_hz,omitempty" yaml:"bandwidth_hz,omitempty"`
	PulseDurationS   *float64 `json:"pulse_duration_s,omitempty" yaml:"pulse_duration_s,omitempty"`
	SampleRateHz     *float64 `json:"sample_rate_hz,omitempty" yaml:"sample_rate_hz,omitempty"`

	// Scan geometry
	AltitudeM     *float64 `json:"altitude_m,omitempty" yaml:"altitude_m,omitempty"`
	ScanPositions *int     `json:"scan_positions,omitempty" yaml:"scan_positions,omitempty"`
	ScanSpacingM  *float64 `json:"scan_spacing_m,omitempty" yaml:"scan_spacing_m,omitempty"`
	BeamwidthDeg  *float64 `json:"beamwidth_deg,omitempty" yaml:"beamwidth_deg,omitempty"`
	RangeBins     *int     `json:"range_bins,omitempty" yaml:"range_bins,omitempty"`

	// Processing
	DenoiseKernel   *int    `json:"denoise_kernel,omitempty" yaml:"denoise_kernel,omitempty"`
	ResolutionUnits *string `json:"resolution_units,omitempty" yaml:"resolution_units,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrString(v string) *string    { return &v }

// EmptyRadarConfig returns a RadarConfig with every field unset, so every
// accessor yields its default.
func EmptyRadarConfig() *RadarConfig {
	return &RadarConfig{}
}

// LoadRadarConfig loads a RadarConfig from a .json, .yaml or .yml file no
// larger than 1MB and validates it.
func LoadRadarConfig(path string) (*RadarConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	switch ext {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxConfigFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyRadarConfig()
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

// Validate checks that every set value is usable.
func (c *RadarConfig) Validate() error {
	positiveInts := []struct {
		name string
		v    *int
	}{
		{"scene_rows", c.SceneRows},
		{"scene_cols", c.SceneCols},
		{"scan_positions", c.ScanPositions},
		{"range_bins", c.RangeBins},
	}
	for _, f := range positiveInts {
		if f.v != nil && *f.v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", f.name, *f.v)
		}
	}

	positiveFloats := []struct {
		name string
		v    *float64
	}{
		{"scene_spacing_m", c.SceneSpacingM},
		{"bandwidth_hz", c.BandwidthHz},
		{"pulse_duration_s", c.PulseDurationS},
		{"sample_rate_hz", c.SampleRateHz},
		{"altitude_m", c.AltitudeM},
		{"scan_spacing_m", c.ScanSpacingM},
	}
	for _, f := range positiveFloats {
		if f.v != nil && *f.v <= 0 {
			return fmt.Errorf("%s must be positive, got %g", f.name, *f.v)
		}
	}

	if c.StartFrequencyHz != nil && *c.StartFrequencyHz < 0 {
		return fmt.Errorf("start_frequency_hz must be non-negative, got %g", *c.StartFrequencyHz)
	}
	if c.BeamwidthDeg != nil && (*c.BeamwidthDeg <= 0 || *c.BeamwidthDeg >= 180) {
		return fmt.Errorf("beamwidth_deg must be in (0, 180), got %g", *c.BeamwidthDeg)
	}
	if c.DenoiseKernel != nil && (*c.DenoiseKernel < 1 || *c.DenoiseKernel%2 == 0) {
		return fmt.Errorf("denoise_kernel must be a positive odd number, got %d", *c.DenoiseKernel)
	}
	if c.ResolutionUnits != nil && !units.IsValidDistance(*c.ResolutionUnits) {
		return fmt.Errorf("resolution_units must be one of %s, got %q", units.GetValidDistanceUnitsString(), *c.ResolutionUnits)
	}

	// The chirp must span at least two samples or pulse compression has
	// nothing to correlate.
	if c.GetPulseDurationS()*c.GetSampleRateHz() < 2 {
		return fmt.Errorf("pulse_duration_s * sample_rate_hz must be at least 2 samples, got %g",
			c.GetPulseDurationS()*c.GetSampleRateHz())
	}
	return nil
}

// GetSceneRows returns scene_rows or the default.
func (c *RadarConfig) GetSceneRows() int {
	if c.SceneRows == nil {
		return 64
	}
	return *c.SceneRows
}

// GetSceneCols returns scene_cols or the default.
func (c *RadarConfig) GetSceneCols() int {
	if c.SceneCols == nil {
		return 64
	}
	return *c.SceneCols
}

// GetSceneSpacingM returns scene_spacing_m or the default.
func (c *RadarConfig) GetSceneSpacingM() float64 {
	if c.SceneSpacingM == nil {
		return 1.0
	}
	return *c.SceneSpacingM
}

// GetStartFrequencyHz returns start_frequency_hz or the default.
func (c *RadarConfig) GetStartFrequencyHz() float64 {
	if c.StartFrequencyHz == nil {
		return 0
	}
	return *c.StartFrequencyHz
}

// GetBandwidthHz returns bandwidth_hz or the default.
func (c *RadarConfig) GetBandwidthHz() float64 {
	if c.BandwidthHz == nil {
		return 50e6
	}
	return *c.BandwidthHz
}

// GetPulseDurationS returns pulse_duration_s or the default.
func (c *RadarConfig) GetPulseDurationS() float64 {
	if c.PulseDurationS == nil {
		return 0.32e-6
	}
	return *c.PulseDurationS
}

// GetSampleRateHz returns sample_rate_hz or the default.
func (c *RadarConfig) GetSampleRateHz() float64 {
	if c.SampleRateHz == nil {
		return 100e6
	}
	return *c.SampleRateHz
}

// GetAltitudeM returns altitude_m or the default.
func (c *RadarConfig) GetAltitudeM() float64 {
	if c.AltitudeM == nil {
		return 50
	}
	return *c.AltitudeM
}

// GetScanPositions returns scan_positions or the default.
func (c *RadarConfig) GetScanPositions() int {
	if c.ScanPositions == nil {
		return 64
	}
	return *c.ScanPositions
}

// GetScanSpacingM returns scan_spacing_m or the default.
func (c *RadarConfig) GetScanSpacingM() float64 {
	if c.ScanSpacingM == nil {
		return 1.0
	}
	return *c.ScanSpacingM
}

// GetBeamwidthDeg returns beamwidth_deg or the default.
func (c *RadarConfig) GetBeamwidthDeg() float64 {
	if c.BeamwidthDeg == nil {
		return 60
	}
	return *c.BeamwidthDeg
}

// GetRangeBins returns range_bins or the default.
func (c *RadarConfig) GetRangeBins() int {
	if c.RangeBins == nil {
		return 256
	}
	return *c.RangeBins
}

// GetDenoiseKernel returns denoise_kernel or the default.
func (c *RadarConfig) GetDenoiseKernel() int {
	if c.DenoiseKernel == nil {
		return 3
	}
	return *c.DenoiseKernel
}

// GetResolutionUnits returns resolution_units or the default.
func (c *RadarConfig) GetResolutionUnits() string {
	if c.ResolutionUnits == nil {
		return units.Meters
	}
	return *c.ResolutionUnits
}

// ChirpSamples returns the number of samples in one chirp.
func (c *RadarConfig) ChirpSamples() int {
	return int(math.Round(c.GetPulseDurationS() * c.GetSampleRateHz()))
}
