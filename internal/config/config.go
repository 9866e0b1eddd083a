package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// Anchor selects the timestamp all output rows are measured against.
type Anchor string

const (
	// AnchorFirstSleepStage anchors output to the first sleep stage event,
	// truncated to whole seconds. The downstream scoring engine trims signal
	// data to the first recognized stage, so this is what it expects.
	AnchorFirstSleepStage Anchor = "first-sleep-stage"
	// AnchorHeaderStart anchors output to the recording's own header start time.
	AnchorHeaderStart Anchor = "header-start"
)

// DurationStyle selects how event durations are printed in the arousal and
// flow-event files.
type DurationStyle string

const (
	DurationWholeSeconds DurationStyle = "whole-seconds" // "12;label"
	DurationTwoDecimals  DurationStyle = "two-decimals"  // "19.60; label"
)

// Valid reports whether a is a known anchor policy.
func (a Anchor) Valid() bool {
	return a == AnchorFirstSleepStage || a == AnchorHeaderStart
}

// Valid reports whether d is a known duration style.
func (d DurationStyle) Valid() bool {
	return d == DurationWholeSeconds || d == DurationTwoDecimals
}

// Config holds application configuration.
//
// The two extractor paths historically disagree on both the anchor and the
// duration format, and the scoring engine's tolerance for either convention is
// unverified, so both are kept as per-path policies rather than unified.
type Config struct {
	// EMGKeywords are case-sensitive substrings that mark a channel label as a
	// muscle-activity candidate during detection.
	EMGKeywords []string `json:"emg_keywords,omitempty"`

	// BiosignalKeywords mark channels subject to unit rescaling and symmetric
	// range fitting during header normalization. Superset of EMGKeywords.
	BiosignalKeywords []string `json:"biosignal_keywords,omitempty"`

	// BiosignalScale is the unit-conversion factor applied to biosignal
	// channels during normalization (volts to microvolts).
	BiosignalScale float64 `json:"biosignal_scale,omitempty"`

	// BiosignalMinRange is the minimum physical range (symmetric, in the
	// rescaled unit) enforced for biosignal channels so transient bursts are
	// never clipped.
	BiosignalMinRange float64 `json:"biosignal_min_range,omitempty"`

	// RecordSeconds is the data-record duration used when writing normalized
	// recordings.
	RecordSeconds int `json:"record_seconds,omitempty"`

	// EmbeddedAnchor and EmbeddedDurations control output produced from
	// recordings with embedded annotations.
	EmbeddedAnchor    Anchor        `json:"embedded_anchor,omitempty"`
	EmbeddedDurations DurationStyle `json:"embedded_durations,omitempty"`

	// SpreadsheetAnchor and SpreadsheetDurations control output produced from
	// companion spreadsheets.
	SpreadsheetAnchor    Anchor        `json:"spreadsheet_anchor,omitempty"`
	SpreadsheetDurations DurationStyle `json:"spreadsheet_durations,omitempty"`

	// DBMaxOpenConns limits open history-database connections.
	// 0 means use the sql.DB default.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits idle history-database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`
}

// DefaultConfig returns the default configuration. The asymmetric anchor and
// duration defaults reproduce the behavior the scoring engine was validated
// against.
func DefaultConfig() *Config {
	return &Config{
		EMGKeywords:          []string{"EMG", "CHIN", "LEG", "Chin", "Lat", "Rat"},
		BiosignalKeywords:    []string{"EMG", "EEG", "EOG", "Chin", "Lat", "Rat"},
		BiosignalScale:       1e6,
		BiosignalMinRange:    500.0,
		RecordSeconds:        1,
		EmbeddedAnchor:       AnchorFirstSleepStage,
		EmbeddedDurations:    DurationWholeSeconds,
		SpreadsheetAnchor:    AnchorHeaderStart,
		SpreadsheetDurations: DurationTwoDecimals,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.edfconv.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// DefaultBaseDir returns ~/.edfconv.
func DefaultBaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".edfconv"), nil
}

// loadFile loads configuration from a specific file path, overlaying defaults.
func loadFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs. Overlay values take precedence for
// non-zero scalars; keyword lists replace wholesale (a site that trims its
// keyword list must not have the defaults merged back in).
func Merge(base, overlay *Config) *Config {
	result := *base

	if len(overlay.EMGKeywords) > 0 {
		result.EMGKeywords = overlay.EMGKeywords
	}
	if len(overlay.BiosignalKeywords) > 0 {
		result.BiosignalKeywords = overlay.BiosignalKeywords
	}
	if overlay.BiosignalScale != 0 {
		result.BiosignalScale = overlay.BiosignalScale
	}
	if overlay.BiosignalMinRange != 0 {
		result.BiosignalMinRange = overlay.BiosignalMinRange
	}
	if overlay.RecordSeconds != 0 {
		result.RecordSeconds = overlay.RecordSeconds
	}
	if overlay.EmbeddedAnchor != "" {
		result.EmbeddedAnchor = overlay.EmbeddedAnchor
	}
	if overlay.EmbeddedDurations != "" {
		result.EmbeddedDurations = overlay.EmbeddedDurations
	}
	if overlay.SpreadsheetAnchor != "" {
		result.SpreadsheetAnchor = overlay.SpreadsheetAnchor
	}
	if overlay.SpreadsheetDurations != "" {
		result.SpreadsheetDurations = overlay.SpreadsheetDurations
	}
	if overlay.DBMaxOpenConns != 0 {
		result.DBMaxOpenConns = overlay.DBMaxOpenConns
	}
	if overlay.DBMaxIdleConns != 0 {
		result.DBMaxIdleConns = overlay.DBMaxIdleConns
	}

	return &result
}
