// Package config loads the engine's process-wide settings: where filter
// configs live, the dynamic size-estimation constants, and logging.
// Per-handler settings (sample rate, channels, impulse responses) live in
// internal/convolver, which reads one filter-<rate>-<bits>-<channels>.conf
// file per handler rather than a single process-wide document.
package config

import "github.com/kjhall/convolvefs/internal/logger"

// Config holds settings for the whole process.
type Config struct {
	// Engine settings
	Engine struct {
		ConfigDir             string  `yaml:"config_dir"`              // directory holding filter-*.conf files
		SizeEstimateThreshold float64 `yaml:"size_estimate_threshold"` // fraction of original size past which dynamic resizing kicks in
		SizeEstimatePad       int64   `yaml:"size_estimate_pad"`       // bytes added to each dynamic size estimate
		FragmentSizeOverride  int     `yaml:"fragment_size_override"`  // 0 = use each filter config's own value
	} `yaml:"engine"`

	// Logging settings
	Logging struct {
		Level LogLevelName `yaml:"level"`
		File  string       `yaml:"file"`
	} `yaml:"logging"`
}

// LogLevelName is the string form of a logger.LogLevel as it appears in YAML.
type LogLevelName string

const (
	LogLevelDebug   LogLevelName = "debug"
	LogLevelInfo    LogLevelName = "info"
	LogLevelWarning LogLevelName = "warning"
	LogLevelError   LogLevelName = "error"
)

// ToLoggerLevel resolves the configured level name to a logger.LogLevel,
// defaulting to InfoLevel for an empty or unrecognized value.
func (n LogLevelName) ToLoggerLevel() logger.LogLevel {
	switch n {
	case LogLevelDebug:
		return logger.DebugLevel
	case LogLevelWarning:
		return logger.WarningLevel
	case LogLevelError:
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}
