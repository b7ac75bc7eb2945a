package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateConfig inspects the configuration for unsafe or out-of-range
// values, correcting them in place, and returns an error aggregating every
// issue found so callers can log it without treating it as fatal.
func ValidateConfig(config *Config) error {
	var issues []string

	if config.Engine.ConfigDir == "" {
		config.Engine.ConfigDir = "/etc/convolvefs/filters"
		issues = append(issues, "empty config_dir, using default")
	} else {
		clean := filepath.Clean(config.Engine.ConfigDir)
		if strings.Contains(config.Engine.ConfigDir, "..") {
			config.Engine.ConfigDir = "/etc/convolvefs/filters"
			issues = append(issues, "suspicious config_dir sanitized to default")
		} else {
			config.Engine.ConfigDir = clean
		}
	}

	if config.Engine.SizeEstimateThreshold <= 0 || config.Engine.SizeEstimateThreshold > 1 {
		issues = append(issues, fmt.Sprintf("invalid size_estimate_threshold: %v, using 0.4", config.Engine.SizeEstimateThreshold))
		config.Engine.SizeEstimateThreshold = 0.4
	}

	if config.Engine.SizeEstimatePad < 0 {
		issues = append(issues, fmt.Sprintf("invalid size_estimate_pad: %d, using 16384", config.Engine.SizeEstimatePad))
		config.Engine.SizeEstimatePad = 16384
	}

	if config.Engine.FragmentSizeOverride < 0 {
		issues = append(issues, fmt.Sprintf("invalid fragment_size_override: %d, using 0 (no override)", config.Engine.FragmentSizeOverride))
		config.Engine.FragmentSizeOverride = 0
	}

	switch config.Logging.Level {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
	default:
		issues = append(issues, fmt.Sprintf("invalid logging level: %q, using %q", config.Logging.Level, LogLevelInfo))
		config.Logging.Level = LogLevelInfo
	}

	if len(issues) > 0 {
		return fmt.Errorf("configuration validation issues: %s", strings.Join(issues, "; "))
	}
	return nil
}
