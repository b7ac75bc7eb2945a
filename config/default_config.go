package config

// SetDefaultConfig applies the engine's baseline settings before a config
// file is parsed over them, so a missing or partial file still yields a
// runnable configuration.
func SetDefaultConfig(config *Config) {
	config.Engine.ConfigDir = "/etc/convolvefs/filters"
	config.Engine.SizeEstimateThreshold = 0.4
	config.Engine.SizeEstimatePad = 16384
	config.Engine.FragmentSizeOverride = 0

	config.Logging.Level = LogLevelInfo
	config.Logging.File = ""
}
