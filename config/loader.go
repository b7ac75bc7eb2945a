package config

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

// LoadConfig reads the process-wide YAML config from filename, falling
// back to defaults (and logging a warning) if the file is missing or
// unreadable, and applying ValidateConfig's corrections afterward.
func LoadConfig(filename string) (*Config, error) {
	var config Config
	SetDefaultConfig(&config)

	clean := filepath.Clean(filename)
	if strings.Contains(clean, "..") {
		log.Printf("Warning: suspicious config path %q, using defaults", filename)
		return &config, nil
	}

	// #nosec G304 -- path is cleaned above and supplied by the operator at startup.
	data, err := os.ReadFile(clean)
	if err != nil {
		log.Printf("Warning: could not read config file: %v", err)
		log.Println("Using default configuration")
		return &config, nil
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	if err := ValidateConfig(&config); err != nil {
		log.Printf("Configuration validation error: %v", err)
		log.Println("Using validated configuration with corrections")
	}

	return &config, nil
}
