package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the application configuration
type Config struct {
	Port    int
	DataDir string
	DBPath  string
	Version string
}

// Settings are the persisted user settings, kept between runs in the
// user's config directory.
type Settings struct {
	RulePackPath string `json:"rulePackPath,omitempty"`
}

// configDir returns the directory for persisted settings, creating it
// if needed.
func configDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	dir := filepath.Join(base, "brb-engine")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("could not create config directory: %w", err)
	}
	return dir, nil
}

// DataStoreDir returns the directory where installed rule packs and
// the default rule-base database live.
func DataStoreDir() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	dataDir := filepath.Join(dir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("could not create data directory: %w", err)
	}
	return dataDir, nil
}

// LoadSettings reads the persisted settings; a missing file yields
// empty settings, not an error.
func LoadSettings() (Settings, error) {
	var settings Settings
	dir, err := configDir()
	if err != nil {
		return settings, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "settings.json"))
	if os.IsNotExist(err) {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("could not read settings: %w", err)
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("could not parse settings: %w", err)
	}
	return settings, nil
}

// SaveSettings persists the settings to disk.
func SaveSettings(settings Settings) error {
	dir, err := configDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal settings: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "settings.json"), data, 0o644); err != nil {
		return fmt.Errorf("could not write settings: %w", err)
	}
	return nil
}
