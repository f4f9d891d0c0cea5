// Package config loads autopilot settings from defaults, an optional
// .autopilot config file and AUTOPILOT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

const (
	KeyAppendThreshold  = "append_threshold"
	KeyAutosaveDebounce = "autosave_debounce"
	KeyStateDir         = "state_dir"
	KeySystemClipboard  = "system_clipboard"
	KeyWatch            = "watch"
)

// DefaultStateDir is created next to the script when state_dir is unset.
const DefaultStateDir = ".autopilot"

type Config struct {
	AppendThreshold  time.Duration
	AutosaveDebounce time.Duration
	StateDir         string
	SystemClipboard  bool
	Watch            bool

	// File is the config file that was read, if any.
	File string
}

// Load reads the config. searchDirs are tried after $AUTOPILOT_CONFIG_PATH and
// before the working directory.
func Load(searchDirs ...string) (Config, error) {
	v := viper.New()
	v.SetDefault(KeyAppendThreshold, "2s")
	v.SetDefault(KeyAutosaveDebounce, "2s")
	v.SetDefault(KeyStateDir, "")
	v.SetDefault(KeySystemClipboard, false)
	v.SetDefault(KeyWatch, false)

	v.SetConfigName(".autopilot") // .yaml is implicit
	v.SetEnvPrefix("AUTOPILOT")
	v.AutomaticEnv()

	if override := os.Getenv("AUTOPILOT_CONFIG_PATH"); override != "" {
		v.AddConfigPath(override)
	}
	for _, d := range searchDirs {
		if d != "" {
			v.AddConfigPath(d)
		}
	}
	v.AddConfigPath("./")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		AppendThreshold:  v.GetDuration(KeyAppendThreshold),
		AutosaveDebounce: v.GetDuration(KeyAutosaveDebounce),
		StateDir:         v.GetString(KeyStateDir),
		SystemClipboard:  v.GetBool(KeySystemClipboard),
		Watch:            v.GetBool(KeyWatch),
		File:             v.ConfigFileUsed(),
	}
	if cfg.AppendThreshold < 0 {
		return Config{}, fmt.Errorf("config: %s must not be negative", KeyAppendThreshold)
	}
	if cfg.AutosaveDebounce < 0 {
		return Config{}, fmt.Errorf("config: %s must not be negative", KeyAutosaveDebounce)
	}
	return cfg, nil
}
