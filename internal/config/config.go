// Package config loads pamixer settings from defaults, a YAML file,
// PAMIXER_* environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Settings struct {
	Server     string   `mapstructure:"server"`
	App        App      `mapstructure:"app"`
	Peaks      Peaks    `mapstructure:"peaks"`
	IgnoreApps []string `mapstructure:"ignore_apps"`
	Log        Log      `mapstructure:"log"`
	Metrics    Metrics  `mapstructure:"metrics"`
	UI         UI       `mapstructure:"ui"`
}

type App struct {
	Name string `mapstructure:"name"`
	ID   string `mapstructure:"id"`
}

type Peaks struct {
	Enabled bool `mapstructure:"enabled"`
	Rate    int  `mapstructure:"rate"`
}

type Log struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

type Metrics struct {
	// Listen is the address of the /metrics endpoint. Empty disables it.
	Listen string `mapstructure:"listen"`
}

type UI struct {
	Enabled bool          `mapstructure:"enabled"`
	Refresh time.Duration `mapstructure:"refresh"`
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server", "")
	v.SetDefault("app.name", "pamixer")
	v.SetDefault("app.id", "pamixer")
	v.SetDefault("peaks.enabled", true)
	v.SetDefault("peaks.rate", 25)
	v.SetDefault("ignore_apps", []string{"ncpamixer"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("metrics.listen", "")
	v.SetDefault("ui.enabled", true)
	v.SetDefault("ui.refresh", 50*time.Millisecond)
}

// Load reads settings into v. An empty file searches for config.yaml in
// $XDG_CONFIG_HOME/pamixer, $HOME/.config/pamixer and the working directory,
// and a missing file there is not an error.
func Load(v *viper.Viper, file string) (*Settings, error) {
	SetDefaults(v)
	v.SetEnvPrefix("PAMIXER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$XDG_CONFIG_HOME/pamixer")
		v.AddConfigPath("$HOME/.config/pamixer")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks values that would otherwise fail later.
func (s *Settings) Validate() error {
	if s.Peaks.Rate <= 0 {
		return fmt.Errorf("peaks.rate must be positive, got %d", s.Peaks.Rate)
	}
	if s.UI.Refresh <= 0 {
		return fmt.Errorf("ui.refresh must be positive, got %v", s.UI.Refresh)
	}
	switch strings.ToLower(s.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", s.Log.Format)
	}
	return nil
}
