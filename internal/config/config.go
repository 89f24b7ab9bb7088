// Package config resolves kbtrend settings from flags, environment,
// an optional kbtrend.yaml and built-in defaults, in that order.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	configFileName = "kbtrend"
	configFileType = "yaml"
	envPrefix      = "KBTREND"

	// Config keys. Flags bound with Load use the same names with "_"
	// replaced by "-".
	KeyDB        = "db"
	KeyLogLevel  = "log_level"
	KeyLogFormat = "log_format"

	defaultDB        = "sqlite://kbtrend.db"
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
)

// Config holds the resolved settings
type Config struct {
	DB        string
	LogLevel  string
	LogFormat string
	// File is the config file that was read, or empty.
	File string
}

// Load resolves the configuration. configFile names an explicit file that
// must exist; when empty, kbtrend.yaml is looked up in the working directory
// and in $XDG_CONFIG_HOME/kbtrend, and a missing file is not an error.
// flags may be nil.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetDefault(KeyDB, defaultDB)
	v.SetDefault(KeyLogLevel, defaultLogLevel)
	v.SetDefault(KeyLogFormat, defaultLogFormat)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for _, key := range []string{KeyDB, KeyLogLevel, KeyLogFormat} {
			if f := flags.Lookup(strings.ReplaceAll(key, "_", "-")); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", f.Name, err)
				}
			}
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
		if dir := configDir(); dir != "" {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return &Config{
		DB:        v.GetString(KeyDB),
		LogLevel:  v.GetString(KeyLogLevel),
		LogFormat: v.GetString(KeyLogFormat),
		File:      v.ConfigFileUsed(),
	}, nil
}

// configDir returns $XDG_CONFIG_HOME/kbtrend, falling back to the
// platform's user config directory
func configDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		var err error
		if base, err = os.UserConfigDir(); err != nil {
			return ""
		}
	}
	return filepath.Join(base, "kbtrend")
}

// NewLogger builds a slog logger writing to w. format is "text" or "json";
// level is one of debug, info, warn, error.
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (must be text or json)", format)
	}
}
