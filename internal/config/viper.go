package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of the environment variables that override the
// configuration, e.g. SSE_STREAM_URL for stream.url.
const EnvPrefix = "SSE"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the given config file or,
// if configFile is empty, an optional sseloop.{yaml,toml,json} from the
// working directory, and binds environment variables with the SSE_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindFlags)
//  2. Environment variables
//  3. Config file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configFile string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("sseloop")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			// A missing config file is fine, defaults will apply.
			if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	// Keys without a default are registered too, so that AutomaticEnv
	// picks them up when unmarshaling.
	v.SetDefault("stream.url", d.Stream.URL)
	v.SetDefault("stream.last_event_id", d.Stream.LastEventID)
	v.SetDefault("stream.max_attempts", d.Stream.MaxAttempts)
	v.SetDefault("stream.stop_on_client_error", d.Stream.StopOnClientError)
	v.SetDefault("stream.max_event_size", d.Stream.MaxEventSize)

	v.SetDefault("backoff.initial_interval", d.Backoff.InitialInterval)
	v.SetDefault("backoff.max_interval", d.Backoff.MaxInterval)
	v.SetDefault("backoff.multiplier", d.Backoff.Multiplier)
	v.SetDefault("backoff.jitter", d.Backoff.Jitter)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.output", d.Log.Output)
	v.SetDefault("log.no_color", d.Log.NoColor)

	v.SetDefault("serve.listen", d.Serve.Listen)
	v.SetDefault("serve.path", d.Serve.Path)
	v.SetDefault("serve.events", d.Serve.Events)
	v.SetDefault("serve.batch", d.Serve.Batch)
	v.SetDefault("serve.fail_after", d.Serve.FailAfter)
	v.SetDefault("serve.interval", d.Serve.Interval)
	v.SetDefault("serve.retry", d.Serve.Retry)
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	cfg.Log.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Flags maps the names of the command line flags to the config keys they set.
var Flags = map[string]string{
	"url":                  "stream.url",
	"last-event-id":        "stream.last_event_id",
	"max-attempts":         "stream.max_attempts",
	"stop-on-client-error": "stream.stop_on_client_error",
	"max-event-size":       "stream.max_event_size",
	"backoff":              "backoff.initial_interval",
	"backoff-max":          "backoff.max_interval",
	"log-level":            "log.level",
	"log-format":           "log.format",
	"listen":               "serve.listen",
	"path":                 "serve.path",
	"events":               "serve.events",
	"batch":                "serve.batch",
	"fail-after":           "serve.fail_after",
	"interval":             "serve.interval",
	"retry":                "serve.retry",
}

// BindFlags binds the flags of cmd that appear in Flags to their config keys.
// Flags that cmd doesn't have are skipped.
func BindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for name, key := range Flags {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag --%s: %w", name, err)
		}
	}
	return nil
}
