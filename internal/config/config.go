// Package config reads tool settings from DEOLDIFY_* environment variables.
package config

import (
	"fmt"
	"io"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment variable prefix.
const Prefix = "DEOLDIFY"

// Config holds settings shared by every command. Command line flags
// override these values.
type Config struct {
	// ModelsDir holds Stable.model and Artistic.model. Empty means the
	// "models" directory next to the executable.
	ModelsDir string `envconfig:"MODELS_DIR" desc:"directory holding the weight files"`
	Variant   string `envconfig:"VARIANT" default:"stable" desc:"network variant: stable or artistic"`
	Half      bool   `envconfig:"HALF" default:"false" desc:"decode weight files as float16"`
	// Workers bounds the goroutines used by each operator. 0 uses every
	// CPU, 1 runs serially.
	Workers  int    `envconfig:"WORKERS" default:"0" desc:"goroutines per operator, 0 for all CPUs"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info" desc:"error, warn, info, debug or trace"`
	// ModelURI is the default source for the fetch command.
	ModelURI string `envconfig:"MODEL_URI" desc:"s3://, gs:// or http(s):// location of the weight files"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process(Prefix, &c); err != nil {
		return nil, fmt.Errorf("failed to read %s_* environment: %w", Prefix, err)
	}
	if c.Workers < 0 {
		return nil, fmt.Errorf("%s_WORKERS must not be negative, got %d", Prefix, c.Workers)
	}
	return &c, nil
}

// Usage writes a table of the recognized variables to w.
func Usage(w io.Writer) error {
	return envconfig.Usagef(Prefix, &Config{}, w, envconfig.DefaultTableFormat)
}
