package bench

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config describes one benchmark run.
type Config struct {
	Readers  int           `yaml:"readers"`
	Writers  int           `yaml:"writers"`
	Duration time.Duration `yaml:"duration"`
	// Timeout bounds every acquisition. <= 0 never waits.
	Timeout time.Duration `yaml:"timeout"`
	// Hold is how long each critical section lasts.
	Hold time.Duration `yaml:"hold"`
	// Payload sets the size of the shared buffer and the characters
	// writers fill it with.
	Payload string `yaml:"payload"`
}

func DefaultConfig() Config {
	return Config{
		Readers:  8,
		Writers:  2,
		Duration: 2 * time.Second,
		Timeout:  10 * time.Millisecond,
		Payload:  "hello",
	}
}

// LoadConfig reads a YAML config. Fields missing from the file keep their
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.Readers < 0 || c.Writers < 0 {
		errs = append(errs, errors.New("readers and writers must not be negative"))
	}
	if c.Readers+c.Writers == 0 {
		errs = append(errs, errors.New("at least one reader or writer is required"))
	}
	if c.Duration <= 0 {
		errs = append(errs, errors.New("duration must be positive"))
	}
	if c.Hold < 0 {
		errs = append(errs, errors.New("hold must not be negative"))
	}
	if c.Payload == "" {
		errs = append(errs, errors.New("payload must not be empty"))
	}
	return errors.Join(errs...)
}
