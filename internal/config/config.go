package config

import (
	"os"
	"path"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/joyent/manta-mdshovel/pkg/errors"
)

// Configuration is the complete mdshovel configuration, read-only after
// load.
type Configuration struct {
	MetadataService MetadataServiceConfig `yaml:"metadata_service"`
	Concurrency     int                   `yaml:"concurrency"`
	LargeDirectory  string                `yaml:"large_directory"`
	SmallDirRoot    string                `yaml:"small_directory_root"`
	MetricsPort     int                   `yaml:"metrics_port"`
}

// MetadataServiceConfig describes how to reach the metadata store.
type MetadataServiceConfig struct {
	SRVDomain string        `yaml:"srv_domain"`
	Cueball   CueballConfig `yaml:"cueball"`
}

// CueballConfig carries connection-management tuning passed through to the
// store client. The core treats it as opaque.
type CueballConfig struct {
	Resolvers        []string      `yaml:"resolvers"`
	MaxConnections   int           `yaml:"max_connections"`
	SpareConnections int           `yaml:"spare_connections"`
	RecoveryDelay    time.Duration `yaml:"recovery_delay"`
	RecoveryMaxDelay time.Duration `yaml:"recovery_max_delay"`
	RecoveryRetries  int           `yaml:"recovery_retries"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
}

// NewDefault returns a configuration with sensible defaults. Path roots
// have no defaults and must come from the file.
func NewDefault() *Configuration {
	return &Configuration{
		Concurrency: 10,
		MetricsPort: 8881,
		MetadataService: MetadataServiceConfig{
			Cueball: CueballConfig{
				MaxConnections:   10,
				SpareConnections: 2,
				RecoveryDelay:    250 * time.Millisecond,
				RecoveryMaxDelay: 30 * time.Second,
				RecoveryRetries:  5,
				ConnectTimeout:   10 * time.Second,
				RequestTimeout:   60 * time.Second,
			},
		},
	}
}

// Load reads and validates a configuration file.
func Load(filename string) (*Configuration, error) {
	c := NewDefault()
	if err := c.LoadFromFile(filename); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFromFile loads configuration from a YAML file over the defaults.
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.Newf(errors.ErrCodeConfigLoad, "failed to read config file %q", filename).WithCause(err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Newf(errors.ErrCodeConfigLoad, "failed to parse config file %q", filename).WithCause(err)
	}

	return nil
}

// Validate checks the configuration constraints. It must pass before any
// operation starts.
func (c *Configuration) Validate() error {
	if c.MetadataService.SRVDomain == "" {
		return errors.New(errors.ErrCodeConfigValidation, "metadata_service.srv_domain is required")
	}
	if c.Concurrency < 1 || c.Concurrency > 128 {
		return errors.Newf(errors.ErrCodeConfigValidation,
			"concurrency must be between 1 and 128, got %d", c.Concurrency)
	}
	if c.LargeDirectory == "" {
		return errors.New(errors.ErrCodeConfigValidation, "large_directory is required")
	}
	if len(path.Base(c.LargeDirectory)) != 1 {
		return errors.Newf(errors.ErrCodeConfigValidation,
			"large_directory basename must be exactly 1 character, got %q", path.Base(c.LargeDirectory))
	}
	if c.SmallDirRoot == "" {
		return errors.New(errors.ErrCodeConfigValidation, "small_directory_root is required")
	}
	if c.MetricsPort < 1 || c.MetricsPort > 65535 {
		return errors.Newf(errors.ErrCodeConfigValidation,
			"metrics_port must be between 1 and 65535, got %d", c.MetricsPort)
	}
	return nil
}

// ShardPrefix returns the single character that every generated identifier
// is forced to start with. Only valid after Validate.
func (c *Configuration) ShardPrefix() string {
	return path.Base(c.LargeDirectory)
}
