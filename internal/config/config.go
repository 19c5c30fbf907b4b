package config

import (
	"io"
	"os"

	"github.com/creasty/defaults"
	"github.com/goccy/go-yaml"
	"github.com/icinga/icinga-filter/internal/document"
	"github.com/icinga/icinga-filter/internal/filter"
	icingadbConfig "github.com/icinga/icingadb/pkg/config"
	"github.com/pkg/errors"
)

// EnvPrefix is the prefix of all environment variables overlaying the config file.
const EnvPrefix = "ICINGA_FILTER"

// ErrInvalidArgument is returned for arguments no caller should ever pass, e.g. a nil target.
var ErrInvalidArgument = errors.New("invalid argument")

type ConfigFile struct {
	Comparator    string                 `yaml:"comparator" default:"substring"`
	Wildcard      string                 `yaml:"wildcard" default:"$"`
	PrivatePrefix string                 `yaml:"private-prefix" default:"$"`
	MaxDepth      int                    `yaml:"max-depth" default:"100"`
	Format        string                 `yaml:"format" default:"yaml"`
	Logging       icingadbConfig.Logging `yaml:"logging"`
}

// SetDefaults implements the defaults.Setter interface.
func (c *ConfigFile) SetDefaults() {
	if defaults.CanUpdate(c.Logging.Output) {
		c.Logging.Output = "console"
	}
}

// Validate checks the entire configuration before any item is filtered.
func (c *ConfigFile) Validate() error {
	if _, err := filter.ComparatorFromName(c.Comparator); err != nil {
		return err
	}
	if _, err := document.ParseFormat(c.Format); err != nil {
		return err
	}
	if c.MaxDepth < 0 {
		return errors.Errorf("max-depth must not be negative, got %d", c.MaxDepth)
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}

	return nil
}

// FilterOptions returns the filter options described by this configuration.
func (c *ConfigFile) FilterOptions() ([]filter.Option, error) {
	comparator, err := filter.ComparatorFromName(c.Comparator)
	if err != nil {
		return nil, err
	}

	return []filter.Option{
		filter.WithComparator(comparator),
		filter.WithWildcard(c.Wildcard),
		filter.WithPrivatePrefix(c.PrivatePrefix),
		filter.WithMaxDepth(c.MaxDepth),
	}, nil
}

// Assert interface compliance.
var _ defaults.Setter = (*ConfigFile)(nil)

// FromYAMLFile loads the configuration from the given YAML file and overlays the environment.
//
// An empty path results in the default configuration.
func FromYAMLFile(path string, environ []string) (*ConfigFile, error) {
	if path == "" {
		return LoadConfig(nil, environ)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "can't open YAML file "+path)
	}
	defer func() { _ = f.Close() }()

	c, err := LoadConfig(f, environ)
	if err != nil {
		return nil, errors.Wrap(err, "can't load YAML file "+path)
	}

	return c, nil
}

// LoadConfig builds a ConfigFile from defaults, the YAML document read from r and finally the environment.
//
// Each layer overrides the ones before. A nil reader skips the YAML layer.
func LoadConfig(r io.Reader, environ []string) (*ConfigFile, error) {
	c := new(ConfigFile)
	if err := defaults.Set(c); err != nil {
		return nil, errors.Wrap(err, "can't set config defaults")
	}

	if r != nil {
		if err := yaml.NewDecoder(r, yaml.DisallowUnknownField()).Decode(c); err != nil && err != io.EOF {
			return nil, errors.Wrap(err, "can't parse YAML")
		}
	}

	if err := PopulateFromYamlEnvironment(EnvPrefix, c, environ); err != nil {
		return nil, errors.Wrap(err, "can't apply environment")
	}

	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return c, nil
}
