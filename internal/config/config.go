package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sadopc/schemadoc/internal/adapter"
)

var (
	ErrMissingHost            = errors.New("host is required")
	ErrMissingCredentials     = errors.New("user is required unless trusted authentication is used")
	ErrRestrictedSystem       = errors.New("restriction list contains system databases")
	ErrInvalidRestrictionList = errors.New("invalid restriction list")
)

// Config holds all run configuration.
type Config struct {
	Engine                 string   `yaml:"engine"`
	Host                   string   `yaml:"host"`
	Port                   int      `yaml:"port"`
	User                   string   `yaml:"user"`
	Password               string   `yaml:"password"`
	Trusted                bool     `yaml:"trusted"` // integrated authentication
	Output                 string   `yaml:"output"`
	Databases              []string `yaml:"databases"`
	RestrictionList        string   `yaml:"restriction_list"` // path to a JSON or YAML array
	ExcludeSystemDatabases bool     `yaml:"exclude_system_databases"`
	PruneColumns           bool     `yaml:"prune_columns"`
	AuditLog               string   `yaml:"audit_log"`
	History                string   `yaml:"history"`
	NoHistory              bool     `yaml:"no_history"`
	Theme                  string   `yaml:"theme"`

	// Restricted holds the names loaded from RestrictionList.
	Restricted []string `yaml:"-"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:                   "127.0.0.1",
		Output:                 "./",
		ExcludeSystemDatabases: true,
		Theme:                  "default",
	}
}

// ConfigDir returns the schemadoc configuration directory path.
// It uses os.UserConfigDir to locate the base config directory and
// appends "schemadoc" to it, typically resulting in ~/.config/schemadoc/.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config dir: %w", err)
	}
	return filepath.Join(base, "schemadoc"), nil
}

// DefaultPath returns ConfigDir()/config.yaml.
func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads a Config from the YAML file at path. If the file does not exist,
// it returns DefaultConfig without error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadDefault loads configuration from the default path.
func LoadDefault() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// HistoryPath returns the run history database path, or "" when history is
// disabled.
func (c *Config) HistoryPath() (string, error) {
	if c.NoHistory {
		return "", nil
	}
	if c.History != "" {
		return c.History, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// LoadRestrictions reads RestrictionList into Restricted. An empty path
// leaves Restricted unchanged.
func (c *Config) LoadRestrictions() error {
	if c.RestrictionList == "" {
		return nil
	}
	names, err := LoadRestrictionList(c.RestrictionList)
	if err != nil {
		return err
	}
	c.Restricted = names
	return nil
}

// LoadRestrictionList reads a JSON or YAML array of database names.
func LoadRestrictionList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRestrictionList, err)
	}
	return ParseRestrictionList(data)
}

// ParseRestrictionList decodes a JSON or YAML array of strings. An empty
// document is an empty list.
func ParseRestrictionList(data []byte) ([]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRestrictionList, err)
	}
	if len(doc.Content) == 0 {
		return []string{}, nil
	}

	seq := doc.Content[0]
	if seq.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%w: must be an array", ErrInvalidRestrictionList)
	}
	names := make([]string, 0, len(seq.Content))
	for i, item := range seq.Content {
		if item.Kind != yaml.ScalarNode || item.Tag != "!!str" {
			return nil, fmt.Errorf("%w: item %d is not a string", ErrInvalidRestrictionList, i)
		}
		names = append(names, item.Value)
	}
	return names, nil
}

// Validate reports configuration errors before any connection is attempted.
func (c *Config) Validate() error {
	a, err := adapter.LookupOrSuggest(c.Engine)
	if err != nil {
		return err
	}
	if strings.TrimSpace(c.Host) == "" {
		return ErrMissingHost
	}
	if c.User == "" {
		ia, ok := a.(adapter.IntegratedAuth)
		if !c.Trusted || !ok || !ia.SupportsIntegratedAuth() {
			return ErrMissingCredentials
		}
	}

	system := make(map[string]bool)
	for _, name := range a.SystemDatabases() {
		system[name] = true
	}
	var found []string
	for _, name := range c.Restricted {
		if system[name] {
			found = append(found, name)
		}
	}
	if len(found) > 0 {
		return fmt.Errorf("%w: %s", ErrRestrictedSystem, strings.Join(found, ", "))
	}
	return nil
}

// Restrictions returns the databases to skip: the loaded restriction list
// plus the engine's system databases when ExcludeSystemDatabases is set.
func (c *Config) Restrictions(systemDatabases []string) map[string]bool {
	out := make(map[string]bool, len(c.Restricted)+len(systemDatabases))
	for _, name := range c.Restricted {
		out[name] = true
	}
	if c.ExcludeSystemDatabases {
		for _, name := range systemDatabases {
			out[name] = true
		}
	}
	return out
}

// ConnectOptions returns the server-scoped connection options.
func (c *Config) ConnectOptions() adapter.ConnectOptions {
	return adapter.ConnectOptions{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		Trusted:  c.Trusted,
	}
}
