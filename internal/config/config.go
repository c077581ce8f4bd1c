package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pheller/sqlpilot/internal/driver"
)

// Config holds all application configuration.
type Config struct {
	Theme       string            `yaml:"theme"`
	Editor      EditorConfig      `yaml:"editor"`
	Results     ResultsConfig     `yaml:"results"`
	Timeouts    TimeoutConfig     `yaml:"timeouts"`
	Audit       AuditConfig       `yaml:"audit"`
	History     HistoryConfig     `yaml:"history"`
	Connections []SavedConnection `yaml:"connections"`
}

// EditorConfig holds editor-related settings.
type EditorConfig struct {
	TabSize         int  `yaml:"tab_size"`
	ShowLineNumbers bool `yaml:"show_line_numbers"`
}

// ResultsConfig holds result display settings.
type ResultsConfig struct {
	MaxRows        int `yaml:"max_rows"`
	MaxColumnWidth int `yaml:"max_column_width"`
}

// Duration wraps time.Duration so YAML can use forms like "30s". A
// bare number is taken as seconds.
type Duration time.Duration

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		dur, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", s, err)
		}
		*d = Duration(dur)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("parse duration: %w", err)
	}
	*d = Duration(time.Duration(n) * time.Second)
	return nil
}

// Std returns the wrapped standard duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// TimeoutConfig holds operation deadlines.
type TimeoutConfig struct {
	Query Duration `yaml:"query"` // per-execution deadline
	Probe Duration `yaml:"probe"` // connect attempts and metadata fetches
}

// AuditConfig controls the executed-query audit log.
type AuditConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path,omitempty"` // default ConfigDir()/audit.jsonl
	MaxSizeMB int    `yaml:"max_size_mb"`
}

// HistoryConfig controls the query history store.
type HistoryConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxEntries int  `yaml:"max_entries"`
}

// SavedConnection holds parameters for a saved database connection.
// Auth selects integrated, password, or token credentials; the token
// travels in the password slot for drivers that support it.
type SavedConnection struct {
	Name     string `yaml:"name"`
	Driver   string `yaml:"driver"`
	Auth     string `yaml:"auth,omitempty"` // integrated | password | token
	DSN      string `yaml:"dsn,omitempty"`
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
	Token    string `yaml:"token,omitempty"`
	Database string `yaml:"database,omitempty"`
	File     string `yaml:"file,omitempty"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Theme: "default",
		Editor: EditorConfig{
			TabSize:         4,
			ShowLineNumbers: true,
		},
		Results: ResultsConfig{
			MaxRows:        1000,
			MaxColumnWidth: 50,
		},
		Timeouts: TimeoutConfig{
			Query: Duration(30 * time.Second),
			Probe: Duration(10 * time.Second),
		},
		Audit: AuditConfig{
			Enabled:   true,
			MaxSizeMB: 10,
		},
		History: HistoryConfig{
			Enabled:    true,
			MaxEntries: 1000,
		},
	}
}

// ConfigDir returns the sqlpilot configuration directory, typically
// ~/.config/sqlpilot/.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config dir: %w", err)
	}
	return filepath.Join(base, "sqlpilot"), nil
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

// LoadDefault loads configuration from ConfigDir()/config.yaml.
func LoadDefault() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	return Load(filepath.Join(dir, "config.yaml"))
}

// Save writes the Config to the YAML file at path, creating any necessary
// parent directories. The file carries saved credentials, so it is 0600.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SaveDefault writes the Config to ConfigDir()/config.yaml.
func (c *Config) SaveDefault() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return c.Save(filepath.Join(dir, "config.yaml"))
}

// Connection returns the saved connection with the given name.
func (c *Config) Connection(name string) (SavedConnection, bool) {
	for _, sc := range c.Connections {
		if sc.Name == name {
			return sc, true
		}
	}
	return SavedConnection{}, false
}

// Target maps the saved connection to a driver target. The auth method
// defaults to password when credentials are present and integrated
// otherwise.
func (sc *SavedConnection) Target() driver.Target {
	auth := driver.AuthMethod(sc.Auth)
	switch auth {
	case driver.AuthIntegrated, driver.AuthPassword, driver.AuthToken:
	default:
		if sc.Password != "" {
			auth = driver.AuthPassword
		} else if sc.Token != "" {
			auth = driver.AuthToken
		} else {
			auth = driver.AuthIntegrated
		}
	}

	return driver.Target{
		DSN:      sc.DSN,
		Host:     sc.Host,
		Port:     sc.Port,
		User:     sc.User,
		Password: sc.Password,
		Token:    sc.Token,
		Database: sc.Database,
		File:     sc.File,
		Auth:     auth,
	}
}

// DisplayString returns a human-readable representation of the
// connection with no credential material: "driver://host:port/database"
// for network drivers, "driver://file" for file-based ones.
func (sc *SavedConnection) DisplayString() string {
	drv := strings.ToLower(sc.Driver)
	if drv == "sqlite" || drv == "duckdb" {
		file := sc.File
		if file == "" {
			file = sc.DSN
		}
		return fmt.Sprintf("%s://%s", sc.Driver, file)
	}

	host := sc.Host
	if host == "" {
		host = "localhost"
	}

	location := host
	if sc.Port > 0 {
		location = fmt.Sprintf("%s:%d", host, sc.Port)
	}

	if sc.Database != "" {
		return fmt.Sprintf("%s://%s/%s", sc.Driver, location, sc.Database)
	}
	return fmt.Sprintf("%s://%s", sc.Driver, location)
}
