package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/pheller/sqlpilot/internal/driver"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Theme != "default" {
		t.Errorf("Theme = %q, want %q", cfg.Theme, "default")
	}
	if cfg.Editor.TabSize != 4 {
		t.Errorf("Editor.TabSize = %d, want %d", cfg.Editor.TabSize, 4)
	}
	if cfg.Editor.ShowLineNumbers != true {
		t.Errorf("Editor.ShowLineNumbers = %v, want %v", cfg.Editor.ShowLineNumbers, true)
	}
	if cfg.Results.MaxRows != 1000 {
		t.Errorf("Results.MaxRows = %d, want %d", cfg.Results.MaxRows, 1000)
	}
	if cfg.Timeouts.Query.Std() != 30*time.Second {
		t.Errorf("Timeouts.Query = %v, want 30s", cfg.Timeouts.Query)
	}
	if cfg.Timeouts.Probe.Std() != 10*time.Second {
		t.Errorf("Timeouts.Probe = %v, want 10s", cfg.Timeouts.Probe)
	}
	if !cfg.Audit.Enabled || cfg.Audit.MaxSizeMB != 10 {
		t.Errorf("Audit = %+v", cfg.Audit)
	}
	if !cfg.History.Enabled || cfg.History.MaxEntries != 1000 {
		t.Errorf("History = %+v", cfg.History)
	}
	if len(cfg.Connections) != 0 {
		t.Errorf("Connections length = %d, want 0", len(cfg.Connections))
	}
}

func TestLoadValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `theme: monokai
editor:
  tab_size: 2
  show_line_numbers: false
results:
  max_rows: 500
  max_column_width: 80
timeouts:
  query: 45s
  probe: 5s
connections:
  - name: mydb
    driver: postgres
    auth: password
    host: db.example.com
    port: 5432
    user: admin
    password: secret
    database: production
  - name: localfile
    driver: sqlite
    file: /tmp/test.db
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Theme != "monokai" {
		t.Errorf("Theme = %q, want %q", cfg.Theme, "monokai")
	}
	if cfg.Editor.TabSize != 2 {
		t.Errorf("Editor.TabSize = %d, want %d", cfg.Editor.TabSize, 2)
	}
	if cfg.Results.MaxRows != 500 {
		t.Errorf("Results.MaxRows = %d, want %d", cfg.Results.MaxRows, 500)
	}
	if cfg.Timeouts.Query.Std() != 45*time.Second {
		t.Errorf("Timeouts.Query = %v, want 45s", cfg.Timeouts.Query)
	}
	if cfg.Timeouts.Probe.Std() != 5*time.Second {
		t.Errorf("Timeouts.Probe = %v, want 5s", cfg.Timeouts.Probe)
	}
	if len(cfg.Connections) != 2 {
		t.Fatalf("Connections length = %d, want 2", len(cfg.Connections))
	}

	c := cfg.Connections[0]
	if c.Name != "mydb" || c.Driver != "postgres" || c.Auth != "password" ||
		c.Host != "db.example.com" || c.Port != 5432 || c.User != "admin" ||
		c.Password != "secret" || c.Database != "production" {
		t.Errorf("Connection[0] fields mismatch: %+v", c)
	}

	c2 := cfg.Connections[1]
	if c2.Name != "localfile" || c2.Driver != "sqlite" || c2.File != "/tmp/test.db" {
		t.Errorf("Connection[1] fields mismatch: %+v", c2)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v, want nil for missing file", err)
	}

	def := DefaultConfig()
	if !reflect.DeepEqual(cfg, def) {
		t.Errorf("Load(missing) = %+v, want DefaultConfig %+v", cfg, def)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")

	content := "theme: [\ninvalid:\n  - {broken\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load(invalid YAML) error = nil, want error")
	}
}

func TestLoadPartialYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partial.yaml")

	// Only set theme and tab_size, everything else should default.
	yaml := `theme: dracula
editor:
  tab_size: 8
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Theme != "dracula" {
		t.Errorf("Theme = %q, want %q", cfg.Theme, "dracula")
	}
	if cfg.Editor.TabSize != 8 {
		t.Errorf("Editor.TabSize = %d, want %d", cfg.Editor.TabSize, 8)
	}
	// These should remain at default values.
	if cfg.Editor.ShowLineNumbers != true {
		t.Errorf("Editor.ShowLineNumbers = %v, want default true", cfg.Editor.ShowLineNumbers)
	}
	if cfg.Results.MaxRows != 1000 {
		t.Errorf("Results.MaxRows = %d, want default %d", cfg.Results.MaxRows, 1000)
	}
	if cfg.Timeouts.Query.Std() != 30*time.Second {
		t.Errorf("Timeouts.Query = %v, want default 30s", cfg.Timeouts.Query)
	}
}

func TestSaveAndLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "config.yaml")

	original := DefaultConfig()
	original.Theme = "nord"
	original.Editor = EditorConfig{TabSize: 3, ShowLineNumbers: false}
	original.Results = ResultsConfig{MaxRows: 200, MaxColumnWidth: 100}
	original.Connections = []SavedConnection{
		{
			Name:     "prod-pg",
			Driver:   "postgres",
			Auth:     "password",
			Host:     "db.prod.internal",
			Port:     5433,
			User:     "appuser",
			Password: "p@ss!",
			Database: "maindb",
		},
		{
			Name:   "local-duck",
			Driver: "duckdb",
			File:   "/data/analytics.duckdb",
		},
	}

	if err := original.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Credentials in the file demand owner-only permissions.
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config file mode = %o, want 600", perm)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !reflect.DeepEqual(original, loaded) {
		t.Errorf("roundtrip mismatch:\n  saved:  %+v\n  loaded: %+v", original, loaded)
	}
}

func TestSaveDefaultAndLoadDefault(t *testing.T) {
	// Override HOME (and XDG_CONFIG_HOME on Linux) to use a temp dir so
	// ConfigDir() resolves inside the test directory.
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpHome, ".config"))

	cfg := DefaultConfig()
	cfg.Theme = "solarized"

	if err := cfg.SaveDefault(); err != nil {
		t.Fatalf("SaveDefault() error = %v", err)
	}

	loaded, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault() error = %v", err)
	}

	if loaded.Theme != cfg.Theme {
		t.Errorf("Theme = %q, want %q", loaded.Theme, cfg.Theme)
	}
}

func TestConnectionLookup(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Connections = []SavedConnection{
		{Name: "a", Driver: "sqlite", File: "/tmp/a.db"},
		{Name: "b", Driver: "postgres", Host: "db"},
	}

	sc, ok := cfg.Connection("b")
	if !ok || sc.Driver != "postgres" {
		t.Fatalf("Connection(b) = %+v, %v", sc, ok)
	}
	if _, ok := cfg.Connection("missing"); ok {
		t.Fatal("Connection(missing) found something")
	}
}

func TestTarget(t *testing.T) {
	tests := []struct {
		name     string
		conn     SavedConnection
		wantAuth driver.AuthMethod
	}{
		{
			name:     "explicit auth wins",
			conn:     SavedConnection{Driver: "postgres", Auth: "integrated", Password: "ignored-for-auth"},
			wantAuth: driver.AuthIntegrated,
		},
		{
			name:     "password present defaults to password auth",
			conn:     SavedConnection{Driver: "postgres", User: "u", Password: "s"},
			wantAuth: driver.AuthPassword,
		},
		{
			name:     "token present defaults to token auth",
			conn:     SavedConnection{Driver: "postgres", User: "u", Token: "tok"},
			wantAuth: driver.AuthToken,
		},
		{
			name:     "no credentials defaults to integrated",
			conn:     SavedConnection{Driver: "postgres", User: "u"},
			wantAuth: driver.AuthIntegrated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := tt.conn.Target()
			if target.Auth != tt.wantAuth {
				t.Errorf("Auth = %q, want %q", target.Auth, tt.wantAuth)
			}
		})
	}

	sc := SavedConnection{
		Driver:   "postgres",
		DSN:      "postgres://u:p@h:5432/db",
		Host:     "h",
		Port:     5432,
		User:     "u",
		Password: "p",
		Database: "db",
	}
	target := sc.Target()
	if target.DSN != sc.DSN || target.Host != "h" || target.Port != 5432 ||
		target.User != "u" || target.Password != "p" || target.Database != "db" {
		t.Errorf("Target() = %+v", target)
	}
}

func TestDisplayString(t *testing.T) {
	tests := []struct {
		name string
		conn SavedConnection
		want string
	}{
		{
			name: "postgres full",
			conn: SavedConnection{
				Driver:   "postgres",
				Host:     "db.example.com",
				Port:     5432,
				Database: "mydb",
			},
			want: "postgres://db.example.com:5432/mydb",
		},
		{
			name: "postgres no port",
			conn: SavedConnection{
				Driver:   "postgres",
				Host:     "db.example.com",
				Database: "mydb",
			},
			want: "postgres://db.example.com/mydb",
		},
		{
			name: "postgres no database",
			conn: SavedConnection{
				Driver: "postgres",
				Host:   "db.example.com",
				Port:   5432,
			},
			want: "postgres://db.example.com:5432",
		},
		{
			name: "postgres defaults to localhost",
			conn: SavedConnection{Driver: "postgres"},
			want: "postgres://localhost",
		},
		{
			name: "sqlite with file",
			conn: SavedConnection{
				Driver: "sqlite",
				File:   "/home/user/data.db",
			},
			want: "sqlite:///home/user/data.db",
		},
		{
			name: "sqlite with DSN fallback",
			conn: SavedConnection{
				Driver: "sqlite",
				DSN:    "/tmp/fallback.db",
			},
			want: "sqlite:///tmp/fallback.db",
		},
		{
			name: "duckdb with file",
			conn: SavedConnection{
				Driver: "duckdb",
				File:   "/data/analytics.duckdb",
			},
			want: "duckdb:///data/analytics.duckdb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.conn.DisplayString()
			if got != tt.want {
				t.Errorf("DisplayString() = %q, want %q", got, tt.want)
			}
		})
	}

	// Credential material never appears in the display form.
	sc := SavedConnection{Driver: "postgres", Host: "h", User: "u", Password: "hunter2"}
	if got := sc.DisplayString(); got != "postgres://h" {
		t.Errorf("DisplayString() = %q, want no credentials", got)
	}
}

func TestConfigDir(t *testing.T) {
	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error = %v", err)
	}
	if dir == "" {
		t.Fatal("ConfigDir() returned empty string")
	}
	if filepath.Base(dir) != "sqlpilot" {
		t.Errorf("ConfigDir() base = %q, want %q", filepath.Base(dir), "sqlpilot")
	}
}
