package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
	"sigs.k8s.io/yaml"

	"github.com/pthm/sqlstride/pkg/adapter"
	"github.com/pthm/sqlstride/pkg/dialect"
)

const (
	maxWalkDepth = 25

	// redacted replaces secrets in Config.Redacted.
	redacted = "********"
)

// configNames are the file names searched for during auto-discovery, in
// order of preference.
var configNames = []string{"sqlstride.yaml", "sqlstride.yml"}

// Config represents the sqlstride configuration from sqlstride.yaml.
type Config struct {
	Dialect     string `mapstructure:"dialect" json:"dialect"`
	SchemaDir   string `mapstructure:"schema_dir" json:"schema_dir"`
	LedgerTable string `mapstructure:"ledger_table" json:"ledger_table"`
	LockTable   string `mapstructure:"lock_table" json:"lock_table"`
	LockTTL     string `mapstructure:"lock_ttl" json:"lock_ttl"`

	// Database configuration
	Database DatabaseConfig `mapstructure:"database" json:"database"`

	// Per-command configuration
	Sync SyncConfig `mapstructure:"sync" json:"sync"`

	// Vars are the template variables rendered into every step.
	Vars map[string]any `mapstructure:"vars" json:"vars,omitempty"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	URL         string `mapstructure:"url" json:"url,omitempty"`
	Driver      string `mapstructure:"driver" json:"driver,omitempty"`
	Host        string `mapstructure:"host" json:"host,omitempty"`
	Port        int    `mapstructure:"port" json:"port,omitempty"`
	Name        string `mapstructure:"name" json:"name,omitempty"`
	User        string `mapstructure:"user" json:"user,omitempty"`
	Password    string `mapstructure:"password" json:"password,omitempty"`
	PasswordEnv string `mapstructure:"password_env" json:"password_env,omitempty"`
	SSLMode     string `mapstructure:"sslmode" json:"sslmode,omitempty"`
	Instance    string `mapstructure:"instance" json:"instance,omitempty"`
}

// SyncConfig holds sync command settings.
type SyncConfig struct {
	DryRun          bool `mapstructure:"dry_run" json:"dry_run"`
	VerifyChecksums bool `mapstructure:"verify_checksums" json:"verify_checksums"`
}

// LoadConfig discovers and loads configuration with proper precedence:
// flags > env > config file > defaults.
//
// Returns the loaded config, the path to the config file (empty if none found),
// and any error encountered.
func LoadConfig(explicitConfigPath string) (*Config, string, error) {
	v := viper.New()

	// 1. Set defaults first (lowest precedence)
	setDefaults(v)

	// 2. Set up environment variable binding
	v.SetEnvPrefix("SQLSTRIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 3. Find and load config file
	configPath, err := findConfigFile(explicitConfigPath)
	if err != nil {
		return nil, "", err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, configPath, fmt.Errorf("reading config file: %w", err)
		}
	}

	// 4. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configPath, fmt.Errorf("unmarshaling config: %w", err)
	}

	// viper lowercases map keys, so vars are read from the file as written.
	cfg.Vars = map[string]any{}
	if configPath != "" {
		vars, err := readVars(configPath)
		if err != nil {
			return nil, configPath, err
		}
		cfg.Vars = vars
	}

	return &cfg, configPath, nil
}

// readVars decodes the vars block of the config file. Numbers keep their
// written form: integers become int64, everything else float64.
func readVars(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	js, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("reading vars: %w", err)
	}

	var doc struct {
		Vars map[string]any `json:"vars"`
	}
	dec := json.NewDecoder(bytes.NewReader(js))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("reading vars: %w", err)
	}
	if doc.Vars == nil {
		return map[string]any{}, nil
	}
	for k, v := range doc.Vars {
		doc.Vars[k] = normalizeNumbers(v)
	}
	return doc.Vars, nil
}

func normalizeNumbers(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case map[string]any:
		for k, item := range v {
			v[k] = normalizeNumbers(item)
		}
	case []any:
		for i, item := range v {
			v[i] = normalizeNumbers(item)
		}
	}
	return v
}

func setDefaults(v *viper.Viper) {
	// Top-level defaults
	v.SetDefault("dialect", "postgres")
	v.SetDefault("schema_dir", "schema")
	v.SetDefault("ledger_table", adapter.DefaultLedgerTable)
	v.SetDefault("lock_table", adapter.DefaultLockTable)
	v.SetDefault("lock_ttl", "5m")

	// Database defaults. The port stays zero so each dialect applies its own.
	v.SetDefault("database.url", "")
	v.SetDefault("database.driver", "")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.name", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.password_env", "")
	v.SetDefault("database.sslmode", "")
	v.SetDefault("database.instance", "")

	// Sync defaults
	v.SetDefault("sync.dry_run", false)
	v.SetDefault("sync.verify_checksums", false)
}

// findConfigFile finds the config file to use.
// If explicitPath is provided, it validates the file exists.
// Otherwise, it walks up from cwd looking for sqlstride.yaml or sqlstride.yml,
// stopping at a .git directory or after maxWalkDepth levels.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}

	dir := cwd
	for i := 0; i < maxWalkDepth; i++ {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		// Check for repo boundary (.git file or directory)
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", nil
}

// ParsedLockTTL parses lock_ttl. An empty value means the engine default.
func (c *Config) ParsedLockTTL() (time.Duration, error) {
	if c.LockTTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.LockTTL)
	if err != nil {
		return 0, fmt.Errorf("lock_ttl: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("lock_ttl: must not be negative, got %s", d)
	}
	return d, nil
}

// ConnParams returns the discrete connection fields, resolving
// database.password_env when database.password is empty.
func (c *Config) ConnParams() (dialect.ConnParams, error) {
	db := c.Database

	password := db.Password
	if password == "" && db.PasswordEnv != "" {
		v, ok := os.LookupEnv(db.PasswordEnv)
		if !ok {
			return dialect.ConnParams{}, fmt.Errorf("database.password_env: environment variable %s is not set", db.PasswordEnv)
		}
		password = v
	}

	return dialect.ConnParams{
		Host:     db.Host,
		Port:     db.Port,
		Name:     db.Name,
		User:     db.User,
		Password: password,
		SSLMode:  db.SSLMode,
		Instance: db.Instance,
	}, nil
}

// DSN returns the database connection string for d.
// If database.url is set, it's returned directly.
// Otherwise, the dialect builds one from the discrete fields.
func (c *Config) DSN(d dialect.Dialect) (string, error) {
	if c.Database.URL != "" {
		return c.Database.URL, nil
	}

	if c.Database.Name == "" {
		return "", errors.New("database.name is required when database.url is not set")
	}

	p, err := c.ConnParams()
	if err != nil {
		return "", err
	}
	dsn, err := d.BuildDSN(p)
	if err != nil {
		return "", fmt.Errorf("building %s connection string: %w", d.Name(), err)
	}
	return dsn, nil
}

// DriverName returns database.driver when set, otherwise the dialect's
// default driver.
func (c *Config) DriverName(d dialect.Dialect) string {
	if c.Database.Driver != "" {
		return c.Database.Driver
	}
	return d.DriverName()
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Database.Password != "" {
		out.Database.Password = redacted
	}
	if out.Database.URL != "" {
		out.Database.URL = redactURL(out.Database.URL)
	}
	out.Vars = make(map[string]any, len(c.Vars))
	for k, v := range c.Vars {
		out.Vars[k] = v
	}
	return &out
}

// redactURL masks the password of a URL-style connection string. Strings
// without "scheme://user:pass@" are returned unchanged.
func redactURL(raw string) string {
	scheme := strings.Index(raw, "://")
	if scheme < 0 {
		return raw
	}
	rest := raw[scheme+3:]
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return raw
	}
	userinfo := rest[:at]
	colon := strings.IndexByte(userinfo, ':')
	if colon < 0 {
		return raw
	}
	return raw[:scheme+3] + userinfo[:colon+1] + redacted + rest[at:]
}

// ParseVars parses "k=v,k2=v2" into a map. Values keep everything after
// the first "=", so they may themselves contain "=".
func ParseVars(s string) (map[string]any, error) {
	out := map[string]any{}
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid variable %q: expected key=value", pair)
		}
		out[k] = v
	}
	return out, nil
}

// MergeVars overlays overrides onto the configured vars.
func (c *Config) MergeVars(overrides map[string]any) {
	if c.Vars == nil {
		c.Vars = map[string]any{}
	}
	for k, v := range overrides {
		c.Vars[k] = v
	}
}

// VarNames returns the configured variable names, sorted.
func (c *Config) VarNames() []string {
	names := make([]string, 0, len(c.Vars))
	for k := range c.Vars {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
