// Package scaffold lays out a new sqlstride project: a sqlstride.yaml and a
// schema directory with one subdirectory per category.
package scaffold

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"

	"github.com/pthm/sqlstride/pkg/adapter"
	"github.com/pthm/sqlstride/pkg/dialect"
	"github.com/pthm/sqlstride/pkg/parser"
)

// ConfigFile is the name of the generated configuration file.
const ConfigFile = "sqlstride.yaml"

// ErrExists is returned when the configuration file already exists and
// Options.Force is not set.
var ErrExists = errors.New("already exists")

const header = `# sqlstride configuration.
# Every key can be overridden with a SQLSTRIDE_ environment variable,
# e.g. SQLSTRIDE_DATABASE_URL or SQLSTRIDE_SYNC_DRY_RUN.
`

const exampleStep = `-- Steps run once, in file order, and are recorded in the ledger.
-- Never edit an applied step; add a new one instead.

-- step %s:create_example
CREATE TABLE example (
    id INT PRIMARY KEY,
    name VARCHAR(255) NOT NULL
);
`

// Options describes the project to create.
type Options struct {
	// Dir is the project root. Empty means the working directory.
	Dir string

	Dialect   string
	SchemaDir string

	// DatabaseURL is written to database.url when set.
	DatabaseURL string

	// Author is used for the example step. Empty skips the example.
	Author string

	// Force overwrites an existing configuration file.
	Force bool
}

// Result lists what was created.
type Result struct {
	ConfigPath string
	SchemaDir  string
	Created    []string
}

type fileConfig struct {
	Dialect     string         `json:"dialect"`
	SchemaDir   string         `json:"schema_dir"`
	LedgerTable string         `json:"ledger_table"`
	LockTable   string         `json:"lock_table"`
	LockTTL     string         `json:"lock_ttl"`
	Database    map[string]any `json:"database"`
	Sync        map[string]any `json:"sync"`
	Vars        map[string]any `json:"vars"`
}

// Run writes the configuration file and creates the category directories.
// Existing directories and files inside them are left alone.
func Run(opts Options) (*Result, error) {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.SchemaDir == "" {
		opts.SchemaDir = "schema"
	}
	d, err := dialect.Lookup(opts.Dialect)
	if err != nil {
		return nil, err
	}

	res := &Result{
		ConfigPath: filepath.Join(opts.Dir, ConfigFile),
		SchemaDir:  filepath.Join(opts.Dir, opts.SchemaDir),
	}

	if _, err := os.Stat(res.ConfigPath); err == nil && !opts.Force {
		return nil, fmt.Errorf("%s %w (use --force to overwrite)", res.ConfigPath, ErrExists)
	}

	data, err := renderConfig(d, opts)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(res.ConfigPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", res.ConfigPath, err)
	}
	res.Created = append(res.Created, res.ConfigPath)

	for _, category := range parser.Categories {
		dir := filepath.Join(res.SchemaDir, category)
		if _, err := os.Stat(dir); err == nil {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
		res.Created = append(res.Created, dir)
	}

	if opts.Author != "" {
		path := filepath.Join(res.SchemaDir, "tables", "001_example.sql")
		created, err := writeNew(path, fmt.Sprintf(exampleStep, opts.Author))
		if err != nil {
			return nil, err
		}
		if created {
			res.Created = append(res.Created, path)
		}
	}

	return res, nil
}

func renderConfig(d dialect.Dialect, opts Options) ([]byte, error) {
	db := map[string]any{}
	if opts.DatabaseURL != "" {
		db["url"] = opts.DatabaseURL
	} else if d.Name() == "sqlite" {
		db["name"] = "app.db"
	} else {
		db["host"] = "localhost"
		db["name"] = "app"
		db["user"] = "app"
		db["password_env"] = "DB_PASSWORD"
	}

	body, err := yaml.Marshal(fileConfig{
		Dialect:     d.Name(),
		SchemaDir:   filepath.ToSlash(opts.SchemaDir),
		LedgerTable: adapter.DefaultLedgerTable,
		LockTable:   adapter.DefaultLockTable,
		LockTTL:     "5m",
		Database:    db,
		Sync:        map[string]any{"dry_run": false, "verify_checksums": true},
		Vars:        map[string]any{},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return append([]byte(header), body...), nil
}

// writeNew creates path with content unless it already exists.
func writeNew(path, content string) (bool, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return false, fmt.Errorf("writing %s: %w", path, err)
	}
	return true, f.Close()
}
