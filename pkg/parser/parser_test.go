package parser

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func file(content string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(content)}
}

func keys(steps []Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Filename + "#" + s.Author + ":" + s.ID
	}
	return out
}

func TestParseContent(t *testing.T) {
	content := `-- header comment, not part of any step
-- Step alice:1
CREATE TABLE users (id INT);

--step bob:2 runOnChange:true
CREATE INDEX users_id ON users (id);
  -- STEP carol:release-1.2
DROP TABLE legacy;
`
	steps := ParseContent("tables/users.sql", content)
	require.Len(t, steps, 3)

	assert.Equal(t, Step{Author: "alice", ID: "1", SQL: "CREATE TABLE users (id INT);", Filename: "tables/users.sql"}, steps[0])
	assert.Equal(t, "bob", steps[1].Author)
	assert.Equal(t, "2", steps[1].ID)
	assert.Equal(t, "CREATE INDEX users_id ON users (id);", steps[1].SQL)
	assert.Equal(t, "carol", steps[2].Author)
	assert.Equal(t, "release-1.2", steps[2].ID)
	assert.Equal(t, "DROP TABLE legacy;", steps[2].SQL)
}

func TestParseContent_NoMarkers(t *testing.T) {
	assert.Empty(t, ParseContent("x.sql", "CREATE TABLE t (id INT);"))
	assert.Empty(t, ParseContent("x.sql", ""))
}

func TestParseContent_MarkerMustStartLine(t *testing.T) {
	steps := ParseContent("x.sql", "-- step a:1\nSELECT '-- step b:2';\n")
	require.Len(t, steps, 1)
	assert.Equal(t, "SELECT '-- step b:2';", steps[0].SQL)
}

func TestParseContent_CRLF(t *testing.T) {
	steps := ParseContent("x.sql", "-- step a:1\r\nSELECT 1;\r\n-- step a:2\r\nSELECT 2;\r\n")
	require.Len(t, steps, 2)
	assert.Equal(t, "1", steps[0].ID)
	assert.Equal(t, "SELECT 1;", steps[0].SQL)
	assert.Equal(t, "SELECT 2;", steps[1].SQL)
}

func TestParseFS_CategoryOrder(t *testing.T) {
	fsys := fstest.MapFS{
		"views/001_v.sql":             file("-- step bob:1\nCREATE VIEW v AS SELECT * FROM users;"),
		"tables/001_create_users.sql": file("-- step alice:1\nCREATE TABLE users(id int);"),
		"zzz/extra.sql":               file("-- step dan:1\nSELECT 1;"),
		"aaa/extra.sql":               file("-- step dan:2\nSELECT 2;"),
		"roles/app.sql":               file("-- step ops:1\nCREATE ROLE app;"),
		"bootstrap.sql":               file("-- step ops:0\nSELECT 0;"),
		"retire/old.sql":              file("-- step ops:9\nDROP TABLE old;"),
		"constraints/fk.sql":          file("-- step alice:fk\nALTER TABLE users ADD CHECK (id > 0);"),
		"seed/users.sql":              file("-- step alice:seed\nINSERT INTO users VALUES (1);"),
	}

	steps, err := ParseFS(fsys)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"bootstrap.sql#ops:0",
		"roles/app.sql#ops:1",
		"tables/001_create_users.sql#alice:1",
		"seed/users.sql#alice:seed",
		"constraints/fk.sql#alice:fk",
		"views/001_v.sql#bob:1",
		"retire/old.sql#ops:9",
		"aaa/extra.sql#dan:2",
		"zzz/extra.sql#dan:1",
	}, keys(steps))
}

func TestParseFS_FilesBeforeSubdirectories(t *testing.T) {
	fsys := fstest.MapFS{
		"tables/b.sql":          file("-- step a:b\nSELECT 1;"),
		"tables/a.sql":          file("-- step a:a\nSELECT 1;"),
		"tables/sub/a.sql":      file("-- step a:sub\nSELECT 1;"),
		"tables/sub/deep/z.sql": file("-- step a:deep\nSELECT 1;"),
		"tables/c.sql.tmpl":     file("-- step a:c\nSELECT {{ .n }};"),
		"tables/README.md":      file("-- step a:ignored\nnot sql"),
		"tables/.hidden.sql":    file("-- step a:hidden\nSELECT 1;"),
	}

	steps, err := ParseFS(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"tables/a.sql#a:a",
		"tables/b.sql#a:b",
		"tables/c.sql.tmpl#a:c",
		"tables/sub/a.sql#a:sub",
		"tables/sub/deep/z.sql#a:deep",
	}, keys(steps))
}

// shuffledFS returns directory entries in reverse order to prove ordering
// does not depend on the filesystem.
type shuffledFS struct {
	fstest.MapFS
}

func (s shuffledFS) ReadDir(name string) ([]fs.DirEntry, error) {
	entries, err := s.MapFS.ReadDir(name)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

func TestParseFS_Deterministic(t *testing.T) {
	base := fstest.MapFS{
		"tables/a.sql":   file("-- step x:1\nSELECT 1;\n-- step x:2\nSELECT 2;"),
		"tables/b.sql":   file("-- step x:3\nSELECT 3;"),
		"views/a.sql":    file("-- step x:4\nSELECT 4;"),
		"custom/one.sql": file("-- step x:5\nSELECT 5;"),
		"custom/two.sql": file("-- step x:6\nSELECT 6;"),
	}

	first, err := ParseFS(base)
	require.NoError(t, err)
	second, err := ParseFS(shuffledFS{base})
	require.NoError(t, err)

	assert.Equal(t, keys(first), keys(second))
	assert.Len(t, first, 6)
}

func TestParseFS_IdentityIncludesFilename(t *testing.T) {
	fsys := fstest.MapFS{
		"tables/a.sql": file("-- step alice:1\nSELECT 1;"),
		"tables/b.sql": file("-- step alice:1\nSELECT 1;"),
	}

	steps, err := ParseFS(fsys)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.NotEqual(t, steps[0].Key(), steps[1].Key())
}

func TestParseFS_DuplicateInSameFile(t *testing.T) {
	fsys := fstest.MapFS{
		"tables/a.sql": file("-- step alice:1\nSELECT 1;\n-- step alice:1\nSELECT 2;"),
	}

	_, err := ParseFS(fsys)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateStep))
	assert.Contains(t, err.Error(), "alice:1 (tables/a.sql)")
}

func TestParseFS_FileWithoutMarkers(t *testing.T) {
	fsys := fstest.MapFS{
		"tables/notes.sql": file("-- just a comment\nSELECT 1;"),
		"tables/real.sql":  file("-- step a:1\nSELECT 1;"),
	}

	steps, err := ParseFS(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"tables/real.sql#a:1"}, keys(steps))
}

func TestParseDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "tables"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "views"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "views", "001_v.sql"),
		[]byte("-- step bob:1\nCREATE VIEW v AS SELECT * FROM users;"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tables", "001_create_users.sql"),
		[]byte("-- step alice:1\nCREATE TABLE users(id int);"), 0o644))

	steps, err := ParseDir(dir)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, Key{Filename: "tables/001_create_users.sql", Author: "alice", ID: "1"}, steps[0].Key())
	assert.Equal(t, Key{Filename: "views/001_v.sql", Author: "bob", ID: "1"}, steps[1].Key())
}

func TestParseDir_Missing(t *testing.T) {
	_, err := ParseDir(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)

	var fileErr *FileError
	require.True(t, errors.As(err, &fileErr))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestParseFS_UnreadableFile(t *testing.T) {
	fsys := failingFS{MapFS: fstest.MapFS{
		"tables/a.sql": file("-- step a:1\nSELECT 1;"),
	}, fail: "tables/a.sql"}

	_, err := ParseFS(fsys)
	require.Error(t, err)

	var fileErr *FileError
	require.True(t, errors.As(err, &fileErr))
	assert.Equal(t, "tables/a.sql", fileErr.Path)
}

type failingFS struct {
	fstest.MapFS
	fail string
}

func (f failingFS) Open(name string) (fs.File, error) {
	if name == f.fail {
		return nil, fs.ErrPermission
	}
	return f.MapFS.Open(name)
}

func (f failingFS) ReadFile(name string) ([]byte, error) {
	if name == f.fail {
		return nil, fs.ErrPermission
	}
	return f.MapFS.ReadFile(name)
}

func TestIsStepFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"001_users.sql", true},
		{"001_users.SQL", true},
		{"001_users.sql.tmpl", true},
		{"001_users.tmpl", false},
		{"README.md", false},
		{"users.sql.bak", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsStepFile(tt.name))
		})
	}
}
