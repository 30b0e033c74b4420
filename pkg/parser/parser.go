// Package parser extracts ordered steps from a sqlstride schema directory.
//
// A schema directory holds SQL files grouped into category directories.
// Each file contains one or more steps introduced by a marker line:
//
//	-- step alice:create_users
//	CREATE TABLE users (id INT PRIMARY KEY);
//
//	-- step alice:users_email
//	ALTER TABLE users ADD COLUMN email VARCHAR(255);
//
// The step body is everything after the marker line up to the next marker
// or the end of the file. Text before the first marker is ignored, so files
// can carry a free-form header comment.
//
// # Ordering
//
// Steps are returned in one deterministic global order. Files directly in the
// root come first, then the category directories in Categories order, then any
// other directory in lexical order. Inside a directory, files sort before
// subdirectories and both sort lexically. Within a file, steps keep their
// document order.
//
// # Basic Usage
//
//	steps, err := parser.ParseDir("schema")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Any fs.FS works, including embed.FS:
//
//	//go:embed schema
//	var schemaFS embed.FS
//
//	sub, _ := fs.Sub(schemaFS, "schema")
//	steps, err := parser.ParseFS(sub)
package parser

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"
)

// Categories lists the category directories visited before any other
// directory, in the order their steps are applied. The sequence approximates
// dependency order: roles and schemas before tables, tables before the data
// and constraints that reference them, programmable objects before the views
// and grants built on top of them, retirement scripts last.
var Categories = []string{
	"infrastructure",
	"roles",
	"schemas",
	"types",
	"tables",
	"indexes",
	"seed",
	"data",
	"constraints",
	"functions",
	"procedures",
	"triggers",
	"views",
	"security",
	"grants",
	"jobs",
	"retire",
}

// Extensions lists the file suffixes treated as step files. Matching is
// case-insensitive.
var Extensions = []string{".sql", ".sql.tmpl"}

// markerPattern matches "-- step author:id" on its own line. Anything after
// the id on the marker line is ignored.
var markerPattern = regexp.MustCompile(`(?im)^[ \t]*--[ \t]*step[ \t]+([\w.\-]+):([\w.\-]+)[^\n]*$`)

// ParseDir parses every step file under dir.
func ParseDir(dir string) ([]Step, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &FileError{Path: dir, Op: "stat schema directory", Err: err}
	}
	if !info.IsDir() {
		return nil, &FileError{Path: dir, Op: "stat schema directory", Err: fmt.Errorf("not a directory")}
	}
	return ParseFS(os.DirFS(dir))
}

// ParseFS parses every step file in fsys, rooted at ".".
// Duplicate step identities are reported as ErrDuplicateStep.
func ParseFS(fsys fs.FS) ([]Step, error) {
	files, err := stepFiles(fsys)
	if err != nil {
		return nil, err
	}

	var steps []Step
	seen := make(map[Key]struct{})
	for _, name := range files {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, &FileError{Path: name, Op: "read", Err: err}
		}

		for _, s := range ParseContent(name, string(data)) {
			key := s.Key()
			if _, dup := seen[key]; dup {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateStep, key)
			}
			seen[key] = struct{}{}
			steps = append(steps, s)
		}
	}

	return steps, nil
}

// ParseContent extracts the steps of a single file. filename is recorded on
// each step as part of its identity. Content without markers yields no steps.
func ParseContent(filename, content string) []Step {
	matches := markerPattern.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return nil
	}

	steps := make([]Step, 0, len(matches))
	for i, m := range matches {
		end := len(content)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		steps = append(steps, Step{
			Author:   content[m[2]:m[3]],
			ID:       content[m[4]:m[5]],
			SQL:      strings.TrimSpace(content[m[1]:end]),
			Filename: filename,
		})
	}
	return steps
}

// stepFiles returns the slash-separated paths of all step files in
// application order.
func stepFiles(fsys fs.FS) ([]string, error) {
	rootFiles, rootDirs, err := readDir(fsys, ".")
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool, len(rootDirs))
	for _, d := range rootDirs {
		present[d] = true
	}

	// Category directories first, in priority order, then the rest lexically.
	order := make([]string, 0, len(rootDirs))
	for _, c := range Categories {
		if present[c] {
			order = append(order, c)
			delete(present, c)
		}
	}
	for _, d := range rootDirs {
		if present[d] {
			order = append(order, d)
		}
	}

	files := rootFiles
	for _, dir := range order {
		sub, err := walk(fsys, dir)
		if err != nil {
			return nil, err
		}
		files = append(files, sub...)
	}
	return files, nil
}

// walk lists step files under dir: its own files first, then each
// subdirectory recursively.
func walk(fsys fs.FS, dir string) ([]string, error) {
	files, dirs, err := readDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	for _, d := range dirs {
		sub, err := walk(fsys, d)
		if err != nil {
			return nil, err
		}
		files = append(files, sub...)
	}
	return files, nil
}

// readDir splits a directory into sorted step files and sorted
// subdirectories. Hidden entries are skipped.
func readDir(fsys fs.FS, dir string) (files, dirs []string, err error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, nil, &FileError{Path: dir, Op: "read directory", Err: err}
	}

	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		p := path.Join(dir, name)
		switch {
		case e.IsDir():
			dirs = append(dirs, p)
		case IsStepFile(name):
			files = append(files, p)
		}
	}

	// fs.ReadDir implementations are expected to sort, but the ordering
	// guarantee must not depend on it.
	sort.Strings(files)
	sort.Strings(dirs)
	return files, dirs, nil
}

// IsStepFile reports whether name carries one of the step file extensions.
func IsStepFile(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range Extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
