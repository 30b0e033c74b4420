package introspect

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Print writes every object as a step to w, in discovery order.
func Print(w io.Writer, author string, objs []Object) error {
	for _, o := range objs {
		if _, err := fmt.Fprintf(w, "-- %s %s\n%s\n", o.Kind, o.QualifiedName(), o.Step(author)); err != nil {
			return err
		}
	}
	return nil
}

// WriteSteps writes one step file per object under dir, grouped into
// category directories, and returns the paths written relative to dir.
// Existing files are never overwritten.
func WriteSteps(dir, author string, objs []Object) ([]string, error) {
	var written []string
	for _, o := range objs {
		rel := filepath.Join(o.Category(), unsafeChars.ReplaceAllString(o.QualifiedName(), "_")+".sql")
		path := filepath.Join(dir, rel)

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return written, fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
		}
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			return written, fmt.Errorf("%s already exists", path)
		}
		if err != nil {
			return written, fmt.Errorf("creating %s: %w", path, err)
		}
		_, werr := io.WriteString(f, o.Step(author))
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			return written, fmt.Errorf("writing %s: %w", path, werr)
		}
		written = append(written, filepath.ToSlash(rel))
	}
	return written, nil
}
