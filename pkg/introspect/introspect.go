// Package introspect reads existing objects back out of a database as DDL,
// so a schema that predates sqlstride can be captured as step files.
package introspect

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/pthm/sqlstride/pkg/adapter"
	"github.com/pthm/sqlstride/pkg/dialect"
)

// ErrUnsupported is returned by For when a dialect has no introspector.
var ErrUnsupported = errors.New("introspection not supported")

// Object kinds.
const (
	KindTable     = "table"
	KindView      = "view"
	KindIndex     = "index"
	KindProcedure = "procedure"
	KindFunction  = "function"
	KindTrigger   = "trigger"
	KindSequence  = "sequence"
)

// Object is one database object and the DDL that recreates it.
type Object struct {
	Kind   string
	Schema string
	Name   string
	DDL    string
}

// Category returns the schema directory an object's step belongs in.
func (o Object) Category() string {
	switch o.Kind {
	case KindTable:
		return "tables"
	case KindView:
		return "views"
	case KindIndex:
		return "indexes"
	case KindProcedure:
		return "procedures"
	case KindFunction:
		return "functions"
	case KindTrigger:
		return "triggers"
	case KindSequence:
		return "types"
	default:
		return "other"
	}
}

// QualifiedName is schema.name, or name when there is no schema.
func (o Object) QualifiedName() string {
	if o.Schema == "" {
		return o.Name
	}
	return o.Schema + "." + o.Name
}

var unsafeChars = regexp.MustCompile(`[^\w.\-]+`)

// StepID returns a marker-safe step id for the object.
func (o Object) StepID() string {
	return unsafeChars.ReplaceAllString(o.Kind+"_"+o.QualifiedName(), "_")
}

// Step formats the object as a single step authored by author.
func (o Object) Step(author string) string {
	ddl := strings.TrimRight(strings.TrimSpace(o.DDL), ";")
	return fmt.Sprintf("-- step %s:%s\n%s;\n", author, o.StepID(), ddl)
}

// Introspector discovers the objects of one database family.
type Introspector interface {
	Discover(ctx context.Context, q adapter.Execer) ([]Object, error)
}

// For returns the introspector for d.
func For(d dialect.Dialect) (Introspector, error) {
	switch d.Name() {
	case "mariadb":
		return MariaDB{}, nil
	case "sqlite":
		return SQLite{}, nil
	default:
		return nil, fmt.Errorf("%w for %s", ErrUnsupported, d.Name())
	}
}

// Exclude drops objects whose name or qualified name is in names. Matching
// ignores case.
func Exclude(objs []Object, names ...string) []Object {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[strings.ToLower(n)] = true
	}

	out := objs[:0:0]
	for _, o := range objs {
		if skip[strings.ToLower(o.Name)] || skip[strings.ToLower(o.QualifiedName())] {
			continue
		}
		out = append(out, o)
	}
	return out
}
