// Package render expands template variables in step SQL.
//
// Step bodies are Go text/templates evaluated against the configured
// variables:
//
//	-- step alice:grant_app
//	GRANT SELECT ON users TO {{ .app_role }};
//
// A reference to an undefined variable is an error rather than an empty
// string, so a typo cannot silently produce different SQL.
package render

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// ErrTemplate wraps every parse or execution failure of a step template.
var ErrTemplate = errors.New("template error")

// Renderer renders step SQL against a fixed set of variables.
type Renderer struct {
	vars  map[string]any
	funcs template.FuncMap
}

// New returns a Renderer for vars. The map is copied.
func New(vars map[string]any) *Renderer {
	copied := make(map[string]any, len(vars))
	for k, v := range vars {
		copied[k] = v
	}
	return &Renderer{vars: copied, funcs: Funcs()}
}

// Vars returns the variable names in lexical order.
func (r *Renderer) Vars() []string {
	names := make([]string, 0, len(r.vars))
	for k := range r.vars {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Render evaluates text as a template. name identifies the template in
// error messages. Text without template actions is returned unchanged.
func (r *Renderer) Render(name, text string) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := template.New(name).
		Option("missingkey=error").
		Funcs(r.funcs).
		Parse(text)
	if err != nil {
		return "", fmt.Errorf("%w: parsing template %s: %w", ErrTemplate, name, err)
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, r.vars); err != nil {
		return "", fmt.Errorf("%w: rendering template %s: %w", ErrTemplate, name, err)
	}
	return b.String(), nil
}

// Funcs returns the helper functions available to step templates:
//
//	upper, lower  change case
//	join          join a list with a separator: {{ join .schemas ", " }}
//	default       fall back when a value is empty: {{ default "public" .schema }}
//	quote         SQL string literal with quotes doubled: {{ quote .comment }}
func Funcs() template.FuncMap {
	return template.FuncMap{
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"join":  join,
		"default": func(def, v any) any {
			if isEmpty(v) {
				return def
			}
			return v
		},
		"quote": func(v any) string {
			return "'" + strings.ReplaceAll(fmt.Sprint(v), "'", "''") + "'"
		},
	}
}

func join(v any, sep string) string {
	switch items := v.(type) {
	case []string:
		return strings.Join(items, sep)
	case []any:
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = fmt.Sprint(item)
		}
		return strings.Join(parts, sep)
	default:
		return fmt.Sprint(v)
	}
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	default:
		return false
	}
}
