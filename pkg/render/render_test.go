package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	r := New(map[string]any{
		"app_role": "app_rw",
		"schemas":  []any{"core", "audit"},
		"comment":  "it's here",
		"empty":    "",
	})

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "SELECT 1;", "SELECT 1;"},
		{"variable", "GRANT SELECT ON users TO {{ .app_role }};", "GRANT SELECT ON users TO app_rw;"},
		{"upper", "{{ upper .app_role }}", "APP_RW"},
		{"join", "{{ join .schemas \", \" }}", "core, audit"},
		{"default used", "{{ default \"public\" .empty }}", "public"},
		{"default skipped", "{{ default \"x\" .app_role }}", "app_rw"},
		{"quote", "COMMENT ON TABLE t IS {{ quote .comment }};", "COMMENT ON TABLE t IS 'it''s here';"},
		{"range", "{{ range .schemas }}CREATE SCHEMA {{ . }};\n{{ end }}", "CREATE SCHEMA core;\nCREATE SCHEMA audit;\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Render("tables/a.sql", tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRender_MissingVariable(t *testing.T) {
	_, err := New(nil).Render("tables/a.sql", "SELECT {{ .nope }};")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTemplate)
	assert.Contains(t, err.Error(), "tables/a.sql")
}

func TestRender_ParseError(t *testing.T) {
	_, err := New(nil).Render("tables/a.sql", "SELECT {{ .x ;")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing template")
}

func TestRender_Deterministic(t *testing.T) {
	r := New(map[string]any{"n": 3})
	first, err := r.Render("a", "SELECT {{ .n }};")
	require.NoError(t, err)
	second, err := r.Render("a", "SELECT {{ .n }};")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 3;", first)
	assert.Equal(t, first, second)
}

func TestNew_CopiesVars(t *testing.T) {
	vars := map[string]any{"b": 1, "a": 2}
	r := New(vars)
	vars["c"] = 3
	assert.Equal(t, []string{"a", "b"}, r.Vars())
}
