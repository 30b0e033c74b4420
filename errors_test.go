package sqlstride_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/sqlstride"
	"github.com/pthm/sqlstride/internal/testutil"
	"github.com/pthm/sqlstride/pkg/migrator"
	"github.com/pthm/sqlstride/pkg/parser"
)

func TestErrorHelpers(t *testing.T) {
	other := errors.New("other error")

	tests := []struct {
		name  string
		is    func(error) bool
		match error
	}{
		{"IsConfigErr", sqlstride.IsConfigErr, &migrator.ConfigError{Key: "dialect", Err: other}},
		{"IsLockHeldErr", sqlstride.IsLockHeldErr, &migrator.LockError{Owner: "x"}},
		{"IsDriftErr", sqlstride.IsDriftErr, &migrator.DriftError{}},
		{"IsStepFailedErr", sqlstride.IsStepFailedErr, &migrator.StepError{Err: other}},
		{"IsSchemaErr/duplicate", sqlstride.IsSchemaErr, fmt.Errorf("parse: %w", sqlstride.ErrDuplicateStep)},
		{"IsSchemaErr/file", sqlstride.IsSchemaErr, &parser.FileError{Path: "x", Op: "read", Err: other}},
		{"IsSchemaErr/template", sqlstride.IsSchemaErr, fmt.Errorf("%w: bad", sqlstride.ErrTemplate)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.is(fmt.Errorf("wrapped: %w", tt.match)))
			assert.False(t, tt.is(other))
		})
	}
}

func TestSync(t *testing.T) {
	db := testutil.SQLite(t)

	_, err := sqlstride.Sync(context.Background(), db, "oracle", t.TempDir(), sqlstride.Options{})
	require.Error(t, err)
	assert.True(t, sqlstride.IsConfigErr(err))
	assert.ErrorIs(t, err, sqlstride.ErrUnknownDialect)

	res, err := sqlstride.Sync(context.Background(), db, "sqlite", t.TempDir(), sqlstride.Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Applied)
}
