package migrator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pthm/sqlstride/pkg/adapter"
	"github.com/pthm/sqlstride/pkg/parser"
	"github.com/pthm/sqlstride/pkg/render"
)

// DefaultLockTTL is the lease used when Options.LockTTL is zero. The engine
// renews the lease before every step, so it only needs to outlast the
// slowest single step.
const DefaultLockTTL = 5 * time.Minute

// releaseTimeout bounds the deferred unlock, which runs on a fresh context
// so that a cancelled run still releases its lease.
const releaseTimeout = 10 * time.Second

// Options controls a run.
type Options struct {
	// DryRun renders and reports pending steps without locking, executing
	// or recording anything.
	DryRun bool

	// VerifyChecksums re-renders every applied step and aborts the run with
	// a *DriftError if any checksum differs from the ledger.
	VerifyChecksums bool

	// Vars are the template variables available to every step.
	Vars map[string]any

	// LockTTL is the lease length. Zero means DefaultLockTTL.
	LockTTL time.Duration

	// Owner identifies this run in the lock table. Empty means a random
	// UUID.
	Owner string

	// Logger receives diagnostics. Nil means slog.Default().
	Logger *slog.Logger

	// Reporter receives per-step status. Nil discards it.
	Reporter Reporter
}

// Engine runs the steps of one schema directory against one adapter.
//
// The run is a fixed sequence: refuse to start while the lock is held, diff
// the parsed steps against the ledger, optionally check applied steps for
// drift, then apply each pending step in its own transaction while holding
// the lock.
//
// # Usage
//
//	a, err := adapter.Open(ctx, db, dialect.Postgres{})
//	if err != nil {
//	    return err
//	}
//	defer func() { _ = a.Close() }()
//
//	e, err := migrator.New(a, os.DirFS("schema"), migrator.Options{VerifyChecksums: true})
//	if err != nil {
//	    return err
//	}
//	res, err := e.Sync(ctx)
type Engine struct {
	adapter  *adapter.Adapter
	schema   fs.FS
	renderer *render.Renderer
	opts     Options
	log      *slog.Logger
	report   Reporter
}

// New returns an Engine for the steps in schema.
func New(a *adapter.Adapter, schema fs.FS, opts Options) (*Engine, error) {
	if a == nil {
		return nil, &ConfigError{Key: "adapter", Err: errors.New("no adapter")}
	}
	if schema == nil {
		return nil, &ConfigError{Key: "schema_dir", Err: errors.New("no schema directory")}
	}
	if opts.LockTTL < 0 {
		return nil, &ConfigError{Key: "lock_ttl", Err: fmt.Errorf("must not be negative, got %s", opts.LockTTL)}
	}
	if opts.LockTTL == 0 {
		opts.LockTTL = DefaultLockTTL
	}
	if opts.Owner == "" {
		opts.Owner = uuid.NewString()
	}

	e := &Engine{
		adapter:  a,
		schema:   schema,
		renderer: render.New(opts.Vars),
		opts:     opts,
		log:      opts.Logger,
		report:   opts.Reporter,
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.report == nil {
		e.report = discardReporter{}
	}
	e.log = e.log.With("dialect", a.Dialect().Name(), "owner", opts.Owner)
	return e, nil
}

// Owner returns the lock owner token of this engine.
func (e *Engine) Owner() string { return e.opts.Owner }

// Sync plans the run and then previews it (dry run) or applies it.
func (e *Engine) Sync(ctx context.Context) (*Result, error) {
	plan, err := e.Plan(ctx)
	if err != nil {
		return nil, err
	}
	if err := plan.Err(); err != nil {
		return nil, err
	}
	if e.opts.DryRun {
		return e.Preview(plan), nil
	}
	return e.Apply(ctx, plan)
}

// Plan checks the lock and diffs the schema directory against the ledger.
// A held lock returns a *LockError before the ledger is read.
func (e *Engine) Plan(ctx context.Context) (*Plan, error) {
	if err := e.checkLock(ctx); err != nil {
		return nil, err
	}
	return e.diff(ctx, e.opts.VerifyChecksums)
}

func (e *Engine) checkLock(ctx context.Context) error {
	locked, err := e.adapter.IsLocked(ctx)
	if err != nil {
		return fmt.Errorf("checking lock: %w", err)
	}
	if !locked {
		return nil
	}
	return e.lockError(ctx)
}

// lockError describes the current holder. The lock may have been released
// in the meantime, in which case the error carries no holder.
func (e *Engine) lockError(ctx context.Context) error {
	info, err := e.adapter.LockInfo(ctx)
	if err != nil || info == nil {
		return &LockError{}
	}
	return &LockError{Owner: info.Owner, ExpiresAt: info.ExpiresAt}
}

// diff parses the steps, fetches the applied snapshot and renders what it
// needs: every pending step, and every applied step when verify is set.
func (e *Engine) diff(ctx context.Context, verify bool) (*Plan, error) {
	steps, err := parser.ParseFS(e.schema)
	if err != nil {
		return nil, err
	}

	applied, err := e.adapter.AppliedSteps(ctx)
	if err != nil {
		return nil, err
	}

	plan := &Plan{}
	known := make(map[parser.Key]struct{}, len(steps))
	for _, s := range steps {
		key := s.Key()
		known[key] = struct{}{}

		recorded, done := applied[key]
		if done {
			plan.Applied = append(plan.Applied, s)
			if !verify {
				continue
			}
			planned, err := e.render(s)
			if err != nil {
				return nil, err
			}
			if planned.Checksum != recorded {
				e.log.Warn("checksum drift", "step", key.String(), "recorded", recorded, "current", planned.Checksum)
				plan.Drift = append(plan.Drift, key)
			}
			continue
		}

		planned, err := e.render(s)
		if err != nil {
			return nil, err
		}
		plan.Pending = append(plan.Pending, planned)
	}

	if len(applied) > len(plan.Applied) {
		entries, err := e.adapter.Entries(ctx)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if _, ok := known[entry.Key()]; !ok {
				plan.Orphans = append(plan.Orphans, entry)
			}
		}
	}

	e.log.Debug("plan computed",
		"steps", len(steps), "applied", len(plan.Applied), "pending", len(plan.Pending), "drift", len(plan.Drift))
	return plan, nil
}

func (e *Engine) render(s parser.Step) (PlannedStep, error) {
	rendered, err := e.renderer.Render(s.Filename, s.SQL)
	if err != nil {
		return PlannedStep{}, fmt.Errorf("%s: %w", s, err)
	}
	return PlannedStep{Step: s, Rendered: rendered, Checksum: Checksum(rendered)}, nil
}

// Preview reports the plan without touching the database.
func (e *Engine) Preview(plan *Plan) *Result {
	res := &Result{DryRun: true, Skipped: len(plan.Applied)}
	for _, s := range plan.Applied {
		e.report.Skipped(s)
	}
	for _, s := range plan.Pending {
		e.report.Previewed(s)
		res.Previewed = append(res.Previewed, s.Key())
	}
	e.report.Summary(*res)
	return res
}

// Apply executes the pending steps of plan while holding the run lock. The
// lock is acquired once, renewed before every step and released on every
// exit path. A failing step is rolled back and returned as a *StepError;
// the steps before it stay committed.
func (e *Engine) Apply(ctx context.Context, plan *Plan) (*Result, error) {
	res := &Result{Skipped: len(plan.Applied)}
	for _, s := range plan.Applied {
		e.report.Skipped(s)
	}
	if plan.UpToDate() {
		e.log.Info("schema is up to date", "applied", len(plan.Applied))
		e.report.Summary(*res)
		return res, nil
	}

	if err := e.adapter.Lock(ctx, e.opts.Owner, e.opts.LockTTL); err != nil {
		if errors.Is(err, adapter.ErrLockHeld) {
			return nil, e.lockError(ctx)
		}
		return nil, fmt.Errorf("acquiring lock: %w", err)
	}
	e.log.Debug("lock acquired", "ttl", e.opts.LockTTL)
	defer e.release(ctx)

	for _, s := range plan.Pending {
		if err := e.adapter.RefreshLock(ctx, e.opts.Owner, e.opts.LockTTL); err != nil {
			err = fmt.Errorf("renewing lock before %s: %w", s.Step, err)
			e.fail(res, s, err)
			return res, err
		}

		start := time.Now()
		if err := e.applyStep(ctx, s); err != nil {
			e.log.Error("step failed", "step", s.Key().String(), "error", err)
			e.fail(res, s, err)
			return res, err
		}
		elapsed := time.Since(start)

		e.log.Info("step applied", "step", s.Key().String(), "duration", elapsed)
		e.report.Applied(s, elapsed)
		res.Applied = append(res.Applied, s.Key())
	}

	e.report.Summary(*res)
	return res, nil
}

// fail reports the step that stopped the run and the final summary.
func (e *Engine) fail(res *Result, s PlannedStep, err error) {
	k := s.Key()
	res.Failed = &k
	e.report.Failed(s, err)
	e.report.Summary(*res)
}

// applyStep executes one step and records it in a single transaction.
func (e *Engine) applyStep(ctx context.Context, s PlannedStep) error {
	tx, err := e.adapter.Begin(ctx)
	if err != nil {
		return &StepError{Step: s.Key(), Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.Rendered); err != nil {
		return &StepError{Step: s.Key(), Err: err}
	}
	if err := e.adapter.RecordStep(ctx, tx, s.Step, s.Checksum); err != nil {
		return &StepError{Step: s.Key(), Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &StepError{Step: s.Key(), Err: fmt.Errorf("committing: %w", err)}
	}
	return nil
}

func (e *Engine) release(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	if err := e.adapter.Unlock(ctx, e.opts.Owner); err != nil {
		e.log.Warn("releasing lock", "error", err)
		return
	}
	e.log.Debug("lock released")
}
