// Package txx runs units of work inside a database transaction carried in
// the context, so repositories join it without knowing about it.
//
// Hooks registered with OnRollback and OnCommit run after the outcome is
// final, outside the transaction, with a context that is never cancelled.
// Hook errors are logged and never change the outcome returned to the caller.
package txx

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/secufusion/iamplane/pkg/errx"
	"github.com/secufusion/iamplane/pkg/logx"
)

// Hook runs after a transaction has been committed or rolled back.
type Hook func(ctx context.Context) error

// Runner executes fn inside a transaction. Nested calls join the outer one.
type Runner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

type scope struct {
	tx *sqlx.Tx

	mu         sync.Mutex
	onRollback []namedHook
	onCommit   []namedHook
}

type namedHook struct {
	name string
	fn   Hook
}

func fromContext(ctx context.Context) *scope {
	s, _ := ctx.Value(txKey{}).(*scope)
	return s
}

// InTx reports whether ctx carries an open unit of work.
func InTx(ctx context.Context) bool {
	return fromContext(ctx) != nil
}

// Executor returns the ambient transaction when there is one, db otherwise.
func Executor(ctx context.Context, db sqlx.ExtContext) sqlx.ExtContext {
	if s := fromContext(ctx); s != nil && s.tx != nil {
		return s.tx
	}
	return db
}

// OnRollback registers a compensation for the ambient unit of work. It
// reports false when ctx carries none, in which case nothing is registered.
func OnRollback(ctx context.Context, name string, fn Hook) bool {
	s := fromContext(ctx)
	if s == nil {
		return false
	}
	s.mu.Lock()
	s.onRollback = append(s.onRollback, namedHook{name, fn})
	s.mu.Unlock()
	return true
}

// OnCommit registers fn to run once the ambient unit of work commits. Without
// one, fn runs immediately.
func OnCommit(ctx context.Context, name string, fn Hook) {
	s := fromContext(ctx)
	if s == nil {
		runHooks(ctx, "commit", []namedHook{{name, fn}})
		return
	}
	s.mu.Lock()
	s.onCommit = append(s.onCommit, namedHook{name, fn})
	s.mu.Unlock()
}

// Rollback hooks run in reverse registration order.
func (s *scope) rolledBack(ctx context.Context) {
	s.mu.Lock()
	hooks := make([]namedHook, 0, len(s.onRollback))
	for i := len(s.onRollback) - 1; i >= 0; i-- {
		hooks = append(hooks, s.onRollback[i])
	}
	s.mu.Unlock()
	runHooks(ctx, "rollback", hooks)
}

func (s *scope) committed(ctx context.Context) {
	s.mu.Lock()
	hooks := s.onCommit
	s.mu.Unlock()
	runHooks(ctx, "commit", hooks)
}

func runHooks(ctx context.Context, phase string, hooks []namedHook) {
	ctx = context.WithoutCancel(ctx)
	for _, h := range hooks {
		if err := safeRun(ctx, h.fn); err != nil {
			logx.WithContext(ctx).WithError(err).WithFields(logx.Fields{
				"phase": phase,
				"hook":  h.name,
			}).Error("⚠️  txx: hook failed")
		}
	}
}

func safeRun(ctx context.Context, fn Hook) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("hook panicked: %v", p)
		}
	}()
	return fn(ctx)
}

// SQLRunner runs units of work in a sqlx transaction.
type SQLRunner struct {
	db *sqlx.DB
}

func NewSQLRunner(db *sqlx.DB) *SQLRunner {
	return &SQLRunner{db: db}
}

func (r *SQLRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if InTx(ctx) {
		return fn(ctx)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errx.Wrap(err, "begin transaction", errx.TypeInternal)
	}

	s := &scope{tx: tx}
	txCtx := context.WithValue(ctx, txKey{}, s)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			s.rolledBack(ctx)
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logx.WithContext(ctx).WithError(rbErr).Warn("txx: rollback failed")
		}
		s.rolledBack(ctx)
		return err
	}

	if err := tx.Commit(); err != nil {
		s.rolledBack(ctx)
		return errx.Wrap(err, "commit transaction", errx.TypeInternal)
	}
	s.committed(ctx)
	return nil
}

// ScopeRunner provides unit-of-work semantics with hooks but no database.
// In-memory stores register their own undo with OnRollback.
type ScopeRunner struct{}

func NewScopeRunner() *ScopeRunner {
	return &ScopeRunner{}
}

func (ScopeRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if InTx(ctx) {
		return fn(ctx)
	}

	s := &scope{}
	txCtx := context.WithValue(ctx, txKey{}, s)

	defer func() {
		if p := recover(); p != nil {
			s.rolledBack(ctx)
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		s.rolledBack(ctx)
		return err
	}
	s.committed(ctx)
	return nil
}
