package txx_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/secufusion/iamplane/pkg/txx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestSQLRunnerCommitRunsCommitHooks(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO tenants").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var committed, compensated bool
	err := txx.NewSQLRunner(db).WithinTx(context.Background(), func(ctx context.Context) error {
		txx.OnCommit(ctx, "mark", func(context.Context) error { committed = true; return nil })
		txx.OnRollback(ctx, "undo", func(context.Context) error { compensated = true; return nil })
		_, err := txx.Executor(ctx, db).ExecContext(ctx, "INSERT INTO tenants (id) VALUES ($1)", "t-1")
		return err
	})

	require.NoError(t, err)
	assert.True(t, committed)
	assert.False(t, compensated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRunnerRollbackRunsCompensation(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE tenants").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	var order []string
	err := txx.NewSQLRunner(db).WithinTx(context.Background(), func(ctx context.Context) error {
		txx.OnRollback(ctx, "first", func(context.Context) error { order = append(order, "first"); return nil })
		txx.OnRollback(ctx, "second", func(context.Context) error {
			order = append(order, "second")
			return errors.New("ignored")
		})
		_, err := txx.Executor(ctx, db).ExecContext(ctx, "UPDATE tenants SET status = $1", "CREATED_LOCAL")
		return err
	})

	require.EqualError(t, err, "connection reset")
	assert.Equal(t, []string{"second", "first"}, order)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRunnerCommitFailureCompensates(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	compensated := false
	err := txx.NewSQLRunner(db).WithinTx(context.Background(), func(ctx context.Context) error {
		txx.OnRollback(ctx, "undo", func(context.Context) error { compensated = true; return nil })
		return nil
	})

	require.Error(t, err)
	assert.True(t, compensated)
}

func TestNestedCallsJoinOuterUnit(t *testing.T) {
	r := txx.NewScopeRunner()
	calls := 0

	err := r.WithinTx(context.Background(), func(ctx context.Context) error {
		return r.WithinTx(ctx, func(inner context.Context) error {
			txx.OnRollback(inner, "count", func(context.Context) error { calls++; return nil })
			return errors.New("boom")
		})
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestHooksOutsideUnit(t *testing.T) {
	ctx := context.Background()
	assert.False(t, txx.OnRollback(ctx, "noop", func(context.Context) error { return nil }))

	ran := false
	txx.OnCommit(ctx, "now", func(context.Context) error { ran = true; return nil })
	assert.True(t, ran)
}

func TestPanicInHookIsContained(t *testing.T) {
	err := txx.NewScopeRunner().WithinTx(context.Background(), func(ctx context.Context) error {
		txx.OnRollback(ctx, "panics", func(context.Context) error { panic("bad") })
		return errors.New("fail")
	})
	assert.EqualError(t, err, "fail")
}
