package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTx struct {
	pgx.Tx
	commitErr  error
	committed  bool
	rolledBack bool
}

func (t *stubTx) Commit(context.Context) error {
	t.committed = true
	return t.commitErr
}

func (t *stubTx) Rollback(context.Context) error {
	t.rolledBack = true
	return nil
}

type stubBeginner struct {
	tx *stubTx
}

func (b *stubBeginner) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	return b.tx, nil
}

func TestInTxCommitSuccess(t *testing.T) {
	t.Parallel()

	tx := &stubTx{}
	m := &PgTxManager{}

	err := m.inTx(context.Background(), &stubBeginner{tx: tx}, pgx.TxOptions{},
		func(context.Context, pgx.Tx) error { return nil })
	require.NoError(t, err)
	assert.True(t, tx.committed)
	assert.False(t, tx.rolledBack)
}

// A commit that fails (connection dropped mid-flight) must surface to the
// caller; otherwise a lost row is counted as applied and the file ledger can
// permanently block its re-import.
func TestInTxCommitErrorPropagates(t *testing.T) {
	t.Parallel()

	connLost := errors.New("server closed the connection unexpectedly")
	tx := &stubTx{commitErr: connLost}
	m := &PgTxManager{}

	err := m.inTx(context.Background(), &stubBeginner{tx: tx}, pgx.TxOptions{},
		func(context.Context, pgx.Tx) error { return nil })
	assert.ErrorIs(t, err, connLost)
	assert.True(t, tx.committed)
	assert.False(t, tx.rolledBack)
}

func TestInTxRollsBackOnFnError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	tx := &stubTx{}
	m := &PgTxManager{}

	err := m.inTx(context.Background(), &stubBeginner{tx: tx}, pgx.TxOptions{},
		func(context.Context, pgx.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.True(t, tx.rolledBack)
	assert.False(t, tx.committed)
}
