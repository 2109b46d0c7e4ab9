package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Beginner はトランザクションを開始できる接続です。pgxpool.Pool と pgxmock が満たします。
type Beginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Queryer は pgx.Tx および pgxpool.Pool と互換性のあるクエリ実行インターフェースです。
type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var (
	readOnlyTx  = pgx.TxOptions{AccessMode: pgx.ReadOnly}
	readWriteTx = pgx.TxOptions{AccessMode: pgx.ReadWrite, IsoLevel: pgx.ReadCommitted}
)

// 読み書きトランザクションをデッドロック等で再試行する上限回数。
const maxWriteAttempts = 3

// デッドロックとシリアライズ失敗は再実行すれば通る可能性がある。
var retryableCodes = map[string]struct{}{
	"40001": {},
	"40P01": {},
}

type ambientTx struct{}

// TransactionManager はコンテキストにトランザクションを載せて処理を実行します。
// 既にトランザクションが載っている場合は新たに開始せず、それを使い回します。
type TransactionManager struct {
	db Beginner
}

// NewTransactionManager は TransactionManager を生成します。db が nil の場合は nil を返します。
func NewTransactionManager(db Beginner) *TransactionManager {
	if db == nil {
		return nil
	}
	return &TransactionManager{db: db}
}

// WithinReadOnly は読み取り専用トランザクションで fn を実行します。
func (m *TransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	return m.within(ctx, readOnlyTx, 1, fn)
}

// WithinReadWrite は読み書きトランザクションで fn を実行します。
// デッドロックまたはシリアライズ失敗で中断された場合は最大 maxWriteAttempts 回まで実行し直します。
func (m *TransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	return m.within(ctx, readWriteTx, maxWriteAttempts, fn)
}

func (m *TransactionManager) within(ctx context.Context, opts pgx.TxOptions, attempts int, fn func(context.Context) error) error {
	switch {
	case fn == nil:
		return errors.New("postgres: transaction function is required")
	case m == nil:
		return fn(ctx)
	}
	if _, nested := txFromContext(ctx); nested {
		return fn(ctx)
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = m.once(ctx, opts, fn); !isRetryable(err) {
			return err
		}
		if ctx.Err() != nil {
			break
		}
	}
	return err
}

func (m *TransactionManager) once(ctx context.Context, opts pgx.TxOptions, fn func(context.Context) error) error {
	tx, err := m.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}

	err = fn(context.WithValue(ctx, ambientTx{}, tx))
	if err == nil {
		if err = tx.Commit(ctx); err == nil {
			return nil
		}
		err = fmt.Errorf("postgres: commit: %w", err)
	}

	if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
		return errors.Join(err, fmt.Errorf("postgres: rollback: %w", rbErr))
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	_, ok := retryableCodes[pgErr.Code]
	return ok
}

func txFromContext(ctx context.Context) (pgx.Tx, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok := ctx.Value(ambientTx{}).(pgx.Tx)
	return tx, ok
}

// QueryerFromContext はコンテキスト内のトランザクション、なければ fallback を返します。
func QueryerFromContext(ctx context.Context, fallback Queryer) Queryer {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return fallback
}
