package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps wallets and their transaction records in PostgreSQL. Every
// mutation runs in a read committed transaction holding row locks on the wallets
// it touches.
type PostgresStore struct {
	db   *pgxpool.Pool
	opts Options
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool, opts Options) *PostgresStore {
	return &PostgresStore{db: db, opts: opts}
}

const lookupCardQuery = `
        SELECT c.uid, c.user_id, w.id
        FROM cards c
        INNER JOIN wallets w ON w.user_id = c.user_id
        WHERE c.uid = $1`

func lookupCard(ctx context.Context, q querier, uid string) (CardRef, error) {
	var ref CardRef
	if err := q.QueryRow(ctx, lookupCardQuery, uid).Scan(&ref.UID, &ref.UserID, &ref.WalletID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CardRef{}, ErrCardNotFound
		}
		return CardRef{}, storeErr("lookup card", err)
	}
	return ref, nil
}

// LookupCard resolves a card uid to its owner and wallet.
func (s *PostgresStore) LookupCard(ctx context.Context, uid string) (CardRef, error) {
	return lookupCard(ctx, s.db, uid)
}

// Wallet reads the committed state of a wallet.
func (s *PostgresStore) Wallet(ctx context.Context, walletID int64) (Wallet, error) {
	var w Wallet
	err := s.db.QueryRow(ctx, `SELECT id, user_id, balance FROM wallets WHERE id = $1`, walletID).
		Scan(&w.ID, &w.UserID, &w.Balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, storeErr("read wallet", err)
	}
	return w, nil
}

// Transactions lists a user's records newest first in a single statement, so the
// result is a consistent snapshot.
func (s *PostgresStore) Transactions(ctx context.Context, userID int64, limit int) ([]Transaction, error) {
	query := `
        SELECT id, user_id, amount, type, created_at
        FROM transactions
        WHERE user_id = $1
        ORDER BY created_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list transactions", err)
	}
	items, err := pgx.CollectRows(rows, scanTransaction)
	if err != nil {
		return nil, storeErr("list transactions", err)
	}
	return items, nil
}

// TransactionsByID loads the given records in ascending id order. Unknown ids
// are skipped.
func (s *PostgresStore) TransactionsByID(ctx context.Context, ids []int64) ([]Transaction, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, user_id, amount, type, created_at
        FROM transactions
        WHERE id = ANY($1)
        ORDER BY id`, ids)
	if err != nil {
		return nil, storeErr("load transactions", err)
	}
	items, err := pgx.CollectRows(rows, scanTransaction)
	if err != nil {
		return nil, storeErr("load transactions", err)
	}
	return items, nil
}

func scanTransaction(row pgx.CollectableRow) (Transaction, error) {
	var (
		t   Transaction
		typ string
	)
	err := row.Scan(&t.ID, &t.UserID, &t.Amount, &typ, &t.Timestamp)
	t.Type = TxType(typ)
	return t, err
}

// Update runs fn inside a database transaction. The lock wait of every statement
// is capped by Options.LockTimeout.
func (s *PostgresStore) Update(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return storeErr("begin", err)
	}
	// Rollback must reach the server even when ctx is already cancelled.
	defer tx.Rollback(context.WithoutCancel(ctx)) // nolint:errcheck

	if s.opts.LockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.opts.LockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return storeErr("set lock timeout", err)
		}
	}

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr("commit", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LookupCard(ctx context.Context, uid string) (CardRef, error) {
	return lookupCard(ctx, t.tx, uid)
}

func (t *pgTx) LockWallets(ctx context.Context, walletIDs ...int64) (map[int64]Wallet, error) {
	locked := make(map[int64]Wallet, len(walletIDs))
	for _, id := range lockOrder(walletIDs) {
		var w Wallet
		err := t.tx.QueryRow(ctx, `SELECT id, user_id, balance FROM wallets WHERE id = $1 FOR UPDATE`, id).
			Scan(&w.ID, &w.UserID, &w.Balance)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrWalletNotFound
			}
			return nil, storeErr("lock wallet", err)
		}
		locked[id] = w
	}
	return locked, nil
}

func (t *pgTx) SetBalance(ctx context.Context, walletID, balance int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE wallets SET balance = $1 WHERE id = $2`, balance, walletID)
	if err != nil {
		return storeErr("update balance", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWalletNotFound
	}
	return nil
}

func (t *pgTx) Append(ctx context.Context, userID, amount int64, typ TxType) (Transaction, error) {
	rec := Transaction{UserID: userID, Amount: amount, Type: typ}
	err := t.tx.QueryRow(ctx, `INSERT INTO transactions (user_id, amount, type) VALUES ($1, $2, $3)
        RETURNING id, created_at`, userID, amount, string(typ)).Scan(&rec.ID, &rec.Timestamp)
	if err != nil {
		return Transaction{}, storeErr("append transaction", err)
	}
	return rec, nil
}

// Postgres error codes that mean the transaction lost a race and was rolled back.
const (
	codeLockNotAvailable     = "55P03"
	codeDeadlockDetected     = "40P01"
	codeSerializationFailure = "40001"
	codeQueryCanceled        = "57014"
)

func storeErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeLockNotAvailable:
			op += " (lock timeout)"
		case codeDeadlockDetected, codeSerializationFailure:
			op += " (conflict)"
		case codeQueryCanceled:
			op += " (canceled)"
		}
	}
	return &StoreError{Op: op, Err: err}
}
