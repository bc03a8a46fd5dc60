package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"
)

var (
	// ErrInvalidInput is returned before the store is touched when a request is
	// malformed (empty card uid, missing registration fields).
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidAmount signals an amount that is not a strictly positive integer
	// or that would overflow a balance.
	ErrInvalidAmount = fmt.Errorf("%w: amount must be a positive integer", ErrInvalidInput)

	// ErrNotFound is the root of every lookup miss.
	ErrNotFound = errors.New("not found")

	// ErrCardNotFound occurs when no card is registered under the provided uid.
	ErrCardNotFound = fmt.Errorf("card %w", ErrNotFound)

	// ErrUserNotFound occurs when a user id does not resolve.
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)

	// ErrWalletNotFound occurs when a wallet row vanished underneath a card.
	ErrWalletNotFound = fmt.Errorf("wallet %w", ErrNotFound)

	// ErrInsufficientFunds occurs when the source wallet lacks available balance
	// to cover a requested debit or transfer.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateCard indicates the card uid is already bound to a user.
	ErrDuplicateCard = errors.New("card already registered")

	// ErrStoreFailure marks aborted transactions, lock timeouts and connectivity
	// failures. The unit of work was rolled back and may be retried.
	ErrStoreFailure = errors.New("store failure")
)

// StoreError wraps a backend fault. It matches both ErrStoreFailure and the cause.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreFailure, e.Err}
}

// IsRetryable reports whether the caller may safely retry the operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreFailure)
}

// TxType tags a transaction record as money in or money out.
type TxType string

const (
	Credit TxType = "credit"
	Debit  TxType = "debit"
)

// Sign returns +1 for credits and -1 for debits.
func (t TxType) Sign() int64 {
	if t == Debit {
		return -1
	}
	return 1
}

type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// Wallet holds the spendable balance of a user in minor units.
type Wallet struct {
	ID      int64 `json:"id"`
	UserID  int64 `json:"user_id"`
	Balance int64 `json:"balance"`
}

type Card struct {
	ID     int64  `json:"id"`
	UID    string `json:"uid"`
	UserID int64  `json:"user_id"`
}

// Transaction is an append-only record of a single balance change.
type Transaction struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Amount    int64     `json:"amount"`
	Type      TxType    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// CardRef is the immutable identity a card uid resolves to.
type CardRef struct {
	UID      string
	UserID   int64
	WalletID int64
}

// Account is a resolved card together with the balance read under its wallet lock.
type Account struct {
	CardRef
	Balance int64
}

// CardLookup resolves card uids without taking locks.
type CardLookup interface {
	LookupCard(ctx context.Context, uid string) (CardRef, error)
}

// Store defines the contract implemented by ledger backends (Postgres, memory).
type Store interface {
	CardLookup
	Wallet(ctx context.Context, walletID int64) (Wallet, error)
	// Transactions returns the user's records newest first. A limit <= 0 returns all of them.
	Transactions(ctx context.Context, userID int64, limit int) ([]Transaction, error)
	// TransactionsByID returns the records with the given ids in ascending id order.
	TransactionsByID(ctx context.Context, ids []int64) ([]Transaction, error)
	// Update runs fn as one atomic unit. Any error from fn or from the backend
	// discards every write made through the Tx and releases its locks.
	Update(ctx context.Context, fn func(Tx) error) error
}

// Tx is the mutation surface available inside Store.Update.
type Tx interface {
	CardLookup
	// LockWallets takes exclusive locks on the wallets in ascending id order and
	// returns their current state keyed by id. Duplicate ids are locked once.
	LockWallets(ctx context.Context, walletIDs ...int64) (map[int64]Wallet, error)
	// SetBalance overwrites the balance of a wallet locked by this Tx.
	SetBalance(ctx context.Context, walletID, balance int64) error
	Append(ctx context.Context, userID, amount int64, typ TxType) (Transaction, error)
}

// Options tunes backend behaviour shared by all stores.
type Options struct {
	// LockTimeout bounds how long a transaction waits for a wallet lock. Zero waits
	// until the context is done.
	LockTimeout time.Duration
}

// lockOrder dedupes ids and sorts them ascending, the global wallet lock order.
func lockOrder(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
