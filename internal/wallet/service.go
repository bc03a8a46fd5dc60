package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/Amandasamuel/Toll-with-postgress/internal/ledger"
	"github.com/Amandasamuel/Toll-with-postgress/internal/logging"
)

// Service applies single-wallet credits and debits and reads balances and history.
type Service struct {
	store    ledger.Store
	resolver *ledger.Resolver
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds a wallet service instance.
func NewService(store ledger.Store, resolver *ledger.Resolver, logger *slog.Logger) *Service {
	if resolver == nil {
		resolver = ledger.NewResolver(0)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{store: store, resolver: resolver, logger: logger, now: time.Now}
}

// Credit adds amount to the wallet behind cardUID and records a credit.
func (s *Service) Credit(ctx context.Context, cardUID string, amount int64) (ledger.Result, error) {
	return s.apply(ctx, cardUID, amount, ledger.Credit)
}

// Debit removes amount from the wallet behind cardUID. A balance below amount
// yields a declined result and leaves the wallet untouched.
func (s *Service) Debit(ctx context.Context, cardUID string, amount int64) (ledger.Result, error) {
	return s.apply(ctx, cardUID, amount, ledger.Debit)
}

func (s *Service) apply(ctx context.Context, cardUID string, amount int64, typ ledger.TxType) (ledger.Result, error) {
	if err := checkMutation(cardUID, amount); err != nil {
		return ledger.Result{}, err
	}

	var res ledger.Result
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		acct, err := s.resolver.Account(ctx, tx, cardUID)
		if err != nil {
			return err
		}

		var next int64
		switch typ {
		case ledger.Credit:
			if acct.Balance > math.MaxInt64-amount {
				return fmt.Errorf("%w: balance would overflow", ledger.ErrInvalidAmount)
			}
			next = acct.Balance + amount
		case ledger.Debit:
			if acct.Balance < amount {
				res = ledger.Declined(acct.Balance, ledger.ReasonInsufficientBalance)
				return nil
			}
			next = acct.Balance - amount
		}

		if err := tx.SetBalance(ctx, acct.WalletID, next); err != nil {
			return err
		}
		rec, err := tx.Append(ctx, acct.UserID, amount, typ)
		if err != nil {
			return err
		}
		res = ledger.Applied(next, rec)
		return nil
	})
	if err != nil {
		logFailure(s.logger, string(typ), cardUID, err)
		return ledger.Result{}, err
	}

	if res.IsDeclined() {
		s.logger.Info("wallet "+string(typ)+" declined", logging.Card(cardUID), "amount", amount, "reason", res.Reason)
	} else {
		s.logger.Info("wallet "+string(typ)+" applied", logging.Card(cardUID), "amount", amount, "balance", res.NewBalance)
	}
	return res, nil
}

// Balance returns the committed balance for the wallet behind cardUID.
func (s *Service) Balance(ctx context.Context, cardUID string) (Balance, error) {
	ref, err := s.resolver.Resolve(ctx, s.store, cardUID)
	if err != nil {
		return Balance{}, err
	}
	w, err := s.store.Wallet(ctx, ref.WalletID)
	if err != nil {
		if errors.Is(err, ledger.ErrWalletNotFound) {
			s.resolver.Forget(ref.UID)
			return Balance{}, ledger.ErrCardNotFound
		}
		return Balance{}, err
	}
	return Balance{CardUID: ref.UID, UserID: ref.UserID, WalletID: w.ID, Amount: w.Balance, AsOf: s.now().UTC()}, nil
}

// History returns a snapshot of the card owner's records, newest first. A
// limit <= 0 returns the full history.
func (s *Service) History(ctx context.Context, cardUID string, limit int) (ledger.History, error) {
	ref, err := s.resolver.Resolve(ctx, s.store, cardUID)
	if err != nil {
		return ledger.History{}, err
	}
	items, err := s.store.Transactions(ctx, ref.UserID, limit)
	if err != nil {
		return ledger.History{}, err
	}
	return ledger.NewHistory(ref, s.now().UTC(), items), nil
}

func checkMutation(cardUID string, amount int64) error {
	if strings.TrimSpace(cardUID) == "" {
		return fmt.Errorf("%w: card_uid is required", ledger.ErrInvalidInput)
	}
	if amount <= 0 {
		return ledger.ErrInvalidAmount
	}
	return nil
}

func logFailure(logger *slog.Logger, op, cardUID string, err error) {
	switch {
	case ledger.IsRetryable(err):
		logger.Error("wallet "+op+" aborted", logging.Card(cardUID), "error", err)
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, ledger.ErrInvalidInput):
		logger.Debug("wallet "+op+" rejected", logging.Card(cardUID), "error", err)
	default:
		logger.Error("wallet "+op+" failed", logging.Card(cardUID), "error", err)
	}
}
