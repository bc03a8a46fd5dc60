package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/speps/go-hashids/v2"

	"github.com/Amandasamuel/Toll-with-postgress/internal/ledger"
	"github.com/Amandasamuel/Toll-with-postgress/internal/logging"
	"github.com/Amandasamuel/Toll-with-postgress/internal/money"
	"github.com/Amandasamuel/Toll-with-postgress/internal/notification"
)

// Service moves funds between the wallets of two cardholders.
type Service struct {
	store    ledger.Store
	resolver *ledger.Resolver
	notifier notification.Notifier
	refs     *hashids.HashID
	format   money.Formatter
	logger   *slog.Logger
	now      func() time.Time
}

// Options configures confirmation rendering.
type Options struct {
	ReferenceSalt string
	Formatter     money.Formatter
}

// NewService constructs a payment service.
func NewService(store ledger.Store, resolver *ledger.Resolver, notifier notification.Notifier, logger *slog.Logger, opts Options) (*Service, error) {
	hd := hashids.NewData()
	hd.Salt = opts.ReferenceSalt
	hd.MinLength = 10
	refs, err := hashids.NewWithData(hd)
	if err != nil {
		return nil, fmt.Errorf("reference encoder: %w", err)
	}
	if resolver == nil {
		resolver = ledger.NewResolver(0)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		store:    store,
		resolver: resolver,
		notifier: notifier,
		refs:     refs,
		format:   opts.Formatter,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// TransferInput captures the data needed to move funds between cards.
type TransferInput struct {
	FromCardUID string
	ToCardUID   string
	Amount      int64
}

// Confirmation describes a completed transfer. A declined transfer carries only
// the embedded result.
type Confirmation struct {
	ledger.Result
	Amount      int64
	FromCardUID string
	ToCardUID   string
	FromBalance int64
	ToBalance   int64
	Reference   string
	Message     string
	CompletedAt time.Time
}

// Transfer debits the sender and credits the receiver in one unit of work. Both
// wallets are locked in ascending id order whichever side they are on, so two
// opposite transfers between the same pair cannot deadlock.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (Confirmation, error) {
	input.FromCardUID = strings.TrimSpace(input.FromCardUID)
	input.ToCardUID = strings.TrimSpace(input.ToCardUID)
	if input.FromCardUID == "" || input.ToCardUID == "" {
		return Confirmation{}, fmt.Errorf("%w: from_card and to_card are required", ledger.ErrInvalidInput)
	}
	if input.Amount <= 0 {
		return Confirmation{}, ledger.ErrInvalidAmount
	}

	conf := Confirmation{Amount: input.Amount, FromCardUID: input.FromCardUID, ToCardUID: input.ToCardUID}
	var receiver ledger.CardRef
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		from, err := s.resolver.Resolve(ctx, tx, input.FromCardUID)
		if err != nil {
			return err
		}
		to, err := s.resolver.Resolve(ctx, tx, input.ToCardUID)
		if err != nil {
			return err
		}

		wallets, err := tx.LockWallets(ctx, from.WalletID, to.WalletID)
		if err != nil {
			if errors.Is(err, ledger.ErrWalletNotFound) {
				s.resolver.Forget(from.UID)
				s.resolver.Forget(to.UID)
				return ledger.ErrCardNotFound
			}
			return err
		}

		available := wallets[from.WalletID].Balance
		if available < input.Amount {
			conf.Result = ledger.Declined(available, ledger.ReasonInsufficientBalance)
			return nil
		}

		balances := map[int64]int64{
			from.WalletID: available,
			to.WalletID:   wallets[to.WalletID].Balance,
		}
		balances[from.WalletID] -= input.Amount
		if balances[to.WalletID] > math.MaxInt64-input.Amount {
			return fmt.Errorf("%w: receiver balance would overflow", ledger.ErrInvalidAmount)
		}
		balances[to.WalletID] += input.Amount

		for id, balance := range balances {
			if err := tx.SetBalance(ctx, id, balance); err != nil {
				return err
			}
		}

		debit, err := tx.Append(ctx, from.UserID, input.Amount, ledger.Debit)
		if err != nil {
			return err
		}
		credit, err := tx.Append(ctx, to.UserID, input.Amount, ledger.Credit)
		if err != nil {
			return err
		}

		conf.Result = ledger.Applied(balances[from.WalletID], debit, credit)
		conf.FromBalance = balances[from.WalletID]
		conf.ToBalance = balances[to.WalletID]
		receiver = to
		return nil
	})
	if err != nil {
		s.logFailure(input, err)
		return Confirmation{}, err
	}

	if conf.IsDeclined() {
		s.logger.Info("transfer declined",
			slog.Group("from", logging.Card(input.FromCardUID)),
			slog.Group("to", logging.Card(input.ToCardUID)),
			"amount", input.Amount, "reason", conf.Reason)
		return conf, nil
	}

	conf.CompletedAt = s.now().UTC()
	conf.Message = fmt.Sprintf("Transferred %s from %s to %s", s.format.Format(input.Amount), input.FromCardUID, input.ToCardUID)
	conf.Reference = s.reference(conf.Records)

	s.logger.Info("transfer applied",
		slog.Group("from", logging.Card(input.FromCardUID)),
		slog.Group("to", logging.Card(input.ToCardUID)),
		"amount", input.Amount, "reference", conf.Reference)

	if s.notifier != nil {
		err := s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTransferReceived,
			Destination: strconv.FormatInt(receiver.UserID, 10),
			Body:        fmt.Sprintf("You received %s. Ref %s", s.format.Format(input.Amount), conf.Reference),
		})
		if err != nil {
			s.logger.Warn("transfer notification failed", "reference", conf.Reference, "error", err)
		}
	}

	return conf, nil
}

// ErrReferenceNotFound is returned for a well-formed reference that does not
// name a committed transfer.
var ErrReferenceNotFound = fmt.Errorf("transfer reference %w", ledger.ErrNotFound)

// Receipt is the pair of records a transfer reference stands for.
type Receipt struct {
	Reference string
	Amount    int64
	Debit     ledger.Transaction
	Credit    ledger.Transaction
}

// Receipt looks up the debit and credit behind a transfer reference.
func (s *Service) Receipt(ctx context.Context, ref string) (Receipt, error) {
	ids, err := s.decodeReference(strings.TrimSpace(ref))
	if err != nil {
		return Receipt{}, err
	}
	if len(ids) != 2 || ids[0] >= ids[1] {
		return Receipt{}, ErrReferenceNotFound
	}
	records, err := s.store.TransactionsByID(ctx, ids)
	if err != nil {
		return Receipt{}, err
	}
	if len(records) != 2 {
		return Receipt{}, ErrReferenceNotFound
	}
	debit, credit := records[0], records[1]
	if debit.Type != ledger.Debit || credit.Type != ledger.Credit || debit.Amount != credit.Amount {
		return Receipt{}, ErrReferenceNotFound
	}
	return Receipt{Reference: ref, Amount: debit.Amount, Debit: debit, Credit: credit}, nil
}

func (s *Service) decodeReference(ref string) ([]int64, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: reference is required", ledger.ErrInvalidInput)
	}
	ids, err := s.refs.DecodeInt64WithError(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed reference", ledger.ErrInvalidInput)
	}
	return ids, nil
}

func (s *Service) reference(records []ledger.Transaction) string {
	ids := make([]int64, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	ref, err := s.refs.EncodeInt64(ids)
	if err != nil {
		s.logger.Warn("encode transfer reference", "error", err)
		return ""
	}
	return ref
}

func (s *Service) logFailure(input TransferInput, err error) {
	attrs := []any{
		slog.Group("from", logging.Card(input.FromCardUID)),
		slog.Group("to", logging.Card(input.ToCardUID)),
		"amount", input.Amount,
		"error", err,
	}
	switch {
	case ledger.IsRetryable(err):
		s.logger.Error("transfer aborted", attrs...)
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, ledger.ErrInvalidInput):
		s.logger.Debug("transfer rejected", attrs...)
	default:
		s.logger.Error("transfer failed", attrs...)
	}
}
