package payments

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Amandasamuel/Toll-with-postgress/internal/ledger"
	"github.com/Amandasamuel/Toll-with-postgress/internal/logging"
	"github.com/Amandasamuel/Toll-with-postgress/internal/money"
	"github.com/Amandasamuel/Toll-with-postgress/internal/notification"
	"github.com/Amandasamuel/Toll-with-postgress/internal/wallet"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Send(ctx context.Context, msg notification.Message) error {
	return m.Called(ctx, msg).Error(0)
}

type fixture struct {
	store    *ledger.InMemoryStore
	wallets  *wallet.Service
	payments *Service
}

func newFixture(t *testing.T, notifier notification.Notifier, uids ...string) fixture {
	t.Helper()
	store := ledger.NewInMemory(ledger.Options{})
	for _, uid := range uids {
		if _, _, err := store.CreateAccount(context.Background(), "holder "+uid, "080", uid); err != nil {
			t.Fatalf("create account %s: %v", uid, err)
		}
	}
	resolver := ledger.NewResolver(0)
	svc, err := NewService(store, resolver, notifier, logging.Discard(), Options{
		ReferenceSalt: "test-salt",
		Formatter:     money.Formatter{Symbol: "₦", Exponent: 2},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return fixture{store: store, wallets: wallet.NewService(store, resolver, logging.Discard()), payments: svc}
}

func (f fixture) balance(t *testing.T, uid string) int64 {
	t.Helper()
	b, err := f.wallets.Balance(context.Background(), uid)
	if err != nil {
		t.Fatalf("balance %s: %v", uid, err)
	}
	return b.Amount
}

func TestTransferSuccess(t *testing.T) {
	notifier := new(mockNotifier)
	f := newFixture(t, notifier, "C1", "C2")
	ctx := context.Background()
	f.wallets.Credit(ctx, "C1", 10_000)

	receiver, _ := f.store.LookupCard(ctx, "C2")
	notifier.On("Send", mock.Anything, mock.MatchedBy(func(msg notification.Message) bool {
		return msg.Kind == notification.KindTransferReceived && msg.Destination == strconv.FormatInt(receiver.UserID, 10)
	})).Return(nil).Once()

	conf, err := f.payments.Transfer(ctx, TransferInput{FromCardUID: "C1", ToCardUID: "C2", Amount: 2_000})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if conf.Status != ledger.StatusApplied {
		t.Fatalf("expected applied, got %+v", conf.Result)
	}
	if conf.FromBalance != 8_000 || conf.ToBalance != 2_000 {
		t.Fatalf("unexpected balances from=%d to=%d", conf.FromBalance, conf.ToBalance)
	}
	if conf.Message != "Transferred ₦20.00 from C1 to C2" {
		t.Fatalf("unexpected message %q", conf.Message)
	}
	if conf.Reference == "" {
		t.Fatalf("expected a reference")
	}

	require.Len(t, conf.Records, 2)
	receipt, err := f.payments.Receipt(ctx, conf.Reference)
	require.NoError(t, err)
	assert.EqualValues(t, 2_000, receipt.Amount)
	assert.Equal(t, conf.Records[0], receipt.Debit)
	assert.Equal(t, conf.Records[1], receipt.Credit)
	assert.Equal(t, ledger.Debit, receipt.Debit.Type)
	assert.Equal(t, ledger.Credit, receipt.Credit.Type)

	assert.EqualValues(t, 8_000, f.balance(t, "C1"))
	assert.EqualValues(t, 2_000, f.balance(t, "C2"))
	notifier.AssertExpectations(t)
}

func TestTransferInsufficientFundsLeavesBothWallets(t *testing.T) {
	notifier := new(mockNotifier)
	f := newFixture(t, notifier, "C1", "C2")
	ctx := context.Background()
	f.wallets.Credit(ctx, "C1", 50)
	f.wallets.Credit(ctx, "C2", 5)

	conf, err := f.payments.Transfer(ctx, TransferInput{FromCardUID: "C1", ToCardUID: "C2", Amount: 51})
	require.NoError(t, err)
	assert.True(t, conf.IsDeclined())
	assert.ErrorIs(t, conf.Err(), ledger.ErrInsufficientFunds)

	assert.EqualValues(t, 50, f.balance(t, "C1"))
	assert.EqualValues(t, 5, f.balance(t, "C2"))
	for _, uid := range []string{"C1", "C2"} {
		h, _ := f.wallets.History(ctx, uid, 0)
		assert.Equal(t, 1, h.Len(), "declined transfer must not append records for %s", uid)
	}
	notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestTransferValidation(t *testing.T) {
	f := newFixture(t, nil, "C1", "C2")
	ctx := context.Background()
	f.wallets.Credit(ctx, "C1", 100)

	cases := []struct {
		name  string
		input TransferInput
		want  error
	}{
		{name: "missing sender", input: TransferInput{ToCardUID: "C2", Amount: 1}, want: ledger.ErrInvalidInput},
		{name: "missing receiver", input: TransferInput{FromCardUID: "C1", Amount: 1}, want: ledger.ErrInvalidInput},
		{name: "zero amount", input: TransferInput{FromCardUID: "C1", ToCardUID: "C2"}, want: ledger.ErrInvalidAmount},
		{name: "unknown sender", input: TransferInput{FromCardUID: "C9", ToCardUID: "C2", Amount: 1}, want: ledger.ErrNotFound},
		{name: "unknown receiver", input: TransferInput{FromCardUID: "C1", ToCardUID: "C9", Amount: 1}, want: ledger.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.payments.Transfer(ctx, tc.input)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	assert.EqualValues(t, 100, f.balance(t, "C1"))
	assert.EqualValues(t, 0, f.balance(t, "C2"))
}

func TestTransferToSelfIsNetNeutral(t *testing.T) {
	f := newFixture(t, nil, "C1")
	ctx := context.Background()
	ref, _ := f.store.LookupCard(ctx, "C1")
	f.store.AddCard(ctx, ref.UserID, "C1-fob")
	f.wallets.Credit(ctx, "C1", 70)

	conf, err := f.payments.Transfer(ctx, TransferInput{FromCardUID: "C1", ToCardUID: "C1-fob", Amount: 70})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusApplied, conf.Status)
	assert.EqualValues(t, 70, conf.FromBalance)
	assert.EqualValues(t, 70, conf.ToBalance)
	assert.EqualValues(t, 70, f.balance(t, "C1"))

	h, _ := f.wallets.History(ctx, "C1", 0)
	assert.Equal(t, 3, h.Len())
	assert.EqualValues(t, 70, h.Replay())

	// Self-transfers still require cover.
	conf, err = f.payments.Transfer(ctx, TransferInput{FromCardUID: "C1", ToCardUID: "C1", Amount: 71})
	require.NoError(t, err)
	assert.True(t, conf.IsDeclined())
}

func TestTransferNotificationFailureDoesNotFailTransfer(t *testing.T) {
	notifier := new(mockNotifier)
	notifier.On("Send", mock.Anything, mock.Anything).Return(errors.New("gateway down"))
	f := newFixture(t, notifier, "C1", "C2")
	ctx := context.Background()
	f.wallets.Credit(ctx, "C1", 10)

	conf, err := f.payments.Transfer(ctx, TransferInput{FromCardUID: "C1", ToCardUID: "C2", Amount: 10})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusApplied, conf.Status)
	assert.EqualValues(t, 10, f.balance(t, "C2"))
}

func TestConcurrentOppositeTransfersConserveTotal(t *testing.T) {
	f := newFixture(t, nil, "C1", "C2")
	ctx := context.Background()
	f.wallets.Credit(ctx, "C1", 1_000)
	f.wallets.Credit(ctx, "C2", 1_000)

	const workers = 40
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := TransferInput{FromCardUID: "C1", ToCardUID: "C2", Amount: 7}
			if i%2 == 1 {
				in = TransferInput{FromCardUID: "C2", ToCardUID: "C1", Amount: 3}
			}
			if _, err := f.payments.Transfer(ctx, in); err != nil {
				t.Errorf("transfer %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	c1, c2 := f.balance(t, "C1"), f.balance(t, "C2")
	assert.EqualValues(t, 2_000, c1+c2)
	assert.EqualValues(t, 1_000-20*7+20*3, c1)

	for _, uid := range []string{"C1", "C2"} {
		h, _ := f.wallets.History(ctx, uid, 0)
		assert.Equal(t, f.balance(t, uid), h.Replay())
	}
}

// Ada holds C1, Bola holds C2.
func TestAdaBolaScenario(t *testing.T) {
	f := newFixture(t, nil, "C1", "C2")
	ctx := context.Background()

	res, err := f.wallets.Credit(ctx, "C1", 100)
	require.NoError(t, err)
	assert.EqualValues(t, 100, res.NewBalance)

	res, err = f.wallets.Debit(ctx, "C1", 150)
	require.NoError(t, err)
	assert.True(t, res.IsDeclined())
	assert.Equal(t, ledger.ReasonInsufficientBalance, res.Reason)

	conf, err := f.payments.Transfer(ctx, TransferInput{FromCardUID: "C1", ToCardUID: "C2", Amount: 60})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusApplied, conf.Status)

	assert.EqualValues(t, 40, f.balance(t, "C1"))
	assert.EqualValues(t, 60, f.balance(t, "C2"))

	history, err := f.wallets.History(ctx, "C1", 0)
	require.NoError(t, err)
	items := history.Items()
	require.Len(t, items, 2)
	assert.Equal(t, ledger.Debit, items[0].Type)
	assert.EqualValues(t, 60, items[0].Amount)
	assert.Equal(t, ledger.Credit, items[1].Type)
	assert.EqualValues(t, 100, items[1].Amount)
}

func TestReceiptRejectsUnknownReferences(t *testing.T) {
	f := newFixture(t, nil, "C1", "C2")
	ctx := context.Background()
	topup, err := f.wallets.Credit(ctx, "C1", 100)
	require.NoError(t, err)

	_, err = f.payments.Receipt(ctx, "")
	assert.ErrorIs(t, err, ledger.ErrInvalidInput)

	_, err = f.payments.Receipt(ctx, "not-a-reference!")
	assert.ErrorIs(t, err, ledger.ErrInvalidInput)

	// Well formed, but the ids name a top-up and a record that does not exist.
	ref, err := f.payments.refs.EncodeInt64([]int64{topup.Records[0].ID, 999})
	require.NoError(t, err)
	_, err = f.payments.Receipt(ctx, ref)
	assert.ErrorIs(t, err, ErrReferenceNotFound)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}
