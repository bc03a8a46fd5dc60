package ledger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

// InMemoryStore is a concurrency-safe store for tests and local development.
// Each wallet carries its own lock so unrelated wallets never contend, and
// writes made inside Update stay staged until commit.
type InMemoryStore struct {
	opts Options
	now  func() time.Time

	mu       sync.Mutex
	users    map[int64]User
	wallets  map[int64]*memWallet
	byUser   map[int64]int64
	cards    map[string]Card
	records  []Transaction
	lastUser int64
	lastCard int64
	lastTx   int64
}

type memWallet struct {
	Wallet
	lock chan struct{}
}

// NewInMemory creates an empty in-memory store.
func NewInMemory(opts Options) *InMemoryStore {
	return &InMemoryStore{
		opts:    opts,
		now:     time.Now,
		users:   make(map[int64]User),
		wallets: make(map[int64]*memWallet),
		byUser:  make(map[int64]int64),
		cards:   make(map[string]Card),
	}
}

// CreateAccount registers a user with a zero-balance wallet and a first card.
func (s *InMemoryStore) CreateAccount(_ context.Context, name, phone, cardUID string) (User, Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.cards[cardUID]; taken {
		return User{}, Card{}, ErrDuplicateCard
	}

	s.lastUser++
	user := User{ID: s.lastUser, Name: name, Phone: phone, CreatedAt: s.now()}
	s.users[user.ID] = user

	// One wallet per user, so wallet ids follow user ids.
	s.wallets[user.ID] = &memWallet{Wallet: Wallet{ID: user.ID, UserID: user.ID}, lock: make(chan struct{}, 1)}
	s.byUser[user.ID] = user.ID

	s.lastCard++
	card := Card{ID: s.lastCard, UID: cardUID, UserID: user.ID}
	s.cards[cardUID] = card
	return user, card, nil
}

// AddCard links another card to an existing user.
func (s *InMemoryStore) AddCard(_ context.Context, userID int64, cardUID string) (Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return Card{}, ErrUserNotFound
	}
	if _, taken := s.cards[cardUID]; taken {
		return Card{}, ErrDuplicateCard
	}
	s.lastCard++
	card := Card{ID: s.lastCard, UID: cardUID, UserID: userID}
	s.cards[cardUID] = card
	return card, nil
}

func (s *InMemoryStore) LookupCard(_ context.Context, uid string) (CardRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookupLocked(uid)
}

func (s *InMemoryStore) lookupLocked(uid string) (CardRef, error) {
	card, ok := s.cards[uid]
	if !ok {
		return CardRef{}, ErrCardNotFound
	}
	walletID, ok := s.byUser[card.UserID]
	if !ok {
		return CardRef{}, ErrCardNotFound
	}
	return CardRef{UID: card.UID, UserID: card.UserID, WalletID: walletID}, nil
}

func (s *InMemoryStore) Wallet(_ context.Context, walletID int64) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return w.Wallet, nil
}

func (s *InMemoryStore) Transactions(_ context.Context, userID int64, limit int) ([]Transaction, error) {
	s.mu.Lock()
	items := make([]Transaction, 0)
	for _, rec := range s.records {
		if rec.UserID == userID {
			items = append(items, rec)
		}
	}
	s.mu.Unlock()

	sortNewestFirst(items)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *InMemoryStore) TransactionsByID(_ context.Context, ids []int64) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]Transaction, 0, len(ids))
	for _, rec := range s.records {
		if slices.Contains(ids, rec.ID) {
			items = append(items, rec)
		}
	}
	// Commits can publish records out of id order.
	slices.SortFunc(items, func(a, b Transaction) int { return cmp.Compare(a.ID, b.ID) })
	return items, nil
}

// Update runs fn with exclusive access to the wallets it locks. Staged writes are
// published together under the store mutex, so readers see all of them or none.
func (s *InMemoryStore) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return &StoreError{Op: "begin", Err: err}
	}

	tx := &memTx{store: s, held: make(map[int64]*memWallet), staged: make(map[int64]int64)}
	defer tx.release()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return &StoreError{Op: "commit", Err: err}
	}

	s.mu.Lock()
	for id, balance := range tx.staged {
		s.wallets[id].Balance = balance
	}
	s.records = append(s.records, tx.records...)
	s.mu.Unlock()
	return nil
}

type memTx struct {
	store   *InMemoryStore
	held    map[int64]*memWallet
	maxHeld int64
	staged  map[int64]int64
	records []Transaction
}

func (t *memTx) LookupCard(_ context.Context, uid string) (CardRef, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return t.store.lookupLocked(uid)
}

func (t *memTx) LockWallets(ctx context.Context, walletIDs ...int64) (map[int64]Wallet, error) {
	order := lockOrder(walletIDs)
	for _, id := range order {
		if _, ok := t.held[id]; ok {
			continue
		}
		if id < t.maxHeld {
			return nil, fmt.Errorf("ledger: wallet %d locked after wallet %d", id, t.maxHeld)
		}

		t.store.mu.Lock()
		w, ok := t.store.wallets[id]
		t.store.mu.Unlock()
		if !ok {
			return nil, ErrWalletNotFound
		}
		if err := t.acquire(ctx, w); err != nil {
			return nil, err
		}
		t.held[id] = w
		t.maxHeld = id
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	out := make(map[int64]Wallet, len(order))
	for _, id := range order {
		w := t.held[id].Wallet
		if balance, ok := t.staged[id]; ok {
			w.Balance = balance
		}
		out[id] = w
	}
	return out, nil
}

func (t *memTx) acquire(ctx context.Context, w *memWallet) error {
	if t.store.opts.LockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.store.opts.LockTimeout)
		defer cancel()
	}
	select {
	case w.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return &StoreError{Op: "lock wallet (lock timeout)", Err: ctx.Err()}
	}
}

func (t *memTx) SetBalance(_ context.Context, walletID, balance int64) error {
	if _, ok := t.held[walletID]; !ok {
		return fmt.Errorf("ledger: wallet %d is not locked", walletID)
	}
	if balance < 0 {
		return &StoreError{Op: "update balance", Err: errors.New("balance must not be negative")}
	}
	t.staged[walletID] = balance
	return nil
}

func (t *memTx) Append(_ context.Context, userID, amount int64, typ TxType) (Transaction, error) {
	if amount <= 0 || (typ != Credit && typ != Debit) {
		return Transaction{}, &StoreError{Op: "append transaction", Err: fmt.Errorf("invalid record %s %d", typ, amount)}
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if _, ok := t.store.users[userID]; !ok {
		return Transaction{}, ErrUserNotFound
	}
	t.store.lastTx++
	rec := Transaction{ID: t.store.lastTx, UserID: userID, Amount: amount, Type: typ, Timestamp: t.store.now()}
	t.records = append(t.records, rec)
	return rec, nil
}

func (t *memTx) release() {
	for _, w := range t.held {
		<-w.lock
	}
}
