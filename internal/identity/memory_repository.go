package identity

import (
	"context"

	"github.com/Amandasamuel/Toll-with-postgress/internal/ledger"
)

type memoryRepository struct {
	store *ledger.InMemoryStore
}

// NewMemoryRepository registers users directly in an in-memory ledger store.
func NewMemoryRepository(store *ledger.InMemoryStore) Repository {
	return &memoryRepository{store: store}
}

func (r *memoryRepository) Register(ctx context.Context, reg Registration) (Enrollment, error) {
	user, card, err := r.store.CreateAccount(ctx, reg.Name, reg.Phone, reg.CardUID)
	if err != nil {
		return Enrollment{}, err
	}
	ref, err := r.store.LookupCard(ctx, card.UID)
	if err != nil {
		return Enrollment{}, err
	}
	return Enrollment{User: user, Card: card, WalletID: ref.WalletID}, nil
}

func (r *memoryRepository) LinkCard(ctx context.Context, userID int64, cardUID string) (ledger.Card, error) {
	return r.store.AddCard(ctx, userID, cardUID)
}
