package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// Resolver maps card uids to the user and wallet behind them. Only the card
// identity is cached; balances are always read from the store.
type Resolver struct {
	cache *cache.Cache
}

// NewResolver builds a resolver whose identity cache entries live for ttl.
// A ttl <= 0 disables caching.
func NewResolver(ttl time.Duration) *Resolver {
	if ttl <= 0 {
		return &Resolver{}
	}
	return &Resolver{cache: cache.New(ttl, 2*ttl)}
}

// Resolve returns the card's owner and wallet without locking anything. uid may
// alias a reused request buffer, so it is copied before it can become a cache key.
func (r *Resolver) Resolve(ctx context.Context, q CardLookup, uid string) (CardRef, error) {
	uid = strings.Clone(strings.TrimSpace(uid))
	if uid == "" {
		return CardRef{}, ErrInvalidInput
	}
	if r.cache != nil {
		if v, ok := r.cache.Get(uid); ok {
			return v.(CardRef), nil
		}
	}

	ref, err := q.LookupCard(ctx, uid)
	if err != nil {
		return CardRef{}, err
	}
	if r.cache != nil {
		r.cache.SetDefault(uid, ref)
	}
	return ref, nil
}

// Account resolves the card and locks its wallet inside tx, returning the
// balance read under that lock.
func (r *Resolver) Account(ctx context.Context, tx Tx, uid string) (Account, error) {
	ref, err := r.Resolve(ctx, tx, uid)
	if err != nil {
		return Account{}, err
	}
	wallets, err := tx.LockWallets(ctx, ref.WalletID)
	if err != nil {
		if errors.Is(err, ErrWalletNotFound) {
			r.Forget(ref.UID)
			return Account{}, ErrCardNotFound
		}
		return Account{}, err
	}
	return Account{CardRef: ref, Balance: wallets[ref.WalletID].Balance}, nil
}

// Forget drops a cached identity, e.g. after the owning user was removed.
func (r *Resolver) Forget(uid string) {
	if r.cache != nil {
		r.cache.Delete(uid)
	}
}
