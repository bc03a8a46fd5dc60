package ledger

import (
	"iter"
	"slices"
	"time"
)

// History is a point-in-time snapshot of a wallet's records, newest first.
// Iterating it never touches the store, so it can be walked any number of times.
type History struct {
	CardUID string
	UserID  int64
	AsOf    time.Time
	items   []Transaction
}

func NewHistory(ref CardRef, asOf time.Time, items []Transaction) History {
	return History{CardUID: ref.UID, UserID: ref.UserID, AsOf: asOf, items: items}
}

// All yields the records newest first.
func (h History) All() iter.Seq[Transaction] {
	return func(yield func(Transaction) bool) {
		for _, t := range h.items {
			if !yield(t) {
				return
			}
		}
	}
}

func (h History) Len() int { return len(h.items) }

// Items returns a copy of the snapshot.
func (h History) Items() []Transaction {
	return slices.Clone(h.items)
}

// Replay applies the records oldest to newest starting from zero. For a complete
// history it equals the wallet balance.
func (h History) Replay() int64 {
	var balance int64
	for i := len(h.items) - 1; i >= 0; i-- {
		balance += h.items[i].Type.Sign() * h.items[i].Amount
	}
	return balance
}

// sortNewestFirst orders by timestamp then id, both descending.
func sortNewestFirst(items []Transaction) {
	slices.SortFunc(items, func(a, b Transaction) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})
}
