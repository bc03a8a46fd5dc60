package ledger

import "context"

// Seed credits amount to the wallet behind cardUID through a regular transaction,
// recording the matching credit so balances still equal their history.
func Seed(ctx context.Context, s Store, cardUID string, amount int64) error {
	return s.Update(ctx, func(tx Tx) error {
		ref, err := tx.LookupCard(ctx, cardUID)
		if err != nil {
			return err
		}
		wallets, err := tx.LockWallets(ctx, ref.WalletID)
		if err != nil {
			return err
		}
		if err := tx.SetBalance(ctx, ref.WalletID, wallets[ref.WalletID].Balance+amount); err != nil {
			return err
		}
		_, err = tx.Append(ctx, ref.UserID, amount, Credit)
		return err
	})
}
