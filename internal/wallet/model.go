package wallet

import "time"

// Balance is the committed balance of the wallet behind a card.
type Balance struct {
	CardUID  string
	UserID   int64
	WalletID int64
	Amount   int64
	AsOf     time.Time
}
