package identity

import "github.com/Amandasamuel/Toll-with-postgress/internal/ledger"

// Registration is the data a cardholder supplies when enrolling at a kiosk.
type Registration struct {
	Name    string
	Phone   string
	CardUID string
}

// Enrollment is the result of a registration: the new user and the first card
// bound to their wallet.
type Enrollment struct {
	User     ledger.User
	Card     ledger.Card
	WalletID int64
}
