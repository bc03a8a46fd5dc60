package ledger

// Status is the outcome tag of a balance mutation.
type Status string

const (
	StatusApplied  Status = "success"
	StatusDeclined Status = "failed"

	// ReasonInsufficientBalance is the decline reason when the wallet cannot cover the amount.
	ReasonInsufficientBalance = "Insufficient balance"
)

// Result reports a mutation that ran to completion. Declines carry the balance
// observed under lock and leave the store untouched. Faults are returned as
// errors instead.
type Result struct {
	Status     Status
	NewBalance int64
	Reason     string
	Records    []Transaction
}

func Applied(balance int64, records ...Transaction) Result {
	return Result{Status: StatusApplied, NewBalance: balance, Records: records}
}

func Declined(balance int64, reason string) Result {
	return Result{Status: StatusDeclined, NewBalance: balance, Reason: reason}
}

func (r Result) IsDeclined() bool { return r.Status == StatusDeclined }

// Err converts a decline into ErrInsufficientFunds for callers that prefer error flow.
func (r Result) Err() error {
	if r.IsDeclined() && r.Reason == ReasonInsufficientBalance {
		return ErrInsufficientFunds
	}
	return nil
}
