package domain

// FeeLedger is the process-wide snapshot of platform fee accounting.
// Invariants: Collected == Locked + Unlocked before any withdrawal, and
// Withdrawn <= Unlocked. Fees accrue locked on every trade, unlock when the
// market resolves, and are voided from both Locked and Collected when the
// market is invalidated.
type FeeLedger struct {
	Collected int64
	Locked    int64
	Unlocked  int64
	Withdrawn int64
}

// Withdrawable returns the amount the operator may still withdraw.
func (f FeeLedger) Withdrawable() int64 {
	return f.Unlocked - f.Withdrawn
}
