package repository

// BatchStatus is the closed set of batch lifecycle states. Transitions are
// enforced by the stock service; no caller writes status directly.
type BatchStatus string

const (
	BatchActive   BatchStatus = "active"
	BatchExpired  BatchStatus = "expired"
	BatchRecalled BatchStatus = "recalled"
	BatchDepleted BatchStatus = "depleted"
)

// Valid reports whether s is a known batch status.
func (s BatchStatus) Valid() bool {
	switch s {
	case BatchActive, BatchExpired, BatchRecalled, BatchDepleted:
		return true
	}
	return false
}

// Allocatable reports whether batches in this status may be selected by the
// allocation engine. Expired, recalled and depleted batches never are, even
// with stock remaining (e.g. a recall).
func (s BatchStatus) Allocatable() bool {
	return s == BatchActive
}

// MovementType is the closed set of ledger entry kinds.
type MovementType string

const (
	MovementReceipt        MovementType = "receipt"
	MovementSale           MovementType = "sale"
	MovementAdjustment     MovementType = "adjustment"
	MovementExpiryWriteoff MovementType = "expiry_writeoff"
)

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	switch t {
	case MovementReceipt, MovementSale, MovementAdjustment, MovementExpiryWriteoff:
		return true
	}
	return false
}

// AdjustmentType reports whether t is permitted on the manual adjustment
// path. Receipts and sales only ever originate from Receive and Allocate.
func (t MovementType) AdjustmentType() bool {
	return t == MovementAdjustment || t == MovementExpiryWriteoff
}
