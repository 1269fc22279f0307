// Package inventory defines the stock ledger contract: conditional stock
// decrements, their reversals, and the append-only audit log that records
// every mutation.
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ItemKind distinguishes product stock from raw component stock. One ledger
// serves both; the kind selects the table the conditional write targets.
type ItemKind string

const (
	ItemProduct   ItemKind = "product"
	ItemComponent ItemKind = "component"
)

// Log actions recorded in the audit trail.
const (
	ActionSale        = "sale"
	ActionEditReverse = "edit_reverse"
	ActionEditApply   = "edit_apply"
)

// Deduction is one planned stock decrement for an order attempt. Context
// describes where the deduction comes from (the parent bundle or option) and
// ends up in the audit log reason.
type Deduction struct {
	Kind     ItemKind
	ItemID   string
	ItemName string
	Quantity decimal.Decimal
	Context  string
}

// InsufficientStockError reports a failed conditional decrement: the
// predicate `current >= requested` did not hold at write time. Available is
// the quantity observed after the failed attempt, for immediate front-of-house
// feedback.
type InsufficientStockError struct {
	Kind      ItemKind
	ItemID    string
	ItemName  string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s %q: requested %s, available %s",
		e.Kind, e.ItemName, e.Requested, e.Available)
}

// LogEntry is one append-only audit row. For every successful stock mutation
// exactly one entry exists, satisfying Previous + Change == New.
type LogEntry struct {
	ID       int64
	Scope    string
	Kind     ItemKind
	ItemID   string
	Action   string
	Change   decimal.Decimal
	Previous decimal.Decimal
	New      decimal.Decimal
	OrderID  string
	Actor    string
	Reason   string
	At       time.Time
}

// LogReader exposes the audit trail for reconciliation. The trail itself is
// write-once; writes happen only inside the order transaction.
type LogReader interface {
	ListLogs(ctx context.Context, kind ItemKind, itemID string, limit int) ([]LogEntry, error)
}
