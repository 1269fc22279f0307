// Package order implements the order assembler: it coordinates catalog
// resolution, pricing snapshots, conditional stock deduction, and persistence
// of the immutable order record as one atomic unit.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/brewpos/brewpos/internal/domain/inventory"
)

// StatusPending is the initial order status and the only status this core
// ever assigns. All later transitions belong to external fulfillment flows.
const StatusPending = "pending"

// Order is a persisted customer order. Aside from its status field (owned by
// fulfillment), an order is immutable once created; edits go through the
// reverse-then-reapply flow and rewrite the item set atomically.
type Order struct {
	ID            string
	Scope         string
	Number        int64
	Status        string
	Subtotal      decimal.Decimal
	Total         decimal.Decimal // tax-inclusive
	PaymentMethod string
	CustomerName  string
	Items         []Item
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Item is a single order line. UnitPrice is the effective price snapshot
// taken at sale time and is never re-derived from the catalog.
type Item struct {
	ID        string
	ProductID string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
	Notes     string
	Options   []ItemOption
}

// ItemOption records a selected option with its price adjustment frozen at
// time of sale; later catalog changes must not drift it.
type ItemOption struct {
	OptionID    string
	Name        string
	PriceAdjust decimal.Decimal
}

// Sentinel errors for request validation and the order-number race.
var (
	ErrEmptyItems = errors.New("items required")
	// ErrOrderNumberConflict reports that a concurrent creation claimed the
	// same order number. The service retries the whole transaction; this
	// surfaces only once the retry budget is exhausted.
	ErrOrderNumberConflict = errors.New("order number conflict")
	// ErrNotEditable reports an edit attempt on an order that is no longer
	// pending.
	ErrNotEditable = errors.New("order is not editable")
	// ErrNotFound is returned when a requested order does not exist.
	ErrNotFound = errors.New("order not found")
)

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// Line is a persisted-shape order line paired with the stock deductions its
// sale requires. Repositories execute the deductions and the inserts inside
// one transaction.
type Line struct {
	Item       Item
	Deductions []inventory.Deduction
}

// Repository defines the atomic persistence operations for orders. Each
// method is one all-or-nothing transaction: order-number assignment, every
// conditional decrement, every audit row, and every insert commit together
// or not at all.
type Repository interface {
	// Create persists the order, assigning its number and executing all
	// deductions. On success o.Number and o.CreatedAt are populated.
	Create(ctx context.Context, o *Order, lines []Line) error
	// GetByID loads an order with its items and their options.
	GetByID(ctx context.Context, id string) (*Order, error)
	// ReplaceItems reverses the order's outstanding stock deductions, removes
	// its items, then applies the new lines and updated totals — all in one
	// transaction. Fails with ErrNotEditable unless the order is pending.
	ReplaceItems(ctx context.Context, o *Order, lines []Line) error
}
