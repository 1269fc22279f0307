package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/brewpos/brewpos/internal/domain/inventory"
)

const (
	// The WHERE predicate is what makes the decrement safe under concurrency:
	// the write succeeds only if sufficient stock exists at write time.
	// Two competing transactions serialize on the row lock; the loser
	// re-evaluates the predicate and matches zero rows.
	decrementProductSQL = `UPDATE products
		SET stock_quantity = stock_quantity - $2, updated_at = now()
		WHERE id = $1 AND stock_quantity >= $2
		RETURNING stock_quantity`

	decrementComponentSQL = `UPDATE components
		SET quantity = quantity - $2, updated_at = now()
		WHERE id = $1 AND quantity >= $2
		RETURNING quantity`

	restockProductSQL = `UPDATE products
		SET stock_quantity = stock_quantity + $2, updated_at = now()
		WHERE id = $1
		RETURNING stock_quantity`

	restockComponentSQL = `UPDATE components
		SET quantity = quantity + $2, updated_at = now()
		WHERE id = $1
		RETURNING quantity`

	availableProductSQL   = `SELECT stock_quantity FROM products WHERE id = $1`
	availableComponentSQL = `SELECT quantity FROM components WHERE id = $1`

	insertLogSQL = `INSERT INTO inventory_log
		(scope, item_kind, item_id, action, quantity_change, previous_quantity, new_quantity, order_id, actor, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	listLogsSQL = `SELECT id, scope, item_kind, item_id, action, quantity_change,
			previous_quantity, new_quantity, COALESCE(order_id, ''), actor, reason, created_at
		FROM inventory_log
		WHERE scope = $1 AND item_kind = $2 AND item_id = $3
		ORDER BY id DESC
		LIMIT $4`

	// Net outstanding stock change per item caused by one order, across its
	// whole mutation history (sales, edit reversals, edit reapplications).
	orderNetChangesSQL = `SELECT item_kind, item_id, SUM(quantity_change)
		FROM inventory_log
		WHERE order_id = $1
		GROUP BY item_kind, item_id
		HAVING SUM(quantity_change) <> 0`
)

// StockLedger performs conditional stock mutations and writes the matching
// audit rows. One ledger instance serves one inventory scope; all mutating
// methods run inside a caller-supplied transaction so an order's decrements
// commit or roll back as a unit.
type StockLedger struct {
	pool  *pgxpool.Pool
	scope string
	actor string
}

var _ inventory.LogReader = (*StockLedger)(nil)

// NewStockLedger creates a ledger for the given scope. actor is recorded on
// every audit row.
func NewStockLedger(pool *pgxpool.Pool, scope, actor string) *StockLedger {
	return &StockLedger{pool: pool, scope: scope, actor: actor}
}

// AttemptDecrement performs one conditional decrement inside tx and appends
// its audit row under the given action. It returns the new quantity on
// success, or an inventory.InsufficientStockError when the predicate fails.
// The caller is expected to roll back the transaction on error, discarding
// every earlier decrement of the same attempt.
func (l *StockLedger) AttemptDecrement(
	ctx context.Context,
	tx pgx.Tx,
	d inventory.Deduction,
	action, orderID, reason string,
) (decimal.Decimal, error) {
	var newQty decimal.Decimal
	err := tx.QueryRow(ctx, decrementSQL(d.Kind), d.ItemID, d.Quantity).Scan(&newQty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, l.insufficient(ctx, tx, d)
		}
		return decimal.Zero, fmt.Errorf("decrementing %s %q: %w", d.Kind, d.ItemID, err)
	}

	prev := newQty.Add(d.Quantity)
	if err := l.appendLog(ctx, tx, d, action, d.Quantity.Neg(), prev, newQty, orderID, reason); err != nil {
		return decimal.Zero, err
	}
	return newQty, nil
}

// Restock adds quantity back to an item inside tx, appending an audit row
// with the given action. Used by the edit flow's reverse step.
func (l *StockLedger) Restock(
	ctx context.Context,
	tx pgx.Tx,
	d inventory.Deduction,
	action, orderID, reason string,
) (decimal.Decimal, error) {
	var newQty decimal.Decimal
	err := tx.QueryRow(ctx, restockSQL(d.Kind), d.ItemID, d.Quantity).Scan(&newQty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("restocking %s %q: item missing", d.Kind, d.ItemID)
		}
		return decimal.Zero, fmt.Errorf("restocking %s %q: %w", d.Kind, d.ItemID, err)
	}

	prev := newQty.Sub(d.Quantity)
	if err := l.appendLog(ctx, tx, d, action, d.Quantity, prev, newQty, orderID, reason); err != nil {
		return decimal.Zero, err
	}
	return newQty, nil
}

// OrderNetChanges returns, per item, the net stock change an order has caused
// so far. The audit log is the canonical record, so reversals computed from
// it are exact even when the catalog recipe has changed since the sale.
func (l *StockLedger) OrderNetChanges(ctx context.Context, tx pgx.Tx, orderID string) ([]inventory.Deduction, error) {
	rows, err := tx.Query(ctx, orderNetChangesSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("loading net changes for order %q: %w", orderID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (inventory.Deduction, error) {
		var (
			d    inventory.Deduction
			kind string
		)
		err := row.Scan(&kind, &d.ItemID, &d.Quantity)
		d.Kind = inventory.ItemKind(kind)
		return d, err
	})
}

// ListLogs returns the newest audit rows for one item, for reconciliation.
func (l *StockLedger) ListLogs(ctx context.Context, kind inventory.ItemKind, itemID string, limit int) ([]inventory.LogEntry, error) {
	rows, err := l.pool.Query(ctx, listLogsSQL, l.scope, string(kind), itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing inventory logs for %s %q: %w", kind, itemID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (inventory.LogEntry, error) {
		var (
			e    inventory.LogEntry
			kind string
		)
		err := row.Scan(&e.ID, &e.Scope, &kind, &e.ItemID, &e.Action,
			&e.Change, &e.Previous, &e.New, &e.OrderID, &e.Actor, &e.Reason, &e.At)
		e.Kind = inventory.ItemKind(kind)
		return e, err
	})
}

// insufficient builds the InsufficientStockError, reading the quantity the
// failed predicate observed so staff can react immediately.
func (l *StockLedger) insufficient(ctx context.Context, tx pgx.Tx, d inventory.Deduction) error {
	var available decimal.Decimal
	err := tx.QueryRow(ctx, availableSQL(d.Kind), d.ItemID).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Resolved earlier in the request, deleted since. Surface as
			// insufficient with zero available rather than a distinct error.
			available = decimal.Zero
		} else {
			return fmt.Errorf("reading available stock for %s %q: %w", d.Kind, d.ItemID, err)
		}
	}
	return &inventory.InsufficientStockError{
		Kind:      d.Kind,
		ItemID:    d.ItemID,
		ItemName:  d.ItemName,
		Requested: d.Quantity,
		Available: available,
	}
}

func (l *StockLedger) appendLog(
	ctx context.Context,
	tx pgx.Tx,
	d inventory.Deduction,
	action string,
	change, prev, newQty decimal.Decimal,
	orderID, reason string,
) error {
	var orderRef any
	if orderID != "" {
		orderRef = orderID
	}
	_, err := tx.Exec(ctx, insertLogSQL,
		l.scope, string(d.Kind), d.ItemID, action, change, prev, newQty, orderRef, l.actor, reason,
	)
	if err != nil {
		return fmt.Errorf("appending inventory log for %s %q: %w", d.Kind, d.ItemID, err)
	}
	return nil
}

func decrementSQL(kind inventory.ItemKind) string {
	if kind == inventory.ItemProduct {
		return decrementProductSQL
	}
	return decrementComponentSQL
}

func restockSQL(kind inventory.ItemKind) string {
	if kind == inventory.ItemProduct {
		return restockProductSQL
	}
	return restockComponentSQL
}

func availableSQL(kind inventory.ItemKind) string {
	if kind == inventory.ItemProduct {
		return availableProductSQL
	}
	return availableComponentSQL
}
