package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brewpos/brewpos/internal/domain/inventory"
	"github.com/brewpos/brewpos/internal/domain/order"
)

const (
	// The order number is computed and claimed in the same statement, guarded
	// by the UNIQUE (scope, order_number) index. Overlapping transactions see
	// the same MAX and collide on the index; the loser gets a unique violation
	// (never a duplicate) and the service retries the whole create.
	insertOrderSQL = `INSERT INTO orders
		(id, scope, order_number, status, subtotal, total, payment_method, customer_name)
		VALUES ($1, $2,
			(SELECT COALESCE(MAX(order_number), 0) + 1 FROM orders WHERE scope = $2),
			$3, $4, $5, $6, $7)
		RETURNING order_number, created_at, updated_at`

	insertOrderItemSQL = `INSERT INTO order_items
		(id, order_id, product_id, quantity, unit_price, line_total, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	insertItemOptionSQL = `INSERT INTO order_item_options
		(order_item_id, option_id, price_adjust)
		VALUES ($1, $2, $3)`

	getOrderSQL = `SELECT id, scope, order_number, status, subtotal, total,
			payment_method, customer_name, created_at, updated_at
		FROM orders WHERE id = $1`

	getOrderForUpdateSQL = `SELECT status, order_number FROM orders WHERE id = $1 FOR UPDATE`

	getOrderItemsSQL = `SELECT oi.id, oi.product_id, p.name, oi.quantity, oi.unit_price, oi.line_total, oi.notes
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.id`

	getItemOptionsSQL = `SELECT oio.order_item_id, oio.option_id, o.name, oio.price_adjust
		FROM order_item_options oio
		JOIN options o ON o.id = oio.option_id
		JOIN order_items oi ON oi.id = oio.order_item_id
		WHERE oi.order_id = $1
		ORDER BY oio.order_item_id, oio.option_id`

	deleteOrderItemsSQL = `DELETE FROM order_items WHERE order_id = $1`

	updateOrderTotalsSQL = `UPDATE orders
		SET subtotal = $2, total = $3, updated_at = now()
		WHERE id = $1`
)

const uniqueViolationCode = "23505"

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Every
// mutating method is a single transaction covering the order rows, the stock
// decrements, and their audit entries.
type OrderRepository struct {
	pool   *pgxpool.Pool
	ledger *StockLedger
}

// NewOrderRepository returns an OrderRepository using the given pool and
// stock ledger.
func NewOrderRepository(pool *pgxpool.Pool, ledger *StockLedger) *OrderRepository {
	return &OrderRepository{pool: pool, ledger: ledger}
}

// Create persists the order as one atomic unit: number assignment, header
// insert, every conditional decrement with its audit row, item and option
// inserts. Any failure rolls the whole attempt back.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order, lines []order.Line) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, insertOrderSQL,
			o.ID, o.Scope, o.Status, o.Subtotal, o.Total, o.PaymentMethod, o.CustomerName,
		).Scan(&o.Number, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return order.ErrOrderNumberConflict
			}
			return fmt.Errorf("inserting order %q: %w", o.ID, err)
		}

		return r.applyLines(ctx, tx, o, lines, inventory.ActionSale)
	})
}

// GetByID loads an order with its items and their frozen option adjustments.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	var o order.Order
	err := r.pool.QueryRow(ctx, getOrderSQL, id).Scan(
		&o.ID, &o.Scope, &o.Number, &o.Status, &o.Subtotal, &o.Total,
		&o.PaymentMethod, &o.CustomerName, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	rows, err := r.pool.Query(ctx, getOrderItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting items for order %q: %w", id, err)
	}
	o.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Item, error) {
		var item order.Item
		err := row.Scan(&item.ID, &item.ProductID, &item.Name, &item.Quantity,
			&item.UnitPrice, &item.LineTotal, &item.Notes)
		return item, err
	})
	if err != nil {
		return nil, fmt.Errorf("collecting items for order %q: %w", id, err)
	}

	rows, err = r.pool.Query(ctx, getItemOptionsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting item options for order %q: %w", id, err)
	}
	type itemOptionRow struct {
		itemID string
		opt    order.ItemOption
	}
	optRows, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (itemOptionRow, error) {
		var r itemOptionRow
		err := row.Scan(&r.itemID, &r.opt.OptionID, &r.opt.Name, &r.opt.PriceAdjust)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("collecting item options for order %q: %w", id, err)
	}

	itemIdx := make(map[string]int, len(o.Items))
	for i, item := range o.Items {
		itemIdx[item.ID] = i
	}
	for _, r := range optRows {
		if i, ok := itemIdx[r.itemID]; ok {
			o.Items[i].Options = append(o.Items[i].Options, r.opt)
		}
	}

	return &o, nil
}

// ReplaceItems rewrites a pending order's items: it first restocks the
// order's outstanding deductions (derived from the audit log, so the reversal
// is exact even if the recipe changed since the sale), deletes the old items,
// then applies the new lines with fresh conditional decrements. One
// transaction; stock is never deducted twice for the same order.
func (r *OrderRepository) ReplaceItems(ctx context.Context, o *order.Order, lines []order.Line) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		var (
			status string
			number int64
		)
		err := tx.QueryRow(ctx, getOrderForUpdateSQL, o.ID).Scan(&status, &number)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return order.ErrNotFound
			}
			return fmt.Errorf("locking order %q: %w", o.ID, err)
		}
		if status != order.StatusPending {
			return order.ErrNotEditable
		}
		o.Number = number

		// Reverse step: put back exactly what this order has taken so far.
		outstanding, err := r.ledger.OrderNetChanges(ctx, tx, o.ID)
		if err != nil {
			return err
		}
		reason := fmt.Sprintf("order #%d: edit reversal", number)
		for _, d := range outstanding {
			d.Quantity = d.Quantity.Neg() // net change is negative for deductions
			if _, err := r.ledger.Restock(ctx, tx, d, inventory.ActionEditReverse, o.ID, reason); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, deleteOrderItemsSQL, o.ID); err != nil {
			return fmt.Errorf("deleting items for order %q: %w", o.ID, err)
		}

		// Reapply step: fresh decrements and inserts for the new lines.
		if err := r.applyLines(ctx, tx, o, lines, inventory.ActionEditApply); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, updateOrderTotalsSQL, o.ID, o.Subtotal, o.Total); err != nil {
			return fmt.Errorf("updating totals for order %q: %w", o.ID, err)
		}
		return nil
	})
}

// applyLines executes the deductions and inserts for each line. action names
// the audit rows (sale for creation, edit_apply for the edit flow).
func (r *OrderRepository) applyLines(ctx context.Context, tx pgx.Tx, o *order.Order, lines []order.Line, action string) error {
	for _, line := range lines {
		for _, d := range line.Deductions {
			reason := fmt.Sprintf("order #%d: %s", o.Number, d.Context)
			if _, err := r.ledger.AttemptDecrement(ctx, tx, d, action, o.ID, reason); err != nil {
				return err
			}
		}

		item := line.Item
		_, err := tx.Exec(ctx, insertOrderItemSQL,
			item.ID, o.ID, item.ProductID, item.Quantity, item.UnitPrice, item.LineTotal, item.Notes,
		)
		if err != nil {
			return fmt.Errorf("inserting item for order %q: %w", o.ID, err)
		}

		for _, opt := range item.Options {
			_, err := tx.Exec(ctx, insertItemOptionSQL, item.ID, opt.OptionID, opt.PriceAdjust)
			if err != nil {
				return fmt.Errorf("inserting item option for order %q: %w", o.ID, err)
			}
		}
	}
	return nil
}

func (r *OrderRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
