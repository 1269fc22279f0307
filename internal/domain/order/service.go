package order

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brewpos/brewpos/internal/domain/catalog"
	"github.com/brewpos/brewpos/internal/domain/inventory"
	"github.com/brewpos/brewpos/internal/domain/pricing"
)

// Publisher receives a notification for every successfully created order.
// Delivery and subscribers are external; this core only emits the payload.
type Publisher interface {
	OrderCreated(ctx context.Context, o *Order)
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	Items         []pricing.LineRequest
	PaymentMethod string
	CustomerName  string
}

// Service encapsulates order placement and editing. Resolution and pricing
// run outside the storage transaction; only the decrement/insert phase is
// atomic, keeping the critical section bounded by line count.
type Service struct {
	catalog catalog.Repository
	orders  Repository
	events  Publisher
	scope   string
}

// NewService creates an order Service with the required dependencies.
// events may be nil when no order-created notifications are wanted.
func NewService(catalogRepo catalog.Repository, orders Repository, events Publisher, scope string) *Service {
	return &Service{
		catalog: catalogRepo,
		orders:  orders,
		events:  events,
		scope:   scope,
	}
}

// maxCreateAttempts bounds the optimistic retry on the order-number claim.
// Losing a claim rolls the whole transaction back before any decrement, so
// a retry restarts from a clean slate with the already-resolved lines.
const maxCreateAttempts = 5

// PlaceOrder validates the request, resolves catalog and pricing for every
// line, and persists the order together with all stock deductions as one
// atomic unit. On any failure nothing persists. Concurrent creations can
// claim the same order number; the losing transaction is retried here, so
// callers only see a number conflict once the attempts are exhausted.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	lines, subtotal, err := s.resolveLines(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:            uuid.New().String(),
		Scope:         s.scope,
		Status:        StatusPending,
		Subtotal:      subtotal,
		Total:         subtotal, // prices are tax-inclusive
		PaymentMethod: req.PaymentMethod,
		CustomerName:  req.CustomerName,
	}

	for attempt := 1; ; attempt++ {
		err = s.orders.Create(ctx, o, lines)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrOrderNumberConflict) || attempt == maxCreateAttempts {
			return nil, err
		}
	}
	for i := range lines {
		o.Items = append(o.Items, lines[i].Item)
	}

	if s.events != nil {
		s.events.OrderCreated(ctx, o)
	}
	return o, nil
}

// EditOrder replaces a pending order's items. The repository reverses the
// original deductions before reapplying the new ones, in one transaction, so
// stock is never deducted twice for the same order.
func (s *Service) EditOrder(ctx context.Context, orderID string, items []pricing.LineRequest) (*Order, error) {
	existing, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if existing.Status != StatusPending {
		return nil, ErrNotEditable
	}

	lines, subtotal, err := s.resolveLines(ctx, items)
	if err != nil {
		return nil, err
	}

	existing.Subtotal = subtotal
	existing.Total = subtotal

	if err := s.orders.ReplaceItems(ctx, existing, lines); err != nil {
		return nil, err
	}
	existing.Items = existing.Items[:0]
	for i := range lines {
		existing.Items = append(existing.Items, lines[i].Item)
	}
	return existing, nil
}

// GetOrder loads a persisted order for read-back.
func (s *Service) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

// resolveLines runs the pre-transaction phase: validation, memoized catalog
// resolution, price snapshots, and deduction planning.
func (s *Service) resolveLines(ctx context.Context, items []pricing.LineRequest) ([]Line, decimal.Decimal, error) {
	if len(items) == 0 {
		return nil, decimal.Zero, ErrEmptyItems
	}

	resolver := catalog.NewResolver(s.catalog)

	lines := make([]Line, 0, len(items))
	subtotal := decimal.Zero
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, decimal.Zero, &InvalidQuantityError{ProductID: item.ProductID}
		}

		res, err := resolver.Resolve(ctx, item.ProductID)
		if err != nil {
			return nil, decimal.Zero, err
		}

		quote, err := pricing.PriceLine(res, item)
		if err != nil {
			return nil, decimal.Zero, err
		}

		lines = append(lines, Line{
			Item:       itemFromQuote(quote),
			Deductions: planDeductions(res, quote),
		})
		subtotal = subtotal.Add(quote.LineTotal)
	}

	return lines, subtotal, nil
}

func itemFromQuote(q *pricing.LineQuote) Item {
	item := Item{
		ID:        uuid.New().String(),
		ProductID: q.Product.ID,
		Name:      q.Product.Name,
		Quantity:  q.Quantity,
		UnitPrice: q.UnitPrice,
		LineTotal: q.LineTotal,
		Notes:     q.Notes,
	}
	for _, opt := range q.Options {
		item.Options = append(item.Options, ItemOption{
			OptionID:    opt.OptionID,
			Name:        opt.Name,
			PriceAdjust: opt.PriceAdjust,
		})
	}
	return item
}

// planDeductions expands one priced line into the stock decrements its sale
// requires: the product's own stock for simple products, or the required
// recipe lines, opted-in optional lines, and selected option components for
// bundles. Quantities scale by the ordered quantity.
func planDeductions(res *catalog.Resolved, q *pricing.LineQuote) []inventory.Deduction {
	qty := decimal.NewFromInt(int64(q.Quantity))

	var deductions []inventory.Deduction
	if res.Product.Kind == catalog.KindSimple {
		deductions = append(deductions, inventory.Deduction{
			Kind:     inventory.ItemProduct,
			ItemID:   res.Product.ID,
			ItemName: res.Product.Name,
			Quantity: qty,
			Context:  fmt.Sprintf("sale of %q", res.Product.Name),
		})
	}
	bundleCtx := fmt.Sprintf("sale of bundle %q", res.Product.Name)

	for _, line := range res.RequiredLines {
		deductions = append(deductions, inventory.Deduction{
			Kind:     inventory.ItemComponent,
			ItemID:   line.ComponentID,
			ItemName: line.ComponentName,
			Quantity: line.QuantityPerUnit.Mul(qty),
			Context:  bundleCtx,
		})
	}
	for _, line := range q.OptionalLines {
		deductions = append(deductions, inventory.Deduction{
			Kind:     inventory.ItemComponent,
			ItemID:   line.ComponentID,
			ItemName: line.ComponentName,
			Quantity: line.QuantityPerUnit.Mul(qty),
			Context:  bundleCtx + " (optional)",
		})
	}
	for _, opt := range q.Options {
		for _, oc := range opt.Components {
			deductions = append(deductions, inventory.Deduction{
				Kind:     inventory.ItemComponent,
				ItemID:   oc.ComponentID,
				ItemName: oc.ComponentName,
				Quantity: oc.QuantityPerUnit.Mul(qty),
				Context:  fmt.Sprintf("option %q on %q", opt.Name, res.Product.Name),
			})
		}
	}
	return deductions
}
