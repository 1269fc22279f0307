package handler

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the handler-level instruments. A nil *Metrics disables
// recording, which is what the tests use.
type Metrics struct {
	ordersCreated  metric.Int64Counter
	ordersEdited   metric.Int64Counter
	stockConflicts metric.Int64Counter
}

// NewMetrics registers the order instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	ordersCreated, err := meter.Int64Counter("orders_created_total",
		metric.WithDescription("Orders successfully created"))
	if err != nil {
		return nil, err
	}
	ordersEdited, err := meter.Int64Counter("orders_edited_total",
		metric.WithDescription("Orders successfully edited"))
	if err != nil {
		return nil, err
	}
	stockConflicts, err := meter.Int64Counter("stock_conflicts_total",
		metric.WithDescription("Order attempts rejected for insufficient stock"))
	if err != nil {
		return nil, err
	}
	return &Metrics{
		ordersCreated:  ordersCreated,
		ordersEdited:   ordersEdited,
		stockConflicts: stockConflicts,
	}, nil
}

func (m *Metrics) orderCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.ordersCreated.Add(ctx, 1)
}

func (m *Metrics) orderEdited(ctx context.Context) {
	if m == nil {
		return
	}
	m.ordersEdited.Add(ctx, 1)
}

func (m *Metrics) stockConflict(ctx context.Context, itemKind string) {
	if m == nil {
		return
	}
	m.stockConflicts.Add(ctx, 1, metric.WithAttributes(attribute.String("item_kind", itemKind)))
}
