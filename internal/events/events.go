// Package events emits the order-created notification payload. Subscriber
// management and delivery are external; the publishers here only hand the
// encoded payload off.
package events

import (
	"context"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/brewpos/brewpos/internal/domain/order"
)

// EncodeOrderCreated encodes the order-created event payload: the persisted
// order as it was committed, including the frozen per-line pricing.
func EncodeOrderCreated(o *order.Order) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("event", func(e *jx.Encoder) { e.Str("order_created") })
		e.Field("order_id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("order_number", func(e *jx.Encoder) { e.Int64(o.Number) })
		e.Field("scope", func(e *jx.Encoder) { e.Str(o.Scope) })
		e.Field("status", func(e *jx.Encoder) { e.Str(o.Status) })
		e.Field("subtotal", func(e *jx.Encoder) { e.Str(o.Subtotal.StringFixed(2)) })
		e.Field("total", func(e *jx.Encoder) { e.Str(o.Total.StringFixed(2)) })
		e.Field("payment_method", func(e *jx.Encoder) { e.Str(o.PaymentMethod) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, item := range o.Items {
					encodeItem(e, item)
				}
			})
		})
	})
	return e.Bytes()
}

func encodeItem(e *jx.Encoder, item order.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("product_id", func(e *jx.Encoder) { e.Str(item.ProductID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(item.Name) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(item.Quantity) })
		e.Field("unit_price", func(e *jx.Encoder) { e.Str(item.UnitPrice.StringFixed(2)) })
		e.Field("line_total", func(e *jx.Encoder) { e.Str(item.LineTotal.StringFixed(2)) })
		if len(item.Options) > 0 {
			e.Field("options", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, opt := range item.Options {
						e.Obj(func(e *jx.Encoder) {
							e.Field("option_id", func(e *jx.Encoder) { e.Str(opt.OptionID) })
							e.Field("name", func(e *jx.Encoder) { e.Str(opt.Name) })
							e.Field("price_adjust", func(e *jx.Encoder) { e.Str(opt.PriceAdjust.StringFixed(2)) })
						})
					}
				})
			})
		}
	})
}

// LogPublisher publishes order-created events to the request logger. It
// stands in for a real fan-out transport while keeping the payload shape
// fixed.
type LogPublisher struct{}

var _ order.Publisher = LogPublisher{}

// OrderCreated logs the encoded event payload.
func (LogPublisher) OrderCreated(ctx context.Context, o *order.Order) {
	zctx.From(ctx).Info("order created",
		zap.Int64("order_number", o.Number),
		zap.String("order_id", o.ID),
		zap.ByteString("payload", EncodeOrderCreated(o)),
	)
}
