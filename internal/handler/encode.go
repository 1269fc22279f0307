package handler

import (
	"github.com/go-faster/jx"

	"github.com/brewpos/brewpos/internal/domain/catalog"
	"github.com/brewpos/brewpos/internal/domain/inventory"
	"github.com/brewpos/brewpos/internal/domain/order"
)

func encodeProduct(e *jx.Encoder, p catalog.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("price", func(e *jx.Encoder) { e.Str(p.Price.StringFixed(2)) })
		e.Field("kind", func(e *jx.Encoder) { e.Str(string(p.Kind)) })
		if p.Kind == catalog.KindSimple {
			e.Field("stock_quantity", func(e *jx.Encoder) { e.Str(p.StockQuantity.String()) })
		}
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("order_number", func(e *jx.Encoder) { e.Int64(o.Number) })
		e.Field("status", func(e *jx.Encoder) { e.Str(o.Status) })
		e.Field("subtotal", func(e *jx.Encoder) { e.Str(o.Subtotal.StringFixed(2)) })
		e.Field("total", func(e *jx.Encoder) { e.Str(o.Total.StringFixed(2)) })
		e.Field("payment_method", func(e *jx.Encoder) { e.Str(o.PaymentMethod) })
		e.Field("customer_name", func(e *jx.Encoder) { e.Str(o.CustomerName) })
		e.Field("created_at", func(e *jx.Encoder) { e.Str(o.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00")) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, item := range o.Items {
					encodeOrderItem(e, item)
				}
			})
		})
	})
}

func encodeOrderItem(e *jx.Encoder, item order.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("product_id", func(e *jx.Encoder) { e.Str(item.ProductID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(item.Name) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(item.Quantity) })
		e.Field("unit_price", func(e *jx.Encoder) { e.Str(item.UnitPrice.StringFixed(2)) })
		e.Field("line_total", func(e *jx.Encoder) { e.Str(item.LineTotal.StringFixed(2)) })
		if item.Notes != "" {
			e.Field("notes", func(e *jx.Encoder) { e.Str(item.Notes) })
		}
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

func encodeLogEntry(e *jx.Encoder, entry inventory.LogEntry) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(entry.ID) })
		e.Field("item_kind", func(e *jx.Encoder) { e.Str(string(entry.Kind)) })
		e.Field("item_id", func(e *jx.Encoder) { e.Str(entry.ItemID) })
		e.Field("action", func(e *jx.Encoder) { e.Str(entry.Action) })
		e.Field("quantity_change", func(e *jx.Encoder) { e.Str(entry.Change.String()) })
		e.Field("previous_quantity", func(e *jx.Encoder) { e.Str(entry.Previous.String()) })
		e.Field("new_quantity", func(e *jx.Encoder) { e.Str(entry.New.String()) })
		if entry.OrderID != "" {
			e.Field("order_id", func(e *jx.Encoder) { e.Str(entry.OrderID) })
		}
		e.Field("reason", func(e *jx.Encoder) { e.Str(entry.Reason) })
		e.Field("created_at", func(e *jx.Encoder) { e.Str(entry.At.UTC().Format("2006-01-02T15:04:05Z07:00")) })
	})
}
