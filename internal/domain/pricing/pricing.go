// Package pricing resolves selected options against a product's option
// groups and produces the immutable per-line price snapshot consumed by the
// rest of the order pipeline. Catalog changes after a snapshot is taken must
// never alter it: option price adjustments are copied into the snapshot at
// sale time.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/brewpos/brewpos/internal/domain/catalog"
)

// LineRequest is the caller's selection for a single order line.
type LineRequest struct {
	ProductID           string
	Quantity            int
	SelectedOptionIDs   []string
	SelectedOptionalIDs []string // component IDs of opted-in optional bundle lines
	Notes               string
}

// SelectedOption is an option resolved for a line, with its price adjustment
// captured at sale time.
type SelectedOption struct {
	OptionID    string
	Name        string
	PriceAdjust decimal.Decimal
	Components  []catalog.OptionComponent
}

// LineQuote is the immutable price snapshot for one order line. Every
// downstream step consumes it verbatim; nothing is ever re-derived from the
// catalog.
type LineQuote struct {
	Product       catalog.Product
	Quantity      int
	UnitPrice     decimal.Decimal // base price + sum of option adjustments
	LineTotal     decimal.Decimal // UnitPrice * Quantity, rounded to cents
	Options       []SelectedOption
	OptionalLines []catalog.BundleLine // opted-in optional recipe lines
	Notes         string
}

// OptionSelectionError indicates the request's option or optional-component
// selection is invalid for the ordered product.
type OptionSelectionError struct {
	ProductID string
	Reason    string
}

func (e *OptionSelectionError) Error() string {
	return fmt.Sprintf("invalid selection for product %s: %s", e.ProductID, e.Reason)
}

// PriceLine validates the line's selections against the resolved product and
// computes its price snapshot.
//
// Rejections:
//   - a selected option that does not belong to any of the product's groups
//   - the same option or optional component selected more than once
//   - a group whose selection count falls outside [MinSelect, MaxSelect]
//   - an optional component that is not part of the product's recipe
//   - a negative effective unit price (the adjustments undercut the base
//     price; treated as a catalog misconfiguration rather than clamped)
func PriceLine(res *catalog.Resolved, req LineRequest) (*LineQuote, error) {
	quote := &LineQuote{
		Product:  res.Product,
		Quantity: req.Quantity,
		Notes:    req.Notes,
	}

	// Resolve selected options and count selections per group. Duplicates
	// would double-count the adjustment and the component deductions.
	perGroup := make(map[string]int, len(res.Groups))
	seenOpts := make(map[string]bool, len(req.SelectedOptionIDs))
	adjustment := decimal.Zero
	for _, optID := range req.SelectedOptionIDs {
		if seenOpts[optID] {
			return nil, &OptionSelectionError{
				ProductID: res.Product.ID,
				Reason:    fmt.Sprintf("option %s selected more than once", optID),
			}
		}
		seenOpts[optID] = true

		opt, group := res.FindOption(optID)
		if opt == nil {
			return nil, &OptionSelectionError{
				ProductID: res.Product.ID,
				Reason:    fmt.Sprintf("option %s does not belong to this product", optID),
			}
		}
		perGroup[group.ID]++
		adjustment = adjustment.Add(opt.PriceAdjust)
		quote.Options = append(quote.Options, SelectedOption{
			OptionID:    opt.ID,
			Name:        opt.Name,
			PriceAdjust: opt.PriceAdjust,
			Components:  opt.Components,
		})
	}

	// Enforce per-group selection count constraints.
	for i := range res.Groups {
		g := &res.Groups[i]
		n := perGroup[g.ID]
		if n < g.MinSelect || n > g.MaxSelect {
			return nil, &OptionSelectionError{
				ProductID: res.Product.ID,
				Reason: fmt.Sprintf("group %q requires between %d and %d selections, got %d",
					g.Name, g.MinSelect, g.MaxSelect, n),
			}
		}
	}

	// Optional recipe lines are opt-in and must belong to this product.
	seenOptionals := make(map[string]bool, len(req.SelectedOptionalIDs))
	for _, componentID := range req.SelectedOptionalIDs {
		if seenOptionals[componentID] {
			return nil, &OptionSelectionError{
				ProductID: res.Product.ID,
				Reason:    fmt.Sprintf("component %s selected more than once", componentID),
			}
		}
		seenOptionals[componentID] = true

		line := res.OptionalLine(componentID)
		if line == nil {
			return nil, &OptionSelectionError{
				ProductID: res.Product.ID,
				Reason:    fmt.Sprintf("component %s is not an optional ingredient of this product", componentID),
			}
		}
		quote.OptionalLines = append(quote.OptionalLines, *line)
	}

	unit := res.Product.Price.Add(adjustment)
	if unit.IsNegative() {
		return nil, &OptionSelectionError{
			ProductID: res.Product.ID,
			Reason:    "selected options drive the unit price below zero",
		}
	}

	quote.UnitPrice = unit.Round(2)
	quote.LineTotal = quote.UnitPrice.Mul(decimal.NewFromInt(int64(req.Quantity))).Round(2)
	return quote, nil
}
