// Package catalog holds the read-only product catalog: sellable products,
// raw inventory components, bundle recipes, and selectable priced options.
// Catalog mutations are owned by external management tooling; this core only
// reads it.
package catalog

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind classifies how a product's sale affects inventory.
type Kind string

const (
	// KindSimple is a product whose own stock is tracked directly.
	KindSimple Kind = "simple"
	// KindBundle is a product whose sale deducts component stock per its recipe.
	KindBundle Kind = "bundle"
)

// Product is a sellable catalog item.
type Product struct {
	ID            string
	Name          string
	Price         decimal.Decimal
	Kind          Kind
	StockQuantity decimal.Decimal // meaningful for KindSimple only
	MinThreshold  decimal.Decimal
	Active        bool
}

// Component is a raw inventory item deducted by bundle recipes and option
// add-ons. Quantities may be fractional (grams, millilitres).
type Component struct {
	ID           string
	Name         string
	Quantity     decimal.Decimal
	Unit         string
	MinThreshold decimal.Decimal
}

// BundleLine is one ingredient of a bundle product's recipe. Optional lines
// are deducted only when the buyer explicitly selects them.
type BundleLine struct {
	ProductID       string
	ComponentID     string
	ComponentName   string
	QuantityPerUnit decimal.Decimal
	Optional        bool
}

// OptionGroup is a named set of selectable options attached to a product,
// with selection-count constraints.
type OptionGroup struct {
	ID        string
	ProductID string
	Name      string
	MinSelect int
	MaxSelect int
	Options   []Option
}

// Option is a selectable modifier. PriceAdjust may be negative. Components
// lists extra inventory deductions the option causes when selected.
type Option struct {
	ID          string
	GroupID     string
	Name        string
	PriceAdjust decimal.Decimal
	Components  []OptionComponent
}

// OptionComponent is a per-option component deduction.
type OptionComponent struct {
	ComponentID     string
	ComponentName   string
	QuantityPerUnit decimal.Decimal
}

// NotFoundError indicates a referenced catalog entity does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Repository defines the catalog read operations this core depends on.
type Repository interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	// BundleLines returns the recipe of a bundle product, joined with
	// component names.
	BundleLines(ctx context.Context, productID string) ([]BundleLine, error)
	// OptionGroups returns a product's option groups with their options and
	// per-option component deductions populated.
	OptionGroups(ctx context.Context, productID string) ([]OptionGroup, error)
}
