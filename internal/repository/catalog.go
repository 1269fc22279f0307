package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brewpos/brewpos/internal/domain/catalog"
)

const (
	listProductsSQL = `SELECT id, name, price, kind, stock_quantity, min_threshold, active
		FROM products WHERE active = TRUE ORDER BY id`

	getProductSQL = `SELECT id, name, price, kind, stock_quantity, min_threshold, active
		FROM products WHERE id = $1`

	bundleLinesSQL = `SELECT bl.product_id, bl.component_id, c.name, bl.quantity_per_unit, bl.optional
		FROM bundle_lines bl
		JOIN components c ON c.id = bl.component_id
		WHERE bl.product_id = $1
		ORDER BY bl.component_id`

	optionGroupsSQL = `SELECT id, product_id, name, min_select, max_select
		FROM option_groups WHERE product_id = $1 ORDER BY id`

	groupOptionsSQL = `SELECT o.id, o.group_id, o.name, o.price_adjust
		FROM options o
		JOIN option_groups g ON g.id = o.group_id
		WHERE g.product_id = $1 AND o.active = TRUE
		ORDER BY o.id`

	optionComponentsSQL = `SELECT oc.option_id, oc.component_id, c.name, oc.quantity_per_unit
		FROM option_components oc
		JOIN options o ON o.id = oc.option_id
		JOIN option_groups g ON g.id = o.group_id
		JOIN components c ON c.id = oc.component_id
		WHERE g.product_id = $1
		ORDER BY oc.option_id, oc.component_id`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
// All operations are reads; catalog mutations belong to external tooling.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// ListProducts returns all active products ordered by ID.
func (r *CatalogRepository) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetProduct returns a single product by its identifier.
func (r *CatalogRepository) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &catalog.NotFoundError{Entity: "product", ID: id}
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// BundleLines returns a bundle product's recipe with component names joined in.
func (r *CatalogRepository) BundleLines(ctx context.Context, productID string) ([]catalog.BundleLine, error) {
	rows, err := r.pool.Query(ctx, bundleLinesSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("listing bundle lines for %q: %w", productID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.BundleLine, error) {
		var line catalog.BundleLine
		err := row.Scan(&line.ProductID, &line.ComponentID, &line.ComponentName,
			&line.QuantityPerUnit, &line.Optional)
		return line, err
	})
}

// OptionGroups returns a product's option groups with options and per-option
// component deductions populated. Three queries, assembled in memory.
func (r *CatalogRepository) OptionGroups(ctx context.Context, productID string) ([]catalog.OptionGroup, error) {
	rows, err := r.pool.Query(ctx, optionGroupsSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("listing option groups for %q: %w", productID, err)
	}
	groups, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.OptionGroup, error) {
		var g catalog.OptionGroup
		err := row.Scan(&g.ID, &g.ProductID, &g.Name, &g.MinSelect, &g.MaxSelect)
		return g, err
	})
	if err != nil {
		return nil, fmt.Errorf("collecting option groups for %q: %w", productID, err)
	}
	if len(groups) == 0 {
		return nil, nil
	}

	rows, err = r.pool.Query(ctx, groupOptionsSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("listing options for %q: %w", productID, err)
	}
	options, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Option, error) {
		var o catalog.Option
		err := row.Scan(&o.ID, &o.GroupID, &o.Name, &o.PriceAdjust)
		return o, err
	})
	if err != nil {
		return nil, fmt.Errorf("collecting options for %q: %w", productID, err)
	}

	rows, err = r.pool.Query(ctx, optionComponentsSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("listing option components for %q: %w", productID, err)
	}
	type optionComponentRow struct {
		optionID string
		oc       catalog.OptionComponent
	}
	ocRows, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (optionComponentRow, error) {
		var r optionComponentRow
		err := row.Scan(&r.optionID, &r.oc.ComponentID, &r.oc.ComponentName, &r.oc.QuantityPerUnit)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("collecting option components for %q: %w", productID, err)
	}

	componentsByOption := make(map[string][]catalog.OptionComponent, len(ocRows))
	for _, r := range ocRows {
		componentsByOption[r.optionID] = append(componentsByOption[r.optionID], r.oc)
	}

	groupIdx := make(map[string]int, len(groups))
	for i, g := range groups {
		groupIdx[g.ID] = i
	}
	for _, o := range options {
		o.Components = componentsByOption[o.ID]
		if i, ok := groupIdx[o.GroupID]; ok {
			groups[i].Options = append(groups[i].Options, o)
		}
	}

	return groups, nil
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var (
		p    catalog.Product
		kind string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Price, &kind, &p.StockQuantity, &p.MinThreshold, &p.Active)
	p.Kind = catalog.Kind(kind)
	return p, err
}
