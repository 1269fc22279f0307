package catalog

import (
	"context"

	"github.com/go-faster/errors"
)

// Resolved is a product together with its fully loaded recipe and options,
// as used during a single order-processing attempt.
type Resolved struct {
	Product       Product
	RequiredLines []BundleLine
	OptionalLines []BundleLine
	Groups        []OptionGroup
}

// OptionalLine returns the optional bundle line for the given component ID,
// or nil when the component is not an optional ingredient of this product.
func (r *Resolved) OptionalLine(componentID string) *BundleLine {
	for i := range r.OptionalLines {
		if r.OptionalLines[i].ComponentID == componentID {
			return &r.OptionalLines[i]
		}
	}
	return nil
}

// FindOption looks up an option by ID across all of the product's groups.
// The second return value is the group the option belongs to.
func (r *Resolved) FindOption(optionID string) (*Option, *OptionGroup) {
	for gi := range r.Groups {
		g := &r.Groups[gi]
		for oi := range g.Options {
			if g.Options[oi].ID == optionID {
				return &g.Options[oi], g
			}
		}
	}
	return nil, nil
}

// Resolver memoizes catalog lookups for the duration of one order-processing
// attempt. A product repeated across order lines is fetched once. Resolvers
// are request-scoped and not safe for concurrent use; create one per request
// and pass it through the call chain.
type Resolver struct {
	repo  Repository
	cache map[string]*Resolved
}

// NewResolver creates a request-scoped Resolver over the given repository.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{
		repo:  repo,
		cache: make(map[string]*Resolved),
	}
}

// Resolve returns the product's kind, recipe, and option groups, fetching
// from the repository at most once per product.
func (r *Resolver) Resolve(ctx context.Context, productID string) (*Resolved, error) {
	if res, ok := r.cache[productID]; ok {
		return res, nil
	}

	p, err := r.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, &NotFoundError{Entity: "product", ID: productID}
	}

	res := &Resolved{Product: *p}

	if p.Kind == KindBundle {
		lines, err := r.repo.BundleLines(ctx, productID)
		if err != nil {
			return nil, errors.Wrapf(err, "load recipe for product %s", productID)
		}
		for _, line := range lines {
			if line.Optional {
				res.OptionalLines = append(res.OptionalLines, line)
			} else {
				res.RequiredLines = append(res.RequiredLines, line)
			}
		}
	}

	groups, err := r.repo.OptionGroups(ctx, productID)
	if err != nil {
		return nil, errors.Wrapf(err, "load option groups for product %s", productID)
	}
	res.Groups = groups

	r.cache[productID] = res
	return res, nil
}
