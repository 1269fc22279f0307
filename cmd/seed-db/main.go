// Command seed-db loads a catalog definition (products, components, bundle
// recipes, option groups) from a JSON file into the database, and seeds a
// default API key. Intended for local development and demo environments;
// production catalogs are owned by external management tooling.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/brewpos/brewpos/internal/repository"
)

type catalogJSON struct {
	Components []componentJSON `json:"components"`
	Products   []productJSON   `json:"products"`
}

type componentJSON struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
	MinThreshold decimal.Decimal `json:"min_threshold"`
}

type productJSON struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Price         decimal.Decimal  `json:"price"`
	Kind          string           `json:"kind"`
	StockQuantity decimal.Decimal  `json:"stock_quantity"`
	MinThreshold  decimal.Decimal  `json:"min_threshold"`
	BundleLines   []bundleLineJSON `json:"bundle_lines"`
	OptionGroups  []groupJSON      `json:"option_groups"`
}

type bundleLineJSON struct {
	ComponentID     string          `json:"component_id"`
	QuantityPerUnit decimal.Decimal `json:"quantity_per_unit"`
	Optional        bool            `json:"optional"`
}

type groupJSON struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	MinSelect int          `json:"min_select"`
	MaxSelect int          `json:"max_select"`
	Options   []optionJSON `json:"options"`
}

type optionJSON struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	PriceAdjust decimal.Decimal  `json:"price_adjust"`
	Components  []bundleLineJSON `json:"components"`
}

func main() {
	var (
		databaseURL  string
		catalogFile  string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or BREW_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or BREW_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("BREW_SEED_API_KEY")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("BREW_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCatalog(ctx, pool, catalogFile); err != nil {
		return errors.Wrap(err, "seed catalog")
	}

	if apiKey != "" {
		if err := seedAPIKey(ctx, pool, apiKey, pepper); err != nil {
			return errors.Wrap(err, "seed api key")
		}
	}

	return nil
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool, catalogFile string) error {
	slog.Info("reading catalog file", slog.String("path", catalogFile))

	data, err := os.ReadFile(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}

	var c catalogJSON
	if err := json.Unmarshal(data, &c); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	slog.Info("upserting components", slog.Int("count", len(c.Components)))
	for _, comp := range c.Components {
		_, err := pool.Exec(ctx, `INSERT INTO components (id, name, quantity, unit, min_threshold)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET name = $2, quantity = $3, unit = $4, min_threshold = $5, updated_at = now()`,
			comp.ID, comp.Name, comp.Quantity, comp.Unit, comp.MinThreshold,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert component %s", comp.ID)
		}
	}

	slog.Info("upserting products", slog.Int("count", len(c.Products)))
	for _, p := range c.Products {
		_, err := pool.Exec(ctx, `INSERT INTO products (id, name, price, kind, stock_quantity, min_threshold, active)
			VALUES ($1, $2, $3, $4, $5, $6, TRUE)
			ON CONFLICT (id) DO UPDATE SET name = $2, price = $3, kind = $4, stock_quantity = $5, min_threshold = $6, updated_at = now()`,
			p.ID, p.Name, p.Price, p.Kind, p.StockQuantity, p.MinThreshold,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		for _, line := range p.BundleLines {
			_, err := pool.Exec(ctx, `INSERT INTO bundle_lines (product_id, component_id, quantity_per_unit, optional)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (product_id, component_id) DO UPDATE SET quantity_per_unit = $3, optional = $4`,
				p.ID, line.ComponentID, line.QuantityPerUnit, line.Optional,
			)
			if err != nil {
				return errors.Wrapf(err, "upsert bundle line %s/%s", p.ID, line.ComponentID)
			}
		}

		for _, g := range p.OptionGroups {
			_, err := pool.Exec(ctx, `INSERT INTO option_groups (id, product_id, name, min_select, max_select)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (id) DO UPDATE SET name = $3, min_select = $4, max_select = $5`,
				g.ID, p.ID, g.Name, g.MinSelect, g.MaxSelect,
			)
			if err != nil {
				return errors.Wrapf(err, "upsert option group %s", g.ID)
			}

			for _, opt := range g.Options {
				_, err := pool.Exec(ctx, `INSERT INTO options (id, group_id, name, price_adjust, active)
					VALUES ($1, $2, $3, $4, TRUE)
					ON CONFLICT (id) DO UPDATE SET name = $3, price_adjust = $4`,
					opt.ID, g.ID, opt.Name, opt.PriceAdjust,
				)
				if err != nil {
					return errors.Wrapf(err, "upsert option %s", opt.ID)
				}

				for _, oc := range opt.Components {
					_, err := pool.Exec(ctx, `INSERT INTO option_components (option_id, component_id, quantity_per_unit)
						VALUES ($1, $2, $3)
						ON CONFLICT (option_id, component_id) DO UPDATE SET quantity_per_unit = $3`,
						opt.ID, oc.ComponentID, oc.QuantityPerUnit,
					)
					if err != nil {
						return errors.Wrapf(err, "upsert option component %s/%s", opt.ID, oc.ComponentID)
					}
				}
			}
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	slog.Info("seeding default API key")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	_, err := pool.Exec(ctx, `INSERT INTO api_keys (id, key_hash, name, scopes, active)
		VALUES ('default', $1, 'Default test key', '{create_order}', TRUE)
		ON CONFLICT (id) DO UPDATE SET key_hash = $1`,
		keyHash,
	)
	if err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", "default"))
	return nil
}
