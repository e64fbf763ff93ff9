// Command seed-db loads demo listings, coupons and operator API keys.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/thriftx/storefront/internal/domain/auth"
	"github.com/thriftx/storefront/internal/domain/coupon"
	"github.com/thriftx/storefront/internal/domain/pricing"
	"github.com/thriftx/storefront/internal/domain/product"
	"github.com/thriftx/storefront/internal/storage/postgres"
)

type productJSON struct {
	ID        string `json:"id"`
	SellerID  string `json:"sellerId"`
	Name      string `json:"name"`
	Brand     string `json:"brand"`
	Size      string `json:"size"`
	Condition string `json:"condition"`
	Category  string `json:"category"`
	Price     int64  `json:"price"`
	Stock     int    `json:"stock"`
	Image     struct {
		Thumbnail string `json:"thumbnail"`
		Mobile    string `json:"mobile"`
		Tablet    string `json:"tablet"`
		Desktop   string `json:"desktop"`
	} `json:"image"`
}

func (p productJSON) toDomain(now time.Time) (*product.Product, error) {
	if p.ID == "" || p.SellerID == "" || p.Name == "" {
		return nil, errors.Errorf("product %q: id, sellerId and name are required", p.ID)
	}
	if p.Price < 0 || p.Stock < 0 {
		return nil, errors.Errorf("product %q: price and stock must not be negative", p.ID)
	}
	status := product.StatusAvailable
	if p.Stock == 0 {
		status = product.StatusSold
	}
	return &product.Product{
		ID:        p.ID,
		SellerID:  p.SellerID,
		Name:      p.Name,
		Brand:     p.Brand,
		Size:      p.Size,
		Condition: p.Condition,
		Category:  p.Category,
		Price:     p.Price,
		Stock:     p.Stock,
		Status:    status,
		Image: product.Image{
			Thumbnail: p.Image.Thumbnail,
			Mobile:    p.Image.Mobile,
			Tablet:    p.Image.Tablet,
			Desktop:   p.Image.Desktop,
		},
		CreatedAt: now,
	}, nil
}

type options struct {
	databaseURL  string
	productsFile string
	adminKey     string
	sellerKey    string
	sellerID     string
	pepper       string
}

func main() {
	var opts options

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&opts.adminKey, "admin-key", "", "admin API key to seed (or THRIFTX_SEED_ADMIN_KEY env)")
	flag.StringVar(&opts.sellerKey, "seller-key", "", "seller API key to seed (or THRIFTX_SEED_SELLER_KEY env)")
	flag.StringVar(&opts.sellerID, "seller-id", "seller-ana", "seller the seeded seller key acts for")
	flag.StringVar(&opts.pepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or THRIFTX_API_KEY_PEPPER env)")
	flag.Parse()

	opts.databaseURL = orEnv(opts.databaseURL, "DATABASE_URL")
	opts.adminKey = orEnv(opts.adminKey, "THRIFTX_SEED_ADMIN_KEY")
	opts.sellerKey = orEnv(opts.sellerKey, "THRIFTX_SEED_SELLER_KEY")
	opts.pepper = orEnv(opts.pepper, "THRIFTX_API_KEY_PEPPER")

	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if opts.adminKey == "" {
		slog.Error("admin API key is required: set --admin-key or THRIFTX_SEED_ADMIN_KEY")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func orEnv(v, key string) string {
	if v != "" {
		return v
	}
	return os.Getenv(key)
}

func run(ctx context.Context, opts options) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, postgres.NewProductRepository(pool), opts.productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := postgres.NewCouponRepository(pool).UpsertBatch(ctx, demoCoupons(time.Now())); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	slog.Info("upserted demo coupons")

	if err := seedAPIKeys(ctx, postgres.NewAPIKeyRepository(pool), opts); err != nil {
		return errors.Wrap(err, "seed api keys")
	}

	return nil
}

func seedProducts(ctx context.Context, repo *postgres.ProductRepository, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	now := time.Now().UTC()
	for _, pj := range products {
		p, err := pj.toDomain(now)
		if err != nil {
			return err
		}
		if err := repo.Upsert(ctx, p); err != nil {
			return err
		}
		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

// demoCoupons covers every discount policy path: a percent code, a flat code
// with a minimum, an expired one and a disabled one.
func demoCoupons(now time.Time) []coupon.Coupon {
	created := now.UTC()
	return []coupon.Coupon{
		{
			Coupon: pricing.Coupon{
				Code:          "WELCOME10",
				DiscountType:  pricing.DiscountPercent,
				DiscountValue: decimal.NewFromInt(10),
				Status:        pricing.StatusActive,
			},
			Description: "10% off any order",
			CreatedAt:   created,
		},
		{
			Coupon: pricing.Coupon{
				Code:          "SAVE500",
				DiscountType:  pricing.DiscountFlat,
				DiscountValue: decimal.NewFromInt(500),
				MinOrderValue: 5000,
				Status:        pricing.StatusActive,
			},
			Description: "500 off orders of 5000 or more",
			CreatedAt:   created,
		},
		{
			Coupon: pricing.Coupon{
				Code:          "SUMMER25",
				DiscountType:  pricing.DiscountPercent,
				DiscountValue: decimal.NewFromInt(25),
				Status:        pricing.StatusActive,
				ExpiresAt:     pricing.ExpiryEndOfDay(created.AddDate(0, 0, -1)),
			},
			Description: "Last summer's sale, expired",
			CreatedAt:   created,
		},
		{
			Coupon: pricing.Coupon{
				Code:          "STAFF50",
				DiscountType:  pricing.DiscountPercent,
				DiscountValue: decimal.NewFromInt(50),
				Status:        pricing.StatusDisabled,
			},
			Description: "Staff discount, disabled",
			CreatedAt:   created,
		},
	}
}

func seedAPIKeys(ctx context.Context, repo *postgres.APIKeyRepository, opts options) error {
	keys := []*auth.APIKeyInfo{{
		ID:      "admin",
		KeyHash: auth.HashKey([]byte(opts.pepper), opts.adminKey),
		Name:    "operations",
		Scopes:  []auth.Scope{auth.ScopeAdmin},
	}}
	if opts.sellerKey != "" {
		keys = append(keys, &auth.APIKeyInfo{
			ID:      "seller-" + opts.sellerID,
			KeyHash: auth.HashKey([]byte(opts.pepper), opts.sellerKey),
			Name:    opts.sellerID,
			Scopes:  []auth.Scope{auth.ScopeSeller},
		})
	}

	for _, k := range keys {
		if err := repo.Upsert(ctx, k); err != nil {
			return errors.Wrapf(err, "upsert api key %s", k.ID)
		}
		slog.Info("upserted API key", slog.String("id", k.ID), slog.String("name", k.Name))
	}
	return nil
}
