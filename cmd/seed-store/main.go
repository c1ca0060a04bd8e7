// Command seed-store loads the plant catalog into the document store.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/greenhouse/internal/app"
	"github.com/xenking/greenhouse/internal/docstore"
	"github.com/xenking/greenhouse/internal/domain/product"
)

func main() {
	var (
		cfg          app.StoreConfig
		productsFile string
		workers      int
	)
	flag.StringVar(&cfg.Driver, "driver", app.DriverPostgres, "document store driver: postgres or mongo")
	flag.StringVar(&cfg.PostgresURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&cfg.MongoURI, "mongo-uri", "", "MongoDB connection URI (or MONGO_URI env)")
	flag.StringVar(&cfg.MongoDatabase, "mongo-db", "greenhouse", "MongoDB database name")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "products JSON file, optionally .gz")
	flag.IntVar(&workers, "workers", 8, "concurrent upserts")
	flag.Parse()

	if cfg.PostgresURL == "" {
		cfg.PostgresURL = os.Getenv("DATABASE_URL")
	}
	if cfg.MongoURI == "" {
		cfg.MongoURI = os.Getenv("MONGO_URI")
	}

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, cfg, productsFile, workers); err != nil {
		lg.Error("Seed failed", zap.Error(err))
		cancel()
		os.Exit(1)
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, cfg app.StoreConfig, path string, workers int) error {
	switch cfg.Driver {
	case app.DriverPostgres:
		if cfg.PostgresURL == "" {
			return errors.New("database URL is required: set --database-url or DATABASE_URL")
		}
	case app.DriverMongo:
		if cfg.MongoURI == "" {
			return errors.New("mongo URI is required: set --mongo-uri or MONGO_URI")
		}
	default:
		return errors.Errorf("seeding needs a persistent driver, got %q", cfg.Driver)
	}

	f, err := openProducts(path)
	if err != nil {
		return err
	}
	products, err := parseProducts(f, time.Now().UTC())
	_ = f.Close()
	if err != nil {
		return err
	}
	lg.Info("Parsed products", zap.String("file", path), zap.Int("count", len(products)))

	store, closeStore, err := app.OpenStore(ctx, lg, cfg, nil)
	if err != nil {
		return err
	}
	defer closeStore()

	return upsertAll(ctx, lg, store, products, workers)
}

// upsertAll writes products with at most workers requests in flight.
func upsertAll(ctx context.Context, lg *zap.Logger, store docstore.Store, products []product.Product, workers int) error {
	catalog := product.NewCatalog(store)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, workers))
	for _, p := range products {
		g.Go(func() error {
			if _, err := catalog.Upsert(ctx, p); err != nil {
				return errors.Wrapf(err, "upsert product %s", p.ID)
			}
			lg.Debug("Upserted product", zap.String("id", p.ID))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	lg.Info("Upserted products", zap.Int("count", len(products)))
	return nil
}
