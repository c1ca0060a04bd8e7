package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/greenhouse/internal/docstore"
	"github.com/xenking/greenhouse/internal/domain/address"
	"github.com/xenking/greenhouse/internal/domain/auth"
	"github.com/xenking/greenhouse/internal/domain/cart"
	"github.com/xenking/greenhouse/internal/domain/checkout"
	"github.com/xenking/greenhouse/internal/domain/order"
	"github.com/xenking/greenhouse/internal/domain/payment"
	"github.com/xenking/greenhouse/internal/domain/product"
	"github.com/xenking/greenhouse/internal/events"
	"github.com/xenking/greenhouse/internal/handler"
	"github.com/xenking/greenhouse/internal/storage/cartcache"
	"github.com/xenking/greenhouse/internal/storage/mongo"
	"github.com/xenking/greenhouse/internal/storage/postgres"
	"github.com/xenking/greenhouse/pkg/health"
	"github.com/xenking/greenhouse/pkg/httpmiddleware"
)

const serviceName = "greenhouse"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("store", cfg.Store.Driver),
	)

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Document store.
	store, closeStore, err := OpenStore(ctx, lg, cfg.Store, healthSvc)
	if err != nil {
		return err
	}
	defer closeStore()

	// Cart snapshots.
	var snaps cart.Snapshots
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = client.Close() }()

		cache := cartcache.New(client, cfg.Redis.CartTTL)
		healthSvc.AddReadinessCheck("redis", 2*time.Second, health.PingCheck("redis", cache))
		snaps = cache
	}
	carts := cart.NewRegistry(snaps, lg.Named("cart"))

	// Domain services.
	catalog := product.NewCatalog(store)
	resolver := product.NewResolver(catalog)
	addresses := address.NewManager(store)

	composer, err := order.NewComposer(store, order.NewNumberGenerator(), m.MeterProvider().Meter(serviceName+"/order"))
	if err != nil {
		return errors.Wrap(err, "create order composer")
	}
	if cfg.RabbitMQ.URL != "" {
		pub, err := events.Dial(cfg.RabbitMQ.URL, lg.Named("events"))
		if err != nil {
			return errors.Wrap(err, "connect order events")
		}
		defer func() { _ = pub.Close() }()
		composer.OnPlaced(pub.Listener())
	}

	identity := auth.NewProvider(store, []byte(cfg.Auth.TokenPepper), cfg.Auth.SessionTTL)
	identity.OnAuthStateChanged(func(p *auth.Principal) {
		if p == nil {
			lg.Debug("Signed out")
			return
		}
		lg.Debug("Signed in", zap.String("uid", p.UID))
	})

	checkoutSvc := checkout.NewService(
		resolver,
		addresses,
		payment.NewSimulator(cfg.Payment.Delay),
		composer,
		m.TracerProvider().Tracer(serviceName+"/checkout"),
	)

	// HTTP handlers.
	h := handler.New(handler.Config{
		ImageBaseURL:     cfg.ImageBaseURL,
		FederationSecret: cfg.Auth.FederationSecret,
	}, handler.Deps{
		Catalog:   catalog,
		Resolver:  resolver,
		Addresses: addresses,
		Checkout:  checkoutSvc,
		Orders:    order.NewHistory(store),
		Carts:     carts,
		Identity:  identity,
	})
	api := h.Routes(
		httpmiddleware.LogRequests(),
		httpmiddleware.Labeler(),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/", api)

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.RequestID(),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{"Location", httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.Instrument(serviceName, m.TracerProvider(), m.MeterProvider()),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// OpenStore connects the configured document store and registers its
// readiness check. The returned func releases the connection.
func OpenStore(ctx context.Context, lg *zap.Logger, cfg StoreConfig, healthSvc *health.Health) (docstore.Store, func(), error) {
	var (
		store   docstore.Store
		closeFn = func() {}
	)
	switch cfg.Driver {
	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.Migrate(pool, lg); err != nil {
			pool.Close()
			return nil, nil, errors.Wrap(err, "run migrations")
		}
		if healthSvc != nil {
			healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck("postgres", pool))
		}
		store, closeFn = postgres.NewDocuments(pool), pool.Close
	case DriverMongo:
		db, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		docs := mongo.NewDocuments(db)
		if healthSvc != nil {
			healthSvc.AddReadinessCheck("mongo", 5*time.Second, health.PingCheck("mongo", docs))
		}
		store = docs
		closeFn = func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := db.Client().Disconnect(ctx); err != nil {
				lg.Warn("Disconnect mongo", zap.Error(err))
			}
		}
	default:
		lg.Warn("Using in-memory document store; data is lost on restart")
		store = docstore.NewMemory()
	}

	if cfg.Breaker.Enabled {
		store = docstore.NewBreaker(store, docstore.BreakerConfig{
			ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
			OpenTimeout:         cfg.Breaker.OpenTimeout,
			HalfOpenRequests:    cfg.Breaker.HalfOpenRequests,
		}, lg.Named("breaker"))
	}
	return store, closeFn, nil
}
