package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/cart"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/catalog"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/checkout"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/config"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/coupon"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/db"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/events"
	httpapi "github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/http"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/memstore"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/notify"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/order"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/payment"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/pricing"
)

type publisher interface {
	checkout.OrderPublisher
	payment.Publisher
}

// backend is everything that differs between postgres and in-memory storage.
type backend struct {
	catalog   catalog.Repository
	coupons   coupon.Repository
	carts     cart.Repository
	orders    order.Repository
	payments  payment.Repository
	sequences events.SequenceRepository
	close     func()
}

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[mall-service] ", log.LstdFlags|log.Lmicroseconds)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- storage ---
	var (
		store backend
		err   error
	)
	switch cfg.Storage {
	case config.StorageMemory:
		store = memoryBackend(logger)
	default:
		store, err = postgresBackend(ctx, cfg, logger)
		if err != nil {
			logger.Fatalf("storage: %v", err)
		}
	}
	defer store.close()

	// --- AMQP ---
	var (
		conn *amqp.Connection
		pub  publisher = events.NopPublisher{}
	)
	if cfg.PublishEvents || cfg.ConsumePaymentResults {
		conn, err = events.Dial(cfg.RabbitURL)
		if err != nil {
			logger.Fatalf("rabbitmq: %v", err)
		}
		defer conn.Close()
	}
	if cfg.PublishEvents {
		p, err := events.NewPublisher(conn, store.sequences)
		if err != nil {
			logger.Fatalf("publisher: %v", err)
		}
		defer p.Close()
		pub = p
	}

	// --- services ---
	hub := notify.NewHub(logger, cfg.CORSAllowOrigins)
	carts := cart.NewService(store.carts)
	resolver := coupon.NewResolver(store.coupons)
	aggregator := pricing.NewAggregator(store.catalog, resolver, cfg.CatalogConcurrency)
	checkoutSvc := checkout.NewService(carts, aggregator, resolver, store.orders, pub,
		checkout.ParseStalePolicy(cfg.StaleItemPolicy), logger)
	paymentSvc := payment.NewService(store.payments, store.orders, newGateway(cfg, logger), pub, hub, logger, payment.Options{
		ReturnURL:             cfg.PaymentReturnURL,
		DefaultPickupLocation: cfg.CashPickupLocation,
	})

	if cfg.ConsumePaymentResults {
		err := events.StartConsumer(ctx, conn, events.GatewayResultRoutingKey,
			events.GatewayResultHandler(paymentSvc, logger), logger)
		if err != nil {
			logger.Fatalf("start consumer: %v", err)
		}
	}

	// --- HTTP ---
	router := httpapi.NewRouter(httpapi.Deps{
		Logger:   logger,
		Cfg:      cfg,
		Catalog:  store.catalog,
		Carts:    carts,
		Checkout: checkoutSvc,
		Orders:   store.orders,
		Payments: paymentSvc,
		Hub:      hub,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("http listening on %s (storage=%s gateway=%s)", cfg.HTTPAddr, cfg.Storage, cfg.PaymentGatewayMode)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	select {
	case <-ctx.Done():
		logger.Printf("shutdown signal received")
	case err := <-errCh:
		logger.Printf("fatal error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)
	stop()

	logger.Printf("shutdown complete")
}

func postgresBackend(ctx context.Context, cfg config.Config, logger *log.Logger) (backend, error) {
	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseDSN, logger); err != nil {
			return backend{}, err
		}
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		return backend{}, err
	}
	sqlDB, err := db.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		pool.Close()
		return backend{}, err
	}

	return backend{
		catalog:   catalog.NewPostgresRepository(pool),
		coupons:   coupon.NewPostgresRepository(pool),
		carts:     cart.NewRepository(sqlDB),
		orders:    order.NewRepository(sqlDB),
		payments:  payment.NewRepository(sqlDB),
		sequences: events.NewSequenceRepository(sqlDB),
		close: func() {
			_ = sqlDB.Close()
			pool.Close()
		},
	}, nil
}

func memoryBackend(logger *log.Logger) backend {
	m := memstore.New()
	memstore.SeedDemo(m)
	logger.Printf("using in-memory storage with demo data; nothing is persisted")

	return backend{
		catalog:   m,
		coupons:   m,
		carts:     cart.NewMemoryRepository(),
		orders:    m.Orders(),
		payments:  m.Payments(),
		sequences: m,
		close:     func() {},
	}
}

func newGateway(cfg config.Config, logger *log.Logger) payment.Gateway {
	if cfg.PaymentGatewayMode == config.GatewayModeTransbank {
		return payment.NewHTTPGateway(cfg.TransbankBaseURL, cfg.TransbankAPIKeyID, cfg.TransbankAPIKeySecret, 10*time.Second)
	}
	logger.Printf("payment gateway in mock mode; use POST /api/payments/{id}/simulate to settle")
	return payment.NewMockGateway(publicBase(cfg.PaymentReturnURL))
}

// publicBase strips the path of the return URL so the mock redirect points back at this service.
func publicBase(returnURL string) string {
	u, err := url.Parse(returnURL)
	if err != nil || u.Host == "" {
		return returnURL
	}
	return u.Scheme + "://" + u.Host
}
