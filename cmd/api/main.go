package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-marketplace-orders/internal/analytics"
	"github.com/ariefcatur/go-marketplace-orders/internal/auth"
	"github.com/ariefcatur/go-marketplace-orders/internal/config"
	"github.com/ariefcatur/go-marketplace-orders/internal/filestore"
	"github.com/ariefcatur/go-marketplace-orders/internal/httpx"
	"github.com/ariefcatur/go-marketplace-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-marketplace-orders/internal/kafka"
	"github.com/ariefcatur/go-marketplace-orders/internal/memstore"
	"github.com/ariefcatur/go-marketplace-orders/internal/metrics"
	"github.com/ariefcatur/go-marketplace-orders/internal/notify"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders/internal/postgres"
	"github.com/ariefcatur/go-marketplace-orders/internal/redisx"
	"github.com/ariefcatur/go-marketplace-orders/internal/telemetry"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)
	if err := run(log); err != nil {
		log.Error("api exited", "err", err)
		os.Exit(1)
	}
}

type storage struct {
	store  orders.Store
	ledger inventory.Ledger
	source analytics.Source
	close  func()
}

func openStorage(ctx context.Context, cfg config.Config, log *slog.Logger) (storage, error) {
	if cfg.StorageDriver == config.StorageMemory {
		log.Warn("using in-memory storage; data is lost on restart")
		m := memstore.NewOrders()
		return storage{store: m, ledger: memstore.NewProducts(), source: m, close: func() {}}, nil
	}

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return storage{}, fmt.Errorf("db connect: %w", err)
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return storage{}, err
	}
	repo := &orders.Repo{DB: db}
	return storage{store: repo, ledger: &inventory.Repo{DB: db}, source: repo, close: db.Close}, nil
}

func run(log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	st, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	files, err := filestore.NewLocal(cfg.UploadDir)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	serverMetrics := metrics.NewServerMetrics(reg, "api")
	orderMetrics := metrics.NewOrders(reg)

	api := &httpx.API{
		Inventory: &inventory.Service{Ledger: st.ledger},
		Analytics: &analytics.Service{Source: st.source, Markets: cfg.Markets, Loc: cfg.Location()},
		Verifier:  auth.NewVerifier(cfg.JWTSecret),
		Log:       log,
	}
	svc := &orders.Service{
		Store:   st.store,
		Ledger:  st.ledger,
		Files:   files,
		Metrics: orderMetrics,
		Log:     log,
		Opts: orders.Options{
			RollbackOnFailure: cfg.RollbackOnFailure,
			StrictTransitions: cfg.StrictTransitions,
			DeliveryFeeCents:  cfg.DeliveryFeeCents,
		},
	}
	api.Orders = svc

	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable; idempotency and notification feed will fail until it is back", "err", err)
		}
		api.Idem = &redisx.Idempotency{RDB: rdb}
		api.Feed = &notify.Reader{Feed: &redisx.Feed{RDB: rdb}}
	}

	if len(cfg.KafkaBrokers) > 0 {
		pOrders := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, log)
		pOrders.Start(ctx)
		pStock := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStockLow, 1024, log)
		pStock.Start(ctx)
		defer func() {
			pOrders.Close()
			pStock.Close()
			pOrders.WaitClosed()
			pStock.WaitClosed()
		}()
		svc.Notifier = &notify.KafkaNotifier{Orders: pOrders, Stock: pStock, Producer: cfg.ServiceName}
	}

	router := httpx.NewRouter(serverMetrics, metrics.Handler(reg))
	api.Register(router)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http listening", "addr", cfg.HTTPAddr, "storage", cfg.StorageDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
