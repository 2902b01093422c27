package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"mobilefix/internal/audit"
	devicehandler "mobilefix/internal/devices/handler"
	deviceservice "mobilefix/internal/devices/service"
	devicestore "mobilefix/internal/devices/store"
	"mobilefix/internal/platform/config"
	"mobilefix/internal/platform/httpserver"
	"mobilefix/internal/platform/logger"
	"mobilefix/internal/platform/metrics"
	"mobilefix/internal/platform/postgres"
	repairhandler "mobilefix/internal/repairs/handler"
	repairservice "mobilefix/internal/repairs/service"
	repairstore "mobilefix/internal/repairs/store"
	httptransport "mobilefix/internal/transport/http"
	userhandler "mobilefix/internal/users/handler"
	userservice "mobilefix/internal/users/service"
	userstore "mobilefix/internal/users/store"
)

const auditBuffer = 256

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}

	var (
		users   userservice.UserStore
		devices deviceservice.DeviceStore
		repairs repairservice.RepairStore
	)
	if db != nil {
		defer db.Close()
		users = userstore.NewPostgres(db)
		devices = devicestore.NewPostgres(db)
		repairs = repairstore.NewPostgres(db)
		log.Info("using postgres stores")
	} else {
		repairMem := repairstore.NewMemory()
		deviceMem := devicestore.NewMemory(repairMem)
		repairMem.BindDeviceIndex(deviceMem)
		users = userstore.NewMemory(deviceMem, repairMem)
		devices = deviceMem
		repairs = repairMem
		log.Info("using in-memory stores")
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	publisher, worker := audit.NewPipeline(audit.NewMemoryStore(), auditBuffer)
	worker = worker.WithLogger(log)

	userSvc := userservice.New(users,
		userservice.WithLogger(log),
		userservice.WithAuditPublisher(publisher),
		userservice.WithMetrics(m),
	)
	deviceSvc := deviceservice.New(devices, users,
		deviceservice.WithLogger(log),
		deviceservice.WithAuditPublisher(publisher),
		deviceservice.WithMetrics(m),
	)
	repairSvc := repairservice.New(repairs, devices, users,
		repairservice.WithLogger(log),
		repairservice.WithAuditPublisher(publisher),
		repairservice.WithMetrics(m),
	)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:   log,
		Metrics:  m,
		Gatherer: registry,
		Users:    userhandler.New(userSvc, log),
		Devices:  devicehandler.New(deviceSvc, log),
		Repairs:  repairhandler.New(repairSvc, log),
	})

	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(ctx)
	})
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		publisher.Drain(cfg.ShutdownTimeout)
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
