// README: Entry point; loads config, wires services, starts the HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"presto/internal/config"
	httptransport "presto/internal/http"
	"presto/internal/infra"
	"presto/internal/modules/delivery"
	"presto/internal/modules/order"
	"presto/internal/modules/tracking"
	"presto/internal/modules/wallet"
	"presto/internal/realtime"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		log.Fatal("PRESTO_FIREBASE_PROJECT_ID is required")
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		log.Fatal("firebase init", zap.Error(err))
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal("db init", zap.Error(err))
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer func() { _ = redisClient.Close() }()

	registry := realtime.NewRegistry()
	dispatcher := realtime.NewDispatcher(registry, log)

	walletSvc := wallet.NewService(wallet.NewStore(dbPool))

	orderStore := order.NewStore(dbPool)
	orderSvc := order.NewService(orderStore, walletSvc, dispatcher)

	deliverySvc := delivery.NewService(delivery.NewStore(dbPool), orderStore, walletSvc, dispatcher)

	trackingSvc := tracking.NewService(tracking.NewStore(redisClient))

	gateway := realtime.NewGateway(verifier, registry, dispatcher, trackingSvc, log, cfg.Realtime.SendBuffer)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Verifier: verifier,
		Order:    orderSvc,
		Delivery: deliverySvc,
		Tracking: trackingSvc,
		Gateway:  gateway,
		Log:      log,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info("listening", zap.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server", zap.Error(err))
	}
}
