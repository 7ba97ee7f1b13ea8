// Package main запускает HTTP-сервер витрины.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/decorom-storefront/internal/cache"
	"github.com/mmeshcher/decorom-storefront/internal/config"
	"github.com/mmeshcher/decorom-storefront/internal/gateway"
	"github.com/mmeshcher/decorom-storefront/internal/handler"
	"github.com/mmeshcher/decorom-storefront/internal/metrics"
	"github.com/mmeshcher/decorom-storefront/internal/notify"
	"github.com/mmeshcher/decorom-storefront/internal/repository"
	"github.com/mmeshcher/decorom-storefront/internal/service"
)

const (
	serviceName     = "storefront"
	callbackReplay  = 24 * time.Hour
	shutdownTimeout = 5 * time.Second
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	var payments service.PaymentGateway
	if cfg.MockGateway() {
		sugar.Warn("payment gateway URL is not set, using mock gateway")
		payments = gateway.NewMockClient(cfg.Credentials(), cfg.GatewayOptions(), logger)
	} else {
		payments = gateway.NewClient(cfg.Credentials(), cfg.GatewayOptions(), logger)
	}

	var notifier service.Notifier = notify.NewLogNotifier(logger)
	if brokers := notify.ParseBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		kn := notify.NewKafkaNotifier(brokers, cfg.Topic, logger)
		defer kn.Close()
		notifier = kn
	}

	m := metrics.New()
	opts := []service.Option{service.WithMetrics(m)}

	if cfg.RedisAddress != "" {
		rc := cache.NewRedisCache(cfg.RedisAddress, serviceName)
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := rc.Ping(pingCtx); err != nil {
			sugar.Warnw("redis is unavailable, callback replay cache disabled", "error", err.Error())
			_ = rc.Close()
		} else {
			defer rc.Close()
			opts = append(opts, service.WithReplayCache(rc, callbackReplay))
		}
		cancel()
	}

	svc := service.NewService(repo, payments, gateway.NewVerifier(cfg.Credentials()), notifier, logger, opts...)
	defer svc.Close()

	var handlerOpts []handler.Option
	if cfg.TrustedProxy {
		handlerOpts = append(handlerOpts, handler.WithTrustedProxy())
	}
	h := handler.NewHandler(svc, logger, m, handlerOpts...)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting storefront server", "addr", cfg.RunAddress, "mockGateway", cfg.MockGateway())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Errorw("application terminated with error", "error", err)
	}
}
