// Package main запускает HTTP-сервер пульта розыгрыша.
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

	"github.com/mmeshcher/roulette-draw/internal/config"
	"github.com/mmeshcher/roulette-draw/internal/drawapi"
	"github.com/mmeshcher/roulette-draw/internal/events"
	"github.com/mmeshcher/roulette-draw/internal/handler"
	"github.com/mmeshcher/roulette-draw/internal/middleware"
	"github.com/mmeshcher/roulette-draw/internal/model"
	"github.com/mmeshcher/roulette-draw/internal/repository"
	"github.com/mmeshcher/roulette-draw/internal/service"
	"github.com/mmeshcher/roulette-draw/internal/spin"
	"github.com/mmeshcher/roulette-draw/internal/wheel"
)

const restoreTimeout = 15 * time.Second

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	var store service.SelectionStore
	if cfg.DatabaseURI != "" {
		repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
		store = repo
	} else {
		sugar.Info("DATABASE_URI not set, selected campaign is kept in memory")
		store = repository.NewMemoryRepository()
	}

	if cfg.DrawServiceAddress == "" {
		sugar.Warn("draw service address not set, draws and campaign loading will fail")
	}
	if cfg.OperatorKey == "" {
		sugar.Warn("OPERATOR_KEY not set, any operator can log in")
	}

	client := drawapi.NewClient(cfg.DrawServiceAddress, logger.Named("drawapi"))
	hub := events.NewBroadcaster()

	transition := spin.NewTransition(func(t spin.Transform) {
		hub.Publish(model.Event{Type: model.EventSpin, Payload: t})
	}, cfg.SpinDuration, spin.ParseMode(cfg.SpinMode), spin.SystemScheduler{})

	// В конфигурации ноль отключает паузу, в Options ноль означает значение по умолчанию.
	settleDelay := cfg.SettleDelay
	if settleDelay == 0 {
		settleDelay = -1
	}

	ctrl := service.NewController(client, store, transition, hub, logger.Named("controller"), service.Options{
		PointerSide:      wheel.PointerSide(cfg.PointerSide),
		SettleDelay:      settleDelay,
		ConfirmThreshold: cfg.ConfirmThreshold,
	})
	defer func() {
		if err := ctrl.Close(); err != nil {
			sugar.Warnw("controller close error", "error", err.Error())
		}
	}()

	restoreCtx, cancelRestore := context.WithTimeout(context.Background(), restoreTimeout)
	if err := ctrl.Restore(restoreCtx); err != nil {
		sugar.Warnw("restore selected campaign failed", "error", err.Error())
	}
	cancelRestore()

	secret := cfg.OperatorKey
	if secret == "" {
		secret = "roulette-secret"
	}
	authMiddleware := middleware.NewAuthMiddleware(secret)
	h := handler.NewHandler(ctrl, hub, logger, authMiddleware, cfg.OperatorKey)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting roulette server",
			"addr", cfg.RunAddress,
			"draw_service", cfg.DrawServiceAddress,
			"spin_mode", cfg.SpinMode,
			"spin_duration", cfg.SpinDuration.String(),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		// Соединения потока событий перехвачены у сервера, их закрывает рассыльщик.
		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
