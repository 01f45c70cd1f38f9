package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/seatmap-services/common/config"
	"github.com/seatmap-services/common/kafka"
	"github.com/seatmap-services/common/logger"
	"github.com/seatmap-services/common/scheduler"
	"github.com/seatmap-services/services/bootstrap"
)

func main() {
	log := logger.Default()

	if err := config.LoadEnvFile(); err != nil {
		log.WithError(err).Warn("Failed to load .env file, using system environment variables")
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to start seat map services")
	}
	defer a.Close(log)

	// ======================= BACKGROUND JOBS =======================
	sweeper := scheduler.NewHoldSweepScheduler(a.HoldUC, cfg.HoldSweepInterval, log)
	sweeper.Start()
	defer sweeper.Stop()

	if cfg.Kafka.ConsumeSeatFeeds && len(cfg.Kafka.Brokers) > 0 {
		consumer, err := kafka.NewSeatStatusConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.SeatStatusTopic, log)
		if err != nil {
			log.WithError(err).Fatal("Failed to create seat status consumer")
		}
		a.AddCloser(consumer.Close)
		go func() {
			if err := consumer.Consume(ctx, a.VenueUC.ApplySeatStatusEvent); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("Seat status consumer stopped")
			}
		}()
		log.With("topic", cfg.Kafka.SeatStatusTopic).Info("Seat status consumer started")
	}

	// ======================= HTTP SERVER =======================
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      requestLogger(log, newRouter(a, cfg, log)),
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
	}

	go func() {
		printRoutes(cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Warn("Received shutdown signal, initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
	log.Info("Server exited")
}

func printRoutes(port string) {
	fmt.Printf("\n========================================\n")
	fmt.Printf("Seat map services listening on :%s\n", port)
	fmt.Printf("========================================\n")
	fmt.Printf("\nVenue Service:\n")
	fmt.Printf("  GET/PUT /api/venues                 - List / upsert venues\n")
	fmt.Printf("  GET/PUT /api/seat-map               - Base seat map / full sync\n")
	fmt.Printf("  GET     /api/seat-map/effective     - Map with overrides applied\n")
	fmt.Printf("  PUT     /api/seats/status           - Out-of-band seat status\n")
	fmt.Printf("\nOverride Service:\n")
	fmt.Printf("  GET/POST/PUT /api/overrides         - List, get, create, update\n")
	fmt.Printf("  PUT     /api/overrides/activate     - Activate\n")
	fmt.Printf("  PUT     /api/overrides/deactivate   - Deactivate\n")
	fmt.Printf("\nHold Service:\n")
	fmt.Printf("  GET/POST/DELETE /api/holds          - Get, reserve, release\n")
	fmt.Printf("  POST    /api/holds/commit           - Mark held seat sold\n")
	fmt.Printf("\nHealth:\n")
	fmt.Printf("  GET  /health\n")
	fmt.Printf("========================================\n\n")
}
