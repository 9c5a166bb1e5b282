package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aerotrace/flight-tracker/internal/config"
	"github.com/aerotrace/flight-tracker/internal/db"
	"github.com/aerotrace/flight-tracker/internal/nats"
	"github.com/aerotrace/flight-tracker/internal/parser"
	"github.com/aerotrace/flight-tracker/internal/redis"
	"github.com/aerotrace/flight-tracker/internal/tracker"
	"github.com/aerotrace/flight-tracker/internal/types"
)

// createClients creates all the required clients for the application
func createClients(cfg *config.Config) (*nats.Client, *db.Client, *redis.Client, error) {
	natsClient, err := nats.New(cfg.NATSURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create NATS client: %w", err)
	}

	dbClient, err := db.New(cfg.DBConnStr)
	if err != nil {
		natsClient.Close()
		return nil, nil, nil, fmt.Errorf("failed to create database client: %w", err)
	}

	redisClient, err := redis.New(cfg.RedisAddr)
	if err != nil {
		natsClient.Close()
		if closeErr := dbClient.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing dbClient: %v\n", closeErr)
		}
		return nil, nil, nil, fmt.Errorf("failed to create Redis client: %w", err)
	}

	return natsClient, dbClient, redisClient, nil
}

// setupEngine creates the engine and restores active flights
func setupEngine(ctx context.Context, cfg *config.Config, dbClient *db.Client, redisClient *redis.Client) (*tracker.Tracker, error) {
	engine := tracker.New(dbClient, redisClient, tracker.Policy{
		StaleAfter:       cfg.StaleAfter,
		NearDestPercent:  cfg.NearDestPercent,
		TerminalStatuses: cfg.TerminalStatuses,
	})
	if err := engine.LoadActive(ctx); err != nil {
		return nil, fmt.Errorf("failed to restore active flights: %w", err)
	}
	engine.Stats().SetDB(dbClient)
	return engine, nil
}

// handleEnvelope parses one raw feed envelope and applies it to the engine
func handleEnvelope(ctx context.Context, engine *tracker.Tracker, env *types.TelemetryEnvelope) {
	report, err := parser.ParseReport(env.Raw, time.Now())
	if err != nil {
		var verr *types.ValidationError
		if errors.As(err, &verr) {
			log.Printf("Rejected telemetry from %s: %v", env.Source, verr)
		} else {
			log.Printf("Failed to parse telemetry from %s: %v", env.Source, err)
		}
		return
	}

	if _, err := engine.IngestReport(ctx, report); err != nil {
		log.Printf("Failed to ingest telemetry for %s: %v", report.VehicleID, err)
	}
}

// logStats periodically logs engine statistics
func logStats(ctx context.Context, engine *tracker.Tracker) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Printf("Statistics:\n%s", engine.Stats())
		}
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	natsClient, dbClient, redisClient, err := createClients(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, err := setupEngine(ctx, cfg, dbClient, redisClient)
	if err != nil {
		natsClient.Close()
		if err := dbClient.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "error closing dbClient: %v\n", err)
		}
		if err := redisClient.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "error closing redisClient: %v\n", err)
		}
		return err
	}

	// Background lifecycle passes and statistics
	go engine.Run(ctx, cfg.LifecycleInterval)
	go logStats(ctx, engine)
	go engine.Stats().StartPersistence(ctx, 5*time.Minute)

	if err := natsClient.SubscribeTelemetry(func(env *types.TelemetryEnvelope) {
		handleEnvelope(ctx, engine, env)
	}); err != nil {
		natsClient.Close()
		return fmt.Errorf("failed to subscribe to telemetry: %w", err)
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	cancel()
	natsClient.Close()
	if err := dbClient.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "error closing dbClient: %v\n", err)
	}
	if err := redisClient.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "error closing redisClient: %v\n", err)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Printf("Tracker failed: %v", err)
		os.Exit(1)
	}
}
