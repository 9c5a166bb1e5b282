package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aerotrace/flight-tracker/internal/nats"
	"github.com/aerotrace/flight-tracker/internal/storage"
	"github.com/aerotrace/flight-tracker/internal/types"
)

func main() {
	if err := runRecorder(); err != nil {
		log.Printf("Recorder failed: %v", err)
		os.Exit(1)
	}
}

// runRecorder subscribes to raw telemetry and appends every envelope to
// the rotated audit log.
func runRecorder() error {
	outputDir, natsURL := parseEnvironment()

	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	client, err := nats.New(natsURL)
	if err != nil {
		return fmt.Errorf("failed to create NATS client: %w", err)
	}

	store := storage.New(outputDir)
	if err := store.Start(); err != nil {
		client.Close()
		return fmt.Errorf("failed to start audit storage: %w", err)
	}

	if err := client.SubscribeTelemetry(func(env *types.TelemetryEnvelope) {
		if err := store.WriteLine([]byte(env.Raw)); err != nil {
			log.Printf("Failed to write envelope: %v", err)
		}
	}); err != nil {
		client.Close()
		if stopErr := store.Stop(); stopErr != nil {
			log.Printf("Failed to stop audit storage: %v", stopErr)
		}
		return fmt.Errorf("failed to subscribe to telemetry: %w", err)
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	client.Close()
	if err := store.Stop(); err != nil {
		return fmt.Errorf("failed to stop audit storage: %w", err)
	}
	return nil
}

// parseEnvironment extracts environment variable parsing logic for testability
func parseEnvironment() (string, string) {
	outputDir := os.Getenv("OUTPUT_DIR")
	if outputDir == "" {
		outputDir = "./logs" // Default output directory
	}

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://nats:4222" // Default to Docker service name
	}

	return outputDir, natsURL
}
