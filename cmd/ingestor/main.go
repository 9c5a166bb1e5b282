package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aerotrace/flight-tracker/internal/nats"
	"github.com/aerotrace/flight-tracker/internal/types"
)

// NATSClient interface for testability
type NATSClient interface {
	PublishTelemetry(env *types.TelemetryEnvelope) error
	Close()
}

func main() {
	// Load configuration
	sources := os.Getenv("SOURCES")
	if sources == "" {
		log.Fatal("SOURCES environment variable is required")
	}

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://nats:4222" // Default to Docker service name
	}

	client, err := nats.New(natsURL)
	if err != nil {
		log.Printf("Failed to create NATS client: %v", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start ingesting from each feed
	for _, source := range strings.Split(sources, ",") {
		source = strings.TrimSpace(source)
		go ingestSource(ctx, source, client)
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	cancel()
	time.Sleep(time.Second) // Give time for goroutines to clean up
}

func ingestSource(ctx context.Context, source string, client NATSClient) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			if err := connectAndIngest(ctx, source, client); err != nil {
				log.Printf("Error from source %s: %v", source, err)
				time.Sleep(5 * time.Second) // Wait before retrying
			}
		}
	}
}

// connectAndIngest reads newline-delimited telemetry reports from one
// TCP feed and publishes each line as an envelope.
func connectAndIngest(ctx context.Context, source string, client NATSClient) error {
	conn, err := net.Dial("tcp", source)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			log.Printf("Warning: failed to set keepalive for %s: %v", source, err)
		}
		if err := tcpConn.SetNoDelay(true); err != nil {
			log.Printf("Warning: failed to set no delay for %s: %v", source, err)
		}
	}

	log.Printf("Connected to %s", source)

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		env := &types.TelemetryEnvelope{
			Raw:       line,
			Timestamp: time.Now().UTC(),
			Source:    source,
		}
		if err := client.PublishTelemetry(env); err != nil {
			log.Printf("Failed to publish from %s: %v", source, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read failed: %w", err)
	}
	return fmt.Errorf("connection closed")
}
