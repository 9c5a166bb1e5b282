package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aerotrace/flight-tracker/internal/types"
	"github.com/redis/go-redis/v9"
)

// RedisClientInterface defines the Redis operations used by our client
type RedisClientInterface interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// Client caches active flight snapshots for the cheap repeated-read path.
// The engine's in-memory table stays authoritative; entries here expire
// on their own if the tracker dies.
type Client struct {
	client RedisClientInterface
}

// New creates a new Redis client
func New(addr string) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "", // no password set
		DB:       0,  // use default DB
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{client: client}, nil
}

// NewWithClient creates a new Redis client with a custom RedisClientInterface (useful for testing)
func NewWithClient(client RedisClientInterface) *Client {
	return &Client{client: client}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}

// StoreActiveState caches a vehicle's active snapshot
func (c *Client) StoreActiveState(ctx context.Context, state *types.ActiveState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal active state: %w", err)
	}

	key := fmt.Sprintf("active:%s", state.Point.VehicleID)
	return c.client.Set(ctx, key, data, time.Hour).Err()
}

// GetActiveState retrieves a vehicle's cached active snapshot. Returns
// nil without error on a cache miss.
func (c *Client) GetActiveState(ctx context.Context, vehicleID string) (*types.ActiveState, error) {
	key := fmt.Sprintf("active:%s", vehicleID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active state: %w", err)
	}

	var state types.ActiveState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal active state: %w", err)
	}
	return &state, nil
}

// DeleteActiveState evicts a vehicle's cached snapshot on archival
func (c *Client) DeleteActiveState(ctx context.Context, vehicleID string) error {
	key := fmt.Sprintf("active:%s", vehicleID)
	return c.client.Del(ctx, key).Err()
}
