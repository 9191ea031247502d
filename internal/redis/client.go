package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// OrderStatusSnapshot is the cached payload for the short-interval
// polling endpoint.
type OrderStatusSnapshot struct {
	OrderID           uint      `json:"order_id"`
	PaymentStatus     string    `json:"payment_status"`
	OrderStatus       string    `json:"order_status"`
	MpesaReceipt      *string   `json:"mpesa_receipt"`
	CheckoutRequestID *string   `json:"checkout_request_id"`
	LastUpdated       time.Time `json:"last_updated"`
}

func Initialize(redisURL string) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)

	// Test connection
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Provider access-token cache. A miss returns "" with no error so the
// caller can fall through to a fresh token fetch.
func (c *Client) GetAccessToken() (string, error) {
	ctx := context.Background()
	val, err := c.rdb.Get(ctx, "mpesa:access_token").Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", fmt.Errorf("failed to get access token: %w", err)
	}
	return val, nil
}

func (c *Client) SetAccessToken(token string, ttl time.Duration) error {
	ctx := context.Background()
	return c.rdb.Set(ctx, "mpesa:access_token", token, ttl).Err()
}

// Order status snapshot cache for polling clients.
func (c *Client) SetOrderStatus(orderID uint, snapshot *OrderStatusSnapshot, ttl time.Duration) error {
	ctx := context.Background()
	jsonData, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal status snapshot: %w", err)
	}

	key := fmt.Sprintf("order_status:%d", orderID)
	return c.rdb.Set(ctx, key, jsonData, ttl).Err()
}

func (c *Client) GetOrderStatus(orderID uint) (*OrderStatusSnapshot, error) {
	ctx := context.Background()
	key := fmt.Sprintf("order_status:%d", orderID)
	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get status snapshot: %w", err)
	}

	var snapshot OrderStatusSnapshot
	if err := json.Unmarshal([]byte(val), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status snapshot: %w", err)
	}

	return &snapshot, nil
}

func (c *Client) DeleteOrderStatus(orderID uint) error {
	ctx := context.Background()
	key := fmt.Sprintf("order_status:%d", orderID)
	return c.rdb.Del(ctx, key).Err()
}

// Close Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}
