// Package redisnotify hands notifications to an external mailer through a
// Redis list. Each notification is pushed as one JSON envelope.
package redisnotify

import (
	"context"
	"encoding/json"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"

	insurai "github.com/goliatone/go-insurai"
)

// DefaultListKey is the list the mailer consumes.
const DefaultListKey = "insurai:notifications"

// Pusher is the subset of the redis client the channel needs.
type Pusher interface {
	RPush(ctx context.Context, key string, values ...any) *redis.IntCmd
}

// Envelope is the wire format consumers read from the list.
type Envelope struct {
	Version      int                  `json:"version"`
	Notification insurai.Notification `json:"notification"`
}

// Channel implements insurai.NotificationChannel.
type Channel struct {
	client Pusher
	key    string
}

var _ insurai.NotificationChannel = (*Channel)(nil)

func New(client Pusher, key string) *Channel {
	if key == "" {
		key = DefaultListKey
	}
	return &Channel{client: client, key: key}
}

// NewClient connects to addr and returns a channel backed by it.
func NewClient(addr, password string, db int, key string) (*Channel, *redis.Client, error) {
	if addr == "" {
		return nil, nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return New(client, key), client, nil
}

func (c *Channel) Name() string {
	return "redis"
}

func (c *Channel) Deliver(ctx context.Context, n insurai.Notification) error {
	body, err := json.Marshal(Envelope{Version: 1, Notification: n})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode notification").
			WithMetadata(map[string]any{"notification_id": n.ID})
	}

	if err := c.client.RPush(ctx, c.key, body).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "failed to push notification").
			WithMetadata(map[string]any{"notification_id": n.ID, "key": c.key})
	}
	return nil
}
