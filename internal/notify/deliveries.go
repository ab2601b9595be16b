package notify

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/taxestimator-api/internal/reminder"
)

// DeliveryLog remembers which channels already delivered a reminder so a
// retried notify task only re-sends through the channels that failed.
type DeliveryLog interface {
	Delivered(ctx context.Context, key string) (bool, error)
	MarkDelivered(ctx context.Context, key string) error
}

// RedisDeliveryLog stores delivery markers as expiring redis keys.
type RedisDeliveryLog struct {
	Client *redis.Client
	Prefix string
	TTL    time.Duration
}

// Delivered reports whether key was marked.
func (l RedisDeliveryLog) Delivered(ctx context.Context, key string) (bool, error) {
	if l.Client == nil {
		return false, errors.New("notify: delivery log redis client not configured")
	}
	n, err := l.Client.Exists(ctx, l.Prefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkDelivered records key until TTL (default 7 days) expires.
func (l RedisDeliveryLog) MarkDelivered(ctx context.Context, key string) error {
	if l.Client == nil {
		return errors.New("notify: delivery log redis client not configured")
	}
	ttl := l.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return l.Client.Set(ctx, l.Prefix+key, 1, ttl).Err()
}

// deliveryKey includes the due date so a rescheduled reminder is announced again.
func deliveryKey(due reminder.Due, channel string) string {
	return due.ID + ":" + due.DueDate + ":" + channel
}
