package redis

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"gotogether/internal/chat"
)

const alertChannelPrefix = "chat:alerts:"

// AlertPublisher fans chat alerts out over Redis pub/sub, one channel per
// user, for push gateways and other server instances to pick up.
type AlertPublisher struct {
	client *redis.Client
}

// NewAlertPublisher creates a new AlertPublisher.
func NewAlertPublisher(client *redis.Client) *AlertPublisher {
	return &AlertPublisher{client: client}
}

// AlertChannel returns the pub/sub channel carrying a user's alerts.
func AlertChannel(userID string) string {
	return alertChannelPrefix + userID
}

// PublishAlert publishes alert on the user's channel.
func (p *AlertPublisher) PublishAlert(ctx context.Context, userID string, alert chat.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, AlertChannel(userID), data).Err()
}
