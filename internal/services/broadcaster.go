package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"stakeduel-backend/internal/models"
)

// Broadcaster delivers match lifecycle events. Delivery is best effort and
// never affects the match outcome.
type Broadcaster interface {
	BroadcastMatchEvent(event models.MatchEvent)
}

type NoopBroadcaster struct{}

func (NoopBroadcaster) BroadcastMatchEvent(models.MatchEvent) {}

// MultiBroadcaster fans each event out to every member.
type MultiBroadcaster []Broadcaster

func (m MultiBroadcaster) BroadcastMatchEvent(event models.MatchEvent) {
	for _, b := range m {
		if b != nil {
			b.BroadcastMatchEvent(event)
		}
	}
}

// RedisPublisher publishes events as JSON on a pub/sub channel so other
// processes can relay them.
type RedisPublisher struct {
	client  goredis.UniversalClient
	channel string
	timeout time.Duration
}

func NewRedisPublisher(client goredis.UniversalClient, channel string) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		channel: channel,
		timeout: 2 * time.Second,
	}
}

func (p *RedisPublisher) BroadcastMatchEvent(event models.MatchEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("[EVENTS] failed to encode %s for %s: %v", event.Type, event.MatchID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		log.Printf("[EVENTS] failed to publish %s for %s: %v", event.Type, event.MatchID, err)
	}
}
