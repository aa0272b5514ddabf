package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakeduel-backend/internal/models"
)

func TestRedisPublisher(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	sub := client.Subscribe(ctx, "stakeduel:events")
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	publisher := NewRedisPublisher(client, "stakeduel:events")
	publisher.BroadcastMatchEvent(models.MatchEvent{
		Type:      models.EventMatchCreated,
		MatchID:   "m1",
		Match:     models.Match{ID: "m1", Player1ID: "alice", Status: models.MatchStatusWaiting},
		Timestamp: testStart,
	})

	select {
	case msg := <-sub.Channel():
		var event models.MatchEvent
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
		assert.Equal(t, models.EventMatchCreated, event.Type)
		assert.Equal(t, "alice", event.Match.Player1ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no event published")
	}
}

func TestRedisPublisherSurvivesOutage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	publisher := NewRedisPublisher(client, "stakeduel:events")
	publisher.timeout = 100 * time.Millisecond
	assert.NotPanics(t, func() {
		publisher.BroadcastMatchEvent(models.MatchEvent{Type: models.EventMatchEnded, MatchID: "m1"})
	})
}

func TestMultiBroadcaster(t *testing.T) {
	first, second := &recordingBroadcaster{}, &recordingBroadcaster{}
	fanout := MultiBroadcaster{first, nil, second}

	fanout.BroadcastMatchEvent(models.MatchEvent{Type: models.EventMatchJoined})

	assert.Equal(t, []models.MatchEventType{models.EventMatchJoined}, first.types())
	assert.Equal(t, []models.MatchEventType{models.EventMatchJoined}, second.types())
}
