package notify

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/whtouche/gather-sub002/internal/models"
	"github.com/whtouche/gather-sub002/pkg/queue"
)

func TestQueueNotifierLogsEnqueueFailure(t *testing.T) {
	// A client pointed at a closed port makes every enqueue fail.
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { rdb.Close() })

	core, logs := observer.New(zap.ErrorLevel)
	n := NewQueueNotifier(queue.NewQueue(rdb, zap.NewNop()), zap.New(core))

	eventID, userID := uuid.New(), uuid.New()
	n.RSVPChanged(context.Background(), eventID, userID, "", models.ResponseYes)

	require.Equal(t, 1, logs.Len(), "dropped enqueue must be logged")
	entry := logs.All()[0]
	assert.Equal(t, "notification enqueue failed", entry.Message)
	assert.Equal(t, queue.NotifyRSVPChanged, entry.ContextMap()["kind"])
	assert.Equal(t, eventID.String(), entry.ContextMap()["event_id"])
}
