// Package notify is the fire-and-forget seam between the RSVP engine and
// whatever delivers notifications. The engine never retries or verifies
// delivery; implementations log failures and move on.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/whtouche/gather-sub002/internal/models"
	"github.com/whtouche/gather-sub002/pkg/queue"
)

// Notifier receives engine-side events worth telling someone about.
type Notifier interface {
	// RSVPChanged fires when a response is newly created or changed.
	// prev is "" for a first response.
	RSVPChanged(ctx context.Context, eventID, userID uuid.UUID, prev, current models.Response)
	// RSVPWithdrawn fires when a response is deleted.
	RSVPWithdrawn(ctx context.Context, eventID, userID uuid.UUID, prev models.Response)
	// WaitlistOffer fires when a vacated seat is offered to a waitlist entrant.
	WaitlistOffer(ctx context.Context, eventID, userID uuid.UUID, expiresAt time.Time)
}

// Nop discards all notifications. Used in tests and when Redis is absent.
type Nop struct{}

func (Nop) RSVPChanged(context.Context, uuid.UUID, uuid.UUID, models.Response, models.Response) {}
func (Nop) RSVPWithdrawn(context.Context, uuid.UUID, uuid.UUID, models.Response)                {}
func (Nop) WaitlistOffer(context.Context, uuid.UUID, uuid.UUID, time.Time)                      {}

// QueueNotifier enqueues notification jobs onto the Redis job queue for the
// worker to deliver. Enqueue failures are logged, not returned: notification
// delivery never blocks an admission.
type QueueNotifier struct {
	queue  *queue.Queue
	logger *zap.Logger
}

// NewQueueNotifier creates a queue-backed notifier.
func NewQueueNotifier(q *queue.Queue, logger *zap.Logger) *QueueNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueNotifier{queue: q, logger: logger}
}

func (n *QueueNotifier) RSVPChanged(ctx context.Context, eventID, userID uuid.UUID, prev, current models.Response) {
	n.enqueue(ctx, queue.NotificationPayload{
		Kind:     queue.NotifyRSVPChanged,
		EventID:  eventID,
		UserID:   userID,
		Previous: string(prev),
		Current:  string(current),
	})
}

func (n *QueueNotifier) RSVPWithdrawn(ctx context.Context, eventID, userID uuid.UUID, prev models.Response) {
	n.enqueue(ctx, queue.NotificationPayload{
		Kind:     queue.NotifyRSVPWithdrawn,
		EventID:  eventID,
		UserID:   userID,
		Previous: string(prev),
	})
}

func (n *QueueNotifier) WaitlistOffer(ctx context.Context, eventID, userID uuid.UUID, expiresAt time.Time) {
	n.enqueue(ctx, queue.NotificationPayload{
		Kind:      queue.NotifyWaitlistOffer,
		EventID:   eventID,
		UserID:    userID,
		ExpiresAt: &expiresAt,
	})
}

func (n *QueueNotifier) enqueue(ctx context.Context, p queue.NotificationPayload) {
	if err := n.queue.EnqueueNotification(ctx, p); err != nil {
		n.logger.Error("notification enqueue failed",
			zap.Error(err),
			zap.String("kind", p.Kind),
			zap.String("event_id", p.EventID.String()),
			zap.String("user_id", p.UserID.String()))
	}
}
