package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/whtouche/gather-sub002/internal/auth"
	"github.com/whtouche/gather-sub002/internal/events"
	"github.com/whtouche/gather-sub002/internal/messaging"
	"github.com/whtouche/gather-sub002/pkg/mailer"
	"github.com/whtouche/gather-sub002/pkg/queue"
)

// Processor consumes notification and mass-message jobs and delivers them by
// email.
type Processor struct {
	queue     *queue.Queue
	mailer    *mailer.Mailer
	users     *auth.Repository
	events    *events.Repository
	messaging *messaging.Repository
	logger    *zap.Logger
}

// NewProcessor creates a job processor.
func NewProcessor(q *queue.Queue, m *mailer.Mailer, users *auth.Repository, events *events.Repository, msgRepo *messaging.Repository, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{queue: q, mailer: m, users: users, events: events, messaging: msgRepo, logger: logger}
}

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeNotification:
		return p.processNotification(ctx, job)
	case queue.JobTypeMassMessage:
		return p.processMassMessage(ctx, job)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (p *Processor) processNotification(ctx context.Context, job *queue.Job) error {
	var payload queue.NotificationPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	user, err := p.users.GetByID(ctx, payload.UserID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	ev, err := p.events.GetByID(ctx, payload.EventID)
	if err != nil {
		return fmt.Errorf("load event: %w", err)
	}
	if ev == nil {
		// Event deleted after the job was queued; nothing to deliver.
		p.logger.Info("notification dropped, event gone",
			zap.String("event_id", payload.EventID.String()))
		return nil
	}

	var subject, body string
	switch payload.Kind {
	case queue.NotifyRSVPChanged:
		subject = fmt.Sprintf("RSVP updated for %s", ev.Title)
		body = fmt.Sprintf("Hi %s,\n\nYour RSVP for %q is now %s.\n", user.FullName, ev.Title, payload.Current)
	case queue.NotifyRSVPWithdrawn:
		subject = fmt.Sprintf("RSVP withdrawn for %s", ev.Title)
		body = fmt.Sprintf("Hi %s,\n\nYour RSVP for %q has been withdrawn.\n", user.FullName, ev.Title)
	case queue.NotifyWaitlistOffer:
		subject = fmt.Sprintf("A seat opened up for %s", ev.Title)
		body = fmt.Sprintf("Hi %s,\n\nA seat for %q is yours if you claim it", user.FullName, ev.Title)
		if payload.ExpiresAt != nil {
			body += fmt.Sprintf(" before %s", payload.ExpiresAt.Format(time.RFC1123))
		}
		body += ".\n"
	default:
		return fmt.Errorf("unknown notification kind: %s", payload.Kind)
	}

	if err := p.mailer.Send(user.Email, subject, body); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	p.logger.Info("notification sent",
		zap.String("kind", payload.Kind),
		zap.String("user_id", payload.UserID.String()),
		zap.String("event_id", payload.EventID.String()))
	return nil
}

func (p *Processor) processMassMessage(ctx context.Context, job *queue.Job) error {
	var payload queue.MassMessagePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := p.mailer.Send(payload.RecipientEmail, payload.Subject, payload.Body); err != nil {
		if job.Attempt+1 >= queue.MaxRetries {
			if mErr := p.messaging.MarkFailed(ctx, payload.DeliveryID, err.Error()); mErr != nil {
				p.logger.Error("mark delivery failed", zap.Error(mErr))
			}
		}
		return fmt.Errorf("send mass message: %w", err)
	}

	if err := p.messaging.MarkSent(ctx, payload.DeliveryID, time.Now()); err != nil {
		p.logger.Error("mark delivery sent", zap.Error(err),
			zap.String("delivery_id", payload.DeliveryID.String()))
	}
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker stopping")
			return
		default:
		}

		job, origin, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job, origin); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
		}
	}
}
