package rsvp

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/whtouche/gather-sub002/internal/events"
	"github.com/whtouche/gather-sub002/internal/models"
	"github.com/whtouche/gather-sub002/internal/notify"
	"github.com/whtouche/gather-sub002/internal/questionnaire"
)

// AdmitParams is one capacity-checked upsert: the RSVP write plus its
// validated answers, committed together or not at all.
type AdmitParams struct {
	EventID  uuid.UUID
	UserID   uuid.UUID
	Response models.Response
	Answers  []questionnaire.ValidatedAnswer
}

// Store is the transactional persistence the admission controller requires.
// Admit must check the YES count against capacity and perform the upsert as
// one atomic unit - that is where the capacity invariant actually lives, since
// handlers run concurrently across processes. It returns the persisted RSVP
// and the previous response ("" when this is the user's first), or
// ErrCapacityFull. Withdraw deletes the RSVP and returns the deleted response,
// or ErrNoRSVP.
type Store interface {
	GetEvent(ctx context.Context, eventID uuid.UUID) (*models.Event, error)
	Admit(ctx context.Context, p AdmitParams) (*models.RSVP, models.Response, error)
	Withdraw(ctx context.Context, eventID, userID uuid.UUID) (models.Response, error)
}

// QuestionSource supplies the event's questionnaire definitions.
type QuestionSource interface {
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Question, error)
}

// Promoter advances the event's waitlist after a YES seat is vacated.
type Promoter interface {
	PromoteNext(ctx context.Context, eventID uuid.UUID) error
}

// Options tune admission side effects.
type Options struct {
	// NotifyOnResubmit also fires the changed-notification when a user
	// resubmits the same response. Default is to notify only on actual change.
	NotifyOnResubmit bool
}

// Service is the single authority for RSVP state transitions: it gates by
// effective lifecycle state, enforces capacity, validates questionnaire
// answers and triggers waitlist promotion.
type Service struct {
	store     Store
	questions QuestionSource
	promoter  Promoter
	notifier  notify.Notifier
	opts      Options
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates the admission controller.
func NewService(store Store, questions QuestionSource, promoter Promoter, notifier notify.Notifier, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		store:     store,
		questions: questions,
		promoter:  promoter,
		notifier:  notifier,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// Submit admits or rejects a requested RSVP response. On success the RSVP is
// persisted (upserted, reconfirmation flag cleared) together with any
// validated questionnaire answers; failures leave no partial state.
func (s *Service) Submit(ctx context.Context, eventID, userID uuid.UUID, response models.Response, answers map[uuid.UUID]any) (*models.RSVP, error) {
	if !response.Valid() {
		return nil, errInvalidResponse(response)
	}

	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, errInternal(err)
	}
	if ev == nil {
		return nil, errNotFound("event")
	}
	if state := events.EffectiveState(ev, s.now()); state != models.EffectivePublished {
		return nil, errStateBlocked(state)
	}

	// Validation runs whenever answers were supplied, and always for YES so
	// required questions are enforced even with an empty submission.
	var validated []questionnaire.ValidatedAnswer
	if len(answers) > 0 || response == models.ResponseYes {
		qs, err := s.questions.ListByEvent(ctx, eventID)
		if err != nil {
			return nil, errInternal(err)
		}
		validated, err = questionnaire.Validate(qs, answers, response)
		if err != nil {
			return nil, err
		}
	}

	r, prev, err := s.store.Admit(ctx, AdmitParams{
		EventID:  eventID,
		UserID:   userID,
		Response: response,
		Answers:  validated,
	})
	if err != nil {
		if errors.Is(err, ErrCapacityFull) {
			if ev.WaitlistEnabled {
				return nil, &AdmissionError{Kind: KindAtCapacityWaitlistAvailable, Message: "event is at capacity; the waitlist is open"}
			}
			return nil, &AdmissionError{Kind: KindAtCapacity, Message: "event is at capacity"}
		}
		return nil, errInternal(err)
	}

	if prev != response || s.opts.NotifyOnResubmit {
		s.notifier.RSVPChanged(ctx, eventID, userID, prev, response)
	}

	if s.seatVacated(ev, prev, response) {
		if err := s.promoter.PromoteNext(ctx, eventID); err != nil {
			// The RSVP is committed; the reaper loop re-drives promotion, so
			// log rather than surface a failure for an admitted response.
			s.logger.Error("waitlist promotion failed",
				zap.Error(err), zap.String("event_id", eventID.String()))
		}
	}
	return r, nil
}

// Withdraw deletes the user's RSVP, gated by the same lifecycle rule as
// submission.
func (s *Service) Withdraw(ctx context.Context, eventID, userID uuid.UUID) error {
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return errInternal(err)
	}
	if ev == nil {
		return errNotFound("event")
	}
	if state := events.EffectiveState(ev, s.now()); state != models.EffectivePublished {
		return errStateBlocked(state)
	}

	prev, err := s.store.Withdraw(ctx, eventID, userID)
	if err != nil {
		if errors.Is(err, ErrNoRSVP) {
			return errNotFound("rsvp")
		}
		return errInternal(err)
	}

	s.notifier.RSVPWithdrawn(ctx, eventID, userID, prev)

	if s.seatVacated(ev, prev, "") {
		if err := s.promoter.PromoteNext(ctx, eventID); err != nil {
			s.logger.Error("waitlist promotion failed",
				zap.Error(err), zap.String("event_id", eventID.String()))
		}
	}
	return nil
}

// seatVacated reports whether moving off a YES on a capacity-and-waitlist
// event freed a confirmed seat.
func (s *Service) seatVacated(ev *models.Event, prev, next models.Response) bool {
	return prev == models.ResponseYes && next != models.ResponseYes &&
		ev.HasCapacity() && ev.WaitlistEnabled
}
