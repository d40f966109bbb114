package waitlist

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/whtouche/gather-sub002/internal/models"
	"github.com/whtouche/gather-sub002/internal/notify"
)

var (
	// ErrAlreadyConfirmed means the user already holds a YES seat and cannot
	// also wait for one.
	ErrAlreadyConfirmed = errors.New("user already holds a confirmed seat")
	// ErrAlreadyWaitlisted means the user is already on this event's waitlist.
	ErrAlreadyWaitlisted = errors.New("user is already on the waitlist")
	// ErrNotWaitlisted means no entry exists for the user on this event.
	ErrNotWaitlisted = errors.New("user is not on the waitlist")
	// ErrNotOffered means the user has no active seat offer to claim.
	ErrNotOffered = errors.New("no active seat offer")
	// ErrWaitlistClosed means the event does not run a waitlist.
	ErrWaitlistClosed = errors.New("event has no waitlist")
	// ErrEventNotFound means the event does not exist.
	ErrEventNotFound = errors.New("event not found")
)

// Store is the waitlist persistence contract. OfferNext must atomically pick
// the earliest entry without an offer (joined_at order, seq tiebreak) and
// stamp the offer on it; it returns nil when no entry is eligible.
type Store interface {
	Join(ctx context.Context, eventID, userID uuid.UUID) (*models.WaitlistEntry, error)
	Leave(ctx context.Context, eventID, userID uuid.UUID) error
	Get(ctx context.Context, eventID, userID uuid.UUID) (*models.WaitlistEntry, error)
	Position(ctx context.Context, eventID, userID uuid.UUID) (int, error)
	OfferNext(ctx context.Context, eventID uuid.UUID, offeredAt, expiresAt time.Time) (*models.WaitlistEntry, error)
	ExpiredOffers(ctx context.Context, now time.Time, limit int) ([]models.WaitlistEntry, error)
	Remove(ctx context.Context, entryID uuid.UUID) error
}

// EventSource supplies event records for gating.
type EventSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// Admitter is how a claimed seat becomes a YES: always through the admission
// controller, never by the waitlist writing RSVPs itself.
type Admitter interface {
	Submit(ctx context.Context, eventID, userID uuid.UUID, response models.Response, answers map[uuid.UUID]any) (*models.RSVP, error)
}

// Service runs the promotion protocol: FIFO seat offers with a bounded claim
// window, and the reap cycle that expires unclaimed offers.
type Service struct {
	store       Store
	events      EventSource
	notifier    notify.Notifier
	admitter    Admitter
	claimWindow time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewService creates the waitlist service. claimWindow bounds how long a seat
// offer stays claimable.
func NewService(store Store, events EventSource, notifier notify.Notifier, claimWindow time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		store:       store,
		events:      events,
		notifier:    notifier,
		claimWindow: claimWindow,
		logger:      logger,
		now:         time.Now,
	}
}

// PromoteNext offers the vacated seat to the earliest-joined entrant without
// an outstanding offer. An empty waitlist is a no-op, not an error. The offer
// does not convert anyone to YES - claiming stays a user action.
func (s *Service) PromoteNext(ctx context.Context, eventID uuid.UUID) error {
	now := s.now()
	entry, err := s.store.OfferNext(ctx, eventID, now, now.Add(s.claimWindow))
	if err != nil {
		return err
	}
	if entry == nil {
		return nil
	}
	s.notifier.WaitlistOffer(ctx, eventID, entry.UserID, *entry.OfferExpiresAt)
	s.logger.Info("seat offered",
		zap.String("event_id", eventID.String()),
		zap.String("user_id", entry.UserID.String()),
		zap.Time("expires_at", *entry.OfferExpiresAt))
	return nil
}

// Join puts the user on the event's waitlist. The store enforces that a YES
// holder never joins and that each user appears at most once.
func (s *Service) Join(ctx context.Context, eventID, userID uuid.UUID) (*models.WaitlistEntry, error) {
	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, ErrEventNotFound
	}
	if !ev.WaitlistEnabled || !ev.HasCapacity() {
		return nil, ErrWaitlistClosed
	}
	return s.store.Join(ctx, eventID, userID)
}

// Leave removes the user's waitlist entry.
func (s *Service) Leave(ctx context.Context, eventID, userID uuid.UUID) error {
	return s.store.Leave(ctx, eventID, userID)
}

// Position returns the user's 1-based place in the queue.
func (s *Service) Position(ctx context.Context, eventID, userID uuid.UUID) (int, error) {
	return s.store.Position(ctx, eventID, userID)
}

// Claim converts an active offer into a YES RSVP via the admission
// controller; the admission transaction removes the waitlist entry. Answers
// ride along because the event may have required questions.
func (s *Service) Claim(ctx context.Context, eventID, userID uuid.UUID, answers map[uuid.UUID]any) (*models.RSVP, error) {
	entry, err := s.store.Get(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrNotWaitlisted
	}
	if !entry.HasActiveOffer(s.now()) {
		return nil, ErrNotOffered
	}
	return s.admitter.Submit(ctx, eventID, userID, models.ResponseYes, answers)
}

// SetAdmitter wires the admission controller in after construction; the
// controller itself depends on this service for promotion.
func (s *Service) SetAdmitter(a Admitter) { s.admitter = a }

// ReapExpired drops entries whose offers lapsed and re-drives promotion for
// each affected event. Returns how many offers were expired.
func (s *Service) ReapExpired(ctx context.Context, batch int) (int, error) {
	expired, err := s.store.ExpiredOffers(ctx, s.now(), batch)
	if err != nil {
		return 0, err
	}
	seen := make(map[uuid.UUID]bool)
	for _, entry := range expired {
		if err := s.store.Remove(ctx, entry.ID); err != nil {
			return 0, err
		}
		s.logger.Info("offer expired",
			zap.String("event_id", entry.EventID.String()),
			zap.String("user_id", entry.UserID.String()))
		seen[entry.EventID] = true
	}
	for eventID := range seen {
		if err := s.PromoteNext(ctx, eventID); err != nil {
			s.logger.Error("promotion after reap failed",
				zap.Error(err), zap.String("event_id", eventID.String()))
		}
	}
	return len(expired), nil
}
