package rsvp

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whtouche/gather-sub002/internal/models"
	"github.com/whtouche/gather-sub002/internal/questionnaire"
)

// fakeStore is an in-memory Store whose Admit runs under one mutex, playing
// the role of the database row lock: the capacity check and the upsert are a
// single atomic unit, which is exactly the guarantee the real store provides.
type fakeStore struct {
	mu      sync.Mutex
	event   *models.Event
	rsvps   map[uuid.UUID]*models.RSVP         // by user
	answers map[uuid.UUID]map[uuid.UUID]string // user -> question -> raw json
	entries map[uuid.UUID]bool                 // waitlisted users
}

func newFakeStore(ev *models.Event) *fakeStore {
	return &fakeStore{
		event:   ev,
		rsvps:   make(map[uuid.UUID]*models.RSVP),
		answers: make(map[uuid.UUID]map[uuid.UUID]string),
		entries: make(map[uuid.UUID]bool),
	}
}

func (f *fakeStore) GetEvent(_ context.Context, id uuid.UUID) (*models.Event, error) {
	if f.event == nil || f.event.ID != id {
		return nil, nil
	}
	return f.event, nil
}

func (f *fakeStore) Admit(_ context.Context, p AdmitParams) (*models.RSVP, models.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var prev models.Response
	if existing, ok := f.rsvps[p.UserID]; ok {
		prev = existing.Response
	}

	if p.Response == models.ResponseYes && f.event.Capacity != nil && prev != models.ResponseYes {
		yes := 0
		for uid, r := range f.rsvps {
			if uid != p.UserID && r.Response == models.ResponseYes {
				yes++
			}
		}
		if yes >= *f.event.Capacity {
			return nil, "", ErrCapacityFull
		}
	}

	rec, ok := f.rsvps[p.UserID]
	if !ok {
		rec = &models.RSVP{ID: uuid.New(), EventID: p.EventID, UserID: p.UserID, CreatedAt: time.Now()}
		f.rsvps[p.UserID] = rec
	}
	rec.Response = p.Response
	rec.NeedsReconfirm = false
	rec.UpdatedAt = time.Now()

	if p.Response == models.ResponseYes {
		delete(f.entries, p.UserID)
	}
	for _, a := range p.Answers {
		if f.answers[p.UserID] == nil {
			f.answers[p.UserID] = make(map[uuid.UUID]string)
		}
		f.answers[p.UserID][a.QuestionID] = string(a.Value)
	}
	out := *rec
	return &out, prev, nil
}

func (f *fakeStore) Withdraw(_ context.Context, _ uuid.UUID, userID uuid.UUID) (models.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.rsvps[userID]
	if !ok {
		return "", ErrNoRSVP
	}
	delete(f.rsvps, userID)
	return rec.Response, nil
}

func (f *fakeStore) yesCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.rsvps {
		if r.Response == models.ResponseYes {
			n++
		}
	}
	return n
}

type fakeQuestions struct{ qs []models.Question }

func (f *fakeQuestions) ListByEvent(context.Context, uuid.UUID) ([]models.Question, error) {
	return f.qs, nil
}

type fakePromoter struct {
	mu    sync.Mutex
	calls []uuid.UUID
}

func (f *fakePromoter) PromoteNext(_ context.Context, eventID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, eventID)
	return nil
}

func (f *fakePromoter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type notification struct {
	kind string
	prev models.Response
	cur  models.Response
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (f *fakeNotifier) RSVPChanged(_ context.Context, _, _ uuid.UUID, prev, cur models.Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, notification{kind: "changed", prev: prev, cur: cur})
}

func (f *fakeNotifier) RSVPWithdrawn(_ context.Context, _, _ uuid.UUID, prev models.Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, notification{kind: "withdrawn", prev: prev})
}

func (f *fakeNotifier) WaitlistOffer(context.Context, uuid.UUID, uuid.UUID, time.Time) {}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func publishedEvent(capacity *int, waitlist bool) *models.Event {
	now := time.Now()
	end := now.Add(26 * time.Hour)
	deadline := now.Add(23 * time.Hour)
	return &models.Event{
		ID:              uuid.New(),
		StoredState:     models.EventStatePublished,
		StartsAt:        now.Add(24 * time.Hour),
		EndsAt:          &end,
		RSVPDeadline:    &deadline,
		Capacity:        capacity,
		WaitlistEnabled: waitlist,
	}
}

type fixture struct {
	svc      *Service
	store    *fakeStore
	promoter *fakePromoter
	notifier *fakeNotifier
}

func newFixture(ev *models.Event, qs []models.Question, opts Options) *fixture {
	store := newFakeStore(ev)
	promoter := &fakePromoter{}
	notifier := &fakeNotifier{}
	svc := NewService(store, &fakeQuestions{qs: qs}, promoter, notifier, opts, nil)
	return &fixture{svc: svc, store: store, promoter: promoter, notifier: notifier}
}

func TestSubmitEventNotFound(t *testing.T) {
	f := newFixture(publishedEvent(nil, false), nil, Options{})
	_, err := f.svc.Submit(context.Background(), uuid.New(), uuid.New(), models.ResponseYes, nil)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestSubmitInvalidResponse(t *testing.T) {
	ev := publishedEvent(nil, false)
	f := newFixture(ev, nil, Options{})
	_, err := f.svc.Submit(context.Background(), ev.ID, uuid.New(), models.Response("PERHAPS"), nil)
	assert.Equal(t, KindInvalidResponse, KindOf(err))
}

func TestSubmitStateBlocked(t *testing.T) {
	now := time.Now()
	end := now.Add(2 * time.Hour)
	pastEnd := now.Add(-time.Hour)
	pastDeadline := now.Add(-time.Minute)

	tests := []struct {
		name   string
		mutate func(*models.Event)
		reason StateReason
	}{
		{"draft", func(e *models.Event) { e.StoredState = models.EventStateDraft }, ReasonNotPublished},
		{"cancelled", func(e *models.Event) { e.StoredState = models.EventStateCancelled }, ReasonCancelled},
		{"completed explicitly", func(e *models.Event) { e.StoredState = models.EventStateCompleted }, ReasonCompleted},
		{"already started", func(e *models.Event) { e.StartsAt = now.Add(-time.Minute); e.EndsAt = &end }, ReasonOngoing},
		{"ended", func(e *models.Event) { e.StartsAt = now.Add(-2 * time.Hour); e.EndsAt = &pastEnd }, ReasonCompleted},
		{"deadline passed", func(e *models.Event) { e.RSVPDeadline = &pastDeadline }, ReasonDeadlinePassed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := publishedEvent(nil, false)
			tt.mutate(ev)
			f := newFixture(ev, nil, Options{})
			_, err := f.svc.Submit(context.Background(), ev.ID, uuid.New(), models.ResponseYes, nil)
			var ae *AdmissionError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, KindStateBlocked, ae.Kind)
			assert.Equal(t, tt.reason, ae.Reason)
			assert.Empty(t, f.store.rsvps, "rejection must not mutate anything")
		})
	}
}

func TestSubmitCapacity(t *testing.T) {
	cap2 := 2
	ctx := context.Background()

	t.Run("waitlist available", func(t *testing.T) {
		ev := publishedEvent(&cap2, true)
		f := newFixture(ev, nil, Options{})
		for i := 0; i < 2; i++ {
			_, err := f.svc.Submit(ctx, ev.ID, uuid.New(), models.ResponseYes, nil)
			require.NoError(t, err)
		}
		_, err := f.svc.Submit(ctx, ev.ID, uuid.New(), models.ResponseYes, nil)
		assert.Equal(t, KindAtCapacityWaitlistAvailable, KindOf(err))
		assert.Equal(t, 2, f.store.yesCount())
	})

	t.Run("waitlist disabled", func(t *testing.T) {
		ev := publishedEvent(&cap2, false)
		f := newFixture(ev, nil, Options{})
		for i := 0; i < 2; i++ {
			_, err := f.svc.Submit(ctx, ev.ID, uuid.New(), models.ResponseYes, nil)
			require.NoError(t, err)
		}
		_, err := f.svc.Submit(ctx, ev.ID, uuid.New(), models.ResponseYes, nil)
		assert.Equal(t, KindAtCapacity, KindOf(err))
	})

	t.Run("existing YES holder resubmits at capacity", func(t *testing.T) {
		ev := publishedEvent(&cap2, true)
		f := newFixture(ev, nil, Options{})
		holder := uuid.New()
		_, err := f.svc.Submit(ctx, ev.ID, holder, models.ResponseYes, nil)
		require.NoError(t, err)
		_, err = f.svc.Submit(ctx, ev.ID, uuid.New(), models.ResponseYes, nil)
		require.NoError(t, err)

		// The event is full, but the holder is not asking for a new seat.
		_, err = f.svc.Submit(ctx, ev.ID, holder, models.ResponseYes, nil)
		assert.NoError(t, err)

		// MAYBE and NO are never capacity-gated.
		_, err = f.svc.Submit(ctx, ev.ID, uuid.New(), models.ResponseMaybe, nil)
		assert.NoError(t, err)
	})
}

func TestSubmitIdempotentUpsert(t *testing.T) {
	ev := publishedEvent(nil, false)
	f := newFixture(ev, nil, Options{})
	user := uuid.New()
	ctx := context.Background()

	first, err := f.svc.Submit(ctx, ev.ID, user, models.ResponseYes, nil)
	require.NoError(t, err)
	second, err := f.svc.Submit(ctx, ev.ID, user, models.ResponseYes, nil)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "same record on resubmission")
	assert.Len(t, f.store.rsvps, 1)
	assert.Equal(t, models.ResponseYes, f.store.rsvps[user].Response)
	assert.Equal(t, 1, f.notifier.count(), "identical resubmission notifies only once by default")
}

func TestSubmitNotifyOnResubmit(t *testing.T) {
	ev := publishedEvent(nil, false)
	f := newFixture(ev, nil, Options{NotifyOnResubmit: true})
	user := uuid.New()
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, ev.ID, user, models.ResponseYes, nil)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, ev.ID, user, models.ResponseYes, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, f.notifier.count())
}

func TestSubmitClearsReconfirmFlag(t *testing.T) {
	ev := publishedEvent(nil, false)
	f := newFixture(ev, nil, Options{})
	user := uuid.New()
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, ev.ID, user, models.ResponseMaybe, nil)
	require.NoError(t, err)
	f.store.rsvps[user].NeedsReconfirm = true // event details changed externally

	rec, err := f.svc.Submit(ctx, ev.ID, user, models.ResponseYes, nil)
	require.NoError(t, err)
	assert.False(t, rec.NeedsReconfirm, "any successful admission clears the flag")
}

func TestSubmitRequiredQuestions(t *testing.T) {
	ev := publishedEvent(nil, false)
	required := models.Question{ID: uuid.New(), EventID: ev.ID, Type: models.QuestionShortText, Required: true}
	f := newFixture(ev, []models.Question{required}, Options{})
	ctx := context.Background()

	// NO with nothing answered is fine: required-ness binds only to YES.
	_, err := f.svc.Submit(ctx, ev.ID, uuid.New(), models.ResponseNo, nil)
	assert.NoError(t, err)

	// YES with the required question unanswered fails, even with no answer
	// payload at all, and writes nothing.
	user := uuid.New()
	_, err = f.svc.Submit(ctx, ev.ID, user, models.ResponseYes, nil)
	var ve *questionnaire.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, questionnaire.KindRequiredMissing, ve.Kind)
	assert.Equal(t, required.ID, ve.QuestionID)
	assert.NotContains(t, f.store.rsvps, user, "failed validation aborts the whole admission")

	rec, err := f.svc.Submit(ctx, ev.ID, user, models.ResponseYes, map[uuid.UUID]any{required.ID: "vegetarian"})
	require.NoError(t, err)
	assert.Equal(t, models.ResponseYes, rec.Response)
	assert.JSONEq(t, `"vegetarian"`, f.store.answers[user][required.ID])
}

func TestSubmitRejectsAnswerForForeignQuestion(t *testing.T) {
	ev := publishedEvent(nil, false)
	q := models.Question{ID: uuid.New(), EventID: ev.ID, Type: models.QuestionSingleChoice, Choices: []string{"A", "B"}}
	f := newFixture(ev, []models.Question{q}, Options{})

	_, err := f.svc.Submit(context.Background(), ev.ID, uuid.New(), models.ResponseNo,
		map[uuid.UUID]any{q.ID: "C"})
	var ve *questionnaire.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, questionnaire.KindInvalidChoice, ve.Kind)
}

func TestVacatedSeatTriggersPromotion(t *testing.T) {
	cap2 := 2
	ctx := context.Background()

	t.Run("yes to no promotes", func(t *testing.T) {
		ev := publishedEvent(&cap2, true)
		f := newFixture(ev, nil, Options{})
		user := uuid.New()
		_, err := f.svc.Submit(ctx, ev.ID, user, models.ResponseYes, nil)
		require.NoError(t, err)
		_, err = f.svc.Submit(ctx, ev.ID, user, models.ResponseNo, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, f.promoter.count())
	})

	t.Run("no waitlist means no promotion", func(t *testing.T) {
		ev := publishedEvent(&cap2, false)
		f := newFixture(ev, nil, Options{})
		user := uuid.New()
		_, _ = f.svc.Submit(ctx, ev.ID, user, models.ResponseYes, nil)
		_, _ = f.svc.Submit(ctx, ev.ID, user, models.ResponseNo, nil)
		assert.Equal(t, 0, f.promoter.count())
	})

	t.Run("unlimited capacity means no promotion", func(t *testing.T) {
		ev := publishedEvent(nil, true)
		f := newFixture(ev, nil, Options{})
		user := uuid.New()
		_, _ = f.svc.Submit(ctx, ev.ID, user, models.ResponseYes, nil)
		_, _ = f.svc.Submit(ctx, ev.ID, user, models.ResponseNo, nil)
		assert.Equal(t, 0, f.promoter.count())
	})

	t.Run("maybe to no is not a vacated seat", func(t *testing.T) {
		ev := publishedEvent(&cap2, true)
		f := newFixture(ev, nil, Options{})
		user := uuid.New()
		_, _ = f.svc.Submit(ctx, ev.ID, user, models.ResponseMaybe, nil)
		_, _ = f.svc.Submit(ctx, ev.ID, user, models.ResponseNo, nil)
		assert.Equal(t, 0, f.promoter.count())
	})
}

func TestWithdraw(t *testing.T) {
	cap2 := 2
	ctx := context.Background()

	t.Run("no rsvp", func(t *testing.T) {
		ev := publishedEvent(&cap2, true)
		f := newFixture(ev, nil, Options{})
		err := f.svc.Withdraw(ctx, ev.ID, uuid.New())
		assert.Equal(t, KindNotFound, KindOf(err))
	})

	t.Run("withdrawing a yes promotes", func(t *testing.T) {
		ev := publishedEvent(&cap2, true)
		f := newFixture(ev, nil, Options{})
		user := uuid.New()
		_, err := f.svc.Submit(ctx, ev.ID, user, models.ResponseYes, nil)
		require.NoError(t, err)

		require.NoError(t, f.svc.Withdraw(ctx, ev.ID, user))
		assert.Empty(t, f.store.rsvps)
		assert.Equal(t, 1, f.promoter.count())
	})

	t.Run("state gated", func(t *testing.T) {
		ev := publishedEvent(&cap2, true)
		ev.StoredState = models.EventStateCancelled
		f := newFixture(ev, nil, Options{})
		err := f.svc.Withdraw(ctx, ev.ID, uuid.New())
		assert.Equal(t, KindStateBlocked, KindOf(err))
	})
}

// TestConcurrentAdmissions hammers one capacity-5 event with 20 simultaneous
// YES submissions and requires exactly 5 to win.
func TestConcurrentAdmissions(t *testing.T) {
	capacity := 5
	ev := publishedEvent(&capacity, true)
	f := newFixture(ev, nil, Options{})

	const attempts = 20
	var wg sync.WaitGroup
	wg.Add(attempts)
	var admitted, rejected int64

	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			_, err := f.svc.Submit(context.Background(), ev.ID, uuid.New(), models.ResponseYes, nil)
			switch {
			case err == nil:
				atomic.AddInt64(&admitted, 1)
			case KindOf(err) == KindAtCapacityWaitlistAvailable:
				atomic.AddInt64(&rejected, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, capacity, admitted)
	assert.EqualValues(t, attempts-capacity, rejected)
	assert.Equal(t, capacity, f.store.yesCount(), "overbooking detected")
}

// TestConcurrentDoubleSubmit races the same user against themselves; the pair
// must end with exactly one record and one seat.
func TestConcurrentDoubleSubmit(t *testing.T) {
	capacity := 1
	ev := publishedEvent(&capacity, false)
	f := newFixture(ev, nil, Options{})
	user := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.Submit(context.Background(), ev.ID, user, models.ResponseYes, nil)
		}()
	}
	wg.Wait()

	require.Len(t, f.store.rsvps, 1)
	assert.Equal(t, models.ResponseYes, f.store.rsvps[user].Response)
	assert.Equal(t, 1, f.store.yesCount())
}
