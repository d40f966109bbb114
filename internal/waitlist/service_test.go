package waitlist

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whtouche/gather-sub002/internal/models"
)

type fakeStore struct {
	mu      sync.Mutex
	nextSeq int64
	entries []*models.WaitlistEntry
	yes     map[uuid.UUID]bool // users holding YES seats
}

func newFakeStore() *fakeStore {
	return &fakeStore{yes: make(map[uuid.UUID]bool)}
}

func (f *fakeStore) addEntry(eventID, userID uuid.UUID, joinedAt time.Time) *models.WaitlistEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addEntryLocked(eventID, userID, joinedAt)
}

func (f *fakeStore) addEntryLocked(eventID, userID uuid.UUID, joinedAt time.Time) *models.WaitlistEntry {
	f.nextSeq++
	entry := &models.WaitlistEntry{
		ID:       uuid.New(),
		EventID:  eventID,
		UserID:   userID,
		Seq:      f.nextSeq,
		JoinedAt: joinedAt,
	}
	f.entries = append(f.entries, entry)
	return entry
}

// Join holds the lock across the YES check and the insert, mirroring the
// real store, which locks the event row for the whole join transaction.
func (f *fakeStore) Join(_ context.Context, eventID, userID uuid.UUID) (*models.WaitlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.yes[userID] {
		return nil, ErrAlreadyConfirmed
	}
	for _, e := range f.entries {
		if e.EventID == eventID && e.UserID == userID {
			return nil, ErrAlreadyWaitlisted
		}
	}
	return f.addEntryLocked(eventID, userID, time.Now()), nil
}

// admitYes models the admission transaction: under the same lock it records
// the YES and clears any waitlist entry for the user.
func (f *fakeStore) admitYes(eventID, userID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.yes[userID] = true
	for i, e := range f.entries {
		if e.EventID == eventID && e.UserID == userID {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return
		}
	}
}

func (f *fakeStore) holdsYes(userID uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.yes[userID]
}

func (f *fakeStore) Leave(_ context.Context, eventID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.entries {
		if e.EventID == eventID && e.UserID == userID {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return nil
		}
	}
	return ErrNotWaitlisted
}

func (f *fakeStore) Get(_ context.Context, eventID, userID uuid.UUID) (*models.WaitlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.EventID == eventID && e.UserID == userID {
			out := *e
			return &out, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) Position(_ context.Context, eventID, userID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ordered := f.orderedLocked(eventID)
	for i, e := range ordered {
		if e.UserID == userID {
			return i + 1, nil
		}
	}
	return 0, ErrNotWaitlisted
}

func (f *fakeStore) OfferNext(_ context.Context, eventID uuid.UUID, offeredAt, expiresAt time.Time) (*models.WaitlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.orderedLocked(eventID) {
		if e.OfferedAt == nil {
			oa, ea := offeredAt, expiresAt
			e.OfferedAt, e.OfferExpiresAt = &oa, &ea
			out := *e
			return &out, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ExpiredOffers(_ context.Context, now time.Time, limit int) ([]models.WaitlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.WaitlistEntry
	for _, e := range f.entries {
		if e.OfferedAt != nil && e.OfferExpiresAt.Before(now) && len(out) < limit {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeStore) Remove(_ context.Context, entryID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.entries {
		if e.ID == entryID {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeStore) orderedLocked(eventID uuid.UUID) []*models.WaitlistEntry {
	var out []*models.WaitlistEntry
	for _, e := range f.entries {
		if e.EventID == eventID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].Seq < out[j].Seq
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

type fakeEvents struct{ ev *models.Event }

func (f *fakeEvents) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	if f.ev == nil || f.ev.ID != id {
		return nil, nil
	}
	return f.ev, nil
}

type offer struct {
	userID    uuid.UUID
	expiresAt time.Time
}

type offerRecorder struct {
	mu     sync.Mutex
	offers []offer
}

func (r *offerRecorder) RSVPChanged(context.Context, uuid.UUID, uuid.UUID, models.Response, models.Response) {
}
func (r *offerRecorder) RSVPWithdrawn(context.Context, uuid.UUID, uuid.UUID, models.Response) {}
func (r *offerRecorder) WaitlistOffer(_ context.Context, _ uuid.UUID, userID uuid.UUID, expiresAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offers = append(r.offers, offer{userID: userID, expiresAt: expiresAt})
}

type fakeAdmitter struct {
	calls []uuid.UUID
	err   error
}

func (f *fakeAdmitter) Submit(_ context.Context, eventID, userID uuid.UUID, response models.Response, _ map[uuid.UUID]any) (*models.RSVP, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, userID)
	return &models.RSVP{EventID: eventID, UserID: userID, Response: response}, nil
}

func waitlistedEvent() *models.Event {
	capacity := 2
	return &models.Event{
		ID:              uuid.New(),
		StoredState:     models.EventStatePublished,
		StartsAt:        time.Now().Add(24 * time.Hour),
		Capacity:        &capacity,
		WaitlistEnabled: true,
	}
}

func TestPromoteNextFIFO(t *testing.T) {
	store := newFakeStore()
	rec := &offerRecorder{}
	ev := waitlistedEvent()
	svc := NewService(store, &fakeEvents{ev: ev}, rec, time.Hour, nil)

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	first := uuid.New()
	second := uuid.New()
	third := uuid.New()
	store.addEntry(ev.ID, first, base)
	store.addEntry(ev.ID, second, base.Add(time.Minute))
	store.addEntry(ev.ID, third, base.Add(2*time.Minute))

	ctx := context.Background()
	require.NoError(t, svc.PromoteNext(ctx, ev.ID))
	require.Len(t, rec.offers, 1)
	assert.Equal(t, first, rec.offers[0].userID)

	// Another vacancy while the first offer is pending goes to the second
	// entrant, not the first again.
	require.NoError(t, svc.PromoteNext(ctx, ev.ID))
	require.Len(t, rec.offers, 2)
	assert.Equal(t, second, rec.offers[1].userID)

	require.NoError(t, svc.PromoteNext(ctx, ev.ID))
	require.Len(t, rec.offers, 3)
	assert.Equal(t, third, rec.offers[2].userID)
}

func TestPromoteNextTieBrokenBySeq(t *testing.T) {
	store := newFakeStore()
	rec := &offerRecorder{}
	ev := waitlistedEvent()
	svc := NewService(store, &fakeEvents{ev: ev}, rec, time.Hour, nil)

	joined := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	first := store.addEntry(ev.ID, uuid.New(), joined)
	store.addEntry(ev.ID, uuid.New(), joined) // identical join time, later seq

	require.NoError(t, svc.PromoteNext(context.Background(), ev.ID))
	require.Len(t, rec.offers, 1)
	assert.Equal(t, first.UserID, rec.offers[0].userID)
}

func TestPromoteNextEmptyIsNoop(t *testing.T) {
	store := newFakeStore()
	rec := &offerRecorder{}
	ev := waitlistedEvent()
	svc := NewService(store, &fakeEvents{ev: ev}, rec, time.Hour, nil)

	assert.NoError(t, svc.PromoteNext(context.Background(), ev.ID))
	assert.Empty(t, rec.offers)
}

func TestPromoteNextOfferCarriesClaimWindow(t *testing.T) {
	store := newFakeStore()
	rec := &offerRecorder{}
	ev := waitlistedEvent()
	svc := NewService(store, &fakeEvents{ev: ev}, rec, 45*time.Minute, nil)

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	store.addEntry(ev.ID, uuid.New(), now.Add(-time.Hour))

	require.NoError(t, svc.PromoteNext(context.Background(), ev.ID))
	require.Len(t, rec.offers, 1)
	assert.Equal(t, now.Add(45*time.Minute), rec.offers[0].expiresAt)
}

func TestJoinGating(t *testing.T) {
	store := newFakeStore()
	ev := waitlistedEvent()
	svc := NewService(store, &fakeEvents{ev: ev}, nil, time.Hour, nil)
	ctx := context.Background()

	_, err := svc.Join(ctx, uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrEventNotFound)

	t.Run("waitlist disabled", func(t *testing.T) {
		closed := waitlistedEvent()
		closed.WaitlistEnabled = false
		svcClosed := NewService(store, &fakeEvents{ev: closed}, nil, time.Hour, nil)
		_, err := svcClosed.Join(ctx, closed.ID, uuid.New())
		assert.ErrorIs(t, err, ErrWaitlistClosed)
	})

	t.Run("unlimited capacity", func(t *testing.T) {
		unlimited := waitlistedEvent()
		unlimited.Capacity = nil
		svcUnlimited := NewService(store, &fakeEvents{ev: unlimited}, nil, time.Hour, nil)
		_, err := svcUnlimited.Join(ctx, unlimited.ID, uuid.New())
		assert.ErrorIs(t, err, ErrWaitlistClosed)
	})

	user := uuid.New()
	_, err = svc.Join(ctx, ev.ID, user)
	require.NoError(t, err)
	_, err = svc.Join(ctx, ev.ID, user)
	assert.ErrorIs(t, err, ErrAlreadyWaitlisted)

	holder := uuid.New()
	store.yes[holder] = true
	_, err = svc.Join(ctx, ev.ID, holder)
	assert.ErrorIs(t, err, ErrAlreadyConfirmed)
}

func TestJoinRacingAdmission(t *testing.T) {
	ev := waitlistedEvent()
	ctx := context.Background()

	// A join racing a YES admission for the same user must leave the user
	// either seated or waitlisted, never both. Both paths serialize on the
	// event lock, so whichever commits second sees the other's write.
	for i := 0; i < 200; i++ {
		store := newFakeStore()
		svc := NewService(store, &fakeEvents{ev: ev}, nil, time.Hour, nil)
		user := uuid.New()

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := svc.Join(ctx, ev.ID, user); err != nil {
				assert.ErrorIs(t, err, ErrAlreadyConfirmed)
			}
		}()
		go func() {
			defer wg.Done()
			store.admitYes(ev.ID, user)
		}()
		wg.Wait()

		require.True(t, store.holdsYes(user))
		entry, err := store.Get(ctx, ev.ID, user)
		require.NoError(t, err)
		assert.Nil(t, entry, "a seat holder must not remain on the waitlist")
	}
}

func TestClaim(t *testing.T) {
	store := newFakeStore()
	ev := waitlistedEvent()
	admitter := &fakeAdmitter{}
	svc := NewService(store, &fakeEvents{ev: ev}, nil, time.Hour, nil)
	svc.SetAdmitter(admitter)
	ctx := context.Background()

	user := uuid.New()
	_, err := svc.Claim(ctx, ev.ID, user, nil)
	assert.ErrorIs(t, err, ErrNotWaitlisted)

	store.addEntry(ev.ID, user, time.Now())
	_, err = svc.Claim(ctx, ev.ID, user, nil)
	assert.ErrorIs(t, err, ErrNotOffered, "waiting without an offer cannot claim")

	require.NoError(t, svc.PromoteNext(ctx, ev.ID))
	rec, err := svc.Claim(ctx, ev.ID, user, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ResponseYes, rec.Response)
	assert.Equal(t, []uuid.UUID{user}, admitter.calls, "claims go through the admission controller")
}

func TestClaimExpiredOffer(t *testing.T) {
	store := newFakeStore()
	ev := waitlistedEvent()
	svc := NewService(store, &fakeEvents{ev: ev}, nil, time.Hour, nil)
	svc.SetAdmitter(&fakeAdmitter{})
	ctx := context.Background()

	user := uuid.New()
	store.addEntry(ev.ID, user, time.Now().Add(-2*time.Hour))
	require.NoError(t, svc.PromoteNext(ctx, ev.ID))

	// Jump past the claim window.
	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err := svc.Claim(ctx, ev.ID, user, nil)
	assert.ErrorIs(t, err, ErrNotOffered)
}

func TestReapExpiredAdvancesQueue(t *testing.T) {
	store := newFakeStore()
	rec := &offerRecorder{}
	ev := waitlistedEvent()
	svc := NewService(store, &fakeEvents{ev: ev}, rec, time.Hour, nil)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	first := uuid.New()
	second := uuid.New()
	store.addEntry(ev.ID, first, base)
	store.addEntry(ev.ID, second, base.Add(time.Minute))

	svc.now = func() time.Time { return base }
	require.NoError(t, svc.PromoteNext(ctx, ev.ID))
	require.Len(t, rec.offers, 1)
	assert.Equal(t, first, rec.offers[0].userID)

	// First entrant never claims; the reaper runs after the window closes.
	svc.now = func() time.Time { return base.Add(2 * time.Hour) }
	n, err := svc.ReapExpired(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, rec.offers, 2)
	assert.Equal(t, second, rec.offers[1].userID, "expiry hands the seat to the next entrant")

	entry, err := store.Get(ctx, ev.ID, first)
	require.NoError(t, err)
	assert.Nil(t, entry, "expired entrant leaves the queue")
}
