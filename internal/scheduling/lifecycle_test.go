package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"hr-scheduling-backend/internal/db/dbtest"
	"hr-scheduling-backend/internal/directory"
	"hr-scheduling-backend/internal/model"
	"hr-scheduling-backend/internal/notification"
	"hr-scheduling-backend/internal/store"
)

type recorder struct {
	mu     sync.Mutex
	events []notification.Event
}

func (r *recorder) Notify(ev notification.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []notification.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]notification.EventKind, 0, len(r.events))
	for _, ev := range r.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

type fixture struct {
	db      *gorm.DB
	store   store.Store
	manager *Manager
	events  *recorder
}

func newFixture(t *testing.T, apps ...string) *fixture {
	t.Helper()
	gormDB := dbtest.Open(t)
	if len(apps) == 0 {
		apps = []string{"app-a", "app-b", "app-c"}
	}
	dbtest.SeedApplications(t, gormDB, apps...)

	s := store.NewGormStore(gormDB)
	rec := &recorder{}
	return &fixture{
		db:      gormDB,
		store:   s,
		manager: NewManager(s, directory.New(gormDB, time.Minute), rec, 3, zaptest.NewLogger(t)),
		events:  rec,
	}
}

// withStore swaps the store the manager writes through.
func (f *fixture) withStore(s store.Store) *Manager {
	m := *f.manager
	m.store = s
	return &m
}

func (f *fixture) reload(t *testing.T, id string) *model.InterviewSlot {
	t.Helper()
	slot, err := f.store.GetSlot(context.Background(), id)
	require.NoError(t, err)
	return slot
}

func (f *fixture) occupiedAt(t *testing.T, date, clock string) []model.InterviewSlot {
	t.Helper()
	var rows []model.InterviewSlot
	require.NoError(t, f.db.Where("slot_date = ? AND slot_time = ? AND is_available = ?", date, clock, false).Find(&rows).Error)
	return rows
}

func booking(app, date, clock string) CreateInput {
	return CreateInput{Date: date, Time: clock, ApplicationID: app}
}

func strPtr(s string) *string { return &s }

func TestManager_CreateConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	slot, changed, err := f.manager.Create(ctx, booking("app-a", "2025-10-15", "09:00"))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "2025-10-15", slot.Date)
	assert.Equal(t, "09:00:00", slot.Time)
	assert.Equal(t, model.SlotStatusScheduled, slot.Status)
	assert.False(t, slot.IsAvailable)
	assert.Equal(t, "app-a", *slot.ApplicationID)
	assert.Equal(t, "Candidate app-a", *slot.CandidateName)
	assert.Len(t, slot.ID, 36)

	_, _, err = f.manager.Create(ctx, booking("app-b", "2025-10-15", "09:00:00"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSlotConflict))
	assert.Equal(t, "interview slot 2025-10-15 09:00:00 is already occupied", UserMessage(err))

	assert.Len(t, f.occupiedAt(t, "2025-10-15", "09:00:00"), 1)
	assert.Equal(t, []notification.EventKind{notification.EventBooked}, f.events.kinds())
}

func TestManager_CreateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, _, err := f.manager.Create(ctx, booking("app-a", "2025-10-15", "09:00:00"))
	require.NoError(t, err)

	second, changed, err := f.manager.Create(ctx, booking("app-a", "2025-10-15", "09:00:00"))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, f.db.Model(&model.InterviewSlot{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.Len(t, f.events.kinds(), 1)
}

func TestManager_CreateUsesExplicitFields(t *testing.T) {
	f := newFixture(t)

	in := booking("app-a", "2025-10-15", "09:00:00")
	in.CandidateName = strPtr("Ada Lovelace")
	in.JobTitle = strPtr("Analyst")
	in.Location = strPtr("Room 4")
	in.Notes = strPtr("bring laptop")
	in.Status = strPtr("completed")

	slot, _, err := f.manager.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", *slot.CandidateName)
	assert.Equal(t, "Analyst", *slot.JobTitle)
	assert.Equal(t, "Room 4", *slot.Location)
	assert.Equal(t, "bring laptop", *slot.Notes)
	// A new booking always starts scheduled.
	assert.Equal(t, model.SlotStatusScheduled, slot.Status)
}

func TestManager_CreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		in      CreateInput
		wantErr error
	}{
		{"bad date", booking("app-a", "15/10/2025", "09:00:00"), ErrInvalidFormat},
		{"bad time", booking("app-a", "2025-10-15", "9am"), ErrInvalidFormat},
		{"missing application id", booking(" ", "2025-10-15", "09:00:00"), ErrInvalidFormat},
		{"unknown application", booking("app-zzz", "2025-10-15", "09:00:00"), ErrApplicationNotFound},
		{"bad status", CreateInput{Date: "2025-10-15", Time: "09:00:00", ApplicationID: "app-a", Status: strPtr("pending")}, ErrInvalidStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.manager.Create(ctx, tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.NotEqual(t, "internal server error", UserMessage(err))
		})
	}

	var count int64
	require.NoError(t, f.db.Model(&model.InterviewSlot{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestManager_CreateReusesFreeSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	free, created, err := f.manager.Open(ctx, OpenInput{Date: "2025-10-15", Time: "11:00", Location: strPtr("Room 1")})
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, free.IsAvailable)
	assert.Nil(t, free.ApplicationID)

	slot, changed, err := f.manager.Create(ctx, booking("app-a", "2025-10-15", "11:00:00"))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, free.ID, slot.ID)
	assert.False(t, slot.IsAvailable)
	assert.Equal(t, "Room 1", *slot.Location)
}

func TestManager_Open(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, created, err := f.manager.Open(ctx, OpenInput{Date: "2025-10-15", Time: "11:00"})
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := f.manager.Open(ctx, OpenInput{Date: "2025-10-15", Time: "11:00:00"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	_, _, err = f.manager.Create(ctx, booking("app-a", "2025-10-15", "12:00:00"))
	require.NoError(t, err)
	_, _, err = f.manager.Open(ctx, OpenInput{Date: "2025-10-15", Time: "12:00:00"})
	assert.True(t, errors.Is(err, ErrSlotConflict))

	_, _, err = f.manager.Open(ctx, OpenInput{Date: "2025-13-01", Time: "12:00:00"})
	assert.True(t, errors.Is(err, ErrInvalidFormat))
}

func TestManager_RescheduleMovesBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := booking("app-a", "2025-10-15", "09:00:00")
	in.Notes = strPtr("panel of two")
	original, _, err := f.manager.Create(ctx, in)
	require.NoError(t, err)

	res, err := f.manager.Reschedule(ctx, original.ID, RescheduleInput{Time: strPtr("10:00")})
	require.NoError(t, err)
	assert.True(t, res.Moved)
	assert.Equal(t, original.ID, res.PreviousID)
	assert.NotEqual(t, original.ID, res.Slot.ID)
	assert.Equal(t, "10:00:00", res.Slot.Time)
	assert.Equal(t, "app-a", *res.Slot.ApplicationID)
	assert.Equal(t, "Candidate app-a", *res.Slot.CandidateName)
	assert.Equal(t, "panel of two", *res.Slot.Notes)
	assert.Equal(t, model.SlotStatusScheduled, res.Slot.Status)

	old := f.reload(t, original.ID)
	assert.Equal(t, model.SlotStatusCancelled, old.Status)
	assert.True(t, old.IsAvailable)
	assert.Nil(t, old.ApplicationID)

	// The released key is bookable again.
	_, _, err = f.manager.Create(ctx, booking("app-b", "2025-10-15", "09:00:00"))
	require.NoError(t, err)

	assert.Equal(t, []notification.EventKind{
		notification.EventBooked, notification.EventRescheduled, notification.EventBooked,
	}, f.events.kinds())
}

func TestManager_RescheduleIntoOccupiedKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, _, err := f.manager.Create(ctx, booking("app-a", "2025-10-15", "09:00:00"))
	require.NoError(t, err)
	_, _, err = f.manager.Create(ctx, booking("app-b", "2025-10-15", "10:00:00"))
	require.NoError(t, err)

	_, err = f.manager.Reschedule(ctx, a.ID, RescheduleInput{Time: strPtr("10:00:00")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSlotConflict))

	unchanged := f.reload(t, a.ID)
	assert.Equal(t, model.SlotStatusScheduled, unchanged.Status)
	assert.False(t, unchanged.IsAvailable)
	assert.Equal(t, "app-a", *unchanged.ApplicationID)
}

func TestManager_RescheduleOntoOwnBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, _, err := f.manager.Create(ctx, booking("app-a", "2025-10-15", "09:00:00"))
	require.NoError(t, err)
	second, _, err := f.manager.Create(ctx, booking("app-a", "2025-10-15", "10:00:00"))
	require.NoError(t, err)

	res, err := f.manager.Reschedule(ctx, first.ID, RescheduleInput{Time: strPtr("10:00:00"), Location: strPtr("Room 9")})
	require.NoError(t, err)
	assert.True(t, res.Moved)
	assert.Equal(t, second.ID, res.Slot.ID)
	assert.Equal(t, "Room 9", *res.Slot.Location)
	assert.Equal(t, model.SlotStatusCancelled, f.reload(t, first.ID).Status)
}

func TestManager_RescheduleInPlace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	slot, _, err := f.manager.Create(ctx, booking("app-a", "2025-10-15", "09:00:00"))
	require.NoError(t, err)

	res, err := f.manager.Reschedule(ctx, slot.ID, RescheduleInput{
		Date:     strPtr("2025-10-15"),
		Time:     strPtr("09:00"),
		Location: strPtr("Room 2"),
	})
	require.NoError(t, err)
	assert.False(t, res.Moved)
	assert.Empty(t, res.PreviousID)
	assert.Equal(t, slot.ID, res.Slot.ID)
	assert.Equal(t, "Room 2", *res.Slot.Location)

	res, err = f.manager.Reschedule(ctx, slot.ID, RescheduleInput{Status: strPtr("completed")})
	require.NoError(t, err)
	assert.Equal(t, model.SlotStatusCompleted, res.Slot.Status)
	assert.False(t, res.Slot.IsAvailable)

	res, err = f.manager.Reschedule(ctx, slot.ID, RescheduleInput{Status: strPtr("cancelled")})
	require.NoError(t, err)
	assert.Equal(t, model.SlotStatusCancelled, res.Slot.Status)
	assert.True(t, res.Slot.IsAvailable)
	assert.Nil(t, res.Slot.ApplicationID)

	assert.Equal(t, []notification.EventKind{
		notification.EventBooked, notification.EventCompleted, notification.EventCancelled,
	}, f.events.kinds())
}

func TestManager_RescheduleErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	slot, _, err := f.manager.Create(ctx, booking("app-a", "2025-10-15", "09:00:00"))
	require.NoError(t, err)
	free, _, err := f.manager.Open(ctx, OpenInput{Date: "2025-10-16", Time: "09:00:00"})
	require.NoError(t, err)
	cancelled, _, err := f.manager.Create(ctx, booking("app-b", "2025-10-15", "14:00:00"))
	require.NoError(t, err)
	_, err = f.manager.Cancel(ctx, cancelled.ID)
	require.NoError(t, err)

	tests := []struct {
		name    string
		id      string
		in      RescheduleInput
		wantErr error
	}{
		{"unknown slot", "00000000-0000-0000-0000-000000000000", RescheduleInput{Time: strPtr("10:00")}, ErrNotFound},
		{"bad date", slot.ID, RescheduleInput{Date: strPtr("tomorrow")}, ErrInvalidFormat},
		{"bad status", slot.ID, RescheduleInput{Status: strPtr("done")}, ErrInvalidStatus},
		{"cancel while moving", slot.ID, RescheduleInput{Time: strPtr("10:00"), Status: strPtr("cancelled")}, ErrInvalidTransition},
		{"complete a free slot", free.ID, RescheduleInput{Status: strPtr("completed")}, ErrInvalidTransition},
		{"move a cancelled slot", cancelled.ID, RescheduleInput{Time: strPtr("15:00")}, ErrSlotCancelled},
		{"revive a cancelled slot", cancelled.ID, RescheduleInput{Status: strPtr("scheduled")}, ErrSlotCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.manager.Reschedule(ctx, tt.id, tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}

	// Notes stay editable on a cancelled slot.
	res, err := f.manager.Reschedule(ctx, cancelled.ID, RescheduleInput{Notes: strPtr("no-show")})
	require.NoError(t, err)
	assert.Equal(t, "no-show", *res.Slot.Notes)
	assert.Equal(t, model.SlotStatusCancelled, res.Slot.Status)

	assert.Equal(t, model.SlotStatusScheduled, f.reload(t, slot.ID).Status)
}

func TestManager_RescheduleFreeSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	free, _, err := f.manager.Open(ctx, OpenInput{Date: "2025-10-15", Time: "09:00:00", Location: strPtr("Room 3")})
	require.NoError(t, err)

	res, err := f.manager.Reschedule(ctx, free.ID, RescheduleInput{Date: strPtr("2025-10-16")})
	require.NoError(t, err)
	assert.True(t, res.Moved)
	assert.True(t, res.Slot.IsAvailable)
	assert.Nil(t, res.Slot.ApplicationID)
	assert.Equal(t, "Room 3", *res.Slot.Location)
	assert.Equal(t, model.SlotStatusCancelled, f.reload(t, free.ID).Status)

	t.Run("cannot complete while moving", func(t *testing.T) {
		other, _, err := f.manager.Open(ctx, OpenInput{Date: "2025-10-17", Time: "09:00:00"})
		require.NoError(t, err)

		_, err = f.manager.Reschedule(ctx, other.ID, RescheduleInput{
			Time:   strPtr("10:00:00"),
			Status: strPtr(string(model.SlotStatusCompleted)),
		})
		require.ErrorIs(t, err, ErrInvalidTransition)

		kept := f.reload(t, other.ID)
		assert.Equal(t, model.SlotStatusScheduled, kept.Status)
		assert.True(t, kept.IsAvailable)
		assert.Equal(t, "09:00:00", kept.Time)

		var count int64
		require.NoError(t, f.db.Model(&model.InterviewSlot{}).
			Where("slot_date = ? AND slot_time = ?", "2025-10-17", "10:00:00").Count(&count).Error)
		assert.Zero(t, count)
	})
}

func TestManager_Cancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	slot, _, err := f.manager.Create(ctx, booking("app-a", "2025-10-15", "09:00:00"))
	require.NoError(t, err)

	cancelled, err := f.manager.Cancel(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStatusCancelled, cancelled.Status)
	assert.True(t, cancelled.IsAvailable)
	assert.Nil(t, cancelled.ApplicationID)
	assert.Equal(t, "Candidate app-a", *cancelled.CandidateName)

	again, err := f.manager.Cancel(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, cancelled.UpdatedAt.Unix(), again.UpdatedAt.Unix())

	_, err = f.manager.Cancel(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, _, err = f.manager.Create(ctx, booking("app-b", "2025-10-15", "09:00:00"))
	require.NoError(t, err)

	f.events.mu.Lock()
	defer f.events.mu.Unlock()
	require.Len(t, f.events.events, 3)
	assert.Equal(t, notification.EventCancelled, f.events.events[1].Kind)
	assert.Equal(t, "app-a", f.events.events[1].ApplicationID)
}

func TestManager_Get(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	slot, _, err := f.manager.Create(ctx, booking("app-a", "2025-10-15", "09:00:00"))
	require.NoError(t, err)

	got, err := f.manager.Get(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, slot.ID, got.ID)

	_, err = f.manager.Get(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "interview slot missing not found", UserMessage(err))
}

func TestManager_ConcurrentCreatesOnOneKey(t *testing.T) {
	const n = 8
	apps := make([]string, n)
	for i := range apps {
		apps[i] = fmt.Sprintf("app-%d", i)
	}
	f := newFixture(t, apps...)

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		conflicts atomic.Int32
		start     = make(chan struct{})
	)
	for _, app := range apps {
		wg.Add(1)
		go func(app string) {
			defer wg.Done()
			<-start
			_, _, err := f.manager.Create(context.Background(), booking(app, "2025-10-15", "09:00:00"))
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, ErrSlotConflict):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(app)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(n-1), conflicts.Load())
	assert.Len(t, f.occupiedAt(t, "2025-10-15", "09:00:00"), 1)
}

func TestManager_ConcurrentReschedulesOfOneSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	slot, _, err := f.manager.Create(ctx, booking("app-a", "2025-10-15", "09:00:00"))
	require.NoError(t, err)

	targets := []string{"10:00:00", "11:00:00"}
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target string) {
			defer wg.Done()
			_, errs[i] = f.manager.Reschedule(ctx, slot.ID, RescheduleInput{Time: strPtr(target)})
		}(i, target)
	}
	wg.Wait()

	var ok, cancelled int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrSlotCancelled):
			cancelled++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, cancelled)

	var held []model.InterviewSlot
	require.NoError(t, f.db.Where("application_id = ?", "app-a").Find(&held).Error)
	assert.Len(t, held, 1)
}

// faultyStore injects failures around a real store.
type faultyStore struct {
	store.Store
	conflicts  int
	failInsert bool
	calls      int
}

func (s *faultyStore) Transact(ctx context.Context, fn func(tx store.SlotTx) error) error {
	s.calls++
	if s.conflicts > 0 {
		s.conflicts--
		return fmt.Errorf("%w: simulated", store.ErrConcurrencyConflict)
	}
	return s.Store.Transact(ctx, func(tx store.SlotTx) error {
		return fn(faultyTx{SlotTx: tx, failInsert: s.failInsert})
	})
}

type faultyTx struct {
	store.SlotTx
	failInsert bool
}

func (t faultyTx) Insert(slot *model.InterviewSlot) error {
	if t.failInsert {
		return errors.New("disk full")
	}
	return t.SlotTx.Insert(slot)
}

func TestManager_RescheduleIsAtomic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	slot, _, err := f.manager.Create(ctx, booking("app-a", "2025-10-15", "09:00:00"))
	require.NoError(t, err)

	m := f.withStore(&faultyStore{Store: f.store, failInsert: true})
	_, err = m.Reschedule(ctx, slot.ID, RescheduleInput{Time: strPtr("10:00:00")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	unchanged := f.reload(t, slot.ID)
	assert.Equal(t, model.SlotStatusScheduled, unchanged.Status)
	assert.False(t, unchanged.IsAvailable)
	assert.Equal(t, "app-a", *unchanged.ApplicationID)

	var count int64
	require.NoError(t, f.db.Model(&model.InterviewSlot{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestManager_ConflictRetries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("succeeds after transient races", func(t *testing.T) {
		fs := &faultyStore{Store: f.store, conflicts: 2}
		_, _, err := f.withStore(fs).Create(ctx, booking("app-a", "2025-10-15", "09:00:00"))
		require.NoError(t, err)
		assert.Equal(t, 3, fs.calls)
	})

	t.Run("reports a conflict once retries are spent", func(t *testing.T) {
		fs := &faultyStore{Store: f.store, conflicts: 10}
		_, _, err := f.withStore(fs).Create(ctx, booking("app-b", "2025-10-15", "10:00:00"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrSlotConflict))
		assert.Equal(t, 3, fs.calls)
	})
}
