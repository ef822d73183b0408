package scheduling

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"hr-scheduling-backend/internal/model"
	"hr-scheduling-backend/internal/notification"
	"hr-scheduling-backend/internal/parse"
	"hr-scheduling-backend/internal/store"
)

// DefaultMaxConflictRetries bounds how often a mutation is re-run after a
// concurrent writer won the same key.
const DefaultMaxConflictRetries = 3

// ApplicationDirectory resolves application ids. Lookup returns nil, nil
// when the application does not exist.
type ApplicationDirectory interface {
	Lookup(ctx context.Context, id string) (*model.Application, error)
}

// Notifier receives lifecycle events after they have been committed.
type Notifier interface {
	Notify(ev notification.Event)
}

type discardNotifier struct{}

func (discardNotifier) Notify(notification.Event) {}

// CreateInput carries a booking request. Optional fields are nil when the
// client did not send them.
type CreateInput struct {
	Date          string
	Time          string
	ApplicationID string
	CandidateName *string
	JobTitle      *string
	Status        *string
	Location      *string
	Notes         *string
}

// RescheduleInput carries a partial update of a slot.
type RescheduleInput struct {
	Date     *string
	Time     *string
	Status   *string
	Location *string
	Notes    *string
}

// OpenInput publishes a free slot at a key.
type OpenInput struct {
	Date     string
	Time     string
	Location *string
	Notes    *string
}

// Rescheduled is the result of Manager.Reschedule. When Moved is true the
// booking now lives in Slot and PreviousID names the cancelled original.
type Rescheduled struct {
	Slot       *model.InterviewSlot
	PreviousID string
	Moved      bool
}

// Manager owns every mutation of interview slots.
type Manager struct {
	store      store.Store
	resolver   ConflictResolver
	apps       ApplicationDirectory
	notifier   Notifier
	maxRetries int
	logger     *zap.Logger
	newID      func() string
}

// NewManager wires a Manager. A nil notifier discards events and a
// non-positive maxRetries falls back to DefaultMaxConflictRetries.
func NewManager(s store.Store, apps ApplicationDirectory, notifier Notifier, maxRetries int, logger *zap.Logger) *Manager {
	if notifier == nil {
		notifier = discardNotifier{}
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxConflictRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:      s,
		apps:       apps,
		notifier:   notifier,
		maxRetries: maxRetries,
		logger:     logger.Named("scheduling"),
		newID:      uuid.NewString,
	}
}

// Get returns the slot with the given id.
func (m *Manager) Get(ctx context.Context, id string) (*model.InterviewSlot, error) {
	slot, err := m.store.GetSlot(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, err
	}
	return slot, nil
}

// Create books the key for an application. It is idempotent: repeating a
// booking the application already holds returns the held slot and false.
func (m *Manager) Create(ctx context.Context, in CreateInput) (*model.InterviewSlot, bool, error) {
	key, err := parseKey(in.Date, in.Time)
	if err != nil {
		return nil, false, err
	}
	if in.Status != nil {
		// Accepted for validation only; a new booking always starts scheduled.
		if _, err := parseStatus(*in.Status); err != nil {
			return nil, false, err
		}
	}
	appID := strings.TrimSpace(in.ApplicationID)
	if appID == "" {
		return nil, false, invalidFormat(errors.New("application_id is required"))
	}

	app, err := m.apps.Lookup(ctx, appID)
	if err != nil {
		return nil, false, errors.Wrapf(err, "look up application %s", appID)
	}
	if app == nil {
		return nil, false, applicationNotFound(appID)
	}

	who := occupant{
		applicationID: appID,
		candidateName: orDefault(in.CandidateName, app.CandidateName),
		jobTitle:      orDefault(in.JobTitle, app.JobTitle),
	}
	extras := overrides{location: in.Location, notes: in.Notes}

	var (
		slot    *model.InterviewSlot
		changed bool
	)
	err = m.withConflictRetry(ctx, "create", key.String(), func(tx store.SlotTx) error {
		var err error
		slot, changed, err = m.occupy(tx, key, who, extras)
		return err
	})
	if err != nil {
		return nil, false, err
	}

	if changed {
		m.logger.Info("interview booked",
			zap.String("slot_id", slot.ID),
			zap.String("application_id", appID),
			zap.Stringer("key", key))
		m.notify(notification.EventBooked, slot, "")
	} else {
		m.logger.Debug("booking already held", zap.String("slot_id", slot.ID), zap.String("application_id", appID))
	}
	return slot, changed, nil
}

// Reschedule applies a partial update. Changing date or time moves the
// booking: the original row is cancelled and the application occupies the
// target key, all in one transaction.
func (m *Manager) Reschedule(ctx context.Context, id string, in RescheduleInput) (*Rescheduled, error) {
	var status *model.SlotStatus
	if in.Status != nil {
		st, err := parseStatus(*in.Status)
		if err != nil {
			return nil, err
		}
		status = &st
	}
	var newDate, newTime string
	if in.Date != nil {
		d, err := parse.ParseDate(*in.Date)
		if err != nil {
			return nil, invalidFormat(err)
		}
		newDate = d
	}
	if in.Time != nil {
		t, err := parse.ParseTime(*in.Time)
		if err != nil {
			return nil, invalidFormat(err)
		}
		newTime = t
	}
	extras := overrides{location: in.Location, notes: in.Notes}

	var (
		result     *Rescheduled
		prevStatus model.SlotStatus
		prevApp    string
	)
	err := m.withConflictRetry(ctx, "reschedule", id, func(tx store.SlotTx) error {
		current, err := lockSlot(tx, id)
		if err != nil {
			return err
		}
		prevStatus = current.Status
		prevApp = deref(current.ApplicationID)

		target := current.Key()
		if newDate != "" {
			target.Date = newDate
		}
		if newTime != "" {
			target.Time = newTime
		}

		if target == current.Key() {
			result, err = m.updateInPlace(tx, current, status, extras)
		} else {
			result, err = m.move(tx, current, target, status, extras)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	slot := result.Slot
	switch {
	case result.Moved:
		m.logger.Info("interview rescheduled",
			zap.String("previous_slot_id", result.PreviousID),
			zap.String("slot_id", slot.ID),
			zap.Stringer("key", slot.Key()))
		m.notify(notification.EventRescheduled, slot, result.PreviousID)
	case slot.Status != prevStatus && slot.Status == model.SlotStatusCancelled:
		m.logger.Info("interview cancelled", zap.String("slot_id", slot.ID))
		m.notifyApp(notification.EventCancelled, slot, prevApp)
	case slot.Status != prevStatus && slot.Status == model.SlotStatusCompleted:
		m.logger.Info("interview completed", zap.String("slot_id", slot.ID))
		m.notify(notification.EventCompleted, slot, "")
	}
	return result, nil
}

// Cancel releases the slot. Cancelling a cancelled slot is a no-op that
// still succeeds.
func (m *Manager) Cancel(ctx context.Context, id string) (*model.InterviewSlot, error) {
	var (
		slot    *model.InterviewSlot
		prevApp string
		changed bool
	)
	err := m.withConflictRetry(ctx, "cancel", id, func(tx store.SlotTx) error {
		var err error
		slot, err = lockSlot(tx, id)
		if err != nil {
			return err
		}
		if slot.Status == model.SlotStatusCancelled {
			changed = false
			return nil
		}
		prevApp = deref(slot.ApplicationID)
		slot.Release()
		changed = true
		return tx.Save(slot)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		m.logger.Info("interview cancelled", zap.String("slot_id", id))
		m.notifyApp(notification.EventCancelled, slot, prevApp)
	}
	return slot, nil
}

// Open publishes a free slot at the key. An existing free slot is returned
// as is with false.
func (m *Manager) Open(ctx context.Context, in OpenInput) (*model.InterviewSlot, bool, error) {
	key, err := parseKey(in.Date, in.Time)
	if err != nil {
		return nil, false, err
	}

	var (
		slot    *model.InterviewSlot
		created bool
	)
	err = m.withConflictRetry(ctx, "open", key.String(), func(tx store.SlotTx) error {
		var err error
		slot, created, err = m.open(tx, key, overrides{location: in.Location, notes: in.Notes})
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		m.logger.Info("slot opened", zap.String("slot_id", slot.ID), zap.Stringer("key", key))
	}
	return slot, created, nil
}

type occupant struct {
	applicationID string
	candidateName *string
	jobTitle      *string
}

type overrides struct {
	location *string
	notes    *string
}

func (o overrides) apply(slot *model.InterviewSlot) {
	if o.location != nil {
		slot.Location = o.location
	}
	if o.notes != nil {
		slot.Notes = o.notes
	}
}

// occupy binds the key to who. The boolean reports whether anything was
// written.
func (m *Manager) occupy(tx store.SlotTx, key model.SlotKey, who occupant, extras overrides) (*model.InterviewSlot, bool, error) {
	res, err := m.resolver.Resolve(tx, key, who.applicationID)
	if err != nil {
		return nil, false, err
	}
	m.logger.Debug("resolved key", zap.Stringer("key", key), zap.Stringer("outcome", res.Outcome))

	switch res.Outcome {
	case OccupiedByOther:
		return nil, false, slotConflict(key.String())
	case OccupiedBySame:
		return res.Existing, false, nil
	case FreeExisting:
		slot := res.Existing
		slot.Occupy(who.applicationID, who.candidateName, who.jobTitle)
		extras.apply(slot)
		return slot, true, tx.Save(slot)
	default:
		slot := &model.InterviewSlot{ID: m.newID(), Date: key.Date, Time: key.Time}
		slot.Occupy(who.applicationID, who.candidateName, who.jobTitle)
		extras.apply(slot)
		return slot, true, tx.Insert(slot)
	}
}

func (m *Manager) open(tx store.SlotTx, key model.SlotKey, extras overrides) (*model.InterviewSlot, bool, error) {
	res, err := m.resolver.Resolve(tx, key, "")
	if err != nil {
		return nil, false, err
	}
	switch res.Outcome {
	case OccupiedByOther, OccupiedBySame:
		return nil, false, slotConflict(key.String())
	case FreeExisting:
		return res.Existing, false, nil
	default:
		slot := &model.InterviewSlot{
			ID:          m.newID(),
			Date:        key.Date,
			Time:        key.Time,
			Status:      model.SlotStatusScheduled,
			IsAvailable: true,
		}
		extras.apply(slot)
		return slot, true, tx.Insert(slot)
	}
}

func (m *Manager) updateInPlace(tx store.SlotTx, slot *model.InterviewSlot, status *model.SlotStatus, extras overrides) (*Rescheduled, error) {
	if status != nil {
		if slot.Status == model.SlotStatusCancelled && *status != model.SlotStatusCancelled {
			return nil, slotCancelled(slot.ID)
		}
		if *status == model.SlotStatusCompleted && !slot.Occupied() {
			return nil, errors.WithHintf(errors.WithStack(ErrInvalidTransition),
				"interview slot %s has no booking to complete", slot.ID)
		}
		if err := slot.SetStatus(*status); err != nil {
			return nil, errors.WithSecondaryError(errors.WithStack(ErrInvalidTransition), err)
		}
	}
	extras.apply(slot)
	if err := tx.Save(slot); err != nil {
		return nil, err
	}
	return &Rescheduled{Slot: slot}, nil
}

// move cancels slot and books its application at target.
func (m *Manager) move(tx store.SlotTx, slot *model.InterviewSlot, target model.SlotKey, status *model.SlotStatus, extras overrides) (*Rescheduled, error) {
	if slot.Status == model.SlotStatusCancelled {
		return nil, errors.WithHintf(errors.WithStack(ErrSlotCancelled),
			"interview slot %s is cancelled and cannot be rescheduled", slot.ID)
	}
	if status != nil && *status == model.SlotStatusCancelled {
		return nil, errors.WithHint(errors.WithStack(ErrInvalidTransition),
			"a slot cannot be cancelled and moved in the same update")
	}
	if status != nil && *status == model.SlotStatusCompleted && !slot.Occupied() {
		return nil, errors.WithHintf(errors.WithStack(ErrInvalidTransition),
			"interview slot %s has no booking to complete", slot.ID)
	}

	carried := overrides{location: slot.Location, notes: slot.Notes}
	who := occupant{
		applicationID: deref(slot.ApplicationID),
		candidateName: slot.CandidateName,
		jobTitle:      slot.JobTitle,
	}
	previousID := slot.ID

	// Release first so the target lookup never sees the original as a holder.
	slot.Release()
	if err := tx.Save(slot); err != nil {
		return nil, err
	}

	var (
		moved *model.InterviewSlot
		err   error
	)
	if who.applicationID == "" {
		// A free placeholder moves as a free placeholder.
		moved, _, err = m.open(tx, target, overrides{})
	} else {
		moved, _, err = m.occupy(tx, target, who, overrides{})
	}
	if err != nil {
		return nil, err
	}

	if moved.Location == nil {
		moved.Location = carried.location
	}
	if moved.Notes == nil {
		moved.Notes = carried.notes
	}
	extras.apply(moved)
	if status != nil && *status != moved.Status {
		if err := moved.SetStatus(*status); err != nil {
			return nil, errors.WithSecondaryError(errors.WithStack(ErrInvalidTransition), err)
		}
	}
	if err := tx.Save(moved); err != nil {
		return nil, err
	}
	return &Rescheduled{Slot: moved, PreviousID: previousID, Moved: true}, nil
}

// withConflictRetry re-runs fn while the store reports a lost race. Once
// the retries are spent the race is reported as a slot conflict.
func (m *Manager) withConflictRetry(ctx context.Context, op, subject string, fn func(tx store.SlotTx) error) error {
	var err error
	for attempt := 1; attempt <= m.maxRetries; attempt++ {
		err = m.store.Transact(ctx, fn)
		if !errors.Is(err, store.ErrConcurrencyConflict) {
			return err
		}
		m.logger.Debug("concurrent modification, retrying",
			zap.String("op", op),
			zap.String("subject", subject),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	m.logger.Warn("giving up after concurrent modifications",
		zap.String("op", op), zap.String("subject", subject), zap.Error(err))
	return errors.WithSecondaryError(slotConflict(subject), err)
}

func (m *Manager) notify(kind notification.EventKind, slot *model.InterviewSlot, previousID string) {
	m.notifier.Notify(notification.Event{
		Kind:           kind,
		ApplicationID:  deref(slot.ApplicationID),
		SlotID:         slot.ID,
		PreviousSlotID: previousID,
		Date:           slot.Date,
		Time:           slot.Time,
	})
}

// notifyApp is notify for events on slots that no longer carry their
// application.
func (m *Manager) notifyApp(kind notification.EventKind, slot *model.InterviewSlot, applicationID string) {
	if applicationID == "" {
		return
	}
	m.notifier.Notify(notification.Event{
		Kind:          kind,
		ApplicationID: applicationID,
		SlotID:        slot.ID,
		Date:          slot.Date,
		Time:          slot.Time,
	})
}

func lockSlot(tx store.SlotTx, id string) (*model.InterviewSlot, error) {
	slot, err := tx.LockSlot(id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound(id)
	}
	return slot, err
}

func parseKey(date, clock string) (model.SlotKey, error) {
	d, err := parse.ParseDate(date)
	if err != nil {
		return model.SlotKey{}, invalidFormat(err)
	}
	t, err := parse.ParseTime(clock)
	if err != nil {
		return model.SlotKey{}, invalidFormat(err)
	}
	return model.SlotKey{Date: d, Time: t}, nil
}

func parseStatus(raw string) (model.SlotStatus, error) {
	st, err := model.ParseSlotStatus(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return "", invalidStatus(raw)
	}
	return st, nil
}

func orDefault(v *string, fallback string) *string {
	if v != nil {
		return v
	}
	if fallback == "" {
		return nil
	}
	return &fallback
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
