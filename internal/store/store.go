package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hr-scheduling-backend/internal/model"
)

// Store defines the interface for all slot persistence. It is the only
// component that writes interview_slots rows.
type Store interface {
	DB() *gorm.DB

	// Transact runs fn inside one database transaction. Transient failures
	// re-run fn from the start; unique-key and serialization failures are
	// reported as ErrConcurrencyConflict.
	Transact(ctx context.Context, fn func(tx SlotTx) error) error

	GetSlot(ctx context.Context, id string) (*model.InterviewSlot, error)
	ListSlots(ctx context.Context, f SlotFilter) ([]model.InterviewSlot, int64, error)
	CountByStatus(ctx context.Context) ([]StatusCount, error)
}

// SlotTx is the set of read-modify-write operations available inside a
// transaction. Rows read through it stay locked until commit.
type SlotTx interface {
	LockSlot(id string) (*model.InterviewSlot, error)
	// LockActiveAt returns the non-cancelled rows at key, occupied rows
	// first, then in insertion order.
	LockActiveAt(key model.SlotKey) ([]model.InterviewSlot, error)
	Insert(slot *model.InterviewSlot) error
	Save(slot *model.InterviewSlot) error
}

// Option configures a gormStore.
type Option func(*gormStore)

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *gormStore) {
		if p.Attempts > 0 {
			s.retry = p
		}
	}
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db    *gorm.DB
	retry RetryPolicy
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB, opts ...Option) Store {
	s := &gormStore{db: db, retry: DefaultRetryPolicy}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) Transact(ctx context.Context, fn func(tx SlotTx) error) error {
	backoff := s.retry.Backoff
	for attempt := 1; ; attempt++ {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(&gormTx{tx: tx})
		})
		switch {
		case err == nil:
			return nil
		case isConflict(err):
			return fmt.Errorf("%w: %v", ErrConcurrencyConflict, err)
		case !isTransient(err):
			return err
		case attempt >= s.retry.Attempts:
			return fmt.Errorf("%w after %d attempts: %v", ErrUnavailable, attempt, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (s *gormStore) GetSlot(ctx context.Context, id string) (*model.InterviewSlot, error) {
	var slot model.InterviewSlot
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&slot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get slot %s: %w", id, err)
	}
	return &slot, nil
}

func (s *gormStore) ListSlots(ctx context.Context, f SlotFilter) ([]model.InterviewSlot, int64, error) {
	var total int64
	if err := applyFilter(s.db.WithContext(ctx).Model(&model.InterviewSlot{}), f).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count slots: %w", err)
	}

	q := applyFilter(s.db.WithContext(ctx), f)
	for _, term := range f.Order {
		col, ok := sortColumns[term.Field]
		if !ok {
			return nil, 0, fmt.Errorf("unsupported sort field %q", term.Field)
		}
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: term.Desc})
	}
	q = q.Order("seq ASC")
	if f.Skip > 0 {
		q = q.Offset(f.Skip)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	items := []model.InterviewSlot{}
	if err := q.Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list slots: %w", err)
	}
	return items, total, nil
}

func applyFilter(q *gorm.DB, f SlotFilter) *gorm.DB {
	if f.DateFrom != "" {
		q = q.Where("slot_date >= ?", f.DateFrom)
	}
	if f.DateTo != "" {
		q = q.Where("slot_date <= ?", f.DateTo)
	}
	if f.IsAvailable != nil {
		q = q.Where("is_available = ?", *f.IsAvailable)
	}
	if f.RequireApplication {
		q = q.Where("application_id IS NOT NULL")
	}
	if f.ApplicationID != "" {
		q = q.Where("application_id = ?", f.ApplicationID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return q
}

func (s *gormStore) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	var rows []StatusCount
	if err := s.db.WithContext(ctx).
		Model(&model.InterviewSlot{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate slot statuses: %w", err)
	}
	return rows, nil
}

// gormTx implements SlotTx on an open transaction.
type gormTx struct {
	tx *gorm.DB
}

// locking adds FOR UPDATE where the dialect has row locks. SQLite
// transactions already hold the database write lock.
func (t *gormTx) locking() *gorm.DB {
	if t.tx.Dialector.Name() == "postgres" {
		return t.tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return t.tx
}

func (t *gormTx) LockSlot(id string) (*model.InterviewSlot, error) {
	var slot model.InterviewSlot
	err := t.locking().Where("id = ?", id).First(&slot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock slot %s: %w", id, err)
	}
	return &slot, nil
}

func (t *gormTx) LockActiveAt(key model.SlotKey) ([]model.InterviewSlot, error) {
	var rows []model.InterviewSlot
	err := t.locking().
		Where("slot_date = ? AND slot_time = ? AND status <> ?", key.Date, key.Time, model.SlotStatusCancelled).
		Order("is_available ASC").
		Order("seq ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock slots at %s: %w", key, err)
	}
	return rows, nil
}

func (t *gormTx) Insert(slot *model.InterviewSlot) error {
	if err := t.tx.Create(slot).Error; err != nil {
		return fmt.Errorf("failed to insert slot at %s: %w", slot.Key(), err)
	}
	return nil
}

func (t *gormTx) Save(slot *model.InterviewSlot) error {
	if err := t.tx.Save(slot).Error; err != nil {
		return fmt.Errorf("failed to save slot %s: %w", slot.ID, err)
	}
	return nil
}
