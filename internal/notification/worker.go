package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hr-scheduling-backend/internal/model"
)

// EventKind names a committed change to an interview booking.
type EventKind string

const (
	EventBooked      EventKind = "booked"
	EventRescheduled EventKind = "rescheduled"
	EventCancelled   EventKind = "cancelled"
	EventCompleted   EventKind = "completed"
)

// Event is a committed booking change for one application.
type Event struct {
	Kind           EventKind
	ApplicationID  string
	SlotID         string
	PreviousSlotID string
	Date           string
	Time           string
}

// Payload is the JSON body delivered to push subscribers.
type Payload struct {
	Kind           EventKind `json:"kind"`
	SlotID         string    `json:"slot_id"`
	PreviousSlotID string    `json:"previous_slot_id,omitempty"`
	ApplicationID  string    `json:"application_id"`
	Date           string    `json:"date"`
	Time           string    `json:"time"`
	Message        string    `json:"message"`
}

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan Event
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
	logger  *zap.Logger
}

// NewWorkerPool creates a new worker pool. queueSize bounds how many events
// may wait for a worker before Notify starts dropping them.
func NewWorkerPool(size, queueSize int, db *gorm.DB, webpushOptions *webpush.Options, logger *zap.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if queueSize < size {
		queueSize = size
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Event, queueSize),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		logger:  logger.Named("notification"),
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.logger.Debug("worker started", zap.Int("worker", id))
	for {
		select {
		case ev := <-wp.jobs:
			wp.logger.Debug("processing event",
				zap.Int("worker", id),
				zap.String("kind", string(ev.Kind)),
				zap.String("application_id", ev.ApplicationID))
			wp.sendNotificationsForApplication(ctx, ev)
		case <-ctx.Done():
			wp.logger.Debug("worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Notify queues ev without blocking. Events are dropped when the queue is
// full; a booking never waits on push delivery.
func (wp *WorkerPool) Notify(ev Event) {
	if ev.ApplicationID == "" {
		return
	}
	select {
	case wp.jobs <- ev:
	default:
		wp.logger.Warn("notification queue full, dropping event",
			zap.String("kind", string(ev.Kind)),
			zap.String("slot_id", ev.SlotID))
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Event {
	return wp.jobs
}

func (wp *WorkerPool) sendNotificationsForApplication(ctx context.Context, ev Event) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_application_mapping sam ON sam.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("sam.application_id = ?", ev.ApplicationID).
		Find(&subscriptions).Error
	if err != nil {
		wp.logger.Error("failed to fetch subscriptions",
			zap.String("application_id", ev.ApplicationID), zap.Error(err))
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	wp.logger.Info("sending notifications",
		zap.Int("count", len(subscriptions)),
		zap.String("application_id", ev.ApplicationID))

	label := "Your"
	var app model.Application
	if err := wp.db.WithContext(ctx).
		Select("candidate_name").
		First(&app, "id = ?", ev.ApplicationID).Error; err != nil {
		wp.logger.Warn("failed to fetch application", zap.String("application_id", ev.ApplicationID), zap.Error(err))
	} else if app.CandidateName != "" {
		label = app.CandidateName + ", your"
	}

	payload, err := json.Marshal(Payload{
		Kind:           ev.Kind,
		SlotID:         ev.SlotID,
		PreviousSlotID: ev.PreviousSlotID,
		ApplicationID:  ev.ApplicationID,
		Date:           ev.Date,
		Time:           ev.Time,
		Message:        fmt.Sprintf("%s interview on %s at %s has been %s.", label, ev.Date, ev.Time, ev.Kind),
	})
	if err != nil {
		wp.logger.Error("failed to encode payload", zap.Error(err))
		return
	}
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.logger.Error("failed to send notification", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		wp.logger.Info("subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		err := wp.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec("DELETE FROM subscription_application_mapping WHERE push_subscription_endpoint = ?", sub.Endpoint).Error; err != nil {
				return err
			}
			return tx.Delete(&sub).Error
		})
		if err != nil {
			wp.logger.Error("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}
}
