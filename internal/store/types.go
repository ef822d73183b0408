package store

import (
	"time"

	"hr-scheduling-backend/internal/model"
	"hr-scheduling-backend/internal/parse"
)

// SortableFields lists the slot fields accepted in an order expression.
var SortableFields = []string{"date", "time", "status", "created_at", "updated_at"}

var sortColumns = map[string]string{
	"date":       "slot_date",
	"time":       "slot_time",
	"status":     "status",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

// SlotFilter selects slot rows for listing. Zero values mean "no filter".
type SlotFilter struct {
	DateFrom      string
	DateTo        string
	IsAvailable   *bool
	ApplicationID string
	Status        model.SlotStatus

	// RequireApplication drops rows without an application.
	RequireApplication bool

	Order []parse.OrderTerm
	Skip  int
	Limit int
}

// StatusCount is one row of the per-status aggregation.
type StatusCount struct {
	Status model.SlotStatus
	Count  int64
}

// RetryPolicy bounds how often a transaction is re-run after a transient
// database failure.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultRetryPolicy is used when no policy is supplied.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Backoff: 50 * time.Millisecond}
