package scheduling

import (
	"context"
	"fmt"

	"hr-scheduling-backend/internal/model"
	"hr-scheduling-backend/internal/parse"
	"hr-scheduling-backend/internal/store"
)

const (
	DefaultOrder = "date:asc,time:asc"
	DefaultLimit = 100
	MaxLimit     = 1000
)

// ListQuery is a validated-on-use slot listing request. Empty strings and
// nil pointers mean "no filter".
type ListQuery struct {
	DateFrom      string
	DateTo        string
	IsAvailable   *bool
	ApplicationID string
	Status        string
	Order         string
	Skip          int
	Limit         int
}

// Page is one window of a slot listing.
type Page struct {
	Items []model.InterviewSlot
	Total int64
	Skip  int
	Limit int
}

// Number is the 1-based page index of the window.
func (p *Page) Number() int {
	return p.Skip/p.Limit + 1
}

// TotalPages is the number of windows of size Limit covering Total.
func (p *Page) TotalPages() int {
	return int((p.Total + int64(p.Limit) - 1) / int64(p.Limit))
}

// QueryService serves read-only slot listings.
type QueryService struct {
	store store.Store
}

func NewQueryService(s store.Store) *QueryService {
	return &QueryService{store: s}
}

// List returns the slots matching q. Asking for unavailable slots only
// returns booked ones, so stray rows without an application never show up
// as bookings.
func (qs *QueryService) List(ctx context.Context, q ListQuery) (*Page, error) {
	f := store.SlotFilter{
		IsAvailable:   q.IsAvailable,
		ApplicationID: q.ApplicationID,
		Skip:          q.Skip,
		Limit:         q.Limit,
	}

	var err error
	if q.DateFrom != "" {
		if f.DateFrom, err = parse.ParseDate(q.DateFrom); err != nil {
			return nil, invalidFormat(err)
		}
	}
	if q.DateTo != "" {
		if f.DateTo, err = parse.ParseDate(q.DateTo); err != nil {
			return nil, invalidFormat(err)
		}
	}
	if q.Status != "" {
		if f.Status, err = parseStatus(q.Status); err != nil {
			return nil, err
		}
	}
	if q.IsAvailable != nil && !*q.IsAvailable {
		f.RequireApplication = true
	}

	if f.Skip < 0 {
		return nil, invalidFormat(fmt.Errorf("skip must not be negative, got %d", f.Skip))
	}
	if f.Limit == 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit < 0 || f.Limit > MaxLimit {
		return nil, invalidFormat(fmt.Errorf("limit must be between 1 and %d, got %d", MaxLimit, f.Limit))
	}

	order := q.Order
	if order == "" {
		order = DefaultOrder
	}
	if f.Order, err = parse.ParseOrder(order, store.SortableFields); err != nil {
		return nil, invalidFormat(err)
	}

	items, total, err := qs.store.ListSlots(ctx, f)
	if err != nil {
		return nil, err
	}
	return &Page{Items: items, Total: total, Skip: f.Skip, Limit: f.Limit}, nil
}
