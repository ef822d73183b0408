// Package directory mirrors the applications owned by the recruitment
// service so bookings can be validated without a remote call.
package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hr-scheduling-backend/internal/model"
)

// Directory resolves applications from the local mirror table, caching hits.
type Directory struct {
	db    *gorm.DB
	cache *cache.Cache
}

// New creates a Directory whose cached entries live for ttl.
func New(db *gorm.DB, ttl time.Duration) *Directory {
	return &Directory{
		db:    db,
		cache: cache.New(ttl, 2*ttl),
	}
}

// Lookup returns the application with the given id, or nil when it does not
// exist. Misses are not cached so a freshly synced application is visible
// immediately.
func (d *Directory) Lookup(ctx context.Context, id string) (*model.Application, error) {
	if cached, found := d.cache.Get(id); found {
		app := cached.(model.Application)
		return &app, nil
	}

	var app model.Application
	err := d.db.WithContext(ctx).Where("id = ?", id).First(&app).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up application %s: %w", id, err)
	}

	d.cache.SetDefault(id, app)
	return &app, nil
}

// Upsert inserts or refreshes applications by id.
func (d *Directory) Upsert(ctx context.Context, apps []model.Application) error {
	if len(apps) == 0 {
		return nil
	}
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"candidate_name", "job_title", "status", "updated_at"}),
	}).CreateInBatches(apps, 100).Error
	if err != nil {
		return fmt.Errorf("failed to upsert applications: %w", err)
	}

	for _, app := range apps {
		d.cache.Delete(app.ID)
	}
	return nil
}
