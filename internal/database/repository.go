package database

import (
	"time"

	"github.com/actionsum/actionlog/internal/models"

	"github.com/pkg/errors"

	"gorm.io/gorm"
)

// Repository indexes captures and loop errors. The HTML row store stays the
// authoritative record; this index only serves status queries.
type Repository struct {
	db *DB
}

// NewRepository creates a new repository instance
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new capture event into the database
func (r *Repository) Create(event *models.CaptureEvent) error {
	result := r.db.Create(event)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert capture event")
	}
	return nil
}

// GetEventsSince retrieves all capture events since a given time in capture order
func (r *Repository) GetEventsSince(since time.Time) ([]*models.CaptureEvent, error) {
	var events []*models.CaptureEvent
	result := r.db.Where("timestamp >= ?", since).Order("timestamp ASC, id ASC").Find(&events)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query capture events")
	}

	return events, nil
}

// GetClassSummarySince counts captures per window class since a given time.
// Each capture stands for one poll interval of focus.
func (r *Repository) GetClassSummarySince(since time.Time, interval time.Duration) ([]models.ClassSummary, error) {
	var summaries []models.ClassSummary

	result := r.db.Model(&models.CaptureEvent{}).
		Select("class_name, COUNT(*) as capture_count").
		Where("timestamp >= ?", since).
		Group("class_name").
		Order("capture_count DESC, class_name ASC").
		Scan(&summaries)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query class summary")
	}

	var total int64
	for i := range summaries {
		summaries[i].TotalSeconds = summaries[i].CaptureCount * int64(interval.Seconds())
		total += summaries[i].CaptureCount
	}
	if total > 0 {
		for i := range summaries {
			summaries[i].Percentage = float64(summaries[i].CaptureCount) / float64(total) * 100.0
		}
	}

	return summaries, nil
}

// GetLatest retrieves the most recent capture event
func (r *Repository) GetLatest() (*models.CaptureEvent, error) {
	var event models.CaptureEvent
	result := r.db.Order("timestamp DESC, id DESC").First(&event)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(result.Error, "failed to get latest event")
	}
	return &event, nil
}

// CreateErrorLog inserts a new error log into the database
func (r *Repository) CreateErrorLog(errorLog *models.ErrorLog) error {
	result := r.db.Create(errorLog)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert error log")
	}
	return nil
}

// CountErrorsSince counts logged errors of kind since a given time
func (r *Repository) CountErrorsSince(kind string, since time.Time) (int64, error) {
	var count int64
	result := r.db.Model(&models.ErrorLog{}).Where("kind = ? AND timestamp >= ?", kind, since).Count(&count)
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to count error logs")
	}
	return count, nil
}
