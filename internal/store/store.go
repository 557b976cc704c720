package store

import (
	"errors"
	"time"

	"healthmonitor/internal/models"
)

// ErrEmptyRecord rejects a health record carrying no probe results.
var ErrEmptyRecord = errors.New("health record has no probe results")

// Store is append-only persistence for health records and dispatched alerts.
// Records are appended strictly in tick order by a single scheduler loop.
type Store interface {
	// Append durably persists a record. A failed append never loses
	// previously stored records.
	Append(record models.HealthRecord) error

	// QuerySince returns all records with timestamp >= since, oldest first.
	QuerySince(since time.Time) ([]models.HealthRecord, error)

	// Latest returns the most recent record if one exists.
	Latest() (models.HealthRecord, bool)

	// RecordAlert appends a dispatched alert to the audit trail.
	RecordAlert(event models.AlertEvent) error

	// AlertsSince returns audit entries with timestamp >= since, oldest first.
	AlertsSince(since time.Time) ([]models.AlertEvent, error)

	Close() error
}
