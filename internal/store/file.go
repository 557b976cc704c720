package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"healthmonitor/internal/models"
)

// FileStore persists health history and alert audit entries as JSON files on
// disk. Existing history is loaded at start; every append rewrites the file
// through a temp file and rename so a failed write leaves the previous
// content intact.
type FileStore struct {
	mu         sync.RWMutex
	recordPath string
	alertPath  string
	records    []models.HealthRecord
	alerts     []models.AlertEvent
}

// NewFileStore creates the data directory if needed and loads any existing
// history from it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure data directory: %w", err)
	}

	s := &FileStore{
		recordPath: filepath.Join(dir, "health_history.json"),
		alertPath:  filepath.Join(dir, "alert_history.json"),
	}
	if err := loadJSON(s.recordPath, &s.records); err != nil {
		return nil, fmt.Errorf("load health history: %w", err)
	}
	if err := loadJSON(s.alertPath, &s.alerts); err != nil {
		return nil, fmt.Errorf("load alert history: %w", err)
	}
	return s, nil
}

// Append adds a record and persists the history to disk.
func (s *FileStore) Append(record models.HealthRecord) error {
	if len(record.Probes) == 0 {
		return ErrEmptyRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, record)
	if err := persistJSON(s.recordPath, s.records); err != nil {
		s.records = s.records[:len(s.records)-1]
		return err
	}
	return nil
}

// QuerySince returns records with timestamp >= since in append order.
func (s *FileStore) QuerySince(since time.Time) ([]models.HealthRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := sort.Search(len(s.records), func(i int) bool {
		return !s.records[i].Timestamp.Before(since)
	})
	if idx >= len(s.records) {
		return nil, nil
	}
	out := make([]models.HealthRecord, len(s.records)-idx)
	copy(out, s.records[idx:])
	return out, nil
}

// Latest returns the most recent record if one exists.
func (s *FileStore) Latest() (models.HealthRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 {
		return models.HealthRecord{}, false
	}
	return s.records[len(s.records)-1], true
}

// RecordAlert appends an alert audit entry and persists it.
func (s *FileStore) RecordAlert(event models.AlertEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alerts = append(s.alerts, event)
	if err := persistJSON(s.alertPath, s.alerts); err != nil {
		s.alerts = s.alerts[:len(s.alerts)-1]
		return err
	}
	return nil
}

// AlertsSince returns audit entries with timestamp >= since in append order.
func (s *FileStore) AlertsSince(since time.Time) ([]models.AlertEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := sort.Search(len(s.alerts), func(i int) bool {
		return !s.alerts[i].Timestamp.Before(since)
	})
	if idx >= len(s.alerts) {
		return nil, nil
	}
	out := make([]models.AlertEvent, len(s.alerts)-idx)
	copy(out, s.alerts[idx:])
	return out, nil
}

// Close releases nothing for the file store.
func (s *FileStore) Close() error { return nil }

func loadJSON(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func persistJSON(path string, payload any) error {
	bytes, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", path, time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, bytes, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
