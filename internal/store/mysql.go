package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"healthmonitor/internal/models"
)

const mysqlOpTimeout = 5 * time.Second

// MySQLStore persists health history and alerts in a MySQL database. Rows
// are keyed by nanosecond timestamp and carry the serialized record as a
// JSON payload, so the table layout stays stable as the record evolves.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore opens a connection for the given DSN, verifies it and
// creates the schema when missing.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), mysqlOpTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS health_checks (
			ts BIGINT NOT NULL,
			overall_status VARCHAR(16) NOT NULL,
			payload JSON NOT NULL,
			PRIMARY KEY (ts)
		)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			ts BIGINT NOT NULL,
			status VARCHAR(16) NOT NULL,
			kind VARCHAR(16) NOT NULL,
			payload JSON NOT NULL,
			PRIMARY KEY (ts)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Append inserts a record into the health_checks table.
func (s *MySQLStore) Append(record models.HealthRecord) error {
	if len(record.Probes) == 0 {
		return ErrEmptyRecord
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), mysqlOpTimeout)
	defer cancel()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO health_checks (ts, overall_status, payload) VALUES (?, ?, ?)`,
		record.Timestamp.UnixNano(), record.Overall.String(), payload)
	if err != nil {
		return fmt.Errorf("insert health record: %w", err)
	}
	return nil
}

// QuerySince returns records with timestamp >= since, oldest first.
func (s *MySQLStore) QuerySince(since time.Time) ([]models.HealthRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mysqlOpTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM health_checks WHERE ts >= ? ORDER BY ts ASC`,
		since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("query health records: %w", err)
	}
	defer rows.Close()

	var records []models.HealthRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan health record: %w", err)
		}
		var record models.HealthRecord
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, fmt.Errorf("decode health record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate health records: %w", err)
	}
	return records, nil
}

// Latest returns the most recent record if one exists.
func (s *MySQLStore) Latest() (models.HealthRecord, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), mysqlOpTimeout)
	defer cancel()

	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM health_checks ORDER BY ts DESC LIMIT 1`).Scan(&payload)
	if err != nil {
		return models.HealthRecord{}, false
	}
	var record models.HealthRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return models.HealthRecord{}, false
	}
	return record, true
}

// RecordAlert inserts an audit entry into the alerts table.
func (s *MySQLStore) RecordAlert(event models.AlertEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), mysqlOpTimeout)
	defer cancel()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO alerts (ts, status, kind, payload) VALUES (?, ?, ?, ?)`,
		event.Timestamp.UnixNano(), event.Status.String(), event.Kind, payload)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// AlertsSince returns audit entries with timestamp >= since, oldest first.
func (s *MySQLStore) AlertsSince(since time.Time) ([]models.AlertEvent, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mysqlOpTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM alerts WHERE ts >= ? ORDER BY ts ASC`,
		since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var events []models.AlertEvent
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		var event models.AlertEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("decode alert: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return events, nil
}

// Close releases the database handle.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}
