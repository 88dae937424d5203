package repository

import (
	"database/sql"

	"dtgate/core/models"
)

// EventLogRepository handles persistence of system event logs.
type EventLogRepository struct {
	db *sql.DB
}

// NewEventLogRepository creates a new event log repository.
func NewEventLogRepository(db *sql.DB) *EventLogRepository {
	return &EventLogRepository{db: db}
}

// Create stores an event log in the database.
func (r *EventLogRepository) Create(entry *models.EventLog) error {
	query := `
		INSERT INTO event_logs (event_type, level, message, metadata, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	var metadata *string
	if entry.Metadata != "" {
		metadata = &entry.Metadata
	}

	result, err := r.db.Exec(
		query,
		entry.EventType,
		entry.Level,
		entry.Message,
		metadata,
		entry.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	entry.ID = id

	return nil
}

// GetRecent retrieves recent event logs.
func (r *EventLogRepository) GetRecent(limit int) ([]*models.EventLog, error) {
	query := `
		SELECT id, event_type, level, message, metadata, created_at
		FROM event_logs
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*models.EventLog
	for rows.Next() {
		entry := &models.EventLog{}
		var metadata sql.NullString

		err := rows.Scan(
			&entry.ID,
			&entry.EventType,
			&entry.Level,
			&entry.Message,
			&metadata,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		entry.Metadata = metadata.String
		logs = append(logs, entry)
	}

	return logs, rows.Err()
}

// DeleteOlderThan removes event logs older than the specified number of days.
func (r *EventLogRepository) DeleteOlderThan(days int) (int64, error) {
	query := `DELETE FROM event_logs WHERE created_at < datetime('now', '-' || ? || ' days')`
	result, err := r.db.Exec(query, days)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
