package repository

import (
	"database/sql"

	"dtgate/core/models"
)

// UpstreamCheckLogRepository handles persistence of upstream connectivity
// probe results.
type UpstreamCheckLogRepository struct {
	db *sql.DB
}

// NewUpstreamCheckLogRepository creates a new upstream check log repository.
func NewUpstreamCheckLogRepository(db *sql.DB) *UpstreamCheckLogRepository {
	return &UpstreamCheckLogRepository{db: db}
}

// Create stores an upstream check result in the database.
func (r *UpstreamCheckLogRepository) Create(entry *models.UpstreamCheckLog) error {
	query := `
		INSERT INTO upstream_check_logs (
			status, latency_ms, request_count, error_message, checked_at
		) VALUES (?, ?, ?, ?, ?)
	`

	var errorMsg *string
	if entry.ErrorMessage != "" {
		errorMsg = &entry.ErrorMessage
	}

	result, err := r.db.Exec(
		query,
		entry.Status,
		entry.LatencyMs,
		entry.RequestCount,
		errorMsg,
		entry.CheckedAt,
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

// Latest retrieves the most recent probe result, or nil when none exist.
func (r *UpstreamCheckLogRepository) Latest() (*models.UpstreamCheckLog, error) {
	query := `
		SELECT id, status, latency_ms, request_count, error_message, checked_at
		FROM upstream_check_logs
		ORDER BY checked_at DESC
		LIMIT 1
	`

	entry := &models.UpstreamCheckLog{}
	var errorMsg sql.NullString

	err := r.db.QueryRow(query).Scan(
		&entry.ID,
		&entry.Status,
		&entry.LatencyMs,
		&entry.RequestCount,
		&errorMsg,
		&entry.CheckedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	entry.ErrorMessage = errorMsg.String
	return entry, nil
}

// DeleteOlderThan removes probe results older than the specified number of days.
func (r *UpstreamCheckLogRepository) DeleteOlderThan(days int) (int64, error) {
	query := `DELETE FROM upstream_check_logs WHERE checked_at < datetime('now', '-' || ? || ' days')`
	result, err := r.db.Exec(query, days)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
