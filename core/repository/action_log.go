// Package repository provides the data access layer for operational logs.
package repository

import (
	"database/sql"

	"dtgate/core/models"
)

// ActionLogRepository handles persistence of action logs (zone selections
// and cache refreshes).
type ActionLogRepository struct {
	db *sql.DB
}

// NewActionLogRepository creates a new action log repository.
func NewActionLogRepository(db *sql.DB) *ActionLogRepository {
	return &ActionLogRepository{db: db}
}

// Create stores an action log in the database.
func (r *ActionLogRepository) Create(entry *models.ActionLog) error {
	query := `
		INSERT INTO action_logs (
			action_type, resource_type, resource_id, resource_name,
			success, error_message, executed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	var errorMsg, resourceName *string
	if entry.ErrorMessage != "" {
		errorMsg = &entry.ErrorMessage
	}
	if entry.ResourceName != "" {
		resourceName = &entry.ResourceName
	}

	result, err := r.db.Exec(
		query,
		entry.ActionType,
		entry.ResourceType,
		entry.ResourceID,
		resourceName,
		entry.Success,
		errorMsg,
		entry.ExecutedAt,
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

// GetRecent retrieves recent action logs across all resources.
func (r *ActionLogRepository) GetRecent(limit int) ([]*models.ActionLog, error) {
	query := `
		SELECT id, action_type, resource_type, resource_id, resource_name,
		       success, error_message, executed_at
		FROM action_logs
		ORDER BY executed_at DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*models.ActionLog
	for rows.Next() {
		entry := &models.ActionLog{}
		var errorMsg, resourceName sql.NullString

		err := rows.Scan(
			&entry.ID,
			&entry.ActionType,
			&entry.ResourceType,
			&entry.ResourceID,
			&resourceName,
			&entry.Success,
			&errorMsg,
			&entry.ExecutedAt,
		)
		if err != nil {
			return nil, err
		}

		entry.ErrorMessage = errorMsg.String
		entry.ResourceName = resourceName.String
		logs = append(logs, entry)
	}

	return logs, rows.Err()
}

// DeleteOlderThan removes action logs older than the specified number of days.
func (r *ActionLogRepository) DeleteOlderThan(days int) (int64, error) {
	query := `DELETE FROM action_logs WHERE executed_at < datetime('now', '-' || ? || ' days')`
	result, err := r.db.Exec(query, days)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
