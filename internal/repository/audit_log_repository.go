package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/certmgmt/backend/internal/domain"
)

type PostgresAuditLogRepository struct {
	db *sql.DB
}

func NewPostgresAuditLogRepository(db *sql.DB) *PostgresAuditLogRepository {
	return &PostgresAuditLogRepository{db: db}
}

const auditLogColumns = `id, event_type, resource_type, resource_id, participant_id, user_name, details, ip_address, user_agent, created_at`

func (r *PostgresAuditLogRepository) Create(ctx context.Context, input domain.CreateAuditLogInput) (*domain.AuditLog, error) {
	var detailsJSON []byte
	var err error
	if input.Details != nil {
		detailsJSON, err = json.Marshal(input.Details)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal details: %w", err)
		}
	}

	query := `
		INSERT INTO audit_logs (event_type, resource_type, resource_id, participant_id, user_name, details, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + auditLogColumns

	row := r.db.QueryRowContext(
		ctx,
		query,
		input.EventType,
		input.ResourceType,
		toNullString(input.ResourceID),
		toNullString(input.ParticipantID),
		toNullString(input.UserName),
		detailsJSON,
		toNullString(input.IPAddress),
		toNullString(input.UserAgent),
	)

	log, err := scanAuditLogRow(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit log: %w", err)
	}
	return log, nil
}

func (r *PostgresAuditLogRepository) FindAll(ctx context.Context, filter domain.AuditLogFilter) ([]domain.AuditLog, int, error) {
	whereClause, args, argIndex := buildAuditFilters(filter)
	total, err := r.countAuditLogs(ctx, whereClause, args)
	if err != nil {
		return nil, 0, err
	}

	limit, offset := normalizePagination(filter.Limit, filter.Offset)
	query := buildAuditLogQuery(whereClause, argIndex)

	args = append(args, limit, offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0)
	for rows.Next() {
		log, err := scanAuditLogRow(rows)
		if err != nil {
			return nil, 0, err
		}
		logs = append(logs, *log)
	}

	return logs, total, rows.Err()
}

func buildAuditFilters(filter domain.AuditLogFilter) (string, []interface{}, int) {
	conditions := make([]string, 0)
	args := make([]interface{}, 0)
	argIndex := 1

	add := func(column string, op string, value interface{}) {
		conditions = append(conditions, fmt.Sprintf("%s %s $%d", column, op, argIndex))
		args = append(args, value)
		argIndex++
	}

	if filter.EventType != nil {
		add("event_type", "=", *filter.EventType)
	}
	if filter.ResourceID != nil {
		add("resource_id", "=", *filter.ResourceID)
	}
	if filter.ParticipantID != nil {
		add("participant_id", "=", *filter.ParticipantID)
	}
	if filter.UserName != nil {
		add("user_name", "=", *filter.UserName)
	}
	if filter.StartDate != nil {
		add("created_at", ">=", *filter.StartDate)
	}
	if filter.EndDate != nil {
		add("created_at", "<=", *filter.EndDate)
	}

	if len(conditions) == 0 {
		return "", args, argIndex
	}

	return "WHERE " + strings.Join(conditions, " AND "), args, argIndex
}

func (r *PostgresAuditLogRepository) countAuditLogs(ctx context.Context, whereClause string, args []interface{}) (int, error) {
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM audit_logs %s", whereClause)
	var total int
	err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count audit logs: %w", err)
	}
	return total, nil
}

func normalizePagination(limit int, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func buildAuditLogQuery(whereClause string, argIndex int) string {
	return fmt.Sprintf(`
		SELECT %s
		FROM audit_logs
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, auditLogColumns, whereClause, argIndex, argIndex+1)
}

func scanAuditLogRow(row rowScanner) (*domain.AuditLog, error) {
	var log domain.AuditLog
	var resourceID, participantID, userName, ipAddress, userAgent sql.NullString
	var details []byte

	err := row.Scan(
		&log.ID,
		&log.EventType,
		&log.ResourceType,
		&resourceID,
		&participantID,
		&userName,
		&details,
		&ipAddress,
		&userAgent,
		&log.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	log.ResourceID = fromNullStringPtr(resourceID)
	log.ParticipantID = fromNullStringPtr(participantID)
	log.UserName = fromNullStringPtr(userName)
	log.IPAddress = fromNullStringPtr(ipAddress)
	log.UserAgent = fromNullStringPtr(userAgent)
	log.Details = details

	return &log, nil
}

func (r *PostgresAuditLogRepository) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	query := `DELETE FROM audit_logs WHERE created_at < NOW() - make_interval(days => $1)`
	result, err := r.db.ExecContext(ctx, query, days)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audit logs: %w", err)
	}
	return result.RowsAffected()
}
