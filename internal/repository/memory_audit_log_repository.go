package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/certmgmt/backend/internal/domain"
)

type MemoryAuditLogRepository struct {
	mu   sync.RWMutex
	logs []domain.AuditLog
	now  func() time.Time
}

func NewMemoryAuditLogRepository() *MemoryAuditLogRepository {
	return &MemoryAuditLogRepository{now: time.Now}
}

func (r *MemoryAuditLogRepository) Create(_ context.Context, input domain.CreateAuditLogInput) (*domain.AuditLog, error) {
	var details json.RawMessage
	if input.Details != nil {
		data, err := json.Marshal(input.Details)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal details: %w", err)
		}
		details = data
	}

	log := domain.AuditLog{
		ID:            uuid.NewString(),
		EventType:     input.EventType,
		ResourceType:  input.ResourceType,
		ResourceID:    input.ResourceID,
		ParticipantID: input.ParticipantID,
		UserName:      input.UserName,
		Details:       details,
		IPAddress:     input.IPAddress,
		UserAgent:     input.UserAgent,
		CreatedAt:     r.now().UTC(),
	}

	r.mu.Lock()
	r.logs = append(r.logs, log)
	r.mu.Unlock()

	return &log, nil
}

func (r *MemoryAuditLogRepository) FindAll(_ context.Context, filter domain.AuditLogFilter) ([]domain.AuditLog, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]domain.AuditLog, 0)
	for i := len(r.logs) - 1; i >= 0; i-- {
		if auditLogMatches(r.logs[i], filter) {
			matched = append(matched, r.logs[i])
		}
	}

	limit, offset := normalizePagination(filter.Limit, filter.Offset)
	total := len(matched)
	if offset >= total {
		return []domain.AuditLog{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r *MemoryAuditLogRepository) DeleteOlderThan(_ context.Context, days int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().AddDate(0, 0, -days)
	kept := r.logs[:0]
	var deleted int64
	for _, log := range r.logs {
		if log.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, log)
	}
	r.logs = kept
	return deleted, nil
}

func auditLogMatches(log domain.AuditLog, filter domain.AuditLogFilter) bool {
	if filter.EventType != nil && log.EventType != *filter.EventType {
		return false
	}
	if filter.ResourceID != nil && !equalPtr(log.ResourceID, *filter.ResourceID) {
		return false
	}
	if filter.ParticipantID != nil && !equalPtr(log.ParticipantID, *filter.ParticipantID) {
		return false
	}
	if filter.UserName != nil && !equalPtr(log.UserName, *filter.UserName) {
		return false
	}
	if filter.StartDate != nil && log.CreatedAt.Before(*filter.StartDate) {
		return false
	}
	if filter.EndDate != nil && log.CreatedAt.After(*filter.EndDate) {
		return false
	}
	return true
}

func equalPtr(p *string, v string) bool {
	return p != nil && *p == v
}
