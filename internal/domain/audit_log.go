package domain

import (
	"context"
	"encoding/json"
	"time"
)

type EventType string

const (
	EventRequestCreated  EventType = "certificate_request.created"
	EventRequestApproved EventType = "certificate_request.approved"
	EventRequestRejected EventType = "certificate_request.rejected"
	EventRequestDeleted  EventType = "certificate_request.deleted"
)

type ResourceType string

const (
	ResourceCertificateRequest ResourceType = "certificate_request"
)

type AuditLog struct {
	ID            string          `json:"id"`
	EventType     EventType       `json:"eventType"`
	ResourceType  ResourceType    `json:"resourceType"`
	ResourceID    *string         `json:"resourceId,omitempty"`
	ParticipantID *string         `json:"participantId,omitempty"`
	UserName      *string         `json:"userName,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
	IPAddress     *string         `json:"ipAddress,omitempty"`
	UserAgent     *string         `json:"userAgent,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type CreateAuditLogInput struct {
	EventType     EventType
	ResourceType  ResourceType
	ResourceID    *string
	ParticipantID *string
	UserName      *string
	Details       map[string]interface{}
	IPAddress     *string
	UserAgent     *string
}

type AuditLogFilter struct {
	EventType     *EventType
	ResourceID    *string
	ParticipantID *string
	UserName      *string
	StartDate     *time.Time
	EndDate       *time.Time
	Limit         int
	Offset        int
}

type AuditLogRepository interface {
	Create(ctx context.Context, input CreateAuditLogInput) (*AuditLog, error)
	FindAll(ctx context.Context, filter AuditLogFilter) ([]AuditLog, int, error)
	DeleteOlderThan(ctx context.Context, days int) (int64, error)
}

// Actor describes who triggered a state change and from where.
type Actor struct {
	UserName  string
	IPAddress string
	UserAgent string
}

// EventRecorder receives certificate lifecycle events. Implementations must
// not fail the operation that produced the event.
type EventRecorder interface {
	Record(ctx context.Context, actor Actor, event EventType, cert Certificate)
}
