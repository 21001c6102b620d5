package service

import (
	"context"
	"log/slog"

	"github.com/certmgmt/backend/internal/domain"
)

// AuditService persists certificate lifecycle events and serves the audit
// trail. It satisfies domain.EventRecorder.
type AuditService struct {
	repo   domain.AuditLogRepository
	logger *slog.Logger
}

func NewAuditService(repo domain.AuditLogRepository, logger *slog.Logger) *AuditService {
	return &AuditService{
		repo:   repo,
		logger: logger,
	}
}

func (s *AuditService) Record(ctx context.Context, actor domain.Actor, event domain.EventType, cert domain.Certificate) {
	input := domain.CreateAuditLogInput{
		EventType:     event,
		ResourceType:  domain.ResourceCertificateRequest,
		ResourceID:    optional(cert.ID),
		ParticipantID: optional(cert.ParticipantID),
		UserName:      optional(actor.UserName),
		Details:       eventDetails(event, cert),
		IPAddress:     optional(actor.IPAddress),
		UserAgent:     optional(actor.UserAgent),
	}

	if _, err := s.repo.Create(ctx, input); err != nil {
		s.logger.Error("failed to create audit log",
			"event_type", event,
			"resource_id", cert.ID,
			"participant_id", cert.ParticipantID,
			"error", err,
		)
	}
}

func (s *AuditService) Query(ctx context.Context, filter domain.AuditLogFilter) ([]domain.AuditLog, int, error) {
	return s.repo.FindAll(ctx, filter)
}

func (s *AuditService) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	return s.repo.DeleteOlderThan(ctx, retentionDays)
}

func eventDetails(event domain.EventType, cert domain.Certificate) map[string]interface{} {
	details := map[string]interface{}{}

	switch event {
	case domain.EventRequestCreated:
		details["serial_number"] = cert.CertInfo.SerialNumber
		details["subject"] = cert.CertInfo.Subject
		details["valid_to"] = cert.CertInfo.ValidTo
	case domain.EventRequestApproved:
		if cert.ApprovedBy != nil {
			details["approved_by"] = *cert.ApprovedBy
		}
		if cert.CreatedBy != "" {
			details["created_by"] = cert.CreatedBy
		}
	}

	if len(details) == 0 {
		return nil
	}
	return details
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// NoopEventRecorder drops every event. Used when auditing is disabled.
type NoopEventRecorder struct{}

func NewNoopEventRecorder() *NoopEventRecorder {
	return &NoopEventRecorder{}
}

func (NoopEventRecorder) Record(context.Context, domain.Actor, domain.EventType, domain.Certificate) {}
