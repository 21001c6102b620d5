package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/certmgmt/backend/internal/domain"
	"github.com/certmgmt/backend/internal/metrics"
	"github.com/certmgmt/backend/internal/pki"
)

const (
	opCreate      = "create"
	opApprove     = "approve"
	opBulkApprove = "bulk_approve"
	opReject      = "reject"
	opBulkReject  = "bulk_reject"
	opDelete      = "delete"
	opBulkDelete  = "bulk_delete"
)

type SubmitCertificateInput struct {
	ParticipantID string
	Filename      string
	CertPEM       []byte
	Description   *string
}

type CertificateService struct {
	repo     domain.CertificateRepository
	recorder domain.EventRecorder
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewCertificateService(
	repo domain.CertificateRepository,
	recorder domain.EventRecorder,
	m *metrics.Metrics,
	logger *slog.Logger,
) *CertificateService {
	return &CertificateService{
		repo:     repo,
		recorder: recorder,
		metrics:  m,
		logger:   logger,
	}
}

// Submit inspects an uploaded certificate and queues it as a new request.
func (s *CertificateService) Submit(ctx context.Context, actor domain.Actor, input SubmitCertificateInput) (*domain.Certificate, error) {
	if err := validateParticipantID(input.ParticipantID); err != nil {
		return nil, err
	}
	if !pki.ValidUploadFilename(input.ParticipantID, input.Filename) {
		return nil, fmt.Errorf("%w: file name must be %s.(cer|crt|pem)", domain.ErrInvalidInput, input.ParticipantID)
	}

	inspection, err := pki.Inspect(input.CertPEM)
	if err != nil {
		return nil, err
	}

	cert := domain.Certificate{
		ParticipantID: input.ParticipantID,
		Type:          domain.CertTypePublic,
		Cert:          string(input.CertPEM),
		CertInfo:      inspection.Info,
		PublicKey:     inspection.PublicKeyPEM,
		Description:   input.Description,
		CreatedBy:     actor.UserName,
		RequestState:  domain.RequestStateCreated,
	}

	id, err := s.repo.CreateRequest(ctx, cert)
	s.metrics.ObserveOperation(opCreate, err)
	if err != nil {
		return nil, err
	}
	cert.ID = id

	s.logger.Info("Certificate request created", "participant_id", cert.ParticipantID, "request_id", id, "created_by", actor.UserName)
	s.recorder.Record(ctx, actor, domain.EventRequestCreated, cert)

	return &cert, nil
}

func (s *CertificateService) GetRequests(ctx context.Context) ([]domain.ParticipantRequests, error) {
	return s.repo.GetRequests(ctx)
}

func (s *CertificateService) GetPendingRequests(ctx context.Context) ([]domain.ParticipantRequests, error) {
	return s.repo.GetPendingRequests(ctx)
}

func (s *CertificateService) GetRequestsByParticipantID(ctx context.Context, participantID string) (*domain.ParticipantRequests, error) {
	if err := validateParticipantID(participantID); err != nil {
		return nil, err
	}

	doc, err := s.repo.GetRequestsByParticipantID(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}

func (s *CertificateService) GetRequestsByParticipantIDs(ctx context.Context, participantIDs []string) ([]domain.ParticipantRequests, error) {
	for _, id := range participantIDs {
		if err := validateParticipantID(id); err != nil {
			return nil, err
		}
	}
	return s.repo.GetRequestsByParticipantIDs(ctx, participantIDs)
}

func (s *CertificateService) GetAllApproved(ctx context.Context) ([]domain.Certificate, error) {
	return s.repo.GetAllApproved(ctx)
}

func (s *CertificateService) GetAllPublicKeys(ctx context.Context) ([]domain.PublicKeyInfo, error) {
	return s.repo.GetAllPublicKeys(ctx)
}

func (s *CertificateService) GetByParticipantID(ctx context.Context, participantID string) (*domain.Certificate, error) {
	if err := validateParticipantID(participantID); err != nil {
		return nil, err
	}

	cert, err := s.repo.GetByParticipantID(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if cert == nil {
		return nil, domain.ErrNotFound
	}
	return cert, nil
}

func (s *CertificateService) GetByID(ctx context.Context, id string) (*domain.Certificate, error) {
	if err := validateRequestID(id); err != nil {
		return nil, err
	}

	cert, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cert == nil {
		return nil, domain.ErrNotFound
	}
	return cert, nil
}

func (s *CertificateService) Approve(ctx context.Context, actor domain.Actor, requestID string) error {
	if err := validateRequestID(requestID); err != nil {
		return err
	}

	err := s.repo.Approve(ctx, requestID, actor.UserName)
	s.metrics.ObserveOperation(opApprove, err)
	if err != nil {
		return err
	}

	s.logger.Info("Certificate request approved", "request_id", requestID, "approved_by", actor.UserName)
	s.recordApproved(ctx, actor, requestID)
	return nil
}

// BulkApprove refuses batches holding two requests of the same participant
// before asking the repository to promote them.
func (s *CertificateService) BulkApprove(ctx context.Context, actor domain.Actor, requestIDs []string) error {
	requestIDs, err := validateBatch(requestIDs)
	if err != nil {
		return err
	}
	s.metrics.ObserveBatch(opBulkApprove, len(requestIDs))

	unique, err := s.repo.AllUniqueParticipants(ctx, requestIDs)
	if err != nil {
		s.metrics.ObserveOperation(opBulkApprove, err)
		return err
	}
	if !unique {
		s.metrics.ObserveOperation(opBulkApprove, domain.ErrDuplicateParticipant)
		return domain.ErrDuplicateParticipant
	}

	err = s.repo.BulkApprove(ctx, requestIDs, actor.UserName)
	s.metrics.ObserveOperation(opBulkApprove, err)
	if err != nil {
		return err
	}

	s.logger.Info("Certificate requests approved", "count", len(requestIDs), "approved_by", actor.UserName)
	for _, id := range requestIDs {
		s.recordApproved(ctx, actor, id)
	}
	return nil
}

func (s *CertificateService) Reject(ctx context.Context, actor domain.Actor, requestID string) error {
	if err := validateRequestID(requestID); err != nil {
		return err
	}

	err := s.repo.Reject(ctx, requestID, actor.UserName)
	s.metrics.ObserveOperation(opReject, err)
	if err != nil {
		return err
	}

	s.logger.Info("Certificate request rejected", "request_id", requestID, "rejected_by", actor.UserName)
	s.recordRequests(ctx, actor, domain.EventRequestRejected, []string{requestID}, s.findRequests(ctx, []string{requestID}))
	return nil
}

func (s *CertificateService) BulkReject(ctx context.Context, actor domain.Actor, requestIDs []string) error {
	requestIDs, err := validateBatch(requestIDs)
	if err != nil {
		return err
	}
	s.metrics.ObserveBatch(opBulkReject, len(requestIDs))

	err = s.repo.BulkReject(ctx, requestIDs, actor.UserName)
	s.metrics.ObserveOperation(opBulkReject, err)
	if err != nil {
		return err
	}

	s.logger.Info("Certificate requests rejected", "count", len(requestIDs), "rejected_by", actor.UserName)
	s.recordRequests(ctx, actor, domain.EventRequestRejected, requestIDs, s.findRequests(ctx, requestIDs))
	return nil
}

func (s *CertificateService) DeleteRequest(ctx context.Context, actor domain.Actor, requestID, participantID string) error {
	if err := validateRequestID(requestID); err != nil {
		return err
	}
	if err := validateParticipantID(participantID); err != nil {
		return err
	}

	snapshot := s.findRequests(ctx, []string{requestID})

	err := s.repo.DeleteRequest(ctx, requestID, participantID)
	s.metrics.ObserveOperation(opDelete, err)
	if err != nil {
		return err
	}

	s.logger.Info("Certificate request deleted", "request_id", requestID, "participant_id", participantID)
	if _, ok := snapshot[requestID]; !ok {
		snapshot = map[string]domain.Certificate{requestID: {ID: requestID, ParticipantID: participantID}}
	}
	s.recordRequests(ctx, actor, domain.EventRequestDeleted, []string{requestID}, snapshot)
	return nil
}

func (s *CertificateService) BulkDeleteRequests(ctx context.Context, actor domain.Actor, requestIDs []string) error {
	requestIDs, err := validateBatch(requestIDs)
	if err != nil {
		return err
	}
	s.metrics.ObserveBatch(opBulkDelete, len(requestIDs))

	snapshot := s.findRequests(ctx, requestIDs)

	err = s.repo.BulkDeleteRequests(ctx, requestIDs)
	s.metrics.ObserveOperation(opBulkDelete, err)
	if err != nil {
		return err
	}

	s.logger.Info("Certificate requests deleted", "count", len(requestIDs))
	s.recordRequests(ctx, actor, domain.EventRequestDeleted, requestIDs, snapshot)
	return nil
}

// findRequests indexes the stored requests for ids. A failed read only costs
// the audit entries their participant.
func (s *CertificateService) findRequests(ctx context.Context, ids []string) map[string]domain.Certificate {
	found, err := s.repo.FindRequests(ctx, ids)
	if err != nil {
		s.logger.Warn("Certificate requests not readable for audit", "count", len(ids), "error", err)
		return nil
	}
	index := make(map[string]domain.Certificate, len(found))
	for _, cert := range found {
		index[cert.ID] = cert
	}
	return index
}

func (s *CertificateService) recordRequests(ctx context.Context, actor domain.Actor, event domain.EventType, ids []string, index map[string]domain.Certificate) {
	for _, id := range ids {
		cert, ok := index[id]
		if !ok {
			cert = domain.Certificate{ID: id}
		}
		s.recorder.Record(ctx, actor, event, cert)
	}
}

func (s *CertificateService) recordApproved(ctx context.Context, actor domain.Actor, requestID string) {
	cert, err := s.repo.GetByID(ctx, requestID)
	if err != nil || cert == nil {
		s.logger.Warn("Approved certificate not readable for audit", "request_id", requestID, "error", err)
		s.recorder.Record(ctx, actor, domain.EventRequestApproved, domain.Certificate{ID: requestID})
		return
	}
	s.recorder.Record(ctx, actor, domain.EventRequestApproved, *cert)
}

func validateParticipantID(id string) error {
	if !domain.ValidParticipantID(id) {
		return domain.ErrInvalidParticipantID
	}
	return nil
}

func validateRequestID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrInvalidRequestID
	}
	return nil
}

// validateBatch checks every id and returns them with repeats dropped.
func validateBatch(ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, domain.ErrEmptyBatch
	}
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if err := validateRequestID(id); err != nil {
			return nil, err
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique, nil
}
