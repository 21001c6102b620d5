package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/certmgmt/backend/internal/domain"
)

// MemoryCertificateRepository keeps both collections in process memory.
// Every operation holds the lock for its full duration, so promotions and
// bulk operations are atomic.
type MemoryCertificateRepository struct {
	mu       sync.RWMutex
	requests map[string]*domain.ParticipantRequests
	approved map[string]domain.Certificate
	now      func() time.Time
}

func NewMemoryCertificateRepository() *MemoryCertificateRepository {
	return &MemoryCertificateRepository{
		requests: make(map[string]*domain.ParticipantRequests),
		approved: make(map[string]domain.Certificate),
		now:      time.Now,
	}
}

func (r *MemoryCertificateRepository) CreateRequest(_ context.Context, cert domain.Certificate) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prepared, err := prepareRequest(cert, r.now().UTC())
	if err != nil {
		return "", err
	}

	doc, ok := r.requests[prepared.ParticipantID]
	if !ok {
		doc = &domain.ParticipantRequests{
			ID:            uuid.NewString(),
			ParticipantID: prepared.ParticipantID,
		}
		r.requests[prepared.ParticipantID] = doc
	}
	doc.Requests = append(doc.Requests, prepared.Clone())

	return prepared.ID, nil
}

func (r *MemoryCertificateRepository) GetAllApproved(_ context.Context) ([]domain.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	certs := make([]domain.Certificate, 0, len(r.approved))
	for _, participantID := range r.sortedApprovedKeys() {
		certs = append(certs, r.approved[participantID].Clone())
	}
	return certs, nil
}

func (r *MemoryCertificateRepository) GetAllPublicKeys(_ context.Context) ([]domain.PublicKeyInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]domain.PublicKeyInfo, 0, len(r.approved))
	for _, participantID := range r.sortedApprovedKeys() {
		keys = append(keys, domain.PublicKeyInfo{
			ParticipantID: participantID,
			PublicKey:     r.approved[participantID].PublicKey,
		})
	}
	return keys, nil
}

func (r *MemoryCertificateRepository) GetByID(_ context.Context, id string) (*domain.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, cert := range r.approved {
		if cert.ID == id {
			c := cert.Clone()
			return &c, nil
		}
	}
	return nil, nil
}

func (r *MemoryCertificateRepository) GetByParticipantID(_ context.Context, participantID string) (*domain.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cert, ok := r.approved[participantID]
	if !ok {
		return nil, nil
	}
	out := cert.Clone()
	return &out, nil
}

func (r *MemoryCertificateRepository) GetRequests(_ context.Context) ([]domain.ParticipantRequests, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	docs := make([]domain.ParticipantRequests, 0, len(r.requests))
	for _, participantID := range r.sortedRequestKeys() {
		docs = append(docs, sortedCopy(*r.requests[participantID]))
	}
	return docs, nil
}

func (r *MemoryCertificateRepository) GetPendingRequests(_ context.Context) ([]domain.ParticipantRequests, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	docs := make([]domain.ParticipantRequests, 0)
	for _, participantID := range r.sortedRequestKeys() {
		pending := sortedCopy(*r.requests[participantID]).PendingOnly()
		if len(pending.Requests) == 0 {
			continue
		}
		docs = append(docs, pending)
	}
	return docs, nil
}

func (r *MemoryCertificateRepository) GetRequestsByParticipantID(_ context.Context, participantID string) (*domain.ParticipantRequests, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.requests[participantID]
	if !ok {
		return nil, nil
	}
	out := sortedCopy(*doc)
	return &out, nil
}

func (r *MemoryCertificateRepository) GetRequestsByParticipantIDs(_ context.Context, participantIDs []string) ([]domain.ParticipantRequests, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[string]struct{}, len(participantIDs))
	for _, id := range participantIDs {
		wanted[id] = struct{}{}
	}

	docs := make([]domain.ParticipantRequests, 0, len(wanted))
	for _, participantID := range r.sortedRequestKeys() {
		if _, ok := wanted[participantID]; ok {
			docs = append(docs, sortedCopy(*r.requests[participantID]))
		}
	}
	return docs, nil
}

func (r *MemoryCertificateRepository) Approve(ctx context.Context, requestID, approvedBy string) error {
	return r.BulkApprove(ctx, []string{requestID}, approvedBy)
}

func (r *MemoryCertificateRepository) BulkApprove(_ context.Context, requestIDs []string, approvedBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	working := r.workingCopy()
	promoted, err := approveBatch(working, requestIDs, approvedBy, r.now().UTC())
	if err != nil {
		return err
	}

	r.commit(working)
	for _, cert := range promoted {
		r.approved[cert.ParticipantID] = cert.Clone()
	}
	return nil
}

func (r *MemoryCertificateRepository) Reject(ctx context.Context, requestID, rejectedBy string) error {
	return r.BulkReject(ctx, []string{requestID}, rejectedBy)
}

func (r *MemoryCertificateRepository) BulkReject(_ context.Context, requestIDs []string, rejectedBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	working := r.workingCopy()
	if _, err := rejectBatch(working, requestIDs, rejectedBy, r.now().UTC()); err != nil {
		return err
	}

	r.commit(working)
	return nil
}

func (r *MemoryCertificateRepository) DeleteRequest(_ context.Context, requestID, participantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.requests[participantID]
	if !ok {
		return domain.ErrNotFound
	}

	working := r.copyDoc(doc)
	if _, err := deleteBatch([]*domain.ParticipantRequests{working}, []string{requestID}); err != nil {
		return err
	}

	r.requests[participantID] = working
	return nil
}

func (r *MemoryCertificateRepository) BulkDeleteRequests(_ context.Context, requestIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	working := r.workingCopy()
	if _, err := deleteBatch(working, requestIDs); err != nil {
		return err
	}

	r.commit(working)
	return nil
}

func (r *MemoryCertificateRepository) AllUniqueParticipants(_ context.Context, requestIDs []string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owners := make(map[string]string)
	for _, doc := range r.requests {
		for _, req := range doc.Requests {
			owners[req.ID] = doc.ParticipantID
		}
	}
	return uniqueOwners(owners, requestIDs), nil
}

func (r *MemoryCertificateRepository) FindRequests(_ context.Context, requestIDs []string) ([]domain.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	found := make([]domain.Certificate, 0, len(requestIDs))
	for _, id := range dedupe(requestIDs) {
		for _, participantID := range r.sortedRequestKeys() {
			if req, ok := r.requests[participantID].Find(id); ok {
				found = append(found, req.Clone())
				break
			}
		}
	}
	return found, nil
}

// workingCopy clones every pending document so a failed batch leaves the
// stored state untouched.
func (r *MemoryCertificateRepository) workingCopy() []*domain.ParticipantRequests {
	docs := make([]*domain.ParticipantRequests, 0, len(r.requests))
	for _, participantID := range r.sortedRequestKeys() {
		docs = append(docs, r.copyDoc(r.requests[participantID]))
	}
	return docs
}

func (r *MemoryCertificateRepository) copyDoc(doc *domain.ParticipantRequests) *domain.ParticipantRequests {
	out := doc.Clone()
	return &out
}

func (r *MemoryCertificateRepository) commit(docs []*domain.ParticipantRequests) {
	for _, doc := range docs {
		r.requests[doc.ParticipantID] = doc
	}
}

func (r *MemoryCertificateRepository) sortedRequestKeys() []string {
	keys := make([]string, 0, len(r.requests))
	for k := range r.requests {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *MemoryCertificateRepository) sortedApprovedKeys() []string {
	keys := make([]string, 0, len(r.approved))
	for k := range r.approved {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
