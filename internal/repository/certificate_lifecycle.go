package repository

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/certmgmt/backend/internal/domain"
)

// located ties a pending request to the participant document that holds it.
type located struct {
	doc *domain.ParticipantRequests
	req *domain.Certificate
}

func prepareRequest(cert domain.Certificate, now time.Time) (domain.Certificate, error) {
	if cert.RequestState == "" {
		cert.RequestState = domain.RequestStateCreated
	}
	if cert.RequestState != domain.RequestStateCreated || cert.Approved || cert.Rejected {
		return domain.Certificate{}, fmt.Errorf("%w: new requests must be in state %s", domain.ErrInvalidTransition, domain.RequestStateCreated)
	}
	if cert.ParticipantID == "" {
		return domain.Certificate{}, fmt.Errorf("%w: participant id is required", domain.ErrInvalidInput)
	}
	if cert.CreatedBy == "" {
		return domain.Certificate{}, fmt.Errorf("%w: createdBy is required", domain.ErrInvalidInput)
	}
	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	if cert.Type == "" {
		cert.Type = domain.CertTypePublic
	}
	if cert.CreatedDate.IsZero() {
		cert.CreatedDate = now
	}
	cert.ApprovedBy, cert.ApprovedDate = nil, nil
	cert.RejectedBy, cert.RejectedDate = nil, nil
	cert.LastUpdated = now.UnixMilli()
	return cert, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// locate resolves every id against docs, keeping input order. Callers dedupe.
func locate(docs []*domain.ParticipantRequests, ids []string) ([]located, error) {
	if len(ids) == 0 {
		return nil, domain.ErrEmptyBatch
	}
	found := make([]located, 0, len(ids))
	for _, id := range ids {
		var hit *located
		for _, doc := range docs {
			if req, ok := doc.Find(id); ok {
				hit = &located{doc: doc, req: req}
				break
			}
		}
		if hit == nil {
			return nil, fmt.Errorf("certificate request %s: %w", id, domain.ErrNotFound)
		}
		found = append(found, *hit)
	}
	return found, nil
}

// uniqueParticipants reports whether no two ids point at the same participant.
func uniqueParticipants(items []located) bool {
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, ok := seen[it.doc.ParticipantID]; ok {
			return false
		}
		seen[it.doc.ParticipantID] = struct{}{}
	}
	return true
}

// uniqueOwners reports whether no two distinct ids belong to the same
// participant. Ids missing from owners are ignored.
func uniqueOwners(owners map[string]string, ids []string) bool {
	ids = dedupe(ids)
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		participantID, ok := owners[id]
		if !ok {
			continue
		}
		if _, dup := seen[participantID]; dup {
			return false
		}
		seen[participantID] = struct{}{}
	}
	return true
}

// approveBatch validates the whole batch before touching anything, then removes
// each request from its pending document and returns the promoted certificates.
func approveBatch(docs []*domain.ParticipantRequests, ids []string, approvedBy string, now time.Time) ([]domain.Certificate, error) {
	items, err := locate(docs, dedupe(ids))
	if err != nil {
		return nil, err
	}
	if !uniqueParticipants(items) {
		return nil, domain.ErrDuplicateParticipant
	}
	for _, it := range items {
		if err := it.req.CheckApprover(approvedBy); err != nil {
			return nil, fmt.Errorf("certificate request %s: %w", it.req.ID, err)
		}
	}

	promoted := make([]domain.Certificate, 0, len(items))
	for _, it := range items {
		promoted = append(promoted, it.req.Promote(approvedBy, now))
	}
	for _, p := range promoted {
		for _, doc := range docs {
			if doc.Remove(p.ID) {
				break
			}
		}
	}
	return promoted, nil
}

func rejectBatch(docs []*domain.ParticipantRequests, ids []string, rejectedBy string, now time.Time) ([]domain.Certificate, error) {
	items, err := locate(docs, dedupe(ids))
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if err := it.req.CheckRejecter(rejectedBy); err != nil {
			return nil, fmt.Errorf("certificate request %s: %w", it.req.ID, err)
		}
	}

	rejected := make([]domain.Certificate, 0, len(items))
	for _, it := range items {
		it.req.MarkRejected(rejectedBy, now)
		rejected = append(rejected, *it.req)
	}
	return rejected, nil
}

func deleteBatch(docs []*domain.ParticipantRequests, ids []string) ([]domain.Certificate, error) {
	items, err := locate(docs, dedupe(ids))
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if err := it.req.CheckDeletable(); err != nil {
			return nil, fmt.Errorf("certificate request %s: %w", it.req.ID, err)
		}
	}

	removed := make([]domain.Certificate, 0, len(items))
	for _, it := range items {
		removed = append(removed, *it.req)
	}
	for _, r := range removed {
		for _, doc := range docs {
			if doc.Remove(r.ID) {
				break
			}
		}
	}
	return removed, nil
}

func sortedCopy(doc domain.ParticipantRequests) domain.ParticipantRequests {
	out := doc.Clone()
	out.SortByCreatedDesc()
	return out
}
