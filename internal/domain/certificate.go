package domain

import (
	"context"
	"regexp"
	"sort"
	"time"
)

type CertType string

const (
	CertTypePublic CertType = "PUBLIC"
)

type CertificateRequestState string

const (
	RequestStateCreated  CertificateRequestState = "CREATED"
	RequestStateApproved CertificateRequestState = "APPROVED"
	RequestStateRejected CertificateRequestState = "REJECTED"
)

var requestTransitions = map[CertificateRequestState][]CertificateRequestState{
	RequestStateCreated: {RequestStateApproved, RequestStateRejected},
}

// CanTransitionTo reports whether a request in state s may move to next.
// APPROVED and REJECTED are terminal.
func (s CertificateRequestState) CanTransitionTo(next CertificateRequestState) bool {
	for _, allowed := range requestTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type CertificateInfo struct {
	Subject            string            `json:"subject"`
	Issuer             string            `json:"issuer"`
	ValidFrom          string            `json:"validFrom"`
	ValidTo            string            `json:"validTo"`
	SerialNumber       string            `json:"serialNumber"`
	PublicKeyAlgorithm string            `json:"publicKeyAlgorithm"`
	SignatureAlgorithm string            `json:"signatureAlgorithm"`
	Extensions         map[string]string `json:"extensions"`
}

// Certificate is both a pending upload request and, once promoted, the
// participant's approved certificate. Promotion keeps the id.
type Certificate struct {
	ID            string                  `json:"id"`
	ParticipantID string                  `json:"participantId"`
	Type          CertType                `json:"type"`
	Cert          string                  `json:"cert"`
	CertInfo      CertificateInfo         `json:"certInfo"`
	PublicKey     string                  `json:"publicKey"`
	Description   *string                 `json:"description"`
	CreatedBy     string                  `json:"createdBy"`
	CreatedDate   time.Time               `json:"createdDate"`
	RequestState  CertificateRequestState `json:"requestState"`
	Approved      bool                    `json:"approved"`
	ApprovedBy    *string                 `json:"approvedBy"`
	ApprovedDate  *time.Time              `json:"approvedDate"`
	Rejected      bool                    `json:"rejected"`
	RejectedBy    *string                 `json:"rejectedBy"`
	RejectedDate  *time.Time              `json:"rejectedDate"`
	LastUpdated   int64                   `json:"lastUpdated"`
}

// IsPending reports whether the request still awaits a decision.
func (c *Certificate) IsPending() bool {
	return c.RequestState == RequestStateCreated && !c.Approved && !c.Rejected
}

// CheckApprover enforces maker-checker and the state machine for an approval.
func (c *Certificate) CheckApprover(approvedBy string) error {
	if c.CreatedBy == approvedBy {
		return ErrSelfApproval
	}
	if !c.RequestState.CanTransitionTo(RequestStateApproved) || c.Rejected {
		return ErrInvalidTransition
	}
	return nil
}

// CheckRejecter enforces maker-checker and the state machine for a rejection.
func (c *Certificate) CheckRejecter(rejectedBy string) error {
	if c.CreatedBy == rejectedBy {
		return ErrSelfRejection
	}
	if !c.RequestState.CanTransitionTo(RequestStateRejected) || c.Approved {
		return ErrInvalidTransition
	}
	return nil
}

// CheckDeletable refuses requests that already carry an approval decision.
func (c *Certificate) CheckDeletable() error {
	if c.Approved || c.RequestState == RequestStateApproved {
		return ErrApprovedRequest
	}
	if c.ApprovedBy != nil && *c.ApprovedBy == c.CreatedBy {
		return ErrApprovedRequest
	}
	return nil
}

// Clone returns a copy that shares no maps or pointers with c.
func (c Certificate) Clone() Certificate {
	out := c
	if c.CertInfo.Extensions != nil {
		out.CertInfo.Extensions = make(map[string]string, len(c.CertInfo.Extensions))
		for k, v := range c.CertInfo.Extensions {
			out.CertInfo.Extensions[k] = v
		}
	}
	out.Description = cloneString(c.Description)
	out.ApprovedBy = cloneString(c.ApprovedBy)
	out.RejectedBy = cloneString(c.RejectedBy)
	out.ApprovedDate = cloneTime(c.ApprovedDate)
	out.RejectedDate = cloneTime(c.RejectedDate)
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Promote returns the approved certificate built from this request. The
// receiver is left untouched.
func (c *Certificate) Promote(approvedBy string, at time.Time) Certificate {
	promoted := *c
	promoted.RequestState = RequestStateApproved
	promoted.Approved = true
	promoted.ApprovedBy = &approvedBy
	promoted.ApprovedDate = &at
	promoted.LastUpdated = at.UnixMilli()
	return promoted
}

// MarkRejected flags the request rejected in place.
func (c *Certificate) MarkRejected(rejectedBy string, at time.Time) {
	c.RequestState = RequestStateRejected
	c.Rejected = true
	c.RejectedBy = &rejectedBy
	c.RejectedDate = &at
	c.LastUpdated = at.UnixMilli()
}

// ParticipantRequests is the pending-requests document of one participant.
type ParticipantRequests struct {
	ID            string        `json:"id"`
	ParticipantID string        `json:"participantId"`
	Requests      []Certificate `json:"participantCertificateUploadRequests"`
}

// Clone deep-copies the document and every request in it.
func (p ParticipantRequests) Clone() ParticipantRequests {
	out := ParticipantRequests{ID: p.ID, ParticipantID: p.ParticipantID, Requests: make([]Certificate, len(p.Requests))}
	for i, r := range p.Requests {
		out.Requests[i] = r.Clone()
	}
	return out
}

func (p *ParticipantRequests) Find(requestID string) (*Certificate, bool) {
	for i := range p.Requests {
		if p.Requests[i].ID == requestID {
			return &p.Requests[i], true
		}
	}
	return nil, false
}

func (p *ParticipantRequests) Remove(requestID string) bool {
	for i := range p.Requests {
		if p.Requests[i].ID == requestID {
			p.Requests = append(p.Requests[:i], p.Requests[i+1:]...)
			return true
		}
	}
	return false
}

// SortByCreatedDesc orders requests newest first.
func (p *ParticipantRequests) SortByCreatedDesc() {
	sort.SliceStable(p.Requests, func(i, j int) bool {
		return p.Requests[i].CreatedDate.After(p.Requests[j].CreatedDate)
	})
}

// PendingOnly returns a copy holding only undecided requests.
func (p ParticipantRequests) PendingOnly() ParticipantRequests {
	out := ParticipantRequests{ID: p.ID, ParticipantID: p.ParticipantID, Requests: []Certificate{}}
	for _, r := range p.Requests {
		if r.IsPending() {
			out.Requests = append(out.Requests, r)
		}
	}
	return out
}

type PublicKeyInfo struct {
	ParticipantID string `json:"participantId"`
	PublicKey     string `json:"publicKey"`
}

var participantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9\-_]{3,30}$`)

func ValidParticipantID(id string) bool {
	return participantIDPattern.MatchString(id)
}

type CertificateRepository interface {
	CreateRequest(ctx context.Context, cert Certificate) (string, error)

	GetAllApproved(ctx context.Context) ([]Certificate, error)
	GetAllPublicKeys(ctx context.Context) ([]PublicKeyInfo, error)
	GetByID(ctx context.Context, id string) (*Certificate, error)
	GetByParticipantID(ctx context.Context, participantID string) (*Certificate, error)

	GetRequests(ctx context.Context) ([]ParticipantRequests, error)
	GetPendingRequests(ctx context.Context) ([]ParticipantRequests, error)
	GetRequestsByParticipantID(ctx context.Context, participantID string) (*ParticipantRequests, error)
	GetRequestsByParticipantIDs(ctx context.Context, participantIDs []string) ([]ParticipantRequests, error)

	Approve(ctx context.Context, requestID, approvedBy string) error
	BulkApprove(ctx context.Context, requestIDs []string, approvedBy string) error
	Reject(ctx context.Context, requestID, rejectedBy string) error
	BulkReject(ctx context.Context, requestIDs []string, rejectedBy string) error
	DeleteRequest(ctx context.Context, requestID, participantID string) error
	BulkDeleteRequests(ctx context.Context, requestIDs []string) error
	AllUniqueParticipants(ctx context.Context, requestIDs []string) (bool, error)
	FindRequests(ctx context.Context, requestIDs []string) ([]Certificate, error)
}
