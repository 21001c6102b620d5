package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/certmgmt/backend/internal/domain"
)

const (
	userAlice = "alice"
	userBob   = "bob"
	userCarol = "carol"
	userDave  = "dave"
)

type repoFactory func(t *testing.T) domain.CertificateRepository

func newRequest(participantID, createdBy string) domain.Certificate {
	description := "uploaded by " + createdBy
	return domain.Certificate{
		ParticipantID: participantID,
		Type:          domain.CertTypePublic,
		Cert:          "-----BEGIN CERTIFICATE-----\nMIIB\n-----END CERTIFICATE-----\n",
		CertInfo: domain.CertificateInfo{
			Subject:            "Common Name: " + participantID,
			Issuer:             "Common Name: " + participantID,
			SerialNumber:       "42",
			PublicKeyAlgorithm: "EC Public Key",
			SignatureAlgorithm: "ECDSAWithSHA256",
			Extensions:         map[string]string{},
		},
		PublicKey:    "-----BEGIN PUBLIC KEY-----\n" + participantID + "\n-----END PUBLIC KEY-----\n",
		Description:  &description,
		CreatedBy:    createdBy,
		RequestState: domain.RequestStateCreated,
	}
}

func mustCreate(t *testing.T, repo domain.CertificateRepository, cert domain.Certificate) string {
	t.Helper()
	id, err := repo.CreateRequest(context.Background(), cert)
	if err != nil {
		t.Fatalf("create request error: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated id")
	}
	return id
}

func pendingIDs(t *testing.T, repo domain.CertificateRepository) map[string]domain.Certificate {
	t.Helper()
	docs, err := repo.GetPendingRequests(context.Background())
	if err != nil {
		t.Fatalf("get pending requests error: %v", err)
	}
	out := make(map[string]domain.Certificate)
	for _, doc := range docs {
		for _, req := range doc.Requests {
			out[req.ID] = req
		}
	}
	return out
}

func findRequest(t *testing.T, repo domain.CertificateRepository, participantID, id string) *domain.Certificate {
	t.Helper()
	doc, err := repo.GetRequestsByParticipantID(context.Background(), participantID)
	if err != nil {
		t.Fatalf("get requests by participant error: %v", err)
	}
	if doc == nil {
		return nil
	}
	if req, ok := doc.Find(id); ok {
		return req
	}
	return nil
}

func runCertificateRepositoryContract(t *testing.T, newRepo repoFactory) {
	ctx := context.Background()

	t.Run("create then read back", func(t *testing.T) {
		repo := newRepo(t)
		req := newRequest("dfsp-one", userAlice)
		id := mustCreate(t, repo, req)

		got := findRequest(t, repo, "dfsp-one", id)
		if got == nil {
			t.Fatal("expected request to be stored")
		}
		if got.ParticipantID != req.ParticipantID || got.Cert != req.Cert || got.PublicKey != req.PublicKey {
			t.Errorf("stored request differs from input: %+v", got)
		}
		if got.CreatedBy != userAlice {
			t.Errorf("expected createdBy alice, got %s", got.CreatedBy)
		}
		if got.RequestState != domain.RequestStateCreated || got.Approved || got.Rejected {
			t.Errorf("expected fresh CREATED request, got %+v", got)
		}
		if got.CertInfo.Subject != req.CertInfo.Subject {
			t.Errorf("expected certInfo to round trip, got %+v", got.CertInfo)
		}
		if got.Description == nil || *got.Description != *req.Description {
			t.Errorf("expected description to round trip")
		}
		if got.CreatedDate.IsZero() {
			t.Error("expected createdDate to be set")
		}
	})

	t.Run("create rejects non CREATED input", func(t *testing.T) {
		repo := newRepo(t)
		req := newRequest("dfsp-one", userAlice)
		req.RequestState = domain.RequestStateApproved

		_, err := repo.CreateRequest(ctx, req)
		if !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("multiple pending requests per participant", func(t *testing.T) {
		repo := newRepo(t)
		first := newRequest("dfsp-one", userAlice)
		first.CreatedDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		second := newRequest("dfsp-one", userAlice)
		second.CreatedDate = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
		firstID := mustCreate(t, repo, first)
		secondID := mustCreate(t, repo, second)

		doc, err := repo.GetRequestsByParticipantID(ctx, "dfsp-one")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(doc.Requests) != 2 {
			t.Fatalf("expected 2 requests, got %d", len(doc.Requests))
		}
		if doc.Requests[0].ID != secondID || doc.Requests[1].ID != firstID {
			t.Errorf("expected newest first, got %s then %s", doc.Requests[0].ID, doc.Requests[1].ID)
		}

		pending, err := repo.GetPendingRequests(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(pending) != 1 || len(pending[0].Requests) != 2 {
			t.Fatalf("expected one document with two pending requests, got %+v", pending)
		}
		if pending[0].Requests[0].ID != secondID {
			t.Errorf("expected pending requests newest first")
		}
	})

	t.Run("absent participant", func(t *testing.T) {
		repo := newRepo(t)

		doc, err := repo.GetRequestsByParticipantID(ctx, "nobody")
		if err != nil || doc != nil {
			t.Fatalf("expected nil, nil; got %v, %v", doc, err)
		}
		docs, err := repo.GetRequestsByParticipantIDs(ctx, []string{"nobody"})
		if err != nil || len(docs) != 0 {
			t.Fatalf("expected empty list, got %v, %v", docs, err)
		}
		cert, err := repo.GetByParticipantID(ctx, "nobody")
		if err != nil || cert != nil {
			t.Fatalf("expected nil, nil; got %v, %v", cert, err)
		}
	})

	t.Run("approve promotes request", func(t *testing.T) {
		repo := newRepo(t)
		id := mustCreate(t, repo, newRequest("p1", userAlice))

		if err := repo.Approve(ctx, id, userBob); err != nil {
			t.Fatalf("approve error: %v", err)
		}

		cert, err := repo.GetByParticipantID(ctx, "p1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cert == nil {
			t.Fatal("expected approved certificate")
		}
		if cert.ApprovedBy == nil || *cert.ApprovedBy != userBob {
			t.Errorf("expected approvedBy bob, got %v", cert.ApprovedBy)
		}
		if cert.RequestState != domain.RequestStateApproved || !cert.Approved {
			t.Errorf("expected APPROVED, got %s", cert.RequestState)
		}
		if cert.ApprovedDate == nil {
			t.Error("expected approvedDate")
		}
		if cert.ID != id {
			t.Errorf("expected promoted certificate to keep id %s, got %s", id, cert.ID)
		}

		if _, ok := pendingIDs(t, repo)[id]; ok {
			t.Error("approved request still pending")
		}
		if findRequest(t, repo, "p1", id) != nil {
			t.Error("approved request still in pending document")
		}

		byID, err := repo.GetByID(ctx, id)
		if err != nil || byID == nil {
			t.Fatalf("expected certificate by id, got %v, %v", byID, err)
		}

		keys, err := repo.GetAllPublicKeys(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(keys) != 1 || keys[0].ParticipantID != "p1" || keys[0].PublicKey != cert.PublicKey {
			t.Errorf("unexpected public keys: %+v", keys)
		}
	})

	t.Run("approve replaces prior approved certificate", func(t *testing.T) {
		repo := newRepo(t)
		first := mustCreate(t, repo, newRequest("p1", userAlice))
		second := mustCreate(t, repo, newRequest("p1", userAlice))

		if err := repo.Approve(ctx, first, userBob); err != nil {
			t.Fatalf("approve error: %v", err)
		}
		if err := repo.Approve(ctx, second, userBob); err != nil {
			t.Fatalf("approve error: %v", err)
		}

		all, err := repo.GetAllApproved(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(all) != 1 {
			t.Fatalf("expected exactly one approved certificate, got %d", len(all))
		}
		if all[0].ID != second {
			t.Errorf("expected latest approval to win, got %s", all[0].ID)
		}
		old, err := repo.GetByID(ctx, first)
		if err != nil || old != nil {
			t.Errorf("expected superseded certificate to be gone, got %v, %v", old, err)
		}
	})

	t.Run("self approval is refused", func(t *testing.T) {
		repo := newRepo(t)
		id := mustCreate(t, repo, newRequest("p1", userAlice))

		err := repo.Approve(ctx, id, userAlice)
		if !errors.Is(err, domain.ErrSelfApproval) {
			t.Fatalf("expected ErrSelfApproval, got %v", err)
		}
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if _, ok := pendingIDs(t, repo)[id]; !ok {
			t.Error("request should remain pending")
		}
		if cert, _ := repo.GetByParticipantID(ctx, "p1"); cert != nil {
			t.Error("nothing should have been promoted")
		}
	})

	t.Run("approve unknown request", func(t *testing.T) {
		repo := newRepo(t)
		err := repo.Approve(ctx, uuid.NewString(), userBob)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("reject marks in place", func(t *testing.T) {
		repo := newRepo(t)
		id := mustCreate(t, repo, newRequest("p1", userCarol))

		err := repo.Reject(ctx, id, userCarol)
		if !errors.Is(err, domain.ErrSelfRejection) {
			t.Fatalf("expected ErrSelfRejection, got %v", err)
		}

		if err := repo.Reject(ctx, id, userDave); err != nil {
			t.Fatalf("reject error: %v", err)
		}

		got := findRequest(t, repo, "p1", id)
		if got == nil {
			t.Fatal("rejected request should be retained")
		}
		if got.RequestState != domain.RequestStateRejected || !got.Rejected {
			t.Errorf("expected REJECTED, got %s", got.RequestState)
		}
		if got.RejectedBy == nil || *got.RejectedBy != userDave || got.RejectedDate == nil {
			t.Errorf("expected rejectedBy dave with date, got %+v", got)
		}
		if _, ok := pendingIDs(t, repo)[id]; ok {
			t.Error("rejected request still pending")
		}
	})

	t.Run("decided requests are terminal", func(t *testing.T) {
		repo := newRepo(t)
		id := mustCreate(t, repo, newRequest("p1", userAlice))
		if err := repo.Reject(ctx, id, userBob); err != nil {
			t.Fatalf("reject error: %v", err)
		}

		if err := repo.Approve(ctx, id, userBob); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition on approve, got %v", err)
		}
		if err := repo.Reject(ctx, id, userDave); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition on second reject, got %v", err)
		}
	})

	t.Run("bulk approve", func(t *testing.T) {
		repo := newRepo(t)
		a := mustCreate(t, repo, newRequest("p1", userAlice))
		b := mustCreate(t, repo, newRequest("p2", userAlice))

		unique, err := repo.AllUniqueParticipants(ctx, []string{a, b})
		if err != nil || !unique {
			t.Fatalf("expected unique participants, got %v, %v", unique, err)
		}

		if err := repo.BulkApprove(ctx, []string{a, b}, userBob); err != nil {
			t.Fatalf("bulk approve error: %v", err)
		}

		all, err := repo.GetAllApproved(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(all) != 2 {
			t.Fatalf("expected 2 approved certificates, got %d", len(all))
		}
		if len(pendingIDs(t, repo)) != 0 {
			t.Error("expected no pending requests")
		}
	})

	t.Run("bulk approve same participant fails whole batch", func(t *testing.T) {
		repo := newRepo(t)
		a := mustCreate(t, repo, newRequest("p1", userAlice))
		b := mustCreate(t, repo, newRequest("p1", userAlice))

		unique, err := repo.AllUniqueParticipants(ctx, []string{a, b})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if unique {
			t.Error("expected duplicate participant to be detected")
		}

		err = repo.BulkApprove(ctx, []string{a, b}, userBob)
		if !errors.Is(err, domain.ErrDuplicateParticipant) {
			t.Fatalf("expected ErrDuplicateParticipant, got %v", err)
		}
		if len(pendingIDs(t, repo)) != 2 {
			t.Error("expected both requests to remain pending")
		}
		if cert, _ := repo.GetByParticipantID(ctx, "p1"); cert != nil {
			t.Error("nothing should have been promoted")
		}
	})

	t.Run("bulk approve self approval anywhere fails whole batch", func(t *testing.T) {
		repo := newRepo(t)
		a := mustCreate(t, repo, newRequest("p1", userAlice))
		b := mustCreate(t, repo, newRequest("p2", userBob))

		err := repo.BulkApprove(ctx, []string{a, b}, userBob)
		if !errors.Is(err, domain.ErrSelfApproval) {
			t.Fatalf("expected ErrSelfApproval, got %v", err)
		}
		all, _ := repo.GetAllApproved(ctx)
		if len(all) != 0 {
			t.Errorf("expected no promotions, got %d", len(all))
		}
	})

	t.Run("bulk approve unknown id fails whole batch", func(t *testing.T) {
		repo := newRepo(t)
		a := mustCreate(t, repo, newRequest("p1", userAlice))

		err := repo.BulkApprove(ctx, []string{a, uuid.NewString()}, userBob)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, ok := pendingIDs(t, repo)[a]; !ok {
			t.Error("request should remain pending")
		}
	})

	t.Run("empty batches", func(t *testing.T) {
		repo := newRepo(t)
		if err := repo.BulkApprove(ctx, nil, userBob); !errors.Is(err, domain.ErrEmptyBatch) {
			t.Errorf("expected ErrEmptyBatch, got %v", err)
		}
		if err := repo.BulkReject(ctx, []string{}, userBob); !errors.Is(err, domain.ErrEmptyBatch) {
			t.Errorf("expected ErrEmptyBatch, got %v", err)
		}
		if err := repo.BulkDeleteRequests(ctx, nil); !errors.Is(err, domain.ErrEmptyBatch) {
			t.Errorf("expected ErrEmptyBatch, got %v", err)
		}
	})

	t.Run("bulk reject", func(t *testing.T) {
		repo := newRepo(t)
		a := mustCreate(t, repo, newRequest("p1", userAlice))
		b := mustCreate(t, repo, newRequest("p1", userCarol))

		err := repo.BulkReject(ctx, []string{a, b}, userCarol)
		if !errors.Is(err, domain.ErrSelfRejection) {
			t.Fatalf("expected ErrSelfRejection, got %v", err)
		}
		if len(pendingIDs(t, repo)) != 2 {
			t.Fatal("failed batch must not reject anything")
		}

		if err := repo.BulkReject(ctx, []string{a, b}, userDave); err != nil {
			t.Fatalf("bulk reject error: %v", err)
		}
		for _, id := range []string{a, b} {
			got := findRequest(t, repo, "p1", id)
			if got == nil || got.RequestState != domain.RequestStateRejected {
				t.Errorf("expected %s rejected, got %+v", id, got)
			}
		}
	})

	t.Run("delete request", func(t *testing.T) {
		repo := newRepo(t)
		id := mustCreate(t, repo, newRequest("p1", userAlice))

		if err := repo.DeleteRequest(ctx, id, "p2"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound for wrong participant, got %v", err)
		}
		if err := repo.DeleteRequest(ctx, uuid.NewString(), "p1"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound for unknown id, got %v", err)
		}
		if err := repo.DeleteRequest(ctx, id, "p1"); err != nil {
			t.Fatalf("delete error: %v", err)
		}
		if findRequest(t, repo, "p1", id) != nil {
			t.Error("request should be gone")
		}
	})

	t.Run("delete rejected request", func(t *testing.T) {
		repo := newRepo(t)
		id := mustCreate(t, repo, newRequest("p1", userAlice))
		if err := repo.Reject(ctx, id, userBob); err != nil {
			t.Fatalf("reject error: %v", err)
		}
		if err := repo.DeleteRequest(ctx, id, "p1"); err != nil {
			t.Fatalf("delete error: %v", err)
		}
	})

	t.Run("bulk delete", func(t *testing.T) {
		repo := newRepo(t)
		a := mustCreate(t, repo, newRequest("p1", userAlice))
		b := mustCreate(t, repo, newRequest("p2", userAlice))

		if err := repo.BulkDeleteRequests(ctx, []string{a, uuid.NewString()}); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if len(pendingIDs(t, repo)) != 2 {
			t.Fatal("failed batch must not delete anything")
		}

		if err := repo.BulkDeleteRequests(ctx, []string{a, b}); err != nil {
			t.Fatalf("bulk delete error: %v", err)
		}
		if len(pendingIDs(t, repo)) != 0 {
			t.Error("expected no pending requests")
		}
	})

	t.Run("repeated ids count once", func(t *testing.T) {
		repo := newRepo(t)
		a := mustCreate(t, repo, newRequest("p1", userAlice))
		b := mustCreate(t, repo, newRequest("p2", userAlice))
		c := mustCreate(t, repo, newRequest("p3", userAlice))

		unique, err := repo.AllUniqueParticipants(ctx, []string{b, b})
		if err != nil {
			t.Fatalf("unique participants error: %v", err)
		}
		if !unique {
			t.Error("a repeated id must not count as a second request of its participant")
		}

		if err := repo.BulkApprove(ctx, []string{b, b}, userBob); err != nil {
			t.Fatalf("bulk approve error: %v", err)
		}
		if cert, err := repo.GetByParticipantID(ctx, "p2"); err != nil || cert == nil || cert.ID != b {
			t.Errorf("expected %s approved for p2, got %+v (%v)", b, cert, err)
		}

		if err := repo.BulkReject(ctx, []string{a, a}, userBob); err != nil {
			t.Fatalf("bulk reject error: %v", err)
		}
		if got := findRequest(t, repo, "p1", a); got == nil || got.RequestState != domain.RequestStateRejected {
			t.Errorf("expected %s rejected, got %+v", a, got)
		}

		if err := repo.BulkDeleteRequests(ctx, []string{c, c}); err != nil {
			t.Fatalf("bulk delete error: %v", err)
		}
		if findRequest(t, repo, "p3", c) != nil {
			t.Error("request should be gone")
		}
	})

	t.Run("find requests", func(t *testing.T) {
		repo := newRepo(t)
		a := mustCreate(t, repo, newRequest("p1", userAlice))
		b := mustCreate(t, repo, newRequest("p2", userAlice))
		if err := repo.Reject(ctx, b, userBob); err != nil {
			t.Fatalf("reject error: %v", err)
		}

		found, err := repo.FindRequests(ctx, []string{a, b, a, uuid.NewString()})
		if err != nil {
			t.Fatalf("find requests error: %v", err)
		}
		if len(found) != 2 {
			t.Fatalf("expected 2 requests, got %d", len(found))
		}
		byID := map[string]domain.Certificate{found[0].ID: found[0], found[1].ID: found[1]}
		if byID[a].ParticipantID != "p1" || byID[b].ParticipantID != "p2" {
			t.Errorf("unexpected participants: %+v", byID)
		}
		if byID[b].RequestState != domain.RequestStateRejected {
			t.Errorf("expected rejected request to be found, got %s", byID[b].RequestState)
		}

		empty, err := repo.FindRequests(ctx, nil)
		if err != nil || len(empty) != 0 {
			t.Errorf("expected no requests for empty input, got %v (%v)", empty, err)
		}
	})

	t.Run("requests by participant ids", func(t *testing.T) {
		repo := newRepo(t)
		mustCreate(t, repo, newRequest("p1", userAlice))
		mustCreate(t, repo, newRequest("p2", userAlice))
		mustCreate(t, repo, newRequest("p3", userAlice))

		docs, err := repo.GetRequestsByParticipantIDs(ctx, []string{"p1", "p3", "missing"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(docs) != 2 {
			t.Fatalf("expected 2 documents, got %d", len(docs))
		}
		if docs[0].ParticipantID != "p1" || docs[1].ParticipantID != "p3" {
			t.Errorf("unexpected participants: %s, %s", docs[0].ParticipantID, docs[1].ParticipantID)
		}

		all, err := repo.GetRequests(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(all) != 3 {
			t.Errorf("expected 3 documents, got %d", len(all))
		}
	})
}
