package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/certmgmt/backend/internal/domain"
)

// PostgresCertificateRepository stores pending requests as one JSONB document
// per participant and approved certificates as one row per participant.
type PostgresCertificateRepository struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

func NewPostgresCertificateRepository(db *sql.DB, logger *slog.Logger) *PostgresCertificateRepository {
	return &PostgresCertificateRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

func (r *PostgresCertificateRepository) CreateRequest(ctx context.Context, cert domain.Certificate) (string, error) {
	prepared, err := prepareRequest(cert, r.now().UTC())
	if err != nil {
		return "", err
	}

	doc, err := json.Marshal([]domain.Certificate{prepared})
	if err != nil {
		return "", r.storageError("unable to add certificate request", err)
	}

	query := `
		INSERT INTO certificate_requests (participant_id, requests, created_at, updated_at)
		VALUES ($1, $2::jsonb, NOW(), NOW())
		ON CONFLICT (participant_id) DO UPDATE
		SET requests = certificate_requests.requests || EXCLUDED.requests, updated_at = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query, prepared.ParticipantID, string(doc)); err != nil {
		return "", r.storageError("unable to add certificate request", err)
	}

	return prepared.ID, nil
}

func (r *PostgresCertificateRepository) GetAllApproved(ctx context.Context) ([]domain.Certificate, error) {
	query := `SELECT document FROM certificates ORDER BY participant_id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, r.storageError("unable to get approved certificates", err)
	}
	defer rows.Close()

	certs := make([]domain.Certificate, 0)
	for rows.Next() {
		cert, err := scanCertificateDocument(rows)
		if err != nil {
			return nil, r.storageError("unable to get approved certificates", err)
		}
		certs = append(certs, *cert)
	}
	if err := rows.Err(); err != nil {
		return nil, r.storageError("unable to get approved certificates", err)
	}

	return certs, nil
}

func (r *PostgresCertificateRepository) GetAllPublicKeys(ctx context.Context) ([]domain.PublicKeyInfo, error) {
	query := `SELECT participant_id, public_key FROM certificates ORDER BY participant_id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, r.storageError("unable to get public keys", err)
	}
	defer rows.Close()

	keys := make([]domain.PublicKeyInfo, 0)
	for rows.Next() {
		var k domain.PublicKeyInfo
		if err := rows.Scan(&k.ParticipantID, &k.PublicKey); err != nil {
			return nil, r.storageError("unable to get public keys", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, r.storageError("unable to get public keys", err)
	}

	return keys, nil
}

func (r *PostgresCertificateRepository) GetByID(ctx context.Context, id string) (*domain.Certificate, error) {
	query := `SELECT document FROM certificates WHERE id = $1`
	return r.getApproved(ctx, query, id)
}

func (r *PostgresCertificateRepository) GetByParticipantID(ctx context.Context, participantID string) (*domain.Certificate, error) {
	query := `SELECT document FROM certificates WHERE participant_id = $1`
	return r.getApproved(ctx, query, participantID)
}

func (r *PostgresCertificateRepository) getApproved(ctx context.Context, query string, arg string) (*domain.Certificate, error) {
	cert, err := scanCertificateDocument(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, r.storageError("unable to get certificate", err)
	}
	return cert, nil
}

func (r *PostgresCertificateRepository) GetRequests(ctx context.Context) ([]domain.ParticipantRequests, error) {
	query := `
		SELECT id, participant_id, requests
		FROM certificate_requests
		ORDER BY participant_id ASC
	`
	return r.queryRequestDocuments(ctx, "unable to get certificate requests", query)
}

// GetPendingRequests reduces every document to its undecided requests inside
// the database and drops documents with none left.
func (r *PostgresCertificateRepository) GetPendingRequests(ctx context.Context) ([]domain.ParticipantRequests, error) {
	query := `
		SELECT cr.id, cr.participant_id,
			jsonb_agg(req ORDER BY (req->>'createdDate')::timestamptz DESC) AS requests
		FROM certificate_requests cr
		CROSS JOIN LATERAL jsonb_array_elements(cr.requests) AS req
		WHERE req->>'requestState' = $1
			AND COALESCE((req->>'approved')::boolean, false) = false
			AND COALESCE((req->>'rejected')::boolean, false) = false
		GROUP BY cr.id, cr.participant_id
		ORDER BY cr.participant_id ASC
	`
	return r.queryRequestDocuments(ctx, "unable to get pending certificate requests", query, string(domain.RequestStateCreated))
}

func (r *PostgresCertificateRepository) GetRequestsByParticipantID(ctx context.Context, participantID string) (*domain.ParticipantRequests, error) {
	query := `
		SELECT id, participant_id, requests
		FROM certificate_requests
		WHERE participant_id = $1
	`

	doc, err := scanRequestDocument(r.db.QueryRowContext(ctx, query, participantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, r.storageError("unable to get certificate requests", err)
	}

	doc.SortByCreatedDesc()
	return doc, nil
}

func (r *PostgresCertificateRepository) GetRequestsByParticipantIDs(ctx context.Context, participantIDs []string) ([]domain.ParticipantRequests, error) {
	if len(participantIDs) == 0 {
		return []domain.ParticipantRequests{}, nil
	}

	query := `
		SELECT id, participant_id, requests
		FROM certificate_requests
		WHERE participant_id = ANY($1)
		ORDER BY participant_id ASC
	`
	return r.queryRequestDocuments(ctx, "unable to get certificate requests", query, participantIDs)
}

func (r *PostgresCertificateRepository) queryRequestDocuments(ctx context.Context, op string, query string, args ...interface{}) ([]domain.ParticipantRequests, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.storageError(op, err)
	}
	defer rows.Close()

	docs := make([]domain.ParticipantRequests, 0)
	for rows.Next() {
		doc, err := scanRequestDocument(rows)
		if err != nil {
			return nil, r.storageError(op, err)
		}
		doc.SortByCreatedDesc()
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, r.storageError(op, err)
	}

	return docs, nil
}

func (r *PostgresCertificateRepository) Approve(ctx context.Context, requestID, approvedBy string) error {
	return r.BulkApprove(ctx, []string{requestID}, approvedBy)
}

// BulkApprove promotes every request in one transaction: the participant's
// approved certificate is replaced and the request leaves its pending document.
func (r *PostgresCertificateRepository) BulkApprove(ctx context.Context, requestIDs []string, approvedBy string) error {
	return r.withTx(ctx, "unable to approve certificate requests", func(tx *sql.Tx) error {
		docs, err := lockRequestDocuments(ctx, tx, requestIDs)
		if err != nil {
			return err
		}

		promoted, err := approveBatch(docs, requestIDs, approvedBy, r.now().UTC())
		if err != nil {
			return err
		}

		for _, cert := range promoted {
			if err := replaceApproved(ctx, tx, cert); err != nil {
				return err
			}
		}
		return saveRequestDocuments(ctx, tx, docs)
	})
}

func (r *PostgresCertificateRepository) Reject(ctx context.Context, requestID, rejectedBy string) error {
	return r.BulkReject(ctx, []string{requestID}, rejectedBy)
}

func (r *PostgresCertificateRepository) BulkReject(ctx context.Context, requestIDs []string, rejectedBy string) error {
	return r.withTx(ctx, "unable to reject certificate requests", func(tx *sql.Tx) error {
		docs, err := lockRequestDocuments(ctx, tx, requestIDs)
		if err != nil {
			return err
		}

		if _, err := rejectBatch(docs, requestIDs, rejectedBy, r.now().UTC()); err != nil {
			return err
		}
		return saveRequestDocuments(ctx, tx, docs)
	})
}

func (r *PostgresCertificateRepository) DeleteRequest(ctx context.Context, requestID, participantID string) error {
	return r.withTx(ctx, "unable to delete certificate request", func(tx *sql.Tx) error {
		query := `
			SELECT id, participant_id, requests
			FROM certificate_requests
			WHERE participant_id = $1
			FOR UPDATE
		`

		doc, err := scanRequestDocument(tx.QueryRowContext(ctx, query, participantID))
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		docs := []*domain.ParticipantRequests{doc}
		if _, err := deleteBatch(docs, []string{requestID}); err != nil {
			return err
		}
		return saveRequestDocuments(ctx, tx, docs)
	})
}

func (r *PostgresCertificateRepository) BulkDeleteRequests(ctx context.Context, requestIDs []string) error {
	return r.withTx(ctx, "unable to delete certificate requests", func(tx *sql.Tx) error {
		docs, err := lockRequestDocuments(ctx, tx, requestIDs)
		if err != nil {
			return err
		}

		if _, err := deleteBatch(docs, requestIDs); err != nil {
			return err
		}
		return saveRequestDocuments(ctx, tx, docs)
	})
}

func (r *PostgresCertificateRepository) AllUniqueParticipants(ctx context.Context, requestIDs []string) (bool, error) {
	if len(requestIDs) == 0 {
		return true, nil
	}

	query := `
		SELECT req->>'id', cr.participant_id
		FROM certificate_requests cr
		CROSS JOIN LATERAL jsonb_array_elements(cr.requests) AS req
		WHERE req->>'id' = ANY($1)
	`

	rows, err := r.db.QueryContext(ctx, query, dedupe(requestIDs))
	if err != nil {
		return false, r.storageError("unable to check participants", err)
	}
	defer rows.Close()

	owners := make(map[string]string, len(requestIDs))
	for rows.Next() {
		var id, participantID string
		if err := rows.Scan(&id, &participantID); err != nil {
			return false, r.storageError("unable to check participants", err)
		}
		owners[id] = participantID
	}
	if err := rows.Err(); err != nil {
		return false, r.storageError("unable to check participants", err)
	}

	return uniqueOwners(owners, requestIDs), nil
}

func (r *PostgresCertificateRepository) FindRequests(ctx context.Context, requestIDs []string) ([]domain.Certificate, error) {
	if len(requestIDs) == 0 {
		return []domain.Certificate{}, nil
	}

	query := `
		SELECT req
		FROM certificate_requests cr
		CROSS JOIN LATERAL jsonb_array_elements(cr.requests) AS req
		WHERE req->>'id' = ANY($1)
		ORDER BY cr.participant_id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, dedupe(requestIDs))
	if err != nil {
		return nil, r.storageError("unable to find certificate requests", err)
	}
	defer rows.Close()

	found := make([]domain.Certificate, 0, len(requestIDs))
	for rows.Next() {
		cert, err := scanCertificateDocument(rows)
		if err != nil {
			return nil, r.storageError("unable to find certificate requests", err)
		}
		found = append(found, *cert)
	}
	if err := rows.Err(); err != nil {
		return nil, r.storageError("unable to find certificate requests", err)
	}
	return found, nil
}

// withTx runs fn in a transaction. Domain errors returned by fn roll back and
// pass through unchanged; anything else is treated as a storage failure.
func (r *PostgresCertificateRepository) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return r.storageError(op, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		if isDomainError(err) {
			return err
		}
		return r.storageError(op, err)
	}

	if err = tx.Commit(); err != nil {
		return r.storageError(op, err)
	}
	return nil
}

func (r *PostgresCertificateRepository) storageError(op string, cause error) error {
	r.logger.Error("Certificate storage failure", "operation", op, "error", cause)
	return fmt.Errorf("%s: %w", op, domain.ErrStorageUnavailable)
}

func isDomainError(err error) bool {
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, domain.ErrAlreadyExists)
}

// lockRequestDocuments loads and locks every pending document holding one of
// the ids, ordered by participant so concurrent batches lock in the same order.
func lockRequestDocuments(ctx context.Context, tx *sql.Tx, requestIDs []string) ([]*domain.ParticipantRequests, error) {
	if len(requestIDs) == 0 {
		return nil, domain.ErrEmptyBatch
	}

	query := `
		SELECT cr.id, cr.participant_id, cr.requests
		FROM certificate_requests cr
		WHERE EXISTS (
			SELECT 1 FROM jsonb_array_elements(cr.requests) AS req
			WHERE req->>'id' = ANY($1)
		)
		ORDER BY cr.participant_id ASC
		FOR UPDATE
	`

	rows, err := tx.QueryContext(ctx, query, dedupe(requestIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]*domain.ParticipantRequests, 0)
	for rows.Next() {
		doc, err := scanRequestDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func saveRequestDocuments(ctx context.Context, tx *sql.Tx, docs []*domain.ParticipantRequests) error {
	query := `UPDATE certificate_requests SET requests = $2::jsonb, updated_at = NOW() WHERE id = $1`

	for _, doc := range docs {
		requests := doc.Requests
		if requests == nil {
			requests = []domain.Certificate{}
		}
		data, err := json.Marshal(requests)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, doc.ID, string(data)); err != nil {
			return err
		}
	}
	return nil
}

func replaceApproved(ctx context.Context, tx *sql.Tx, cert domain.Certificate) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM certificates WHERE participant_id = $1`, cert.ParticipantID); err != nil {
		return err
	}

	data, err := json.Marshal(cert)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO certificates (id, participant_id, document, public_key, approved_at)
		VALUES ($1, $2, $3::jsonb, $4, $5)
	`
	_, err = tx.ExecContext(ctx, query, cert.ID, cert.ParticipantID, string(data), cert.PublicKey, toNullTime(cert.ApprovedDate))
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCertificateDocument(row rowScanner) (*domain.Certificate, error) {
	var data []byte
	if err := row.Scan(&data); err != nil {
		return nil, err
	}

	var cert domain.Certificate
	if err := json.Unmarshal(data, &cert); err != nil {
		return nil, fmt.Errorf("failed to decode certificate document: %w", err)
	}
	return &cert, nil
}

func scanRequestDocument(row rowScanner) (*domain.ParticipantRequests, error) {
	var doc domain.ParticipantRequests
	var data []byte
	if err := row.Scan(&doc.ID, &doc.ParticipantID, &data); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, &doc.Requests); err != nil {
		return nil, fmt.Errorf("failed to decode certificate requests: %w", err)
	}
	if doc.Requests == nil {
		doc.Requests = []domain.Certificate{}
	}
	return &doc, nil
}
