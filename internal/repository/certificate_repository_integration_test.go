//go:build integration

package repository

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/certmgmt/backend/internal/database"
	"github.com/certmgmt/backend/internal/domain"
)

func migrationsDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "certs",
				"POSTGRES_PASSWORD": "certs",
				"POSTGRES_DB":       "certs",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://certs:certs@%s:%s/certs?sslmode=disable", host, port.Port())
}

func TestPostgresCertificateRepository(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := database.Open(ctx, startPostgres(t), 10)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.RunMigrations(db, migrationsDir(t), logger))

	runCertificateRepositoryContract(t, func(t *testing.T) domain.CertificateRepository {
		_, err := db.ExecContext(ctx, `TRUNCATE certificate_requests, certificates`)
		require.NoError(t, err)
		return NewPostgresCertificateRepository(db, logger)
	})

	t.Run("audit log round trip", func(t *testing.T) {
		repo := NewPostgresAuditLogRepository(db)
		participant := "p1"
		user := "bob"

		created, err := repo.Create(ctx, domain.CreateAuditLogInput{
			EventType:     domain.EventRequestApproved,
			ResourceType:  domain.ResourceCertificateRequest,
			ParticipantID: &participant,
			UserName:      &user,
			Details:       map[string]interface{}{"approvedBy": user},
		})
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)

		logs, total, err := repo.FindAll(ctx, domain.AuditLogFilter{ParticipantID: &participant})
		require.NoError(t, err)
		require.Equal(t, 1, total)
		require.Len(t, logs, 1)
		require.Equal(t, domain.EventRequestApproved, logs[0].EventType)
		require.Equal(t, user, *logs[0].UserName)

		deleted, err := repo.DeleteOlderThan(ctx, 1)
		require.NoError(t, err)
		require.Zero(t, deleted)
	})
}
