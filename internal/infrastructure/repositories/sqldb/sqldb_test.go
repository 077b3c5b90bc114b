package sqldb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"sprinta/internal/core/domain"
	"sprinta/internal/core/ports"
	"sprinta/internal/infrastructure/repositories/repotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"gorm.io/gorm"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open("sqlite", filepath.Join(t.TempDir(), "sprinta.db"), true, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	return db
}

// openPostgres follows TEST_POSTGRES_DSN; each test gets empty tables.
func openPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("set TEST_POSTGRES_DSN to run postgres repository tests")
	}
	db, err := Open("postgres", dsn, true, nil)
	require.NoError(t, err)
	require.NoError(t, db.Exec("TRUNCATE notifications, notification_preferences").Error)
	t.Cleanup(func() { _ = Close(db) })
	return db
}

func TestSQLiteNotificationRepository(t *testing.T) {
	repotest.NotificationRepository(t, func(t *testing.T) ports.NotificationRepository {
		return NewSQLNotificationRepository(openSQLite(t))
	})
}

func TestSQLitePreferenceRepository(t *testing.T) {
	repotest.PreferenceRepository(t, func(t *testing.T) ports.PreferenceRepository {
		return NewSQLPreferenceRepository(openSQLite(t))
	})
}

func TestPostgresNotificationRepository(t *testing.T) {
	repotest.NotificationRepository(t, func(t *testing.T) ports.NotificationRepository {
		return NewSQLNotificationRepository(openPostgres(t))
	})
}

func TestPostgresPreferenceRepository(t *testing.T) {
	repotest.PreferenceRepository(t, func(t *testing.T) ports.PreferenceRepository {
		return NewSQLPreferenceRepository(openPostgres(t))
	})
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("mysql", "", false, nil)
	require.Error(t, err)
}

func TestSQLNotificationRepository_Spans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tracesdk.NewTracerProvider(tracesdk.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	repo := NewSQLNotificationRepository(openSQLite(t))
	ctx := context.Background()
	n := &domain.Notification{UserID: "u1", Type: domain.TypeNewFollower, Title: "t", Message: "m"}
	require.NoError(t, repo.Create(ctx, n))
	_, err := repo.GetByID(ctx, n.ID+1)
	require.ErrorIs(t, err, domain.ErrNotificationNotFound)

	ended := rec.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "db.insert", ended[0].Name())
	assert.Equal(t, "db.select", ended[1].Name())
	for _, span := range ended {
		assert.Equal(t, codes.Unset, span.Status().Code, span.Name())
		var system string
		for _, kv := range span.Attributes() {
			if kv.Key == "db.system" {
				system = kv.Value.AsString()
			}
		}
		assert.Equal(t, "sqlite", system)
	}
}
