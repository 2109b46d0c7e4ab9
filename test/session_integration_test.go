//go:build integration

package integration

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	repo "github.com/ogurasousui/worktime/internal/adapters/repository/postgres"
	"github.com/ogurasousui/worktime/internal/core/report"
	"github.com/ogurasousui/worktime/internal/core/session"
	"github.com/ogurasousui/worktime/internal/platform/config"
	pg "github.com/ogurasousui/worktime/internal/platform/db/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const migrationsDir = "../assets/migrations"

type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func (s *stubClock) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *stubClock) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
}

func TestSessionLifecycleIntegration(t *testing.T) {
	cfg, err := config.Load(configPathFromEnv())
	require.NoError(t, err)
	if cfg.Database.Driver != config.DriverPostgres {
		t.Skipf("integration test needs the postgres driver, got %s", cfg.Database.Driver)
	}
	require.NoError(t, resetMigrations(cfg.Database.DSN(), migrationsDir))

	ctx := context.Background()
	pool, err := pg.NewPool(ctx, cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	sessions := repo.NewSessionRepository(pool)
	tx := pg.NewTransactionManager(pool)
	clock := &stubClock{now: time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)}
	svc := session.NewService(sessions, clock, tx, session.WithIdleThreshold(5*time.Minute))

	t.Run("concurrent starts yield one running session", func(t *testing.T) {
		var (
			wg        sync.WaitGroup
			succeeded atomic.Int32
			conflicts atomic.Int32
		)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.StartWork(ctx, session.StartInput{EmployeeID: "race-emp"})
				switch {
				case err == nil:
					succeeded.Add(1)
				case errors.Is(err, session.ErrAlreadyRunning):
					conflicts.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), succeeded.Load())
		assert.Equal(t, int32(15), conflicts.Load())
	})

	t.Run("idle workday", func(t *testing.T) {
		_, err := svc.StartWork(ctx, session.StartInput{EmployeeID: "emp-1", ProjectID: "proj-a"})
		require.NoError(t, err)

		clock.Advance(time.Hour)
		opened, err := svc.RecordIdleTick(ctx, session.RecordIdleTickInput{EmployeeID: "emp-1", IdleSeconds: 300})
		require.NoError(t, err)
		require.Equal(t, session.IdleActionOpened, opened.Action)

		clock.Advance(40 * time.Second)
		closed, err := svc.RecordIdleTick(ctx, session.RecordIdleTickInput{EmployeeID: "emp-1", IdleSeconds: 0})
		require.NoError(t, err)
		require.Equal(t, session.IdleActionClosed, closed.Action)
		assert.Equal(t, int64(340), closed.Session.DurationSeconds)

		_, err = svc.UpdateIdleReason(ctx, session.UpdateReasonInput{SessionID: closed.Session.ID, EmployeeID: "emp-1", Reason: "lunch"})
		require.NoError(t, err)

		reviewed, err := svc.ReviewIdleSession(ctx, session.ReviewInput{SessionID: closed.Session.ID, AdminID: "admin-1", Decision: session.DecisionReject})
		require.NoError(t, err)
		assert.Equal(t, session.ApprovalRejected, reviewed.Idle.ApprovalStatus)

		_, err = svc.ReviewIdleSession(ctx, session.ReviewInput{SessionID: closed.Session.ID, AdminID: "admin-1", Decision: session.DecisionApprove})
		assert.ErrorIs(t, err, session.ErrNotReviewable)

		clock.Advance(time.Hour)
		stopped, err := svc.StopWork(ctx, session.StopInput{EmployeeID: "emp-1"})
		require.NoError(t, err)
		assert.Equal(t, int64(2*3600+40), stopped.DurationSeconds)

		rep, err := report.NewService(sessions, tx).GetReport(ctx, report.Scope{EmployeeID: "emp-1"})
		require.NoError(t, err)
		assert.Equal(t, int64(2*3600+40), rep.Totals.SecondsByKind[session.KindWork])
		assert.Equal(t, int64(340), rep.Totals.Idle.SecondsByApproval[session.ApprovalRejected])
	})

	t.Run("import is idempotent", func(t *testing.T) {
		exported, err := svc.ExportSessions(ctx, session.ExportInput{EmployeeID: "emp-1"})
		require.NoError(t, err)
		require.Len(t, exported, 2)

		result, err := svc.ImportSessions(ctx, session.ImportInput{Sessions: exported})
		require.NoError(t, err)
		assert.Equal(t, 0, result.Imported)
		assert.Equal(t, 2, result.Skipped)
	})
}

func resetMigrations(dsn, dir string) error {
	m, err := migrate.New("file://"+dir, dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func configPathFromEnv() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return "../assets/local.yaml"
}
