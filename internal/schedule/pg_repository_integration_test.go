//go:build integration

package schedule

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/doctor-availability-scheduling/internal/config"
	"github.com/hackgods/doctor-availability-scheduling/internal/db"
)

// Run with:
//
//	TEST_POSTGRES_DSN=postgres://... go test -tags integration ./internal/schedule/
const testDSNEnv = "TEST_POSTGRES_DSN"

var (
	pgOnce     sync.Once
	pgPool     *pgxpool.Pool
	pgSetupErr error
	pgApplied  int
)

// testPool connects once per package run and applies the embedded migrations.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", testDSNEnv)
	}

	pgOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		pgPool, pgSetupErr = db.ConnectPostgres(ctx, dsn, db.PoolOptions{AppName: "schedule-integration-test", MaxConns: 20})
		if pgSetupErr != nil {
			return
		}
		pgApplied, pgSetupErr = db.Migrate(ctx, pgPool)
	})
	require.NoError(t, pgSetupErr)
	return pgPool
}

func newPgService(t *testing.T) (*Service, *PgRepository) {
	t.Helper()
	repo := NewPgRepository(testPool(t))
	svc := NewService(repo, nil, nil, clockOn(testToday), zerolog.Nop(), config.Config{RegenConcurrency: 3})
	return svc, repo
}

func candidate(startH, startM, endH, endM int) CandidateSlot {
	return CandidateSlot{Date: testToday, Start: hm(startH, startM), End: hm(endH, endM)}
}

func TestMigrate_IsIdempotent(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	// a fresh database gets 001_schedule.sql, a reused one nothing
	assert.LessOrEqual(t, pgApplied, 1)

	applied, err := db.Migrate(ctx, pool)
	require.NoError(t, err)
	assert.Zero(t, applied)

	var name string
	require.NoError(t, pool.QueryRow(ctx, `SELECT name FROM _migrations WHERE version = 1`).Scan(&name))
	assert.Equal(t, "001_schedule.sql", name)
}

func TestPgRepository_ScheduleRoundTrip(t *testing.T) {
	svc, _ := newPgService(t)
	ctx := context.Background()
	doctorID := uuid.New()

	saved, err := svc.ConfigureSchedule(ctx, doctorID, weekdayPattern())
	require.NoError(t, err)

	got, err := svc.GetSchedule(ctx, doctorID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, saved.Policy, got.Policy)
	assert.Len(t, got.WorkDays, 5)

	require.NoError(t, svc.DeactivateSchedule(ctx, doctorID))
	_, err = svc.GetSchedule(ctx, doctorID)
	assert.ErrorIs(t, err, ErrWorkPatternNotFound)
}

func TestPgRepository_MaterializeTwiceCreatesNothing(t *testing.T) {
	svc, _ := newPgService(t)
	ctx := context.Background()
	doctorID := configured(t, svc)

	created, skipped, err := svc.RegenerateSlots(ctx, doctorID, testToday, testToday)
	require.NoError(t, err)
	require.Positive(t, created)
	assert.Zero(t, skipped)

	again, skippedAgain, err := svc.RegenerateSlots(ctx, doctorID, testToday, testToday)
	require.NoError(t, err)
	assert.Zero(t, again)
	assert.Equal(t, created, skippedAgain)

	slots, err := svc.ListAvailable(ctx, doctorID, testToday)
	require.NoError(t, err)
	assert.Len(t, slots, created)
}

func TestPgRepository_InsertSlotsSkipsCollisions(t *testing.T) {
	_, repo := newPgService(t)
	ctx := context.Background()
	doctorID := uuid.New()

	created, skipped, err := repo.InsertSlots(ctx, doctorID, []CandidateSlot{
		candidate(9, 0, 9, 30),
		candidate(9, 30, 10, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	assert.Zero(t, skipped)

	created, skipped, err = repo.InsertSlots(ctx, doctorID, []CandidateSlot{
		candidate(9, 0, 9, 30),   // same time, unique index
		candidate(9, 15, 9, 45),  // different length overlapping both, exclusion constraint
		candidate(10, 0, 10, 45), // free
		candidate(10, 30, 11, 0), // overlaps the one just queued
	})
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, 3, skipped)

	slots, err := repo.ListSlots(ctx, doctorID, testToday, testToday, nil)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, hm(9, 0), slots[0].StartTime)
	assert.Equal(t, hm(9, 30), slots[1].StartTime)
	assert.Equal(t, hm(10, 0), slots[2].StartTime)
	assert.Equal(t, 45, slots[2].DurationMinutes)

	// another doctor may use the same times
	created, _, err = repo.InsertSlots(ctx, uuid.New(), []CandidateSlot{candidate(9, 0, 9, 30)})
	require.NoError(t, err)
	assert.Equal(t, 1, created)
}

func TestPgRepository_ConcurrentBookHasOneWinner(t *testing.T) {
	svc, _ := newPgService(t)
	ctx := context.Background()
	slot := firstSlot(t, svc, configured(t, svc))

	const clients = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []uuid.UUID
		losers  int
	)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			appointmentID := uuid.New()
			_, err := svc.Book(ctx, slot.ID, appointmentID)
			mu.Lock()
			defer mu.Unlock()
			var notAvailable *SlotNotAvailableError
			switch {
			case err == nil:
				winners = append(winners, appointmentID)
			case errors.As(err, &notAvailable):
				losers++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, clients-1, losers)

	got, err := svc.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, SlotBooked, got.Status)
	require.NotNil(t, got.AppointmentID)
	assert.Equal(t, winners[0], *got.AppointmentID)
}

func TestPgRepository_CancelThenBook(t *testing.T) {
	svc, _ := newPgService(t)
	ctx := context.Background()
	slot := firstSlot(t, svc, configured(t, svc))

	_, err := svc.Book(ctx, slot.ID, uuid.New())
	require.NoError(t, err)
	cancelled, err := svc.Cancel(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, SlotCancelled, cancelled.Status)
	assert.Nil(t, cancelled.AppointmentID)

	_, err = svc.Book(ctx, slot.ID, uuid.New())
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, SlotCancelled, invalid.From)
}

func TestPgRepository_AppointmentIDFollowsStatus(t *testing.T) {
	svc, _ := newPgService(t)
	ctx := context.Background()
	doctorID := configured(t, svc)
	_, _, err := svc.RegenerateSlots(ctx, doctorID, testToday, testToday)
	require.NoError(t, err)
	slots, err := svc.ListAvailable(ctx, doctorID, testToday)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(slots), 2)

	t.Run("complete keeps it", func(t *testing.T) {
		appointmentID := uuid.New()
		_, err := svc.Book(ctx, slots[0].ID, appointmentID)
		require.NoError(t, err)

		done, err := svc.Complete(ctx, slots[0].ID)
		require.NoError(t, err)
		assert.Equal(t, SlotCompleted, done.Status)
		require.NotNil(t, done.AppointmentID)
		assert.Equal(t, appointmentID, *done.AppointmentID)
	})

	t.Run("no-show clears it", func(t *testing.T) {
		_, err := svc.Book(ctx, slots[1].ID, uuid.New())
		require.NoError(t, err)

		missed, err := svc.MarkNoShow(ctx, slots[1].ID)
		require.NoError(t, err)
		assert.Equal(t, SlotNoShow, missed.Status)
		assert.Nil(t, missed.AppointmentID)
	})
}

func TestPgRepository_ReopenReplacesCancelledSlot(t *testing.T) {
	svc, repo := newPgService(t)
	ctx := context.Background()
	doctorID := configured(t, svc)
	slot := firstSlot(t, svc, doctorID)

	_, err := svc.ReopenSlot(ctx, slot.ID)
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid, "only cancelled slots reopen")

	_, err = svc.Cancel(ctx, slot.ID)
	require.NoError(t, err)

	fresh, err := svc.ReopenSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.NotEqual(t, slot.ID, fresh.ID)
	assert.Equal(t, SlotAvailable, fresh.Status)
	assert.Equal(t, slot.StartTime, fresh.StartTime)
	assert.Equal(t, slot.EndTime, fresh.EndTime)

	_, err = repo.GetSlotByID(ctx, slot.ID)
	assert.ErrorIs(t, err, ErrSlotNotFound, "retired slot is soft-deleted")

	_, err = svc.Book(ctx, fresh.ID, uuid.New())
	require.NoError(t, err)

	// regenerating over the reopened time must not add a second slot
	created, _, err := svc.RegenerateSlots(ctx, doctorID, testToday, testToday)
	require.NoError(t, err)
	assert.Zero(t, created)
}

func TestPgRepository_Templates(t *testing.T) {
	svc, _ := newPgService(t)
	ctx := context.Background()

	tpl, err := svc.CreateTemplate(ctx, TemplateFromPattern(weekdayPattern(), "pg-"+uuid.NewString(), "", false))
	require.NoError(t, err)

	got, err := svc.GetTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Len(t, got.Content.WorkDays, 5)

	require.NoError(t, svc.DeleteTemplate(ctx, tpl.ID))
	_, err = svc.ApplyTemplate(ctx, uuid.New(), tpl.ID)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}
