package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinema-reservation/internal/database"
	"cinema-reservation/internal/model"
)

// Integration tests run against a real MySQL instance with the
// migrations applied.  They are skipped unless TEST_DATABASE_DSN is
// set, e.g.:
//
//	TEST_DATABASE_DSN='root@tcp(localhost:3306)/cinema_test?charset=utf8mb4&parseTime=true&loc=UTC' go test ./...

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}
	db, err := database.OpenDSN(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type fixture struct {
	db         *sql.DB
	userIDs    []uint64
	movieID    uint64
	roomID     uint64
	scheduleID uint64
}

// newFixture seeds users, one movie, one room of the given capacity
// and one schedule.  Everything is removed again on cleanup.
func newFixture(t *testing.T, db *sql.DB, users int, capacity uint32) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{db: db}
	tag := time.Now().UnixNano()

	for i := 0; i < users; i++ {
		res, err := db.ExecContext(ctx,
			"INSERT INTO users (email, password_hash, role) VALUES (?,?,?)",
			fmt.Sprintf("u%d-%d@test.local", i, tag), "x", "USER")
		require.NoError(t, err)
		id, err := res.LastInsertId()
		require.NoError(t, err)
		f.userIDs = append(f.userIDs, uint64(id))
	}

	res, err := db.ExecContext(ctx,
		"INSERT INTO movies (title, year, director) VALUES (?,?,?)",
		fmt.Sprintf("movie-%d", tag), 2020, "test")
	require.NoError(t, err)
	mid, _ := res.LastInsertId()
	f.movieID = uint64(mid)

	res, err = db.ExecContext(ctx,
		"INSERT INTO rooms (capacity, label) VALUES (?,?)",
		capacity, fmt.Sprintf("room-%d", tag))
	require.NoError(t, err)
	rid, _ := res.LastInsertId()
	f.roomID = uint64(rid)

	res, err = db.ExecContext(ctx,
		"INSERT INTO schedule (movie_id, room_id, date) VALUES (?,?,?)",
		f.movieID, f.roomID, "2030-01-01 20:00:00")
	require.NoError(t, err)
	sid, _ := res.LastInsertId()
	f.scheduleID = uint64(sid)

	t.Cleanup(func() {
		_, _ = db.ExecContext(ctx, "DELETE FROM reservation WHERE schedule_id = ?", f.scheduleID)
		_, _ = db.ExecContext(ctx, "DELETE FROM schedule WHERE id = ?", f.scheduleID)
		_, _ = db.ExecContext(ctx, "DELETE FROM rooms WHERE id = ?", f.roomID)
		_, _ = db.ExecContext(ctx, "DELETE FROM movies WHERE id = ?", f.movieID)
		for _, uid := range f.userIDs {
			_, _ = db.ExecContext(ctx, "DELETE FROM reservation WHERE user_id = ?", uid)
			_, _ = db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", uid)
		}
	})
	return f
}

func (f *fixture) addSchedule(t *testing.T, capacity uint32) uint64 {
	t.Helper()
	ctx := context.Background()
	res, err := f.db.ExecContext(ctx,
		"INSERT INTO rooms (capacity, label) VALUES (?,?)",
		capacity, fmt.Sprintf("room2-%d", time.Now().UnixNano()))
	require.NoError(t, err)
	rid, _ := res.LastInsertId()

	res, err = f.db.ExecContext(ctx,
		"INSERT INTO schedule (movie_id, room_id, date) VALUES (?,?,?)",
		f.movieID, rid, "2030-01-02 20:00:00")
	require.NoError(t, err)
	sid, _ := res.LastInsertId()

	t.Cleanup(func() {
		_, _ = f.db.ExecContext(ctx, "DELETE FROM reservation WHERE schedule_id = ?", sid)
		_, _ = f.db.ExecContext(ctx, "DELETE FROM schedule WHERE id = ?", sid)
		_, _ = f.db.ExecContext(ctx, "DELETE FROM rooms WHERE id = ?", rid)
	})
	return uint64(sid)
}

func (f *fixture) countReservations(t *testing.T, scheduleID uint64) int {
	t.Helper()
	var n int
	err := f.db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM reservation WHERE schedule_id = ?", scheduleID).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestCreateAndDuplicate(t *testing.T) {
	db := testDB(t)
	f := newFixture(t, db, 1, 10)
	repo := NewReservationRepo(db)
	ctx := context.Background()

	res, err := repo.Create(ctx, f.userIDs[0], f.scheduleID)
	require.NoError(t, err)
	assert.Equal(t, f.userIDs[0], res.UserID)
	assert.Equal(t, f.scheduleID, res.ScheduleID)

	_, err = repo.Create(ctx, f.userIDs[0], f.scheduleID)
	assert.ErrorIs(t, err, ErrDuplicateReservation)
	assert.Equal(t, 1, f.countReservations(t, f.scheduleID))

	mine, err := repo.ListByUser(ctx, f.userIDs[0])
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, res.ID, mine[0].ID)
}

func TestCreateMissingSchedule(t *testing.T) {
	db := testDB(t)
	f := newFixture(t, db, 1, 10)
	repo := NewReservationRepo(db)

	_, err := repo.Create(context.Background(), f.userIDs[0], f.scheduleID+1000000)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCapacityBoundary(t *testing.T) {
	db := testDB(t)
	f := newFixture(t, db, 2, 1)
	repo := NewReservationRepo(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, f.userIDs[0], f.scheduleID)
	require.NoError(t, err)

	_, err = repo.Create(ctx, f.userIDs[1], f.scheduleID)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	// The failed attempt must leave no partial row behind.
	assert.Equal(t, 1, f.countReservations(t, f.scheduleID))

	exceeded, err := repo.IsCapacityExceeded(ctx, f.scheduleID)
	require.NoError(t, err)
	assert.False(t, exceeded, "a schedule exactly at capacity is not exceeded")
}

func TestUpdateMoveToFullScheduleRollsBack(t *testing.T) {
	db := testDB(t)
	f := newFixture(t, db, 2, 10)
	repo := NewReservationRepo(db)
	ctx := context.Background()

	full := f.addSchedule(t, 1)
	_, err := repo.Create(ctx, f.userIDs[0], full)
	require.NoError(t, err)

	res, err := repo.Create(ctx, f.userIDs[1], f.scheduleID)
	require.NoError(t, err)

	_, err = repo.Update(ctx, res.ID, model.ReservationChangeset{ScheduleID: &full})
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	// Unchanged after the rollback.
	after, err := repo.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, f.scheduleID, after.ScheduleID)
}

func TestUpdateMissingReservation(t *testing.T) {
	db := testDB(t)
	newFixture(t, db, 1, 10)
	repo := NewReservationRepo(db)

	_, err := repo.Update(context.Background(), 0xFFFFFFFF, model.ReservationChangeset{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAllOwnedBy(t *testing.T) {
	db := testDB(t)
	f := newFixture(t, db, 2, 10)
	repo := NewReservationRepo(db)
	ctx := context.Background()

	mine, err := repo.Create(ctx, f.userIDs[0], f.scheduleID)
	require.NoError(t, err)
	other, err := repo.Create(ctx, f.userIDs[1], f.scheduleID)
	require.NoError(t, err)

	owned, err := repo.AllOwnedBy(ctx, []uint64{mine.ID}, f.userIDs[0])
	require.NoError(t, err)
	assert.True(t, owned)

	// Duplicated ids in the request must not fake a larger match.
	owned, err = repo.AllOwnedBy(ctx, []uint64{mine.ID, mine.ID}, f.userIDs[0])
	require.NoError(t, err)
	assert.True(t, owned)

	owned, err = repo.AllOwnedBy(ctx, []uint64{mine.ID, other.ID}, f.userIDs[0])
	require.NoError(t, err)
	assert.False(t, owned, "a foreign reservation in the set fails the check")

	owned, err = repo.AllOwnedBy(ctx, []uint64{mine.ID, 0xFFFFFFFF}, f.userIDs[0])
	require.NoError(t, err)
	assert.False(t, owned, "a missing id in the set fails the check")

	owned, err = repo.AllOwnedBy(ctx, nil, f.userIDs[0])
	require.NoError(t, err)
	assert.False(t, owned)
}

func TestDeleteAndDeleteMany(t *testing.T) {
	db := testDB(t)
	f := newFixture(t, db, 3, 10)
	repo := NewReservationRepo(db)
	ctx := context.Background()

	var ids []uint64
	for _, uid := range f.userIDs {
		res, err := repo.Create(ctx, uid, f.scheduleID)
		require.NoError(t, err)
		ids = append(ids, res.ID)
	}

	n, err := repo.Delete(ctx, ids[0])
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	// Deleting an already removed id is a no-op, not an error.
	n, err = repo.Delete(ctx, ids[0])
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	n, err = repo.DeleteMany(ctx, ids[1:])
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, 0, f.countReservations(t, f.scheduleID))
}

func TestAvailability(t *testing.T) {
	db := testDB(t)
	f := newFixture(t, db, 2, 5)
	repo := NewReservationRepo(db)
	ctx := context.Background()

	capacity, reserved, err := repo.Availability(ctx, f.scheduleID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, capacity)
	assert.EqualValues(t, 0, reserved)

	_, err = repo.Create(ctx, f.userIDs[0], f.scheduleID)
	require.NoError(t, err)

	capacity, reserved, err = repo.Availability(ctx, f.scheduleID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, capacity)
	assert.EqualValues(t, 1, reserved)

	_, _, err = repo.Availability(ctx, f.scheduleID+1000000)
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestConcurrentCreates hammers one schedule with more bookings than
// its room holds.  Exactly capacity rows may survive; every loser
// gets ErrCapacityExceeded and leaves nothing behind.
func TestConcurrentCreates(t *testing.T) {
	const (
		capacity = 3
		workers  = 10
	)
	db := testDB(t)
	f := newFixture(t, db, workers, capacity)
	repo := NewReservationRepo(db)

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.Create(context.Background(), f.userIDs[i], f.scheduleID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrCapacityExceeded)
	}
	assert.Equal(t, capacity, succeeded)
	assert.Equal(t, capacity, f.countReservations(t, f.scheduleID))
}
