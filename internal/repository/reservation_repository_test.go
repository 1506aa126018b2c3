package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jinnapat/jod-rod-matching-service/internal/model"
)

var columns = []string{"id", "user_id", "parking_lot_id", "confirmed", "late_at", "left_lot", "created_at"}

func newMockRepo(t *testing.T) (*ReservationRepo, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(raw, "mysql")
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	repo := NewReservationRepo(db)
	repo.newID = func() string { return "res-1" }
	return repo, mock
}

func TestInsertAssignsID(t *testing.T) {
	repo, mock := newMockRepo(t)
	lateAt := time.Date(2026, 1, 1, 10, 15, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reservations")).
		WithArgs("res-1", int64(7), "lot-A", false, lateAt, false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	res := &model.Reservation{UserID: 7, ParkingLotID: "lot-A", LateAt: lateAt}
	id, err := repo.Insert(context.Background(), res)
	require.NoError(t, err)
	assert.Equal(t, "res-1", id)
	assert.Equal(t, "res-1", res.ID)
	assert.False(t, res.CreatedAt.IsZero())
}

func TestInsertKeepsCallerID(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reservations")).
		WithArgs("chosen", int64(7), "lot-A", false, sqlmock.AnyArg(), false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := repo.Insert(context.Background(), &model.Reservation{ID: "chosen", UserID: 7, ParkingLotID: "lot-A"})
	require.NoError(t, err)
	assert.Equal(t, "chosen", id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertError(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("INSERT INTO reservations").WillReturnError(errors.New("disk full"))

	_, err := repo.Insert(context.Background(), &model.Reservation{UserID: 1, ParkingLotID: "A"})
	assert.Error(t, err)
}

func TestFindByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM reservations WHERE id = ?")).
		WithArgs("res-1").
		WillReturnRows(sqlmock.NewRows(columns).AddRow("res-1", 7, "lot-A", true, now, false, now))

	res, err := repo.FindByID(context.Background(), "res-1")
	require.NoError(t, err)
	assert.Equal(t, "res-1", res.ID)
	assert.Equal(t, int64(7), res.UserID)
	assert.Equal(t, "lot-A", res.ParkingLotID)
	assert.True(t, res.Confirmed)
}

func TestFindByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("FROM reservations WHERE id = ").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(columns))

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrReservationNotFound)
}

func TestFindAllEmptyIsNotNil(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("FROM reservations ORDER BY created_at").
		WillReturnRows(sqlmock.NewRows(columns))

	out, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestFindByParkingLot(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE parking_lot_id = ?")).
		WithArgs("lot-A").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("r1", 1, "lot-A", false, now, false, now).
			AddRow("r2", 2, "lot-A", true, now, true, now))

	out, err := repo.FindByParkingLot(context.Background(), "lot-A")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "r2", out[1].ID)
	assert.True(t, out[1].Left)
}

func TestFindActiveWithFilters(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	uid := int64(3)

	mock.ExpectQuery(regexp.QuoteMeta(
		"WHERE ((confirmed = FALSE AND late_at > ?) OR (confirmed = TRUE AND left_lot = FALSE)) AND parking_lot_id = ? AND user_id = ?")).
		WithArgs(now, "lot-A", uid).
		WillReturnRows(sqlmock.NewRows(columns).AddRow("r1", 3, "lot-A", false, now.Add(time.Minute), false, now))

	out, err := repo.FindActive(context.Background(), ActiveFilter{ParkingLotID: "lot-A", UserID: &uid}, now)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "r1", out[0].ID)
}

func TestCountActive(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM reservations WHERE ((confirmed = FALSE AND late_at > ?)")).
		WithArgs(now, "lot-A").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	n, err := repo.CountActive(context.Background(), ActiveFilter{ParkingLotID: "lot-A"}, now)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestSetConfirmed(t *testing.T) {
	repo, mock := newMockRepo(t)
	q := regexp.QuoteMeta("UPDATE reservations SET confirmed = TRUE WHERE id = ? AND confirmed = FALSE")

	mock.ExpectExec(q).WithArgs("res-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("res-1").WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.SetConfirmed(context.Background(), "res-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SetConfirmed(context.Background(), "res-1")
	require.NoError(t, err)
	assert.False(t, ok, "second confirmation must not match")
}

func TestActiveWhereNoFilter(t *testing.T) {
	now := time.Now()
	where, args := activeWhere(ActiveFilter{}, now)
	assert.Equal(t, activePredicate, where)
	assert.Len(t, args, 1)
}
