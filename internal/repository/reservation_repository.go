package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Jinnapat/jod-rod-matching-service/internal/model"
)

// ReservationRepo provides access to the reservations table.  It is the
// only owner of reservation state; every mutation is a single-row statement
// keyed by reservation id.  All timestamps are stored in UTC.
type ReservationRepo struct {
	db    *sqlx.DB
	newID func() string
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sqlx.DB) *ReservationRepo {
	return &ReservationRepo{db: db, newID: uuid.NewString}
}

// ActiveFilter narrows FindActive and CountActive.  Zero values match
// everything.
type ActiveFilter struct {
	ParkingLotID string
	UserID       *int64
}

const reservationColumns = `id, user_id, parking_lot_id, confirmed, late_at, left_lot, created_at`

// activePredicate selects PENDING and OCCUPIED reservations.  The single
// placeholder is the reference time.
const activePredicate = `((confirmed = FALSE AND late_at > ?) OR (confirmed = TRUE AND left_lot = FALSE))`

// Insert stores res as a new reservation and returns its id.  An empty ID
// and a zero CreatedAt are filled in and written back to res.  Insert
// performs no domain validation.
func (r *ReservationRepo) Insert(ctx context.Context, res *model.Reservation) (string, error) {
	if res.ID == "" {
		res.ID = r.newID()
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	const q = `INSERT INTO reservations (` + reservationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		res.ID, res.UserID, res.ParkingLotID, res.Confirmed,
		res.LateAt.UTC(), res.Left, res.CreatedAt.UTC(),
	)
	if err != nil {
		return "", err
	}
	return res.ID, nil
}

// FindByID returns the reservation with the given id or
// ErrReservationNotFound.
func (r *ReservationRepo) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	var res model.Reservation
	err := r.db.GetContext(ctx, &res, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// FindAll returns every reservation, oldest first.
func (r *ReservationRepo) FindAll(ctx context.Context) ([]model.Reservation, error) {
	out := []model.Reservation{}
	err := r.db.SelectContext(ctx, &out, `SELECT `+reservationColumns+` FROM reservations ORDER BY created_at`)
	return out, err
}

// FindByParkingLot returns every reservation for a lot regardless of state.
func (r *ReservationRepo) FindByParkingLot(ctx context.Context, parkingLotID string) ([]model.Reservation, error) {
	out := []model.Reservation{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+reservationColumns+` FROM reservations WHERE parking_lot_id = ? ORDER BY created_at`,
		parkingLotID)
	return out, err
}

// FindActive returns reservations that are PENDING or OCCUPIED as of now,
// narrowed by f.
func (r *ReservationRepo) FindActive(ctx context.Context, f ActiveFilter, now time.Time) ([]model.Reservation, error) {
	where, args := activeWhere(f, now)
	out := []model.Reservation{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+reservationColumns+` FROM reservations WHERE `+where+` ORDER BY created_at`,
		args...)
	return out, err
}

// CountActive returns the cardinality of FindActive without loading rows.
func (r *ReservationRepo) CountActive(ctx context.Context, f ActiveFilter, now time.Time) (int, error) {
	where, args := activeWhere(f, now)
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM reservations WHERE `+where, args...)
	return n, err
}

// SetConfirmed flips confirmed from false to true.  It reports false when no
// row matched, which covers both an unknown id and an already confirmed
// reservation; callers cannot and need not tell the two apart.
func (r *ReservationRepo) SetConfirmed(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET confirmed = TRUE WHERE id = ? AND confirmed = FALSE`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func activeWhere(f ActiveFilter, now time.Time) (string, []interface{}) {
	clauses := []string{activePredicate}
	args := []interface{}{now.UTC()}
	if f.ParkingLotID != "" {
		clauses = append(clauses, "parking_lot_id = ?")
		args = append(args, f.ParkingLotID)
	}
	if f.UserID != nil {
		clauses = append(clauses, "user_id = ?")
		args = append(args, *f.UserID)
	}
	return strings.Join(clauses, " AND "), args
}
