package model

import "time"

// Reservation records a user's request to hold a parking lot until it is
// confirmed or its deadline passes.  The lifecycle state is never stored;
// it is derived from Confirmed, Left and LateAt by State.
//
// Fields:
//  ID           – opaque identifier assigned by the store on insert.
//  UserID       – requesting user, validated against the user service.
//  ParkingLotID – target lot, validated against the parking-space service.
//  Confirmed    – set true exactly once by a confirmation.
//  LateAt       – deadline (creation time + reservation duration).
//  Left         – set by the occupancy-exit collaborator, never by this service.
//  CreatedAt    – creation timestamp.
type Reservation struct {
	ID           string    `json:"id" db:"id"`
	UserID       int64     `json:"userId" db:"user_id"`
	ParkingLotID string    `json:"parkingLotId" db:"parking_lot_id"`
	Confirmed    bool      `json:"confirmed" db:"confirmed"`
	LateAt       time.Time `json:"lateAt" db:"late_at"`
	Left         bool      `json:"left" db:"left_lot"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// State is the derived lifecycle state of a reservation.
type State string

const (
	StatePending            State = "PENDING"
	StateExpiredUnconfirmed State = "EXPIRED_UNCONFIRMED"
	StateOccupied           State = "OCCUPIED"
	StateCompleted          State = "COMPLETED"
)

// State computes the lifecycle state of r as of now.
func (r Reservation) State(now time.Time) State {
	switch {
	case r.Confirmed && r.Left:
		return StateCompleted
	case r.Confirmed:
		return StateOccupied
	case r.LateAt.After(now):
		return StatePending
	default:
		return StateExpiredUnconfirmed
	}
}

// IsActive reports whether r is PENDING or OCCUPIED as of now.  Active
// reservations are the ones counted against a lot's capacity.
func (r Reservation) IsActive(now time.Time) bool {
	s := r.State(now)
	return s == StatePending || s == StateOccupied
}

// ReservationDetail is a reservation enriched for display.  Only one of
// Username and ParkingLotName is normally filled, depending on which
// enrichment the caller applied.
type ReservationDetail struct {
	Reservation
	Username       string `json:"username,omitempty"`
	ParkingLotName string `json:"parkingLotName,omitempty"`
}

// Details wraps each reservation in an unenriched ReservationDetail.
func Details(rs []Reservation) []ReservationDetail {
	out := make([]ReservationDetail, len(rs))
	for i, r := range rs {
		out[i] = ReservationDetail{Reservation: r}
	}
	return out
}
