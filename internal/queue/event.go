// Package queue defines the notification envelope and the broker backends
// that deliver it.  One logical channel exists per key: a parking lot id
// for creation announcements, a user id for confirmation and expiry
// notices.
package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Jinnapat/jod-rod-matching-service/internal/model"
)

// Status discriminates lifecycle notifications.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusLated     Status = "LATED"
	StatusBanned    Status = "BANNED"
)

// ReservationEvent is the payload published on every lifecycle change.  It
// carries a snapshot of the reservation so consumers never need to query
// the store.  UnBannedDate and LeftQuota are only set on LATED and BANNED.
type ReservationEvent struct {
	Reservation  model.ReservationDetail `json:"reservation"`
	Status       Status                  `json:"status"`
	UnBannedDate string                  `json:"unBannedDate,omitempty"`
	LeftQuota    *int                    `json:"leftQuota,omitempty"`
	OccurredAt   time.Time               `json:"occurredAt"`
}

// DecodeEvent parses a delivered message body.
func DecodeEvent(body []byte) (ReservationEvent, error) {
	var ev ReservationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ReservationEvent{}, fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Status == "" {
		return ReservationEvent{}, fmt.Errorf("event without status")
	}
	return ev, nil
}

// FormatEvent renders ev as a single human-friendly log line.
func FormatEvent(ev ReservationEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | reservation_id=%s | user_id=%d | parking_lot_id=%s",
		ev.OccurredAt.UTC().Format(time.RFC3339), ev.Status,
		ev.Reservation.ID, ev.Reservation.UserID, ev.Reservation.ParkingLotID)
	if ev.Reservation.ParkingLotName != "" {
		fmt.Fprintf(&b, " | lot=%q", ev.Reservation.ParkingLotName)
	}
	fmt.Fprintf(&b, " | late_at=%s", ev.Reservation.LateAt.UTC().Format(time.RFC3339))
	if ev.UnBannedDate != "" {
		fmt.Fprintf(&b, " | unbanned=%s", ev.UnBannedDate)
	}
	if ev.LeftQuota != nil {
		fmt.Fprintf(&b, " | left_quota=%d", *ev.LeftQuota)
	}
	return b.String()
}
