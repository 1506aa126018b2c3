// Package repository implements the reservation store on MySQL.  Store
// misses are reported with sentinel errors so the service layer can map
// them onto its error taxonomy without inspecting driver errors.
package repository

import "errors"

// ErrReservationNotFound is returned when no reservation matches the
// requested id.
var ErrReservationNotFound = errors.New("reservation not found")
