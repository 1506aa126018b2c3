package model

// UserInfo is the subset of the user service's user document this service
// reads.  Extra fields in the response are ignored, including the
// document's own id; ID is the id that was looked up.
type UserInfo struct {
	ID       int64  `json:"-"`
	Username string `json:"username"`
}

// ParkingLot mirrors the parking-space service's lot document.
type ParkingLot struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	TotalParking int     `json:"totalParking"`
	Available    *int    `json:"available"`
}

// Penalty status values returned by the user service.
const (
	PenaltyNormal  = "NORMAL"
	PenaltyPenalty = "PENALTY"
)

// PenaltyStatus is the user's standing as reported by the user service.
// It is only consulted when a reservation expires unconfirmed.
type PenaltyStatus struct {
	Status       string `json:"status"`
	UnBannedDate string `json:"unBannedDate"`
	LeftQuota    int    `json:"leftQuota"`
}

// Banned reports whether the user currently carries a penalty.
func (p PenaltyStatus) Banned() bool { return p.Status == PenaltyPenalty }
