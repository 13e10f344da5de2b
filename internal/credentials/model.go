package credentials

import "time"

const (
	StatusActive  = "active"
	StatusExpired = "expired"
)

// Mapping is a time-bounded record that a user verified against an
// institution.
type Mapping struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	InstitutionName string    `json:"institutionName"`
	ValidFrom       time.Time `json:"validFrom"`
	ValidUntil      time.Time `json:"validUntil"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
}
