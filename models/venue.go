package models

import "time"

// SearchParams is the structured query produced by intent extraction.
// Produced once per idle -> venue_list transition and never mutated; a new
// search always starts a fresh session.
type SearchParams struct {
	Query     string  `json:"query"`
	Location  string  `json:"location"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Day       string  `json:"day"` // ISO date, e.g. "2024-06-02"
	PartySize int     `json:"party_size"`
}

// Venue is one restaurant candidate returned by search. Immutable once fetched.
type Venue struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Location    string   `json:"location"` // neighborhood or city
	Cuisine     []string `json:"cuisine,omitempty"`
	Rating      float64  `json:"rating,omitempty"`
	ReviewCount int      `json:"reviewCount,omitempty"`
	PriceTier   int      `json:"priceTier,omitempty"` // 1..4
}

// Slot is one bookable time window at a venue for a given date and party
// size. The config token is an opaque capability used to request a hold;
// it goes stale if upstream inventory changes between listing and hold.
type Slot struct {
	Start       string `json:"start"` // HH:MM
	End         string `json:"end"`   // HH:MM
	ServiceType string `json:"serviceType,omitempty"`
	ConfigToken string `json:"configToken"`
}

// HoldResult is the outcome of a hold request. An empty BookToken means the
// slot was taken between listing and the hold call; callers treat that as a
// soft failure, not an error.
type HoldResult struct {
	BookToken          string    `json:"bookToken"`
	Expires            time.Time `json:"expires"`
	CancellationPolicy string    `json:"cancellationPolicy,omitempty"`
	PaymentAmount      float64   `json:"paymentAmount,omitempty"` // deposit disclosed at hold time, 0 when none
}

// Confirmation is the upstream record for a committed booking.
type Confirmation struct {
	ReservationID string `json:"reservationId"`
	Token         string `json:"token,omitempty"`
}
