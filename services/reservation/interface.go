package reservation

import (
	"context"

	"github.com/PaiKingDuck555/imessage-kit-concierge/models"
)

// ReservationService is a stateless wrapper over the upstream reservation
// API. Search, Availability and Hold are idempotent on read; Book is not and
// must never be retried automatically.
type ReservationService interface {
	Search(ctx context.Context, query, location string, lat, lng float64) ([]models.Venue, error)
	Availability(ctx context.Context, venueID int, day string, partySize int, lat, lng float64) ([]models.Slot, error)
	Hold(ctx context.Context, configToken, day string, partySize int) (models.HoldResult, error)
	Book(ctx context.Context, bookToken string) (models.Confirmation, error)
}
