package concierge

import (
	"context"

	"github.com/PaiKingDuck555/imessage-kit-concierge/models"
)

// ConversationService drives one turn of the booking conversation. The
// session is owned by the caller and passed by reference; Handle mutates it
// according to the transition table and returns the reply text.
//
// Soft failures (slot taken, hold expired, payment required) are absorbed
// into reply text. Hard failures (extraction, upstream request, booking)
// are returned as errors with the session left as last mutated.
type ConversationService interface {
	Handle(ctx context.Context, sess *models.Session, text string) (string, error)
}
