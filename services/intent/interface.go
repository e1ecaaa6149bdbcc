package intent

import (
	"context"

	"github.com/PaiKingDuck555/imessage-kit-concierge/models"
)

// IntentService turns a free-text restaurant request into structured search
// parameters. One external call per invocation, no retries.
type IntentService interface {
	Extract(ctx context.Context, text string) (models.SearchParams, error)
}
