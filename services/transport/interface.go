package transport

import (
	"context"

	"github.com/PaiKingDuck555/imessage-kit-concierge/models"
)

// Transport is a push-based message channel: it yields inbound events and
// accepts outbound text. Watch's channel closes when the context is
// cancelled or the transport shuts down.
type Transport interface {
	Watch(ctx context.Context) (<-chan models.MessageEvent, error)
	Send(ctx context.Context, chatID, text string) error
	Close() error
}
