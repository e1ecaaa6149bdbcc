package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/PaiKingDuck555/imessage-kit-concierge/models"
	"github.com/PaiKingDuck555/imessage-kit-concierge/services/concierge"
	"github.com/PaiKingDuck555/imessage-kit-concierge/services/intent"
	"github.com/PaiKingDuck555/imessage-kit-concierge/services/reservation"
	"github.com/PaiKingDuck555/imessage-kit-concierge/services/transport"
	"github.com/PaiKingDuck555/imessage-kit-concierge/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Delivery may truncate long texts, so echoes are also matched on a bounded
// prefix rather than the full string alone.
const echoPrefixLen = 64

// Loop bridges the message transport to the conversation state machine.
// It owns the single session, deduplicates inbound events, suppresses
// echoes of its own replies, and admits at most one turn at a time -
// events arriving mid-turn are dropped, not queued.
type Loop struct {
	Transport    transport.Transport
	Conversation concierge.ConversationService
	Recipient    string

	mu      sync.Mutex // guards session between a turn and ops snapshots
	session models.Session

	processing atomic.Bool
	seen       map[string]struct{} // inbound GUIDs, touched only by Run

	echoMu  sync.Mutex
	pending []string // texts sent but not yet seen back on the channel
}

func NewLoop(tr transport.Transport, conv concierge.ConversationService, recipient string) *Loop {
	return &Loop{
		Transport:    tr,
		Conversation: conv,
		Recipient:    recipient,
		seen:         make(map[string]struct{}),
	}
}

// Run watches the transport until the context is cancelled or the event
// channel closes.
func (l *Loop) Run(ctx context.Context) error {
	events, err := l.Transport.Watch(ctx)
	if err != nil {
		return fmt.Errorf("gateway: starting watcher: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			l.dispatch(ctx, ev)
		}
	}
}

func (l *Loop) dispatch(ctx context.Context, ev models.MessageEvent) {
	logger := utils.GetLogger()

	if !l.inScope(ev) {
		return
	}

	if _, dup := l.seen[ev.GUID]; dup {
		logger.Debug("Dropping redelivered message", zap.String("guid", ev.GUID))
		return
	}
	if ev.GUID != "" {
		l.seen[ev.GUID] = struct{}{}
	}

	if l.consumeEcho(ev.Text) {
		return
	}

	if !l.processing.CompareAndSwap(false, true) {
		logger.Debug("Dropping message while a turn is in flight", zap.String("guid", ev.GUID))
		return
	}

	go l.runTurn(ctx, uuid.NewString(), ev)
}

// inScope keeps only self-authored, non-reaction, non-empty texts addressed
// to the configured recipient.
func (l *Loop) inScope(ev models.MessageEvent) bool {
	if !ev.IsFromMe || ev.IsReaction {
		return false
	}
	if strings.TrimSpace(ev.Text) == "" {
		return false
	}
	return ev.ChatID == l.Recipient || ev.Sender == l.Recipient
}

func (l *Loop) runTurn(ctx context.Context, turnID string, ev models.MessageEvent) {
	logger := utils.GetLogger()
	defer l.processing.Store(false)

	l.mu.Lock()
	defer l.mu.Unlock()

	reply, err := l.Conversation.Handle(ctx, &l.session, ev.Text)
	if err != nil {
		// Hard failure: one user-facing error reply, session left as last
		// mutated so "reset" remains available.
		logger.Error("Turn failed", zap.String("turn", turnID), zap.Error(err))
		reply = formatError(err)
	}
	if reply == "" {
		return
	}

	l.registerEcho(reply)
	if err := l.Transport.Send(ctx, ev.ChatID, reply); err != nil {
		logger.Error("Reply send failed", zap.String("turn", turnID), zap.Error(err))
		l.unregisterEcho(reply)
		return
	}
	logger.Info("Turn complete",
		zap.String("turn", turnID),
		zap.String("step", l.session.Step.String()))
}

// registerEcho remembers a just-sent text so its redelivery on the watched
// channel is not treated as new input.
func (l *Loop) registerEcho(text string) {
	l.echoMu.Lock()
	defer l.echoMu.Unlock()
	l.pending = append(l.pending, text)
}

func (l *Loop) unregisterEcho(text string) {
	l.echoMu.Lock()
	defer l.echoMu.Unlock()
	for i, p := range l.pending {
		if p == text {
			l.pending = append(l.pending[:i], l.pending[i+1:]...)
			return
		}
	}
}

// consumeEcho reports whether text matches a pending sent text, exactly or
// on the bounded prefix, and removes the match so the same literal text can
// later be legitimately retyped by the user.
func (l *Loop) consumeEcho(text string) bool {
	l.echoMu.Lock()
	defer l.echoMu.Unlock()
	for i, p := range l.pending {
		if text == p || echoKey(text) == echoKey(p) {
			l.pending = append(l.pending[:i], l.pending[i+1:]...)
			return true
		}
	}
	return false
}

func echoKey(s string) string {
	if len(s) > echoPrefixLen {
		return s[:echoPrefixLen]
	}
	return s
}

// SessionSnapshot is a read-only view of loop state for the ops surface.
type SessionSnapshot struct {
	Step       string `json:"step"`
	Venues     int    `json:"venues"`
	Slots      int    `json:"slots"`
	Processing bool   `json:"processing"`
}

func (l *Loop) Snapshot() SessionSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return SessionSnapshot{
		Step:       l.session.Step.String(),
		Venues:     len(l.session.Venues),
		Slots:      len(l.session.Slots),
		Processing: l.processing.Load(),
	}
}

func formatError(err error) string {
	var extractionErr *intent.ExtractionError
	if errors.As(err, &extractionErr) {
		return `I couldn't work out what to search for - try something like "Italian in NYC tomorrow for 4".`
	}
	var requestErr *reservation.RequestError
	if errors.As(err, &requestErr) {
		return fmt.Sprintf("The reservation service answered with status %d - mind trying that again?", requestErr.Status)
	}
	if errors.Is(err, reservation.ErrVenueNotInResponse) {
		return "The reservation service sent back availability I couldn't match to that venue. Maybe try another one?"
	}
	return "Something went wrong handling that: " + err.Error()
}
