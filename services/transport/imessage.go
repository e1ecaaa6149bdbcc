package transport

import (
	"context"
	"database/sql"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/PaiKingDuck555/imessage-kit-concierge/models"
	"github.com/PaiKingDuck555/imessage-kit-concierge/utils"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Tapback reactions occupy this associated_message_type range in chat.db.
const (
	reactionTypeMin = 2000
	reactionTypeMax = 3999
)

// IMessageTransport watches the macOS Messages chat.db for new rows and
// sends replies through osascript. The database is opened read-only; only
// rows past the ROWID observed at startup are ever delivered.
type IMessageTransport struct {
	dbPath       string
	pollInterval time.Duration
	limiter      *rate.Limiter
	db           *sql.DB
	lastRowID    int64
}

func NewIMessageTransport(dbPath string, pollInterval time.Duration, sendRatePerMin int) (*IMessageTransport, error) {
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("transport: opening chat.db: %w", err)
	}
	if sendRatePerMin <= 0 {
		sendRatePerMin = 20
	}
	return &IMessageTransport{
		dbPath:       dbPath,
		pollInterval: pollInterval,
		limiter:      rate.NewLimiter(rate.Every(time.Minute/time.Duration(sendRatePerMin)), 1),
		db:           db,
	}, nil
}

func (t *IMessageTransport) Watch(ctx context.Context) (<-chan models.MessageEvent, error) {
	if err := t.db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("transport: chat.db unreachable: %w", err)
	}

	// Start past the newest existing row so old history is never replayed.
	row := t.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(ROWID), 0) FROM message`)
	if err := row.Scan(&t.lastRowID); err != nil {
		return nil, fmt.Errorf("transport: reading initial rowid: %w", err)
	}

	events := make(chan models.MessageEvent)
	go t.poll(ctx, events)
	return events, nil
}

func (t *IMessageTransport) poll(ctx context.Context, events chan<- models.MessageEvent) {
	logger := utils.GetLogger()
	defer close(events)

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		rows, err := t.db.QueryContext(ctx, `
			SELECT m.ROWID, m.guid, COALESCE(m.text, ''), m.is_from_me,
			       COALESCE(m.associated_message_type, 0),
			       COALESCE(h.id, ''), COALESCE(c.chat_identifier, '')
			FROM message m
			LEFT JOIN handle h ON h.ROWID = m.handle_id
			LEFT JOIN chat_message_join cmj ON cmj.message_id = m.ROWID
			LEFT JOIN chat c ON c.ROWID = cmj.chat_id
			WHERE m.ROWID > ?
			ORDER BY m.ROWID`, t.lastRowID)
		if err != nil {
			logger.Warn("chat.db poll failed", zap.Error(err))
			continue
		}

		for rows.Next() {
			var (
				rowID      int64
				guid, text string
				isFromMe   int
				assocType  int
				sender     string
				chatID     string
			)
			if err := rows.Scan(&rowID, &guid, &text, &isFromMe, &assocType, &sender, &chatID); err != nil {
				logger.Warn("chat.db row scan failed", zap.Error(err))
				continue
			}
			if rowID > t.lastRowID {
				t.lastRowID = rowID
			}

			ev := models.MessageEvent{
				GUID:       guid,
				ChatID:     chatID,
				Sender:     sender,
				Text:       text,
				IsFromMe:   isFromMe == 1,
				IsReaction: assocType >= reactionTypeMin && assocType <= reactionTypeMax,
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				rows.Close()
				return
			}
		}
		rows.Close()
	}
}

func (t *IMessageTransport) Send(ctx context.Context, chatID, text string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}

	script := fmt.Sprintf(
		`tell application "Messages" to send %s to buddy %s of (service 1 whose service type is iMessage)`,
		appleScriptQuote(text), appleScriptQuote(chatID))

	cmd := exec.CommandContext(ctx, "osascript", "-e", script)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("transport: osascript send failed: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (t *IMessageTransport) Ping(ctx context.Context) error {
	return t.db.PingContext(ctx)
}

func (t *IMessageTransport) Close() error {
	return t.db.Close()
}

func appleScriptQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
