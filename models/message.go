package models

// MessageEvent is one inbound record from the message transport. GUID is the
// transport's unique identity for the event and drives deduplication.
type MessageEvent struct {
	GUID       string `json:"guid"`
	ChatID     string `json:"chatId"`
	Sender     string `json:"sender"`
	Text       string `json:"text"`
	IsFromMe   bool   `json:"isFromMe"`
	IsReaction bool   `json:"isReaction"`
}
