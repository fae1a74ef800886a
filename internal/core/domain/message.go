package domain

import "time"

type MessageID string

// Attachment is an optional file carried by a message. Content is a base64
// data URL produced by the client; the broker stores and relays it verbatim.
type Attachment struct {
	Name      string `json:"name"`
	MediaType string `json:"mediaType"`
	Content   string `json:"contentBase64"`
}

// Message is a persisted room message. Immutable once created; the broker
// never deletes messages, retention is a history-store policy.
type Message struct {
	ID         MessageID   `json:"id"`
	Room       RoomName    `json:"room"`
	Author     string      `json:"author"`
	Text       string      `json:"text"`
	Attachment *Attachment `json:"attachment,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// Empty reports whether the message carries neither text nor an attachment.
// Such messages are rejected before persistence.
func (m *Message) Empty() bool {
	return m.Text == "" && m.Attachment == nil
}
