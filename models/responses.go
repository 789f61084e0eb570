package models

import "time"

// ChatMessageResponse is the wire shape of a stored message. Callers apply
// branch resolution client-side against the full list.
type ChatMessageResponse struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	ParentID  *string   `json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TurnResult reports where a submitted turn ended up: the id the turn
// resolved to (reused or fresh) and the persisted reply.
type TurnResult struct {
	MessageID string `json:"message_id"`
	ReplyID   string `json:"reply_id,omitempty"`
	Reply     string `json:"reply"`
}

// StreamEvent is one frame of a streamed reply, sent over SSE or WebSocket.
type StreamEvent struct {
	Type      string `json:"type"` // "delta", "done", "error"
	Text      string `json:"text,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	ReplyID   string `json:"reply_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ChatResponse is the wire shape of a chat for listing
type ChatResponse struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	MessageCount int    `json:"message_count"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}
