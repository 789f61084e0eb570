package stores

import (
	"time"
)

// Message roles. Rich client content is normalized to concatenated text
// before it reaches the store, so Content is always plain text.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a single conversational turn. Rows are immutable once
// written; regeneration adds sibling rows instead of updating existing
// ones, so a chat's messages form a forest linked by ParentID.
type Message struct {
	ID        uint   `gorm:"primarykey" json:"-"`
	MessageID string `gorm:"uniqueIndex;not null" json:"id"`
	ChatID    string `gorm:"index:idx_messages_chat_created;not null" json:"chat_id"`
	Role      string `gorm:"not null" json:"role"` // "user", "assistant", "system"
	Content   string `gorm:"type:text;not null" json:"content"`
	// ParentID references another message in the same chat; nil marks a root.
	ParentID  *string   `gorm:"index" json:"parent_id,omitempty"`
	CreatedAt time.Time `gorm:"index:idx_messages_chat_created" json:"created_at"`
}

// Chat holds metadata for a conversation and owns its messages.
// Deleting a chat removes every message in it.
type Chat struct {
	ID        uint      `gorm:"primarykey" json:"-"`
	ChatID    string    `gorm:"uniqueIndex;not null" json:"id"`
	UserID    string    `gorm:"index;not null" json:"user_id"`
	Title     string    `gorm:"type:text" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `gorm:"foreignKey:ChatID;references:ChatID;constraint:OnDelete:CASCADE" json:"-"`
}

// ChatInfo holds basic chat metadata for listing
type ChatInfo struct {
	ChatID       string
	UserID       string
	Title        string
	MessageCount int
	CreatedAt    string
	UpdatedAt    string
}

// MessageStore interface for abstracting database operations.
// Lookup misses return (nil, nil) rather than an error; no operation
// mutates an existing message row.
type MessageStore interface {
	// Message operations
	FindMessage(chatID, messageID string) (*Message, error)
	FindLatestByRoleAndContent(chatID, role, content string) (*Message, error)
	FindLatest(chatID string) (*Message, error)
	InsertMessage(chatID, role, content string, parentID *string) (*Message, error)
	ListMessages(chatID string) ([]Message, error)

	// Transaction runs fn against a store bound to a single database
	// transaction, so lookup-then-insert sequences cannot interleave
	// with a concurrent duplicate submission.
	Transaction(fn func(MessageStore) error) error

	// Chat operations
	CreateChat(userID, title string) (*Chat, error)
	GetChat(chatID string) (*Chat, error)
	ListChatsForUser(userID string) ([]ChatInfo, error)
	DeleteChat(chatID string) error
	UpdateChatTitle(chatID, title string) error
	TouchChat(chatID string) error
	ListEmptyChatsBefore(cutoff time.Time) ([]string, error)

	// Connection management
	Connect() error
	Close() error

	// Health check
	Ping() error
}

// StoreConfig holds configuration for database stores
type StoreConfig struct {
	Type       string            `json:"type"`       // "sqlite", "postgres"
	Connection string            `json:"connection"` // connection string
	Options    map[string]string `json:"options"`    // additional options
}

// NewStoreConfig creates a new store configuration
func NewStoreConfig(storeType, connection string) *StoreConfig {
	return &StoreConfig{
		Type:       storeType,
		Connection: connection,
		Options:    make(map[string]string),
	}
}

// WithOption adds an option to the store configuration
func (c *StoreConfig) WithOption(key, value string) *StoreConfig {
	c.Options[key] = value
	return c
}
