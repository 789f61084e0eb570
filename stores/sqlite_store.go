package stores

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLiteStore implements MessageStore for SQLite databases
type SQLiteStore struct {
	db   *gorm.DB
	path string
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(config *StoreConfig) (*SQLiteStore, error) {
	if config.Type != "sqlite" {
		return nil, fmt.Errorf("invalid store type for SQLite store: %s", config.Type)
	}

	store := &SQLiteStore{
		path: config.Connection,
	}

	if err := store.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite database: %w", err)
	}

	return store, nil
}

// NewSQLiteStoreSimple creates a new SQLite store with just a file path
func NewSQLiteStoreSimple(dbPath string) (*SQLiteStore, error) {
	config := NewStoreConfig("sqlite", dbPath)
	return NewSQLiteStore(config)
}

// Connect establishes a connection to the SQLite database
func (s *SQLiteStore) Connect() error {
	db, err := gorm.Open(sqlite.Open(s.path), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to SQLite database: %w", err)
	}

	s.db = db

	// Auto-migrate the schema
	if err := s.db.AutoMigrate(&Chat{}, &Message{}); err != nil {
		return fmt.Errorf("failed to migrate database schema: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

// Ping checks if the database connection is alive
func (s *SQLiteStore) Ping() error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Ping()
}

// Transaction runs fn against a store bound to a single transaction.
// Message resolution does lookup-then-insert; running it here keeps a
// concurrent duplicate submission from slipping between the two steps.
func (s *SQLiteStore) Transaction(fn func(MessageStore) error) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&SQLiteStore{db: tx, path: s.path})
	})
}

// FindMessage returns the message with the given id within a chat, or nil.
// Uses Limit+Find to check existence without triggering "record not found" error logs.
func (s *SQLiteStore) FindMessage(chatID, messageID string) (*Message, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	var msgs []Message
	if err := s.db.Where("chat_id = ? AND message_id = ?", chatID, messageID).Limit(1).Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("failed to look up message %s: %w", messageID, err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return &msgs[0], nil
}

// FindLatestByRoleAndContent returns the most recent message in the chat
// with exactly matching role and content, or nil.
func (s *SQLiteStore) FindLatestByRoleAndContent(chatID, role, content string) (*Message, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	var msgs []Message
	err := s.db.Where("chat_id = ? AND role = ? AND content = ?", chatID, role, content).
		Order("created_at DESC, id DESC").
		Limit(1).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to look up message by content: %w", err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return &msgs[0], nil
}

// FindLatest returns the most recently created message in the chat, or nil
// for an empty chat.
func (s *SQLiteStore) FindLatest(chatID string) (*Message, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	var msgs []Message
	err := s.db.Where("chat_id = ?", chatID).
		Order("created_at DESC, id DESC").
		Limit(1).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to look up latest message: %w", err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return &msgs[0], nil
}

// InsertMessage creates a new message row, assigning its id and timestamp.
func (s *SQLiteStore) InsertMessage(chatID, role, content string, parentID *string) (*Message, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	msg := Message{
		MessageID: uuid.New().String(),
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		ParentID:  parentID,
	}

	if err := s.db.Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("failed to create message record: %w", err)
	}

	return &msg, nil
}

// ListMessages retrieves all messages for a chat ordered by creation time,
// with insertion order breaking ties.
func (s *SQLiteStore) ListMessages(chatID string) ([]Message, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	var msgs []Message
	err := s.db.Where("chat_id = ?", chatID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	return msgs, nil
}

// CreateChat creates a new chat record with a fresh id
func (s *SQLiteStore) CreateChat(userID, title string) (*Chat, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	chat := Chat{
		ChatID: uuid.New().String(),
		UserID: userID,
		Title:  title,
	}

	if err := s.db.Create(&chat).Error; err != nil {
		return nil, fmt.Errorf("failed to create chat record: %w", err)
	}

	return &chat, nil
}

// GetChat returns the chat with the given id, or nil
func (s *SQLiteStore) GetChat(chatID string) (*Chat, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	var chats []Chat
	if err := s.db.Where("chat_id = ?", chatID).Limit(1).Find(&chats).Error; err != nil {
		return nil, fmt.Errorf("failed to look up chat %s: %w", chatID, err)
	}
	if len(chats) == 0 {
		return nil, nil
	}
	return &chats[0], nil
}

// ListChatsForUser returns all chats with details for a specific user,
// most recently active first
func (s *SQLiteStore) ListChatsForUser(userID string) ([]ChatInfo, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	var chats []Chat
	if err := s.db.Where("user_id = ?", userID).Order("updated_at DESC").Find(&chats).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch chats: %w", err)
	}

	result := make([]ChatInfo, len(chats))
	for i, c := range chats {
		var count int64
		if err := s.db.Model(&Message{}).Where("chat_id = ?", c.ChatID).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to count messages for chat %s: %w", c.ChatID, err)
		}
		result[i] = ChatInfo{
			ChatID:       c.ChatID,
			UserID:       c.UserID,
			Title:        c.Title,
			MessageCount: int(count),
			CreatedAt:    c.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			UpdatedAt:    c.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	}

	return result, nil
}

// DeleteChat removes a chat and every message in it
func (s *SQLiteStore) DeleteChat(chatID string) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ?", chatID).Delete(&Message{}).Error; err != nil {
			return fmt.Errorf("failed to delete messages for chat %s: %w", chatID, err)
		}
		if err := tx.Where("chat_id = ?", chatID).Delete(&Chat{}).Error; err != nil {
			return fmt.Errorf("failed to delete chat %s: %w", chatID, err)
		}
		return nil
	})
}

// UpdateChatTitle overwrites the chat title. Last write wins; titles are
// idempotent overwrites so no locking is needed.
func (s *SQLiteStore) UpdateChatTitle(chatID, title string) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	return s.db.Model(&Chat{}).Where("chat_id = ?", chatID).Update("title", title).Error
}

// TouchChat bumps the chat's updated_at so it sorts to the top of listings
func (s *SQLiteStore) TouchChat(chatID string) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	return s.db.Model(&Chat{}).Where("chat_id = ?", chatID).Update("updated_at", time.Now()).Error
}

// ListEmptyChatsBefore returns ids of chats created before the cutoff that
// never received a message
func (s *SQLiteStore) ListEmptyChatsBefore(cutoff time.Time) ([]string, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	var chats []Chat
	if err := s.db.Where("created_at < ?", cutoff).Find(&chats).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch chats: %w", err)
	}

	ids := make([]string, 0, len(chats))
	for _, c := range chats {
		var count int64
		if err := s.db.Model(&Message{}).Where("chat_id = ?", c.ChatID).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to count messages for chat %s: %w", c.ChatID, err)
		}
		if count == 0 {
			ids = append(ids, c.ChatID)
		}
	}

	return ids, nil
}
