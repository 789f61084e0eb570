package sessions

import (
	"fmt"
	"log"
	"os"

	"github.com/gorilla/websocket"

	"github.com/treechat/treechat/stores"
)

// NewChatSession creates a new HTTP chat session
func NewChatSession(chatID string, model ModelInterface, store stores.MessageStore) *ChatSession {
	logger := log.New(os.Stdout, fmt.Sprintf("[HTTP %s] ", chatID), log.LstdFlags)

	return &ChatSession{
		Model:      model,
		ChatID:     chatID,
		Store:      store,
		Reconciler: stores.NewReconciler(store),
		Logger:     logger,
	}
}

// NewSocketSession creates a new WebSocket chat session
func NewSocketSession(chatID string, userID string, conn *websocket.Conn, model ModelInterface, store stores.MessageStore) *SocketSession {
	logger := log.New(os.Stdout, fmt.Sprintf("[WS %s] ", chatID), log.LstdFlags)
	writer := &WebSocketWriter{
		Conn:   conn,
		Logger: logger,
	}

	return &SocketSession{
		Model:      model,
		ChatID:     chatID,
		UserID:     userID,
		Writer:     writer,
		Store:      store,
		Reconciler: stores.NewReconciler(store),
		Logger:     logger,
	}
}
