package treechat

import (
	"github.com/gorilla/websocket"

	"github.com/treechat/treechat/sessions"
	"github.com/treechat/treechat/stores"
)

// Re-export session types so library users only import the root package
type ChatSession = sessions.ChatSession
type SocketSession = sessions.SocketSession
type WebSocketWriter = sessions.WebSocketWriter
type SessionError = sessions.SessionError
type SSEWriter = sessions.SSEWriter
type ModelInterface = sessions.ModelInterface

// Re-export the reconciliation and branch-resolution core
type Reconciler = stores.Reconciler
type BranchSelection = stores.BranchSelection

// RootKey selects among root messages in a BranchSelection
const RootKey = stores.RootKey

// ResolveActivePath resolves a chat's message forest plus the user's branch
// selections into the single path to display or send to the model.
func ResolveActivePath(msgs []stores.Message, selections BranchSelection) []stores.Message {
	return stores.ResolveActivePath(msgs, selections)
}

// NewReconciler creates a message reconciler over the given store
func NewReconciler(store stores.MessageStore) *Reconciler {
	return stores.NewReconciler(store)
}

// Re-export constructor functions
func NewChatSession(chatID string, model ModelInterface, store stores.MessageStore) *ChatSession {
	return sessions.NewChatSession(chatID, model, store)
}

func NewSocketSession(chatID string, userID string, conn *websocket.Conn, model ModelInterface, store stores.MessageStore) *SocketSession {
	return sessions.NewSocketSession(chatID, userID, conn, model, store)
}
