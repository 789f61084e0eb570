package sessions

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/treechat/treechat/stores"
)

// SessionError represents errors that can occur during a chat turn
type SessionError struct {
	Message string
	Fatal   bool
}

func (e *SessionError) Error() string {
	return e.Message
}

// ModelInterface defines the interface generation backends must implement.
// History is the already-resolved active path, newest turn last.
type ModelInterface interface {
	Generate(history []stores.Message) (string, error)
	Generate_Stream(history []stores.Message) (<-chan string, <-chan error)
	GenerateTitle(content string) (string, error)
}

// ChatSession handles HTTP-based chat turns for one chat
type ChatSession struct {
	Model      ModelInterface
	ChatID     string
	Store      stores.MessageStore
	Reconciler *stores.Reconciler
	Logger     *log.Logger
}

// SocketSession handles WebSocket-based chat turns for one chat
type SocketSession struct {
	Model      ModelInterface
	ChatID     string
	UserID     string
	Writer     *WebSocketWriter
	Store      stores.MessageStore
	Reconciler *stores.Reconciler
	Logger     *log.Logger
}

// SSEWriter handles Server-Sent Events writing
type SSEWriter interface {
	WriteSSE(data string) error
	WriteSSEError(err error) error
	Flush()
}

// WebSocketWriter handles all WebSocket communication
type WebSocketWriter struct {
	Conn             *websocket.Conn
	Logger           *log.Logger
	StartTime        time.Time
	FirstTokenTime   *time.Time
	FirstTokenLogged bool
	mu               sync.Mutex
}

func (w *WebSocketWriter) WriteResponse(resp interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	// Track time to first token
	if !w.FirstTokenLogged && w.FirstTokenTime == nil && !w.StartTime.IsZero() {
		now := time.Now()
		w.FirstTokenTime = &now
		timeToFirstToken := now.Sub(w.StartTime)
		w.Logger.Printf("Time to first token: %v", timeToFirstToken)
		w.FirstTokenLogged = true
	}
	return w.Conn.WriteJSON(resp)
}

func (w *WebSocketWriter) WriteError(message string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.Conn.WriteJSON(map[string]string{"error": message})
}

func (w *WebSocketWriter) WriteDone() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.Conn.WriteJSON(map[string]string{"type": "done"})
}

// pinnedSelections copies the client's branch selections and pins the
// just-resolved turn as the active child of its parent, so the walk is
// guaranteed to reach it regardless of what the client had selected.
func pinnedSelections(msgs []stores.Message, selections map[string]string, focusID string) stores.BranchSelection {
	sel := stores.BranchSelection{}
	for k, v := range selections {
		sel[k] = v
	}
	if focusID == "" {
		return sel
	}
	for _, m := range msgs {
		if m.MessageID != focusID {
			continue
		}
		if m.ParentID == nil {
			sel[stores.RootKey] = m.MessageID
		} else {
			sel[*m.ParentID] = m.MessageID
		}
		break
	}
	return sel
}
