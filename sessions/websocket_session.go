package sessions

import (
	"strings"
	"time"

	"github.com/treechat/treechat/models"
	"github.com/treechat/treechat/stores"
)

// RunInteraction handles one complete turn over the WebSocket: resolve the
// user utterance, stream the reply as delta frames, persist the completed
// reply, finish with a done frame.
func (ss *SocketSession) RunInteraction(req models.TurnRequest) error {
	ss.Writer.StartTime = time.Now()
	ss.Writer.FirstTokenTime = nil
	ss.Writer.FirstTokenLogged = false

	content := req.Text()

	msgID, err := ss.Reconciler.ResolveUserMessage(ss.ChatID, req.MessageID, req.ParentID, content)
	if err != nil {
		// Generation proceeds even when the turn could not be persisted.
		ss.Logger.Printf("Error resolving user message: %v", err)
	}

	history, firstTurn := ss.resolveHistory(req, content, msgID)

	if firstTurn {
		go ss.generateTitle(content)
	}

	modelChan, modelErrChan := ss.Model.Generate_Stream(history)

	var accumulated strings.Builder

	for {
		select {
		case delta, ok := <-modelChan:
			if !ok {
				modelChan = nil
				break
			}
			accumulated.WriteString(delta)
			if err := ss.Writer.WriteResponse(models.StreamEvent{Type: "delta", Text: delta}); err != nil {
				ss.Logger.Printf("Error writing delta frame: %v", err)
				return &SessionError{Message: "failed to write to socket", Fatal: true}
			}

		case err, ok := <-modelErrChan:
			if ok && err != nil {
				ss.Logger.Printf("Model stream error: %v", err)
				if writeErr := ss.Writer.WriteError(err.Error()); writeErr != nil {
					ss.Logger.Printf("Error writing error frame: %v", writeErr)
				}
				return &SessionError{Message: err.Error(), Fatal: false}
			}
			if !ok {
				modelErrChan = nil
			}
		}

		if modelChan == nil && modelErrChan == nil {
			break
		}
	}

	replyID := ""
	if accumulated.Len() > 0 {
		id, err := ss.Reconciler.SaveAssistantMessage(ss.ChatID, accumulated.String(), msgID)
		if err != nil {
			// The client already has the full reply; only the row is lost.
			ss.Logger.Printf("Error saving assistant reply: %v", err)
		} else {
			replyID = id
		}
	}

	if replyID != "" {
		if err := ss.Writer.WriteResponse(models.StreamEvent{Type: "done", MessageID: msgID, ReplyID: replyID}); err != nil {
			return err
		}
		return nil
	}
	return ss.Writer.WriteDone()
}

// resolveHistory builds the active branch for the model, pinning the
// just-resolved turn. Fetch failures degrade to a one-turn history.
func (ss *SocketSession) resolveHistory(req models.TurnRequest, content, focusID string) ([]stores.Message, bool) {
	msgs, err := ss.Store.ListMessages(ss.ChatID)
	if err != nil {
		ss.Logger.Printf("Error fetching messages: %v", err)
		return []stores.Message{{ChatID: ss.ChatID, Role: stores.RoleUser, Content: content}}, false
	}

	path := stores.ResolveActivePath(msgs, pinnedSelections(msgs, req.Selections, focusID))
	if len(path) == 0 {
		return []stores.Message{{ChatID: ss.ChatID, Role: stores.RoleUser, Content: content}}, false
	}
	return path, len(path) == 1
}

func (ss *SocketSession) generateTitle(content string) {
	title, err := ss.Model.GenerateTitle(content)
	if err != nil {
		ss.Logger.Printf("Title generation failed: %v", err)
		return
	}

	title = strings.TrimSpace(title)
	if runes := []rune(title); len(runes) > titleMaxLen {
		title = string(runes[:titleMaxLen])
	}
	if title == "" {
		title = "New Chat"
	}

	if err := ss.Store.UpdateChatTitle(ss.ChatID, title); err != nil {
		ss.Logger.Printf("Failed to store generated title: %v", err)
	}
}
