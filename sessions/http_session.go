package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/treechat/treechat/models"
	"github.com/treechat/treechat/stores"
)

const titleMaxLen = 100

// RunTurn handles a complete request-response cycle: resolve the user turn
// to a stored row, generate against the active branch, persist the reply.
func (s *ChatSession) RunTurn(req models.TurnRequest) (models.TurnResult, error) {
	content := req.Text()

	msgID, history, firstTurn := s.prepareTurn(req, content)

	reply, err := s.Model.Generate(history)
	if err != nil {
		return models.TurnResult{}, fmt.Errorf("model error: %w", err)
	}

	replyID := s.persistReply(reply, msgID)

	if firstTurn {
		go s.generateTitle(content)
	}

	return models.TurnResult{MessageID: msgID, ReplyID: replyID, Reply: reply}, nil
}

// RunStreamTurn handles a streaming turn. Persistence of the completed
// reply happens after the stream closes; a persistence failure never
// truncates what was already delivered.
func (s *ChatSession) RunStreamTurn(req models.TurnRequest) (<-chan string, <-chan error) {
	deltaChan := make(chan string)
	errChan := make(chan error, 1)

	go func() {
		defer close(deltaChan)
		defer close(errChan)

		content := req.Text()
		msgID, history, firstTurn := s.prepareTurn(req, content)

		if firstTurn {
			go s.generateTitle(content)
		}

		modelChan, modelErrChan := s.Model.Generate_Stream(history)

		var accumulated strings.Builder

		for {
			select {
			case delta, ok := <-modelChan:
				if !ok {
					modelChan = nil
					break
				}
				accumulated.WriteString(delta)
				deltaChan <- delta

			case err, ok := <-modelErrChan:
				if ok && err != nil {
					errChan <- err
					return
				}
				if !ok {
					modelErrChan = nil
				}
			}

			if modelChan == nil && modelErrChan == nil {
				// Stream finished, persist the accumulated reply
				if accumulated.Len() > 0 {
					s.persistReply(accumulated.String(), msgID)
				}
				return
			}
		}
	}()

	return deltaChan, errChan
}

// RunSSETurn handles a complete SSE streaming turn with context cancellation
func (s *ChatSession) RunSSETurn(req models.TurnRequest, writer SSEWriter, ctx context.Context) error {
	deltaChan, errChan := s.RunStreamTurn(req)

	for {
		select {
		case delta, ok := <-deltaChan:
			if !ok {
				s.Logger.Printf("SSE stream finished.")
				deltaChan = nil
				break
			}

			jsonData, err := json.Marshal(models.StreamEvent{Type: "delta", Text: delta})
			if err != nil {
				s.Logger.Printf("Error marshalling stream event: %v", err)
				continue
			}

			if err := writer.WriteSSE(string(jsonData)); err != nil {
				s.Logger.Printf("Error writing to SSE stream: %v", err)
				return err
			}
			writer.Flush()

		case err, ok := <-errChan:
			if ok && err != nil {
				s.Logger.Printf("SSE stream error: %v", err)
				if writeErr := writer.WriteSSEError(err); writeErr != nil {
					s.Logger.Printf("Error writing SSE error: %v", writeErr)
				}
				writer.Flush()
				return err
			}
			if !ok {
				errChan = nil
			}

		case <-ctx.Done():
			s.Logger.Printf("SSE client disconnected")
			return ctx.Err()
		}

		if deltaChan == nil && errChan == nil {
			s.Logger.Printf("Both SSE channels closed.")
			return nil
		}
	}
}

// prepareTurn resolves the inbound utterance to a stored row and builds
// the history the model sees. Store failures are downgraded to a one-turn
// history so generation proceeds without persistence (best-effort).
func (s *ChatSession) prepareTurn(req models.TurnRequest, content string) (msgID string, history []stores.Message, firstTurn bool) {
	msgID, err := s.Reconciler.ResolveUserMessage(s.ChatID, req.MessageID, req.ParentID, content)
	if err != nil {
		s.Logger.Printf("Error resolving user message: %v", err)
		return "", s.fallbackHistory(content), false
	}

	history, err = s.ActivePath(req.Selections, msgID)
	if err != nil {
		s.Logger.Printf("Error resolving active path: %v", err)
		return msgID, s.fallbackHistory(content), false
	}

	return msgID, history, len(history) == 1
}

func (s *ChatSession) fallbackHistory(content string) []stores.Message {
	return []stores.Message{{ChatID: s.ChatID, Role: stores.RoleUser, Content: content}}
}

// persistReply stores the completed model reply as a child of the resolved
// user turn. Failures are logged, never surfaced: the reply was already
// delivered to the caller.
func (s *ChatSession) persistReply(reply, parentID string) string {
	replyID, err := s.Reconciler.SaveAssistantMessage(s.ChatID, reply, parentID)
	if err != nil {
		s.Logger.Printf("Error saving assistant reply: %v", err)
		return ""
	}
	return replyID
}

// ActivePath fetches the chat's full message forest and resolves it to the
// single branch to display or send to the model. focusID, when set, pins
// that message as the active sibling of its parent.
func (s *ChatSession) ActivePath(selections map[string]string, focusID string) ([]stores.Message, error) {
	msgs, err := s.Store.ListMessages(s.ChatID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	return stores.ResolveActivePath(msgs, pinnedSelections(msgs, selections, focusID)), nil
}

// ListChatMessages retrieves the chat's messages in API response format,
// creation order. The client applies branch resolution with its own
// selections.
func (s *ChatSession) ListChatMessages() ([]models.ChatMessageResponse, error) {
	msgs, err := s.Store.ListMessages(s.ChatID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	apiMsgs := make([]models.ChatMessageResponse, 0, len(msgs))
	for _, m := range msgs {
		apiMsgs = append(apiMsgs, models.ChatMessageResponse{
			ID:        m.MessageID,
			ChatID:    m.ChatID,
			Role:      m.Role,
			Content:   m.Content,
			ParentID:  m.ParentID,
			CreatedAt: m.CreatedAt,
		})
	}

	return apiMsgs, nil
}

// generateTitle runs detached from the turn path: a title is nice to have,
// so every failure here is swallowed after logging.
func (s *ChatSession) generateTitle(content string) {
	title, err := s.Model.GenerateTitle(content)
	if err != nil {
		s.Logger.Printf("Title generation failed: %v", err)
		return
	}

	title = strings.TrimSpace(title)
	if runes := []rune(title); len(runes) > titleMaxLen {
		title = string(runes[:titleMaxLen])
	}
	if title == "" {
		title = "New Chat"
	}

	if err := s.Store.UpdateChatTitle(s.ChatID, title); err != nil {
		s.Logger.Printf("Failed to store generated title: %v", err)
	}
}
