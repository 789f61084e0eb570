package stores

import (
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
)

// Reconciler turns one inbound turn into exactly one stored message row.
// Retries of the same logical turn are resolved back to the original row
// instead of producing duplicates, and a new turn is attached to the tail
// of the conversation unless the caller names an earlier branch point.
type Reconciler struct {
	Store  MessageStore
	Logger *log.Logger
}

// NewReconciler creates a reconciler over the given store
func NewReconciler(store MessageStore) *Reconciler {
	return &Reconciler{
		Store:  store,
		Logger: log.New(os.Stdout, "[RECONCILER] ", log.LstdFlags),
	}
}

// isValidID reports whether id is syntactically a usable message identifier.
// Anything that does not parse as a UUID is treated as "not supplied".
func isValidID(id string) bool {
	if id == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// ResolveUserMessage resolves an inbound user utterance to a stored row and
// returns its id. Resolution order:
//  1. identity match on the client-supplied candidate id
//  2. latest same-role same-content match (retries with a fresh client id)
//  3. insert, parenting to the client hint if it names a row in this chat,
//     else the chat's latest message, else null (a new root)
//
// The whole sequence runs in one transaction so a concurrent duplicate
// submission cannot insert between lookup and insert.
func (r *Reconciler) ResolveUserMessage(chatID, candidateID, parentHint, content string) (string, error) {
	var resolved string

	err := r.Store.Transaction(func(tx MessageStore) error {
		if isValidID(candidateID) {
			existing, err := tx.FindMessage(chatID, candidateID)
			if err != nil {
				return err
			}
			if existing != nil {
				resolved = existing.MessageID
				return nil
			}
		}

		existing, err := tx.FindLatestByRoleAndContent(chatID, RoleUser, content)
		if err != nil {
			return err
		}
		if existing != nil {
			resolved = existing.MessageID
			return nil
		}

		parentID, err := r.resolveParent(tx, chatID, parentHint)
		if err != nil {
			return err
		}

		msg, err := tx.InsertMessage(chatID, RoleUser, content, parentID)
		if err != nil {
			return err
		}
		resolved = msg.MessageID
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to resolve user message: %w", err)
	}

	if err := r.Store.TouchChat(chatID); err != nil {
		r.Logger.Printf("Warning: failed to touch chat %s: %v", chatID, err)
	}

	return resolved, nil
}

// SaveAssistantMessage persists a completed model reply as a child of the
// resolved user turn and returns its id. Replies are not retried by the
// client, so there is no identity or content dedup on this side; only the
// parent fallback chain is shared with the user path.
func (r *Reconciler) SaveAssistantMessage(chatID, content, parentHint string) (string, error) {
	var resolved string

	err := r.Store.Transaction(func(tx MessageStore) error {
		parentID, err := r.resolveParent(tx, chatID, parentHint)
		if err != nil {
			return err
		}

		msg, err := tx.InsertMessage(chatID, RoleAssistant, content, parentID)
		if err != nil {
			return err
		}
		resolved = msg.MessageID
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to save assistant message: %w", err)
	}

	if err := r.Store.TouchChat(chatID); err != nil {
		r.Logger.Printf("Warning: failed to touch chat %s: %v", chatID, err)
	}

	return resolved, nil
}

// resolveParent picks the attachment point for a new message. A hint that
// is malformed, unknown, or belongs to another chat is silently discarded
// rather than rejected; resolution falls back to the chat's latest message
// and finally to null, which makes the new message a root.
func (r *Reconciler) resolveParent(tx MessageStore, chatID, parentHint string) (*string, error) {
	if isValidID(parentHint) {
		parent, err := tx.FindMessage(chatID, parentHint)
		if err != nil {
			return nil, err
		}
		if parent != nil {
			return &parent.MessageID, nil
		}
		r.Logger.Printf("Discarding parent hint %s: not found in chat %s", parentHint, chatID)
	}

	latest, err := tx.FindLatest(chatID)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		return &latest.MessageID, nil
	}

	// First-ever message of the chat becomes a root.
	return nil, nil
}
