package stores

import (
	"log"
)

// BranchSelection maps a parent message id to the id of the sibling the
// user currently has active. RootKey selects among root messages. The map
// is plain session state passed in by the caller; nothing here persists it.
type BranchSelection map[string]string

// RootKey is the selection key for the implicit "no parent" slot shared by
// root messages.
const RootKey = "root"

// ResolveActivePath computes the single linear path through a chat's
// message forest: the branch to render or send to the model.
//
// msgs must be the full ListMessages output (created_at ascending). At each
// step the selected child wins if the selection still names a valid child;
// otherwise the most recently created sibling does, so a regeneration shows
// the newest attempt until the user explicitly picks an older one.
//
// Chats can carry more than one root: a racy insert that should have been
// linked as a child occasionally lands as a root instead. After the walk
// reaches a leaf, remaining roots are only treated as continuations when
// their (role, content) pair does not duplicate something already on the
// path.
func ResolveActivePath(msgs []Message, selections BranchSelection) []Message {
	if len(msgs) == 0 {
		return []Message{}
	}

	// Arena + index: flat input, derived parent->children map. Sibling
	// lists inherit the input's createdAt ordering.
	roots := make([]Message, 0, 1)
	children := make(map[string][]Message)
	for _, m := range msgs {
		if m.ParentID == nil {
			roots = append(roots, m)
		} else {
			children[*m.ParentID] = append(children[*m.ParentID], m)
		}
	}

	if len(roots) == 0 {
		// Every message claims a parent; nothing to anchor a walk on.
		log.Printf("[BRANCH_RESOLVER] No root message among %d messages, returning empty path", len(msgs))
		return []Message{}
	}

	if selected, ok := selections[RootKey]; ok {
		roots = promoteRoot(roots, selected)
	}

	path := make([]Message, 0, len(msgs))
	onPath := make(map[pathKey]bool)

	for i, root := range roots {
		if i > 0 && onPath[keyOf(root)] {
			// Spurious duplicate of a message already shown; skip it.
			log.Printf("[BRANCH_RESOLVER] Skipping duplicate root %s (role=%s)", root.MessageID, root.Role)
			continue
		}

		current := root
		for {
			path = append(path, current)
			onPath[keyOf(current)] = true

			siblings := children[current.MessageID]
			if len(siblings) == 0 {
				break
			}
			current = pickBranch(siblings, selections[current.MessageID])
		}
	}

	return path
}

// pickBranch chooses one sibling: the selected one when the selection
// still names a valid child, otherwise the newest.
func pickBranch(siblings []Message, selected string) Message {
	if selected != "" {
		for _, s := range siblings {
			if s.MessageID == selected {
				return s
			}
		}
	}
	return siblings[len(siblings)-1]
}

// promoteRoot moves the selected root to the front of the root list,
// leaving the rest in creation order.
func promoteRoot(roots []Message, selected string) []Message {
	for i, r := range roots {
		if r.MessageID == selected && i > 0 {
			reordered := make([]Message, 0, len(roots))
			reordered = append(reordered, r)
			reordered = append(reordered, roots[:i]...)
			reordered = append(reordered, roots[i+1:]...)
			return reordered
		}
	}
	return roots
}

type pathKey struct {
	role    string
	content string
}

func keyOf(m Message) pathKey {
	return pathKey{role: m.Role, content: m.Content}
}

// DetectForestAnomalies checks a chat's message list for structural issues
// that the resolver has to compensate for. Returns a list of issues found
// (empty if the forest is clean).
func DetectForestAnomalies(msgs []Message) []string {
	issues := []string{}

	if len(msgs) == 0 {
		return issues
	}

	byID := make(map[string]Message, len(msgs))
	for _, m := range msgs {
		byID[m.MessageID] = m
	}

	rootCount := 0
	for _, m := range msgs {
		if m.ParentID == nil {
			rootCount++
			continue
		}

		parent, ok := byID[*m.ParentID]
		if !ok {
			issues = append(issues, "Message "+m.MessageID+" references a parent outside this chat")
			continue
		}
		if parent.ChatID != m.ChatID {
			issues = append(issues, "Message "+m.MessageID+" references a parent in another chat")
		}
		if parent.CreatedAt.After(m.CreatedAt) {
			issues = append(issues, "Message "+m.MessageID+" was created before its parent")
		}
	}

	if rootCount == 0 {
		issues = append(issues, "No root message (every message claims a parent)")
	}
	if rootCount > 1 {
		issues = append(issues, "More than one root message")
	}

	return issues
}
