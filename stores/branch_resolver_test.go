package stores

import (
	"testing"
	"time"
)

var testEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// forestMsg builds a message at a given offset in seconds from the test
// epoch; list order in the test fixtures mirrors insertion order.
func forestMsg(id, parent, role, content string, offset int) Message {
	m := Message{
		MessageID: id,
		ChatID:    "chat-1",
		Role:      role,
		Content:   content,
		CreatedAt: testEpoch.Add(time.Duration(offset) * time.Second),
	}
	if parent != "" {
		p := parent
		m.ParentID = &p
	}
	return m
}

func pathIDs(path []Message) []string {
	ids := make([]string, len(path))
	for i, m := range path {
		ids[i] = m.MessageID
	}
	return ids
}

func assertPath(t *testing.T, got []Message, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("Expected path %v, got %v", want, pathIDs(got))
	}
	for i, id := range want {
		if got[i].MessageID != id {
			t.Errorf("Expected path %v, got %v", want, pathIDs(got))
			return
		}
	}
}

func TestResolveActivePath_EmptyForest(t *testing.T) {
	result := ResolveActivePath([]Message{}, nil)
	if len(result) != 0 {
		t.Errorf("Expected empty path for empty forest, got %d messages", len(result))
	}
}

func TestResolveActivePath_LinearConversation(t *testing.T) {
	msgs := []Message{
		forestMsg("u1", "", RoleUser, "hello", 0),
		forestMsg("a1", "u1", RoleAssistant, "hi there", 1),
		forestMsg("u2", "a1", RoleUser, "how are you", 2),
		forestMsg("a2", "u2", RoleAssistant, "I'm well", 3),
	}
	result := ResolveActivePath(msgs, nil)
	assertPath(t, result, "u1", "a1", "u2", "a2")
}

func TestResolveActivePath_LatestSiblingWins(t *testing.T) {
	// Regenerating a reply adds a sibling; with no selection the newest
	// attempt is shown.
	msgs := []Message{
		forestMsg("u1", "", RoleUser, "hello", 0),
		forestMsg("a1", "u1", RoleAssistant, "hi there", 1),
		forestMsg("u2", "a1", RoleUser, "how are you", 2),
		forestMsg("a2", "u2", RoleAssistant, "I'm well", 3),
		forestMsg("a2b", "u2", RoleAssistant, "doing great", 4),
	}
	result := ResolveActivePath(msgs, nil)
	assertPath(t, result, "u1", "a1", "u2", "a2b")
}

func TestResolveActivePath_SelectionOverridesNewest(t *testing.T) {
	msgs := []Message{
		forestMsg("u1", "", RoleUser, "hello", 0),
		forestMsg("a1", "u1", RoleAssistant, "hi there", 1),
		forestMsg("u2", "a1", RoleUser, "how are you", 2),
		forestMsg("a2", "u2", RoleAssistant, "I'm well", 3),
		forestMsg("a2b", "u2", RoleAssistant, "doing great", 4),
	}
	result := ResolveActivePath(msgs, BranchSelection{"u2": "a2"})
	assertPath(t, result, "u1", "a1", "u2", "a2")
}

func TestResolveActivePath_UnselectedDescendantsExcluded(t *testing.T) {
	// Picking the older sibling must drop the newer sibling's subtree.
	msgs := []Message{
		forestMsg("u1", "", RoleUser, "hello", 0),
		forestMsg("a1", "u1", RoleAssistant, "first answer", 1),
		forestMsg("a1b", "u1", RoleAssistant, "second answer", 2),
		forestMsg("u2", "a1b", RoleUser, "follow-up on second", 3),
		forestMsg("a2", "u2", RoleAssistant, "reply on second", 4),
	}
	result := ResolveActivePath(msgs, BranchSelection{"u1": "a1"})
	assertPath(t, result, "u1", "a1")
}

func TestResolveActivePath_StaleSelectionFallsBackToNewest(t *testing.T) {
	// A selection naming a message that is not a child of the parent is
	// ignored, not an error.
	msgs := []Message{
		forestMsg("u1", "", RoleUser, "hello", 0),
		forestMsg("a1", "u1", RoleAssistant, "old", 1),
		forestMsg("a1b", "u1", RoleAssistant, "new", 2),
	}
	result := ResolveActivePath(msgs, BranchSelection{"u1": "nonexistent"})
	assertPath(t, result, "u1", "a1b")
}

func TestResolveActivePath_DuplicateRootSkipped(t *testing.T) {
	// A racy insert can land a copy of an existing turn as a second root.
	// The copy must not be replayed after the real conversation.
	msgs := []Message{
		forestMsg("r1", "", RoleUser, "hi", 0),
		forestMsg("a1", "r1", RoleAssistant, "hello!", 1),
		forestMsg("u2", "a1", RoleUser, "tell me more", 2),
		forestMsg("a2", "u2", RoleAssistant, "sure", 3),
		forestMsg("r2", "", RoleUser, "hi", 4),
	}
	result := ResolveActivePath(msgs, nil)
	assertPath(t, result, "r1", "a1", "u2", "a2")
}

func TestResolveActivePath_DistinctExtraRootContinues(t *testing.T) {
	// A second root that is not a duplicate of anything shown is treated
	// as a continuation, subtree included.
	msgs := []Message{
		forestMsg("r1", "", RoleUser, "hi", 0),
		forestMsg("a1", "r1", RoleAssistant, "hello!", 1),
		forestMsg("r2", "", RoleUser, "unrelated question", 2),
		forestMsg("a2", "r2", RoleAssistant, "an answer", 3),
	}
	result := ResolveActivePath(msgs, nil)
	assertPath(t, result, "r1", "a1", "r2", "a2")
}

func TestResolveActivePath_RootSelection(t *testing.T) {
	msgs := []Message{
		forestMsg("r1", "", RoleUser, "first start", 0),
		forestMsg("a1", "r1", RoleAssistant, "reply one", 1),
		forestMsg("r2", "", RoleUser, "second start", 2),
		forestMsg("a2", "r2", RoleAssistant, "reply two", 3),
	}
	result := ResolveActivePath(msgs, BranchSelection{RootKey: "r2"})
	if result[0].MessageID != "r2" {
		t.Errorf("Expected selected root r2 first, got %s", result[0].MessageID)
	}
	if result[1].MessageID != "a2" {
		t.Errorf("Expected a2 after r2, got %s", result[1].MessageID)
	}
}

func TestResolveActivePath_OrphansOnly(t *testing.T) {
	// Every message claims a parent that is missing from the chat.
	parent := "gone"
	msgs := []Message{
		{MessageID: "m1", ChatID: "chat-1", Role: RoleUser, Content: "lost", ParentID: &parent, CreatedAt: testEpoch},
	}
	result := ResolveActivePath(msgs, nil)
	if len(result) != 0 {
		t.Errorf("Expected empty path when no root exists, got %d messages", len(result))
	}
}

func TestResolveActivePath_ExampleScenario(t *testing.T) {
	msgs := []Message{
		forestMsg("u1", "", RoleUser, "hello", 0),
		forestMsg("a1", "u1", RoleAssistant, "hi there", 1),
		forestMsg("u2", "a1", RoleUser, "how are you", 2),
		forestMsg("a2", "u2", RoleAssistant, "I'm well", 3),
		forestMsg("a2b", "u2", RoleAssistant, "doing great", 4),
	}

	noSelection := ResolveActivePath(msgs, nil)
	assertPath(t, noSelection, "u1", "a1", "u2", "a2b")

	withSelection := ResolveActivePath(msgs, BranchSelection{"u2": "a2"})
	assertPath(t, withSelection, "u1", "a1", "u2", "a2")
}

func TestDetectForestAnomalies_Clean(t *testing.T) {
	msgs := []Message{
		forestMsg("u1", "", RoleUser, "hello", 0),
		forestMsg("a1", "u1", RoleAssistant, "hi there", 1),
	}
	issues := DetectForestAnomalies(msgs)
	if len(issues) != 0 {
		t.Errorf("Expected no issues for clean forest, got: %v", issues)
	}
}

func TestDetectForestAnomalies_DuplicateRoots(t *testing.T) {
	msgs := []Message{
		forestMsg("r1", "", RoleUser, "hi", 0),
		forestMsg("r2", "", RoleUser, "hi", 1),
	}
	issues := DetectForestAnomalies(msgs)
	if len(issues) == 0 {
		t.Error("Expected issues for a forest with two roots")
	}
}

func TestDetectForestAnomalies_MissingParent(t *testing.T) {
	msgs := []Message{
		forestMsg("u1", "", RoleUser, "hello", 0),
		forestMsg("a1", "gone", RoleAssistant, "hi there", 1),
	}
	issues := DetectForestAnomalies(msgs)
	if len(issues) == 0 {
		t.Error("Expected issues for a message with a missing parent")
	}
}

func TestDetectForestAnomalies_ParentNewerThanChild(t *testing.T) {
	msgs := []Message{
		forestMsg("u1", "", RoleUser, "hello", 5),
		forestMsg("a1", "u1", RoleAssistant, "hi there", 1),
	}
	issues := DetectForestAnomalies(msgs)
	if len(issues) == 0 {
		t.Error("Expected issues for a child created before its parent")
	}
}
