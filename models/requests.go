package models

// TextPart is one fragment of rich client content. Only text parts carry
// information the store keeps; everything else is dropped during
// normalization.
type TextPart struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text"`
}

// TurnRequest is one inbound user utterance plus the client's optional
// threading hints and its current branch selections. MessageID and
// ParentID are client-generated candidates; either may be missing or
// malformed and is then simply ignored downstream.
type TurnRequest struct {
	MessageID  string            `json:"id,omitempty"`
	ParentID   string            `json:"parent_id,omitempty"`
	Content    string            `json:"content,omitempty"`
	Parts      []TextPart        `json:"parts,omitempty"`
	Selections map[string]string `json:"selections,omitempty"`
}

// Text normalizes the request to plain text: text parts concatenated in
// order, falling back to the flat content field for older clients.
func (r TurnRequest) Text() string {
	text := ""
	for _, p := range r.Parts {
		if p.Type == "" || p.Type == "text" {
			text += p.Text
		}
	}
	if text == "" {
		return r.Content
	}
	return text
}

// ChatCreateRequest creates a new chat
type ChatCreateRequest struct {
	Title string `json:"title,omitempty"`
}
