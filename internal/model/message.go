package model

import (
	"time"
)

// EntryKind distinguishes chat lines from other room activity in the window
type EntryKind string

const (
	EntryChat EntryKind = "chat"
	EntryCart EntryKind = "cart"
)

// AIUsername sender name used for generated messages
const AIUsername = "AI Assistant"

// Message chat line, optionally carrying a suggestion batch
type Message struct {
	ID           string       `json:"id"`
	Username     string       `json:"username"`
	Text         string       `json:"text"`
	OriginalText string       `json:"originalText,omitempty"`
	RoomID       string       `json:"roomId"`
	Timestamp    time.Time    `json:"timestamp"`
	Suggestions  []Suggestion `json:"suggestions,omitempty"`
	IsAI         bool         `json:"isAI,omitempty"`
	Kind         EntryKind    `json:"-"`
}

// IsChat reports whether the entry is a chat line
func (m *Message) IsChat() bool {
	return m.Kind == "" || m.Kind == EntryChat
}
