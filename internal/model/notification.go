package model

import (
	"time"
)

// Notification types
const (
	NotificationInfo  = "info"
	NotificationNudge = "ai-nudge"
)

// Notification ledger entry; the id is a snowflake rendered as a JSON string
type Notification struct {
	ID        int64     `json:"id,string"`
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	IsRead    bool      `json:"is_read"`
	Timestamp time.Time `json:"timestamp"`
}
