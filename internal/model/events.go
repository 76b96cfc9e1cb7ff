package model

import (
	"time"
)

// Realtime event names
const (
	EventMessage        = "message"
	EventMessages       = "messages"
	EventCartUpdate     = "cartUpdate"
	EventWishlistUpdate = "wishlistUpdate"
	EventNudge          = "nudge"
	EventNotification   = "notification"
	EventUserJoined     = "userJoined"
	EventUserLeft       = "userLeft"
	EventAIStatus       = "aiStatus"
	EventError          = "error"

	EventMessageCategories = "messageCategories"

	EventJoin              = "join"
	EventAddToCart         = "addToCart"
	EventIncrementCartItem = "incrementCartItem"
	EventDecrementCartItem = "decrementCartItem"
	EventRemoveFromCart    = "removeFromCart"
	EventGetMessages       = "getMessages"
)

// NudgeEvent payload of the nudge broadcast
type NudgeEvent struct {
	Nudge     string    `json:"nudge"`
	Theme     string    `json:"theme"`
	Timestamp time.Time `json:"timestamp"`
	ID        int64     `json:"id,string"`
}

// MessageCategories follow-up to a chat message once it is classified
type MessageCategories struct {
	ID         string    `json:"id"`
	RoomID     string    `json:"roomId"`
	Timestamp  time.Time `json:"timestamp"`
	Categories []string  `json:"categories"`
}

// Presence payload of userJoined and userLeft
type Presence struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// AIStatus payload sent on connect
type AIStatus struct {
	Initialized bool   `json:"initialized"`
	Message     string `json:"message"`
}

// ErrorEvent payload of the error event
type ErrorEvent struct {
	Message string `json:"message"`
}
