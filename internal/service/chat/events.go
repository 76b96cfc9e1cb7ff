package chat

import (
	"time"

	"groupcart/internal/model"
)

// JoinPayload join event
type JoinPayload struct {
	Username string `json:"username"`
	RoomID   string `json:"roomId"`
}

// MessagePayload inbound chat line
type MessagePayload struct {
	Text      string    `json:"text"`
	RoomID    string    `json:"roomId"`
	Timestamp time.Time `json:"timestamp"`
}

// CartAddPayload product plus the room and contributor
type CartAddPayload struct {
	model.Product
	RoomID  string `json:"roomId"`
	AddedBy string `json:"addedBy"`
}

// CartItemPayload addresses one contributor's line item
type CartItemPayload struct {
	ItemID  model.ProductID `json:"itemId"`
	AddedBy string          `json:"addedBy"`
	RoomID  string          `json:"roomId"`
}

// CartRemovePayload addresses every line item of a product
type CartRemovePayload struct {
	ProductID model.ProductID `json:"productId"`
	RoomID    string          `json:"roomId"`
}
