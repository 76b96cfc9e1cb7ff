package model

// CartItem line item, unique per (room, product id, addedBy)
type CartItem struct {
	Product
	RoomID   string `json:"roomId"`
	AddedBy  string `json:"addedBy"`
	Quantity int    `json:"quantity"`
}

// WishlistItem proposed product with its vote tally
type WishlistItem struct {
	Product
	RoomID  string   `json:"roomId"`
	Votes   int      `json:"votes"`
	Voters  []string `json:"voters"`
	AddedBy string   `json:"addedBy"`
}

// HasVoter reports whether voter's upvote is currently counted
func (w *WishlistItem) HasVoter(voter string) bool {
	for _, v := range w.Voters {
		if v == voter {
			return true
		}
	}
	return false
}
