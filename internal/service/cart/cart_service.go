package cart

import (
	"context"
	"strings"
	"sync"

	"groupcart/internal/model"
	"groupcart/pkg/log"
	"groupcart/pkg/utils"
)

// CartService per-room shared cart
type CartService interface {
	// Add increments the contributor's line for the product or creates it at 1
	Add(ctx context.Context, roomID string, product model.Product, contributor string) ([]model.CartItem, error)

	// Increment raises a line item by one. ok is false when the line is absent.
	Increment(ctx context.Context, roomID string, productID model.ProductID, contributor string) (items []model.CartItem, ok bool)

	// Decrement lowers a line item by one, removing it at zero
	Decrement(ctx context.Context, roomID string, productID model.ProductID, contributor string) (items []model.CartItem, ok bool)

	// Remove drops every line item for the product regardless of contributor
	Remove(ctx context.Context, roomID string, productID model.ProductID) (items []model.CartItem, ok bool)

	// Snapshot returns the cart in insertion order
	Snapshot(ctx context.Context, roomID string) []model.CartItem
}

// cartService cart service implementation
type cartService struct {
	mu    sync.RWMutex
	carts map[string][]*model.CartItem
}

// NewCartService creates a cart service
func NewCartService() CartService {
	return &cartService{
		carts: make(map[string][]*model.CartItem),
	}
}

func (s *cartService) Add(ctx context.Context, roomID string, product model.Product, contributor string) ([]model.CartItem, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, utils.Validation("roomId is required")
	}
	if product.ID == "" {
		return nil, utils.Validation("product id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cart := s.carts[roomID]
	if item := find(cart, product.ID, contributor); item != nil {
		item.Quantity++
	} else {
		s.carts[roomID] = append(cart, &model.CartItem{
			Product:  product,
			RoomID:   roomID,
			AddedBy:  contributor,
			Quantity: 1,
		})
	}

	log.WithFields(log.Fields{
		"room_id":    roomID,
		"product_id": product.ID,
		"added_by":   contributor,
	}).Debug("Cart item added")

	return s.snapshotLocked(roomID), nil
}

func (s *cartService) Increment(ctx context.Context, roomID string, productID model.ProductID, contributor string) ([]model.CartItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := find(s.carts[roomID], productID, contributor)
	if item == nil {
		return nil, false
	}
	item.Quantity++
	return s.snapshotLocked(roomID), true
}

func (s *cartService) Decrement(ctx context.Context, roomID string, productID model.ProductID, contributor string) ([]model.CartItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart := s.carts[roomID]
	item := find(cart, productID, contributor)
	if item == nil {
		return nil, false
	}

	item.Quantity--
	if item.Quantity <= 0 {
		s.carts[roomID] = filter(cart, func(i *model.CartItem) bool {
			return !(i.ID == productID && i.AddedBy == contributor)
		})
	}
	return s.snapshotLocked(roomID), true
}

func (s *cartService) Remove(ctx context.Context, roomID string, productID model.ProductID) ([]model.CartItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, exists := s.carts[roomID]
	if !exists {
		return nil, false
	}
	// an emptied cart stays as an empty slice so later removes still broadcast
	s.carts[roomID] = filter(cart, func(i *model.CartItem) bool {
		return i.ID != productID
	})
	return s.snapshotLocked(roomID), true
}

func (s *cartService) Snapshot(ctx context.Context, roomID string) []model.CartItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(roomID)
}

func (s *cartService) snapshotLocked(roomID string) []model.CartItem {
	cart := s.carts[roomID]
	out := make([]model.CartItem, 0, len(cart))
	for _, item := range cart {
		out = append(out, *item)
	}
	return out
}

func find(cart []*model.CartItem, productID model.ProductID, contributor string) *model.CartItem {
	for _, item := range cart {
		if item.ID == productID && item.AddedBy == contributor {
			return item
		}
	}
	return nil
}

func filter(cart []*model.CartItem, keep func(*model.CartItem) bool) []*model.CartItem {
	out := make([]*model.CartItem, 0, len(cart))
	for _, item := range cart {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}
