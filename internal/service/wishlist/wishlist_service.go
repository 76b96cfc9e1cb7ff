package wishlist

import (
	"context"
	"strings"
	"sync"

	"groupcart/internal/model"
	"groupcart/pkg/log"
	"groupcart/pkg/utils"
)

// Vote directions
const (
	Upvote   = 1
	Downvote = -1
)

// WishlistService per-room wishlist with votes
type WishlistService interface {
	// Add proposes a product. The proposer's vote is counted.
	Add(ctx context.Context, roomID string, product model.Product, proposer string) ([]model.WishlistItem, error)

	// Vote applies an idempotent up or down vote and reports whether the
	// tally changed
	Vote(ctx context.Context, roomID string, productID model.ProductID, voter string, direction int) ([]model.WishlistItem, bool, error)

	// Remove drops a product from the room's wishlist
	Remove(ctx context.Context, roomID string, productID model.ProductID) ([]model.WishlistItem, error)

	// List returns the room's wishlist in insertion order
	List(ctx context.Context, roomID string) []model.WishlistItem

	// ExcludeWishlisted drops suggestions already on the room's wishlist
	ExcludeWishlisted(ctx context.Context, roomID string, suggestions []model.Suggestion) []model.Suggestion
}

// wishlistService wishlist service implementation
type wishlistService struct {
	mu    sync.RWMutex
	lists map[string][]*model.WishlistItem
}

// NewWishlistService creates a wishlist service
func NewWishlistService() WishlistService {
	return &wishlistService{
		lists: make(map[string][]*model.WishlistItem),
	}
}

func (s *wishlistService) Add(ctx context.Context, roomID string, product model.Product, proposer string) ([]model.WishlistItem, error) {
	proposer = strings.TrimSpace(proposer)
	if product.ID == "" || proposer == "" {
		return nil, utils.Validation("product id and addedBy are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.lists[roomID]
	if find(list, product.ID) != nil {
		return nil, utils.Duplicate("Product already in wishlist")
	}

	s.lists[roomID] = append(list, &model.WishlistItem{
		Product: product,
		RoomID:  roomID,
		Votes:   1,
		Voters:  []string{proposer},
		AddedBy: proposer,
	})

	log.WithFields(log.Fields{
		"room_id":    roomID,
		"product_id": product.ID,
		"added_by":   proposer,
	}).Info("Wishlist item added")

	return s.snapshotLocked(roomID), nil
}

func (s *wishlistService) Vote(ctx context.Context, roomID string, productID model.ProductID, voter string, direction int) ([]model.WishlistItem, bool, error) {
	if direction != Upvote && direction != Downvote {
		return nil, false, utils.Validation("vote must be 1 or -1")
	}
	if voter = strings.TrimSpace(voter); voter == "" {
		return nil, false, utils.Validation("username is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, ok := s.lists[roomID]
	if !ok {
		return nil, false, utils.NotFound("Wishlist not found")
	}
	item := find(list, productID)
	if item == nil {
		return nil, false, utils.NotFound("Product not in wishlist")
	}

	applied := false
	switch {
	case direction == Upvote && !item.HasVoter(voter):
		item.Voters = append(item.Voters, voter)
		item.Votes++
		applied = true
	case direction == Downvote && item.HasVoter(voter):
		item.Voters = without(item.Voters, voter)
		if item.Votes > 0 {
			item.Votes--
		}
		applied = true
	}

	return s.snapshotLocked(roomID), applied, nil
}

func (s *wishlistService) Remove(ctx context.Context, roomID string, productID model.ProductID) ([]model.WishlistItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, ok := s.lists[roomID]
	if !ok {
		return nil, utils.NotFound("Wishlist not found")
	}

	kept := make([]*model.WishlistItem, 0, len(list))
	for _, item := range list {
		if item.ID != productID {
			kept = append(kept, item)
		}
	}
	s.lists[roomID] = kept
	return s.snapshotLocked(roomID), nil
}

func (s *wishlistService) List(ctx context.Context, roomID string) []model.WishlistItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(roomID)
}

func (s *wishlistService) ExcludeWishlisted(ctx context.Context, roomID string, suggestions []model.Suggestion) []model.Suggestion {
	s.mu.RLock()
	listed := make(map[model.ProductID]struct{}, len(s.lists[roomID]))
	for _, item := range s.lists[roomID] {
		listed[item.ID] = struct{}{}
	}
	s.mu.RUnlock()

	out := make([]model.Suggestion, 0, len(suggestions))
	for _, sug := range suggestions {
		if _, ok := listed[sug.ID]; !ok {
			out = append(out, sug)
		}
	}
	return out
}

func (s *wishlistService) snapshotLocked(roomID string) []model.WishlistItem {
	list := s.lists[roomID]
	out := make([]model.WishlistItem, 0, len(list))
	for _, item := range list {
		cp := *item
		cp.Voters = append(make([]string, 0, len(item.Voters)), item.Voters...)
		out = append(out, cp)
	}
	return out
}

func find(list []*model.WishlistItem, productID model.ProductID) *model.WishlistItem {
	for _, item := range list {
		if item.ID == productID {
			return item
		}
	}
	return nil
}

func without(voters []string, voter string) []string {
	out := make([]string, 0, len(voters))
	for _, v := range voters {
		if v != voter {
			out = append(out, v)
		}
	}
	return out
}
