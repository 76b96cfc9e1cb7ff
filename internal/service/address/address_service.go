package address

import (
	"context"
	"strings"
	"sync"

	"groupcart/internal/model"
	"groupcart/internal/repository"
	"groupcart/pkg/log"
	"groupcart/pkg/utils"
)

// AddressService delivery address per room
type AddressService interface {
	// Get returns the room's address, nil when none is set
	Get(ctx context.Context, roomID string) *model.Address

	// Set validates and stores the room's address
	Set(ctx context.Context, roomID string, addr model.Address) (*model.Address, error)

	// Restore replaces the book with a loaded snapshot
	Restore(book map[string]model.Address)
}

// addressService address service implementation
type addressService struct {
	mu        sync.RWMutex
	book      map[string]model.Address
	persister repository.Persister
}

// NewAddressService creates an address book
func NewAddressService(persister repository.Persister) AddressService {
	return &addressService{
		book:      make(map[string]model.Address),
		persister: persister,
	}
}

func (s *addressService) Get(ctx context.Context, roomID string) *model.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()

	addr, ok := s.book[roomID]
	if !ok {
		return nil
	}
	return &addr
}

func (s *addressService) Set(ctx context.Context, roomID string, addr model.Address) (*model.Address, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, utils.Validation("roomId is required")
	}
	addr = trim(addr)
	if err := utils.ValidateStruct(&addr); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.book[roomID] = addr
	if s.persister != nil {
		snapshot := make(map[string]model.Address, len(s.book))
		for k, v := range s.book {
			snapshot[k] = v
		}
		s.persister.Persist(repository.SnapshotAddresses, snapshot)
	}
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"room_id": roomID,
		"city":    addr.City,
		"phone":   utils.MaskString(addr.Phone, 2, 2, '*'),
	}).Info("Delivery address saved")

	return &addr, nil
}

func (s *addressService) Restore(book map[string]model.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.book = make(map[string]model.Address, len(book))
	for k, v := range book {
		s.book[k] = v
	}
}

func trim(a model.Address) model.Address {
	a.Name = strings.TrimSpace(a.Name)
	a.Phone = strings.TrimSpace(a.Phone)
	a.Line1 = strings.TrimSpace(a.Line1)
	a.Line2 = strings.TrimSpace(a.Line2)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.TrimSpace(a.Country)
	return a
}
