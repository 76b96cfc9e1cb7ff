package room

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"groupcart/internal/model"
	"groupcart/internal/repository"
	"groupcart/pkg/log"
	"groupcart/pkg/utils"
)

const (
	idLength    = 7
	idAttempts  = 8
	defaultType = "default"
)

// MemberList accepts either a JSON array or a comma separated string
type MemberList []string

// UnmarshalJSON decodes ["a","b"] or "a, b"
func (m *MemberList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = nil
		return nil
	}

	var raw []string
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.Split(s, ",")
	} else if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	members := make([]string, 0, len(raw))
	for _, name := range raw {
		if name = strings.TrimSpace(name); name != "" {
			members = append(members, name)
		}
	}
	*m = members
	return nil
}

// CreateRequest create room request
type CreateRequest struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Category   string           `json:"category"`
	Creator    string           `json:"creator"`
	Members    MemberList       `json:"members"`
	AccessType model.AccessType `json:"accessType"`
}

// RoomService room registry interface
type RoomService interface {
	// Create registers a new room
	Create(ctx context.Context, req *CreateRequest) (*model.Room, error)

	// List returns all rooms in creation order
	List(ctx context.Context) []model.Room

	// Get returns a room by id
	Get(ctx context.Context, id string) (*model.Room, error)

	// Rename changes the display name of a custom room
	Rename(ctx context.Context, id, actor, name string) (*model.Room, error)

	// Delete removes a custom room
	Delete(ctx context.Context, id, actor string) error

	// GroupType resolves the catalog filter for a room
	GroupType(roomID string) (string, bool)

	// Restore replaces the registry with a loaded snapshot
	Restore(rooms []model.Room)
}

// roomService room registry implementation
type roomService struct {
	mu        sync.RWMutex
	rooms     []*model.Room
	byID      map[string]*model.Room
	persister repository.Persister
	now       func() time.Time
}

// NewRoomService creates a room registry
func NewRoomService(persister repository.Persister) RoomService {
	return &roomService{
		byID:      make(map[string]*model.Room),
		persister: persister,
		now:       time.Now,
	}
}

// Create registers a room. A caller supplied id is kept so seeded rooms
// such as "festive-123" resolve to a group type.
func (s *roomService) Create(ctx context.Context, req *CreateRequest) (*model.Room, error) {
	name := strings.TrimSpace(req.Name)
	creator := strings.TrimSpace(req.Creator)
	if name == "" || creator == "" {
		return nil, utils.Validation("Group name and creator are required")
	}

	access := req.AccessType
	switch access {
	case "":
		access = model.AccessOpen
	case model.AccessOpen, model.AccessApproval:
	default:
		return nil, utils.Validation("accessType must be open or approval")
	}

	members := []string(req.Members)
	if members == nil {
		members = []string{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(req.ID)
	if id != "" {
		if _, exists := s.byID[id]; exists {
			return nil, utils.Duplicate("Group id already exists")
		}
	} else {
		var err error
		if id, err = s.newID(); err != nil {
			return nil, err
		}
	}

	room := &model.Room{
		ID:         id,
		Name:       name,
		Category:   req.Category,
		Creator:    creator,
		Members:    members,
		AccessType: access,
		CreatedAt:  s.now().UTC(),
	}
	s.rooms = append(s.rooms, room)
	s.byID[id] = room
	s.persistLocked()

	log.WithFields(log.Fields{
		"room_id":  id,
		"category": room.Category,
		"creator":  creator,
	}).Info("Room created")

	out := *room
	return &out, nil
}

func (s *roomService) newID() (string, error) {
	for i := 0; i < idAttempts; i++ {
		id := utils.RandomBase36(idLength)
		if _, exists := s.byID[id]; !exists {
			return id, nil
		}
	}
	return "", utils.NewError(utils.CodeInternalError, "group id space exhausted")
}

// List returns copies of all rooms
func (s *roomService) List(ctx context.Context) []model.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]model.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, *r)
	}
	return rooms
}

// Get returns a room by id
func (s *roomService) Get(ctx context.Context, id string) (*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.byID[id]
	if !ok {
		return nil, utils.NotFound("Group not found")
	}
	out := *room
	return &out, nil
}

// Rename changes the name of a custom room. Only the creator may rename.
func (s *roomService) Rename(ctx context.Context, id, actor, name string) (*model.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, utils.Validation("Group name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.byID[id]
	if !ok {
		return nil, utils.NotFound("Group not found")
	}
	if !room.IsCustom() {
		return nil, utils.Forbidden("Only custom groups can be renamed")
	}
	if actor == "" || actor != room.Creator {
		return nil, utils.Forbidden("Only the group creator can rename this group")
	}

	room.Name = name
	s.persistLocked()

	log.WithFields(log.Fields{"room_id": id, "name": name}).Info("Room renamed")

	out := *room
	return &out, nil
}

// Delete removes a custom room. Carts and wishlists keyed by the id are left
// alone.
func (s *roomService) Delete(ctx context.Context, id, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.byID[id]
	if !ok {
		return utils.NotFound("Group not found")
	}
	if !room.IsCustom() {
		return utils.Forbidden("Only custom groups can be deleted")
	}
	if actor == "" || actor != room.Creator {
		return utils.Forbidden("Only the group creator can delete this group")
	}

	delete(s.byID, id)
	for i, r := range s.rooms {
		if r.ID == id {
			s.rooms = append(s.rooms[:i], s.rooms[i+1:]...)
			break
		}
	}
	s.persistLocked()

	log.WithField("room_id", id).Info("Room deleted")
	return nil
}

// GroupType resolves the catalog filter for a room. Custom rooms are not
// filtered. Otherwise the group type is the id prefix before the first "-",
// lowercased, and "default" when that prefix is empty.
func (s *roomService) GroupType(roomID string) (string, bool) {
	s.mu.RLock()
	room, ok := s.byID[roomID]
	custom := ok && room.IsCustom()
	s.mu.RUnlock()

	if custom {
		return "", false
	}
	return groupTypeFromID(roomID), true
}

func groupTypeFromID(roomID string) string {
	prefix := roomID
	if i := strings.Index(roomID, "-"); i >= 0 {
		prefix = roomID[:i]
	}
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return defaultType
	}
	return prefix
}

// Restore replaces the registry with a loaded snapshot
func (s *roomService) Restore(rooms []model.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rooms = s.rooms[:0]
	s.byID = make(map[string]*model.Room, len(rooms))
	for i := range rooms {
		r := rooms[i]
		if r.ID == "" {
			continue
		}
		if _, dup := s.byID[r.ID]; dup {
			continue
		}
		if r.AccessType == "" {
			r.AccessType = model.AccessOpen
		}
		s.rooms = append(s.rooms, &r)
		s.byID[r.ID] = &r
	}
}

func (s *roomService) persistLocked() {
	if s.persister == nil {
		return
	}
	rooms := make([]model.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, *r)
	}
	s.persister.Persist(repository.SnapshotGroups, rooms)
}
