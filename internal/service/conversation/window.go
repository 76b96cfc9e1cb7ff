package conversation

import (
	"strings"
	"sync"

	"groupcart/internal/model"
)

// DefaultCapacity window size when none is configured
const DefaultCapacity = 20

// Window is a process wide FIFO of recent room activity. Entries carry their
// room id and are filtered on read. Chat lines and cart additions share the
// buffer; only chat lines are returned by Recent and All.
type Window interface {
	// Append adds msg at the tail, evicting the oldest entry when full
	Append(msg model.Message)

	// Recent returns up to count chat messages of a room, oldest first
	Recent(roomID string, count int) []model.Message

	// All returns every buffered chat message, oldest first
	All() []model.Message

	// Activity returns the texts of the last n entries of a room, including
	// cart additions
	Activity(roomID string, n int) []string

	// Len number of buffered entries
	Len() int

	// Capacity fixed buffer size
	Capacity() int
}

// ring buffer so eviction does not shift the slice
type window struct {
	mu       sync.RWMutex
	entries  []model.Message
	head     int
	size     int
	capacity int
}

// NewWindow creates a window holding at most capacity entries
func NewWindow(capacity int) Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &window{
		entries:  make([]model.Message, capacity),
		capacity: capacity,
	}
}

func (w *window) Append(msg model.Message) {
	if msg.Kind == "" {
		msg.Kind = model.EntryChat
	}
	// suggestions are transient enrichment and never part of the context
	msg.Suggestions = nil

	w.mu.Lock()
	defer w.mu.Unlock()

	tail := (w.head + w.size) % w.capacity
	w.entries[tail] = msg
	if w.size < w.capacity {
		w.size++
	} else {
		w.head = (w.head + 1) % w.capacity
	}
}

// at returns the i-th oldest entry; caller holds the lock
func (w *window) at(i int) *model.Message {
	return &w.entries[(w.head+i)%w.capacity]
}

func (w *window) Recent(roomID string, count int) []model.Message {
	if count <= 0 {
		return nil
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	// walk backwards collecting matches, then reverse into chronological order
	out := make([]model.Message, 0, count)
	for i := w.size - 1; i >= 0 && len(out) < count; i-- {
		e := w.at(i)
		if e.RoomID == roomID && e.IsChat() {
			out = append(out, *e)
		}
	}
	reverse(out)
	return out
}

func (w *window) All() []model.Message {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]model.Message, 0, w.size)
	for i := 0; i < w.size; i++ {
		if e := w.at(i); e.IsChat() {
			out = append(out, *e)
		}
	}
	return out
}

func (w *window) Activity(roomID string, n int) []string {
	if n <= 0 {
		return nil
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	texts := make([]string, 0, n)
	for i := w.size - 1; i >= 0 && len(texts) < n; i-- {
		if e := w.at(i); e.RoomID == roomID {
			texts = append(texts, e.Text)
		}
	}
	reverse(texts)
	return texts
}

func (w *window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.size
}

func (w *window) Capacity() int {
	return w.capacity
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// JoinTexts concatenates message texts, one per line
func JoinTexts(msgs []model.Message) string {
	texts := make([]string, 0, len(msgs))
	for i := range msgs {
		texts = append(texts, msgs[i].Text)
	}
	return strings.Join(texts, "\n")
}
