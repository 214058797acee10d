package chat

import (
	"slices"
	"sync"
)

// Snapshot is a copy of the store's state handed to readers and subscribers.
type Snapshot struct {
	Chats     []Chat
	Current   *Chat
	Messages  []Message
	Streaming string
}

// Store is the in-memory cache of the signed-in user's chats, the active chat
// and its messages. Mutations never block on I/O; subscribers are called
// synchronously after each mutation, outside the lock.
type Store struct {
	mu        sync.RWMutex
	chats     []Chat
	current   *Chat
	messages  []Message
	streaming string

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

func NewStore() *Store {
	return &Store{subs: make(map[int]func(Snapshot))}
}

// Subscribe registers fn for change notifications and returns its cancel func.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Chats:     slices.Clone(s.chats),
		Messages:  slices.Clone(s.messages),
		Streaming: s.streaming,
	}
	if s.current != nil {
		c := *s.current
		snap.Current = &c
	}
	return snap
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) mutate(fn func()) {
	s.mu.Lock()
	fn()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, f := range s.subs {
		fns = append(fns, f)
	}
	s.subMu.Unlock()

	for _, f := range fns {
		f(snap)
	}
}

func (s *Store) Chats() []Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.chats)
}

func (s *Store) Current() *Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	c := *s.current
	return &c
}

func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.messages)
}

func (s *Store) Streaming() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streaming
}

func (s *Store) SetChats(chats []Chat) {
	s.mutate(func() { s.chats = slices.Clone(chats) })
}

func (s *Store) SetCurrent(c *Chat) {
	s.mutate(func() {
		if c == nil {
			s.current = nil
			return
		}
		cp := *c
		s.current = &cp
	})
}

func (s *Store) SetMessages(msgs []Message) {
	s.mutate(func() { s.messages = slices.Clone(msgs) })
}

func (s *Store) AddMessage(m Message) {
	s.mutate(func() { s.messages = append(s.messages, m) })
}

func (s *Store) UpdateMessage(id, content string) {
	s.mutate(func() {
		for i := range s.messages {
			if s.messages[i].ID == id {
				s.messages[i].Content = content
			}
		}
	})
}

func (s *Store) DeleteMessage(id string) {
	s.mutate(func() {
		s.messages = slices.DeleteFunc(s.messages, func(m Message) bool { return m.ID == id })
	})
}

func (s *Store) SetStreaming(content string) {
	s.mutate(func() { s.streaming = content })
}

// PutChat merges a chat record returned by the backend: it replaces the entry
// with the same id (and the active chat) or prepends it when absent.
func (s *Store) PutChat(c Chat) {
	s.mutate(func() {
		idx := slices.IndexFunc(s.chats, func(x Chat) bool { return x.ID == c.ID })
		if idx >= 0 {
			s.chats[idx] = c
		} else {
			s.chats = append([]Chat{c}, s.chats...)
		}
		if s.current != nil && s.current.ID == c.ID {
			cp := c
			s.current = &cp
		}
	})
}

// RemoveChat drops a chat from the list and clears it if it was active.
// It reports whether the active chat was cleared.
func (s *Store) RemoveChat(id string) bool {
	var cleared bool
	s.mutate(func() {
		s.chats = slices.DeleteFunc(s.chats, func(c Chat) bool { return c.ID == id })
		if s.current != nil && s.current.ID == id {
			s.current = nil
			s.messages = nil
			cleared = true
		}
	})
	return cleared
}
