package session

import "sync"

type User struct {
	ID       string
	Email    string
	Username string
	Avatar   string
}

// State is what the rest of the client knows about the signed-in user.
type State struct {
	User        *User
	AccessToken string
	Loading     bool
}

// Store holds the current State. It satisfies chat.UserSource and
// ai.TokenSource.
type Store struct {
	mu    sync.RWMutex
	state State

	subMu   sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

// NewStore returns a store in the loading state, before the first session
// check has completed.
func NewStore() *Store {
	return &Store{
		state: State{Loading: true},
		subs:  make(map[int]func(State)),
	}
}

func (s *Store) Subscribe(fn func(State)) func() {
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

func copyState(st State) State {
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyState(s.state)
}

func (s *Store) Set(st State) {
	s.mu.Lock()
	s.state = copyState(st)
	s.mu.Unlock()

	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, f := range s.subs {
		fns = append(fns, f)
	}
	s.subMu.Unlock()

	for _, f := range fns {
		f(copyState(st))
	}
}

func (s *Store) UserID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.User == nil || s.state.User.ID == "" {
		return "", false
	}
	return s.state.User.ID, true
}

func (s *Store) AccessToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.AccessToken, s.state.AccessToken != ""
}
