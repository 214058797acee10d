package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/netaai/neta-chat/internal/auth"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type fakeProvider struct {
	session *auth.Session
	err     error
	events  chan auth.Event
}

func newFakeProvider(s *auth.Session) *fakeProvider {
	return &fakeProvider{session: s, events: make(chan auth.Event, 8)}
}

func (p *fakeProvider) GetSession(context.Context) (*auth.Session, error) {
	return p.session, p.err
}

func (p *fakeProvider) Subscribe() (<-chan auth.Event, func()) {
	return p.events, func() {}
}

type recordingProfiles struct {
	mu    sync.Mutex
	users []User
	err   error
}

func (r *recordingProfiles) Ensure(_ context.Context, u User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, u)
	return r.err
}

func (r *recordingProfiles) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

func testSession(id, email, token string) *auth.Session {
	return &auth.Session{
		AccessToken: token,
		ExpiresAt:   time.Now().Add(time.Hour),
		User: auth.User{
			ID:       id,
			Email:    email,
			Metadata: datatypes.JSONMap{"avatar_url": "https://img.example/" + id + ".png"},
		},
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestReduce(t *testing.T) {
	signedIn := State{User: &User{ID: "u1"}, AccessToken: "t1"}

	st := Reduce(State{Loading: true}, auth.Event{Kind: auth.SignedIn, Session: testSession("u1", "ada@example.com", "t1")})
	if st.Loading || st.User == nil || st.User.ID != "u1" || st.AccessToken != "t1" {
		t.Fatalf("unexpected state after sign in: %+v", st)
	}
	if st.User.Username != "ada" || st.User.Avatar != "https://img.example/u1.png" {
		t.Fatalf("user not mapped: %+v", st.User)
	}

	st = Reduce(signedIn, auth.Event{Kind: auth.TokenRefreshed, Session: testSession("u1", "ada@example.com", "t2")})
	if st.AccessToken != "t2" || st.User.ID != "u1" {
		t.Fatalf("refresh not applied: %+v", st)
	}

	st = Reduce(signedIn, auth.Event{Kind: auth.SignedOut})
	if st.User != nil || st.AccessToken != "" || st.Loading {
		t.Fatalf("expected cleared state, got %+v", st)
	}

	st = Reduce(signedIn, auth.Event{Kind: "PASSWORD_RECOVERY"})
	if st.User == nil || st.User.ID != "u1" || st.AccessToken != "t1" {
		t.Fatalf("unknown event should not change state, got %+v", st)
	}

	for _, kind := range []auth.EventKind{auth.SignedIn, auth.TokenRefreshed, auth.UserUpdated} {
		st = Reduce(signedIn, auth.Event{Kind: kind})
		if st.User == nil || st.User.ID != "u1" || st.AccessToken != "t1" {
			t.Fatalf("%s without a session should not change state, got %+v", kind, st)
		}
	}
}

func TestStore_StartsLoadingAndSourcesIdentity(t *testing.T) {
	s := NewStore()
	if !s.State().Loading {
		t.Fatalf("new store should be loading")
	}
	if _, ok := s.UserID(); ok {
		t.Fatalf("no user expected before load")
	}

	var seen []State
	cancel := s.Subscribe(func(st State) { seen = append(seen, st) })
	s.Set(State{User: &User{ID: "u1"}, AccessToken: "tok"})
	cancel()
	s.Set(State{})

	if len(seen) != 1 || seen[0].User.ID != "u1" {
		t.Fatalf("unexpected notifications: %+v", seen)
	}
	if _, ok := s.AccessToken(); ok {
		t.Fatalf("token should be cleared")
	}
}

func TestBridge_RunLoadsSessionAndAppliesEvents(t *testing.T) {
	p := newFakeProvider(testSession("u1", "ada@example.com", "t1"))
	store := NewStore()
	profiles := &recordingProfiles{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- NewBridge(p, store, profiles).Run(ctx) }()

	waitFor(t, "initial session", func() bool { return !store.State().Loading })
	if uid, _ := store.UserID(); uid != "u1" {
		t.Fatalf("expected u1 after load, got %q", uid)
	}

	p.events <- auth.Event{Kind: auth.SignedOut}
	waitFor(t, "sign out", func() bool { _, ok := store.UserID(); return !ok })

	p.events <- auth.Event{Kind: auth.SignedIn, Session: testSession("u2", "bo@example.com", "t2")}
	waitFor(t, "sign in", func() bool { uid, _ := store.UserID(); return uid == "u2" })
	if profiles.count() != 1 {
		t.Fatalf("expected one profile provisioning, got %d", profiles.count())
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("bridge did not stop")
	}

	p.events <- auth.Event{Kind: auth.SignedOut}
	time.Sleep(20 * time.Millisecond)
	if uid, _ := store.UserID(); uid != "u2" {
		t.Fatalf("store written after cancellation")
	}
}

func TestBridge_ProfileFailureStillSignsIn(t *testing.T) {
	p := newFakeProvider(nil)
	store := NewStore()
	profiles := &recordingProfiles{err: errors.New("db down")}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = NewBridge(p, store, profiles).Run(ctx) }()
	waitFor(t, "initial load", func() bool { return !store.State().Loading })
	if _, ok := store.UserID(); ok {
		t.Fatalf("expected no user without a session")
	}

	p.events <- auth.Event{Kind: auth.SignedIn, Session: testSession("u1", "ada@example.com", "t1")}
	waitFor(t, "sign in", func() bool { _, ok := store.UserID(); return ok })
}

func TestBridge_LoadErrorClearsLoading(t *testing.T) {
	p := newFakeProvider(nil)
	p.err = errors.New("boom")
	store := NewStore()

	if err := NewBridge(p, store, nil).Run(context.Background()); err == nil {
		t.Fatalf("expected load error")
	}
	if store.State().Loading {
		t.Fatalf("loading should be cleared on error")
	}
}

func TestProfileRepo_EnsureIsIdempotent(t *testing.T) {
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(gormsqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Profile{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	repo := NewProfileRepo(db)
	ctx := context.Background()

	if err := repo.Ensure(ctx, User{ID: "u1", Email: "ada@example.com", Username: "ada"}); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := repo.Ensure(ctx, User{ID: "u1", Email: "ada@example.com", Username: "renamed"}); err != nil {
		t.Fatalf("ensure again: %v", err)
	}

	var n int64
	db.Model(&Profile{}).Count(&n)
	if n != 1 {
		t.Fatalf("expected one profile row, got %d", n)
	}
	p, err := repo.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Username != "ada" || p.AvatarURL != nil {
		t.Fatalf("existing profile should be untouched: %+v", p)
	}
}
