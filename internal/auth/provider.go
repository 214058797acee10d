package auth

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/netaai/neta-chat/internal/common"
	"github.com/netaai/neta-chat/internal/observability"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrNoSession          = errors.New("no active session")
)

const defaultTokenTTL = 24 * time.Hour

// Provider is a password-based identity provider over the users table. It
// keeps the current session in memory and pushes session changes to
// subscribers.
type Provider struct {
	db     *gorm.DB
	secret string
	ttl    time.Duration

	mu      sync.Mutex
	current *Session

	subMu sync.Mutex
	subs  map[int]chan Event
	next  int
}

func NewProvider(db *gorm.DB, secret string) *Provider {
	return &Provider{
		db:     db,
		secret: secret,
		ttl:    defaultTokenTTL,
		subs:   make(map[int]chan Event),
	}
}

// Subscribe returns a channel of session changes and a func that closes it.
func (p *Provider) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	p.subMu.Lock()
	id := p.next
	p.next++
	p.subs[id] = ch
	p.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.subMu.Lock()
			delete(p.subs, id)
			p.subMu.Unlock()
			close(ch)
		})
	}
}

func (p *Provider) emit(ev Event) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- ev:
		default:
			observability.Logger().Warn("dropping auth event for slow subscriber", "event", ev.Kind)
		}
	}
}

func (p *Provider) issue(u User) (*Session, error) {
	token, exp, err := SignToken(u.ID, u.Email, p.secret, p.ttl)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Session{AccessToken: token, ExpiresAt: exp, User: u}, nil
}

func (p *Provider) setCurrent(s *Session, kind EventKind) *Session {
	p.mu.Lock()
	p.current = s
	p.mu.Unlock()

	var cp *Session
	if s != nil {
		c := *s
		cp = &c
	}
	p.emit(Event{Kind: kind, Session: cp})
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p *Provider) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidCredentials
	}
	if len(password) < 6 {
		return nil, ErrWeakPassword
	}

	var n int64
	if err := p.db.WithContext(ctx).Model(&User{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	if n > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := User{
		ID:           common.NewULID(),
		Email:        email,
		PasswordHash: hash,
		Metadata:     datatypes.JSONMap(maps.Clone(metadata)),
	}
	if err := p.db.WithContext(ctx).Create(&u).Error; err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}

	s, err := p.issue(u)
	if err != nil {
		return nil, err
	}
	return p.setCurrent(s, SignedIn), nil
}

func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var u User
	err := p.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("sign in: %w", err)
	}
	if !CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	s, err := p.issue(u)
	if err != nil {
		return nil, err
	}
	return p.setCurrent(s, SignedIn), nil
}

func (p *Provider) SignOut(ctx context.Context) error {
	_ = ctx
	p.setCurrent(nil, SignedOut)
	return nil
}

// GetSession returns the current session, or nil when signed out or expired.
func (p *Provider) GetSession(ctx context.Context) (*Session, error) {
	_ = ctx
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil || time.Now().After(p.current.ExpiresAt) {
		return nil, nil
	}
	s := *p.current
	return &s, nil
}

// RefreshSession re-issues the access token for the current user.
func (p *Provider) RefreshSession(ctx context.Context) (*Session, error) {
	cur, _ := p.GetSession(ctx)
	if cur == nil {
		return nil, ErrNoSession
	}
	var u User
	if err := p.db.WithContext(ctx).Where("id = ?", cur.User.ID).First(&u).Error; err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	s, err := p.issue(u)
	if err != nil {
		return nil, err
	}
	return p.setCurrent(s, TokenRefreshed), nil
}

// UpdateUserMetadata merges data into the current user's metadata.
func (p *Provider) UpdateUserMetadata(ctx context.Context, data map[string]any) (*User, error) {
	cur, _ := p.GetSession(ctx)
	if cur == nil {
		return nil, ErrNoSession
	}

	var u User
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", cur.User.ID).First(&u).Error; err != nil {
			return err
		}
		merged := datatypes.JSONMap{}
		maps.Copy(merged, u.Metadata)
		maps.Copy(merged, data)
		u.Metadata = merged
		return tx.Model(&User{}).Where("id = ?", u.ID).Update("metadata", merged).Error
	})
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	next := *cur
	next.User = u
	p.setCurrent(&next, UserUpdated)
	return &u, nil
}
