package session

import (
	"context"
	"fmt"

	"github.com/netaai/neta-chat/internal/auth"
	"github.com/netaai/neta-chat/internal/observability"
)

// IdentityProvider is the part of the auth provider the bridge listens to.
type IdentityProvider interface {
	GetSession(ctx context.Context) (*auth.Session, error)
	Subscribe() (<-chan auth.Event, func())
}

type ProfileEnsurer interface {
	Ensure(ctx context.Context, u User) error
}

func userFromAuth(u auth.User) *User {
	return &User{
		ID:       u.ID,
		Email:    u.Email,
		Username: u.Username(),
		Avatar:   u.AvatarURL(),
	}
}

// Reduce folds one session-change event into st. Unknown kinds, and
// session-bearing kinds that arrive without a session, leave st as is.
func Reduce(st State, ev auth.Event) State {
	switch ev.Kind {
	case auth.SignedIn, auth.TokenRefreshed, auth.UserUpdated:
		if ev.Session == nil {
			return st
		}
		return State{
			User:        userFromAuth(ev.Session.User),
			AccessToken: ev.Session.AccessToken,
		}
	case auth.SignedOut:
		return State{}
	default:
		return st
	}
}

// Bridge mirrors the identity provider's session into a Store.
type Bridge struct {
	provider IdentityProvider
	store    *Store
	profiles ProfileEnsurer
}

// NewBridge wires provider into store. profiles may be nil.
func NewBridge(provider IdentityProvider, store *Store, profiles ProfileEnsurer) *Bridge {
	return &Bridge{provider: provider, store: store, profiles: profiles}
}

// Run loads the current session, then applies provider events until ctx is
// done. Nothing is written to the store once ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	events, cancel := b.provider.Subscribe()
	defer cancel()

	sess, err := b.provider.GetSession(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		b.store.Set(State{})
		return fmt.Errorf("load session: %w", err)
	}
	initial := State{}
	if sess != nil {
		initial = State{User: userFromAuth(sess.User), AccessToken: sess.AccessToken}
	}
	b.store.Set(initial)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			b.apply(ctx, ev)
		}
	}
}

func (b *Bridge) apply(ctx context.Context, ev auth.Event) {
	next := Reduce(b.store.State(), ev)
	if ev.Kind == auth.SignedIn && ev.Session != nil && b.profiles != nil {
		if err := b.profiles.Ensure(ctx, *next.User); err != nil {
			// sign-in still goes through
			observability.LoggerFromContext(ctx).Error("profile provisioning failed",
				"user_id", next.User.ID, "err", err)
		}
	}
	if ctx.Err() != nil {
		return
	}
	b.store.Set(next)
}
