package ws

import (
	"context"
	"sync"

	"github.com/vanba/spiritchat/backend/internal/service/auth"

	sessionmodel "github.com/vanba/spiritchat/backend/internal/model/session"
)

// connBackend scopes the auth backend to one websocket connection. The
// connection arrives already holding a valid access token, so the
// restored session is derived from its claims; sign-out clears only this
// connection's session, not anyone else's.
type connBackend struct {
	provider *auth.Provider

	mu        sync.Mutex
	current   *sessionmodel.Session
	listeners map[int]func(*sessionmodel.Session)
	nextID    int
}

func newConnBackend(provider *auth.Provider, claims auth.AccessClaims) *connBackend {
	return &connBackend{
		provider: provider,
		current: &sessionmodel.Session{
			UserID:        claims.UserID,
			Email:         claims.Email,
			EmailVerified: true,
		},
		listeners: make(map[int]func(*sessionmodel.Session)),
	}
}

func (b *connBackend) GetSession(ctx context.Context) (*sessionmodel.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return nil, nil
	}
	copied := *b.current
	return &copied, nil
}

func (b *connBackend) OnSessionChange(fn func(*sessionmodel.Session)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

func (b *connBackend) SignInWithPassword(ctx context.Context, email, password string) (*sessionmodel.Session, error) {
	sess, err := b.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	b.replace(sess)
	return sess, nil
}

func (b *connBackend) SignUp(ctx context.Context, email, password string, meta auth.SignUpMetadata) (*sessionmodel.Identity, error) {
	return b.provider.SignUp(ctx, email, password, meta)
}

func (b *connBackend) SignInWithOAuth(ctx context.Context, providerID, redirectTo string) (string, error) {
	return b.provider.SignInWithOAuth(ctx, providerID, redirectTo)
}

func (b *connBackend) SignOut(ctx context.Context) error {
	b.mu.Lock()
	current := b.current
	b.current = nil
	b.mu.Unlock()

	if current == nil {
		return nil
	}
	if current.RefreshToken != "" {
		if err := b.provider.SignOutToken(ctx, current.RefreshToken); err != nil {
			return err
		}
	}
	b.broadcast(nil)
	return nil
}

func (b *connBackend) replace(sess *sessionmodel.Session) {
	b.mu.Lock()
	b.current = sess
	b.mu.Unlock()
	b.broadcast(sess)
}

func (b *connBackend) broadcast(sess *sessionmodel.Session) {
	b.mu.Lock()
	fns := make([]func(*sessionmodel.Session), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		if sess == nil {
			fn(nil)
			continue
		}
		copied := *sess
		fn(&copied)
	}
}
