package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/vanba/spiritchat/backend/internal/model/profile"
	sessionmodel "github.com/vanba/spiritchat/backend/internal/model/session"
	"github.com/vanba/spiritchat/backend/internal/service/auth"
	"github.com/vanba/spiritchat/backend/internal/store"
)

// Backend is the slice of the backing auth service the session store
// consumes. The local provider implements it; tests substitute fakes.
type Backend interface {
	GetSession(ctx context.Context) (*sessionmodel.Session, error)
	OnSessionChange(fn func(*sessionmodel.Session)) func()
	SignInWithPassword(ctx context.Context, email, password string) (*sessionmodel.Session, error)
	SignUp(ctx context.Context, email, password string, meta auth.SignUpMetadata) (*sessionmodel.Identity, error)
	SignInWithOAuth(ctx context.Context, providerID, redirectTo string) (string, error)
	SignOut(ctx context.Context) error
}

// ProfileSource is the slice of the profile repository the session store
// consumes.
type ProfileSource interface {
	Get(ctx context.Context, id uuid.UUID) (*profile.UserProfile, error)
	Update(ctx context.Context, id uuid.UUID, updates store.ProfileUpdates) (*profile.UserProfile, error)
	UpsertPreferences(ctx context.Context, prefs *profile.SpiritualPreferences) error
}

// Notice is a non-fatal problem surfaced outside any one call, such as a
// failed background profile load.
type Notice struct {
	Message string
	Err     error
}

// Store is the single source of truth for who is signed in. It owns the
// Session and the derived UserProfile cache; every other component treats
// both as read-only.
type Store struct {
	backend  Backend
	profiles ProfileSource
	hints    *HintCache

	mu             sync.RWMutex
	current        *sessionmodel.Session
	profile        *profile.UserProfile
	initialized    bool
	cancelListener func()
	profileGen     int

	notices chan Notice
}

// NewStore wires a session store. hints may be nil.
func NewStore(backend Backend, profiles ProfileSource, hints *HintCache) *Store {
	return &Store{
		backend:  backend,
		profiles: profiles,
		hints:    hints,
		notices:  make(chan Notice, 8),
	}
}

// Notices exposes background failures (profile loads and the like) for
// the UI layer to render as dismissible notes.
func (s *Store) Notices() <-chan Notice { return s.notices }

// Initialize restores any persisted session and registers the external
// session-change listener. Calling it again is a no-op: listeners are
// never duplicated.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return nil
	}
	s.initialized = true
	s.mu.Unlock()

	s.cancelListener = s.backend.OnSessionChange(s.handleSessionChange)

	sess, err := s.backend.GetSession(ctx)
	if err != nil {
		s.notify("Failed to restore the previous session.", err)
		return err
	}
	if sess != nil {
		s.setSession(sess)
	}
	return nil
}

// Close removes the session-change listener. The session itself is left
// to the backing service.
func (s *Store) Close() {
	s.mu.Lock()
	cancel := s.cancelListener
	s.cancelListener = nil
	s.initialized = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Session returns a copy of the current session, or nil when signed out.
func (s *Store) Session() *sessionmodel.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	copied := *s.current
	return &copied
}

// Profile returns the cached profile. It can lag the session: right after
// sign-in the profile may still be loading, and consumers must not block
// on it.
func (s *Store) Profile() *profile.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return nil
	}
	copied := *s.profile
	return &copied
}

// SignUp delegates account creation. It never establishes a session; the
// account may require email verification first.
func (s *Store) SignUp(ctx context.Context, email, password, fullName string) (*sessionmodel.Identity, error) {
	return s.backend.SignUp(ctx, email, password, auth.SignUpMetadata{FullName: fullName})
}

// SignIn authenticates and sets the session before returning. The profile
// loads in the background through the same path every other profile
// mutation uses.
func (s *Store) SignIn(ctx context.Context, email, password string) (*sessionmodel.Session, error) {
	sess, err := s.backend.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.setSession(sess)
	return sess, nil
}

// SignInWithExternalProvider starts a redirect flow and returns the URL to
// visit. The session is established later, through the listener, when the
// redirect returns.
func (s *Store) SignInWithExternalProvider(ctx context.Context, providerID, redirectTo string) (string, error) {
	return s.backend.SignInWithOAuth(ctx, providerID, redirectTo)
}

// SignOut clears the session and profile. Signing out twice is harmless.
func (s *Store) SignOut(ctx context.Context) error {
	if err := s.backend.SignOut(ctx); err != nil {
		return err
	}
	s.clearSession()
	return nil
}

// UpdateProfile mutates the signed-in user's profile fields and refreshes
// the local cache. Without a session it fails immediately, before any
// network call.
func (s *Store) UpdateProfile(ctx context.Context, updates store.ProfileUpdates) (*profile.UserProfile, error) {
	current := s.Session()
	if current == nil {
		return nil, auth.Fail(auth.CategoryNotAuthenticated, "No user is signed in.", nil)
	}

	updated, err := s.profiles.Update(ctx, current.UserID, updates)
	if err != nil {
		return nil, err
	}

	s.applyProfile(s.bumpProfileGen(), updated, nil)
	return updated, nil
}

// UpdateSpiritualPreferences upserts the whole preferences row, then
// refetches the full profile so the embedded copy stays consistent. The
// refetch completes before this returns, giving read-after-write behavior
// to the caller.
func (s *Store) UpdateSpiritualPreferences(ctx context.Context, prefs profile.SpiritualPreferences) error {
	current := s.Session()
	if current == nil {
		return auth.Fail(auth.CategoryNotAuthenticated, "No user is signed in.", nil)
	}

	prefs.UserID = current.UserID
	if err := s.profiles.UpsertPreferences(ctx, &prefs); err != nil {
		return err
	}

	gen := s.bumpProfileGen()
	refreshed, err := s.profiles.Get(ctx, current.UserID)
	s.applyProfile(gen, refreshed, err)
	if err != nil {
		s.notify("Preferences saved, but the profile refresh failed.", err)
	}
	return nil
}

// handleSessionChange is the listener the backing service invokes for
// external events: token refresh elsewhere, OAuth completion, sign-out in
// another tab.
func (s *Store) handleSessionChange(sess *sessionmodel.Session) {
	if sess == nil {
		s.clearSession()
		return
	}
	s.setSession(sess)
}

func (s *Store) setSession(sess *sessionmodel.Session) {
	s.mu.Lock()
	sameToken := s.current != nil && s.current.AccessToken == sess.AccessToken
	copied := *sess
	s.current = &copied
	s.profileGen++
	gen := s.profileGen
	s.mu.Unlock()

	s.saveHint(true)

	if sameToken {
		// Redelivery of the session we already hold; the profile load is
		// already underway or done.
		return
	}

	go func() {
		loaded, err := s.profiles.Get(context.Background(), sess.UserID)
		s.applyProfile(gen, loaded, err)
		if err != nil {
			s.notify("Failed to load the user profile.", err)
		}
	}()
}

func (s *Store) clearSession() {
	s.mu.Lock()
	s.current = nil
	s.profile = nil
	s.profileGen++
	s.mu.Unlock()

	s.saveHint(false)
}

// applyProfile is the single code path that ever mutates the cached
// profile. The generation guard discards results that raced a newer
// session change.
func (s *Store) applyProfile(gen int, loaded *profile.UserProfile, err error) {
	if err != nil || loaded == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.profileGen || s.current == nil || s.current.UserID != loaded.ID {
		return
	}
	s.profile = loaded
}

func (s *Store) bumpProfileGen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profileGen++
	return s.profileGen
}

func (s *Store) saveHint(authenticated bool) {
	if s.hints == nil {
		return
	}

	hint, _ := s.hints.Load()
	hint.Authenticated = authenticated
	if p := s.Profile(); p != nil && p.PreferredLanguage != "" {
		hint.Languages = mergeLanguage(hint.Languages, p.PreferredLanguage)
	}
	if err := s.hints.Save(hint); err != nil {
		slog.Warn("failed to persist client hints", "error", err)
	}
}

func (s *Store) notify(message string, err error) {
	select {
	case s.notices <- Notice{Message: message, Err: err}:
	default:
		slog.Warn("dropping session notice", "message", message, "error", err)
	}
}

func mergeLanguage(langs []string, lang string) []string {
	for _, known := range langs {
		if known == lang {
			return langs
		}
	}
	return append(langs, lang)
}
