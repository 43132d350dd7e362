package session_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	profileModel "github.com/vanba/spiritchat/backend/internal/model/profile"
	sessionmodel "github.com/vanba/spiritchat/backend/internal/model/session"
	"github.com/vanba/spiritchat/backend/internal/service/auth"
	sessionService "github.com/vanba/spiritchat/backend/internal/service/session"
	"github.com/vanba/spiritchat/backend/internal/store"
)

type fakeBackend struct {
	mu         sync.Mutex
	current    *sessionmodel.Session
	accounts   map[string]string // email -> password
	users      map[string]uuid.UUID
	unreach    bool
	listeners  []func(*sessionmodel.Session)
	registered int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		accounts: make(map[string]string),
		users:    make(map[string]uuid.UUID),
	}
}

func (b *fakeBackend) addAccount(email, password string) uuid.UUID {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := uuid.New()
	b.accounts[email] = password
	b.users[email] = id
	return id
}

func (b *fakeBackend) GetSession(ctx context.Context) (*sessionmodel.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return nil, nil
	}
	copied := *b.current
	return &copied, nil
}

func (b *fakeBackend) OnSessionChange(fn func(*sessionmodel.Session)) func() {
	b.mu.Lock()
	b.listeners = append(b.listeners, fn)
	b.registered++
	b.mu.Unlock()
	return func() {}
}

func (b *fakeBackend) SignInWithPassword(ctx context.Context, email, password string) (*sessionmodel.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unreach {
		return nil, auth.Fail(auth.CategoryNetwork, "Cannot connect to the guidance service. The backing project may be paused or unreachable; please try again shortly.", errors.New("dial tcp: connection refused"))
	}
	stored, ok := b.accounts[email]
	if !ok || stored != password {
		return nil, auth.Fail(auth.CategoryAuth, "Invalid email or password.", auth.ErrInvalidCredentials)
	}
	sess := &sessionmodel.Session{
		UserID:      b.users[email],
		Email:       email,
		AccessToken: uuid.NewString(),
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	b.current = sess
	copied := *sess
	return &copied, nil
}

func (b *fakeBackend) SignUp(ctx context.Context, email, password string, meta auth.SignUpMetadata) (*sessionmodel.Identity, error) {
	id := b.addAccount(email, password)
	return &sessionmodel.Identity{UserID: id, Email: email}, nil
}

func (b *fakeBackend) SignInWithOAuth(ctx context.Context, providerID, redirectTo string) (string, error) {
	return "https://auth.example.com/" + providerID, nil
}

func (b *fakeBackend) SignOut(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = nil
	return nil
}

// fakeProfiles counts calls so tests can assert that fail-fast paths make
// no backend requests.
type fakeProfiles struct {
	mu       sync.Mutex
	rows     map[uuid.UUID]*profileModel.UserProfile
	getCalls int
	updCalls int
	slow     time.Duration
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{rows: make(map[uuid.UUID]*profileModel.UserProfile)}
}

func (f *fakeProfiles) put(p *profileModel.UserProfile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[p.ID] = p
}

func (f *fakeProfiles) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls, f.updCalls
}

func (f *fakeProfiles) Get(ctx context.Context, id uuid.UUID) (*profileModel.UserProfile, error) {
	f.mu.Lock()
	f.getCalls++
	delay := f.slow
	row, ok := f.rows[id]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *row
	return &copied, nil
}

func (f *fakeProfiles) Update(ctx context.Context, id uuid.UUID, updates store.ProfileUpdates) (*profileModel.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updCalls++
	row, ok := f.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if updates.FullName != nil {
		row.FullName = *updates.FullName
	}
	if updates.PreferredLanguage != nil {
		row.PreferredLanguage = *updates.PreferredLanguage
	}
	copied := *row
	return &copied, nil
}

func (f *fakeProfiles) UpsertPreferences(ctx context.Context, prefs *profileModel.SpiritualPreferences) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[prefs.UserID]
	if !ok {
		return store.ErrNotFound
	}
	copied := *prefs
	row.SpiritualPreferences = &copied
	return nil
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before timeout")
}

func TestSignInSetsSessionBeforeReturn(t *testing.T) {
	backend := newFakeBackend()
	profiles := newFakeProfiles()
	profiles.slow = 50 * time.Millisecond

	userID := backend.addAccount("asha@example.com", "password123")
	profiles.put(&profileModel.UserProfile{ID: userID, Email: "asha@example.com", FullName: "Asha"})

	s := sessionService.NewStore(backend, profiles, nil)
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize err: %v", err)
	}
	defer s.Close()

	if _, err := s.SignIn(context.Background(), "asha@example.com", "password123"); err != nil {
		t.Fatalf("SignIn err: %v", err)
	}

	// The session is visible immediately; the profile may still be loading.
	sess := s.Session()
	if sess == nil || sess.UserID != userID {
		t.Fatal("session not set when SignIn returned")
	}

	waitFor(t, 2*time.Second, func() bool { return s.Profile() != nil })
	if s.Profile().FullName != "Asha" {
		t.Fatalf("unexpected profile: %+v", s.Profile())
	}
}

func TestSignInWrongPasswordVersusUnreachable(t *testing.T) {
	backend := newFakeBackend()
	backend.addAccount("asha@example.com", "password123")
	s := sessionService.NewStore(backend, newFakeProfiles(), nil)

	_, credentialErr := s.SignIn(context.Background(), "asha@example.com", "wrong")
	if auth.CategoryOf(credentialErr) != auth.CategoryAuth {
		t.Fatalf("wrong password classified as %s", auth.CategoryOf(credentialErr))
	}

	backend.mu.Lock()
	backend.unreach = true
	backend.mu.Unlock()

	_, networkErr := s.SignIn(context.Background(), "asha@example.com", "password123")
	if auth.CategoryOf(networkErr) != auth.CategoryNetwork {
		t.Fatalf("unreachable backend classified as %s", auth.CategoryOf(networkErr))
	}

	if auth.UserMessage(credentialErr) == auth.UserMessage(networkErr) {
		t.Fatal("network and credential failures carry the same message")
	}
	if !strings.Contains(auth.UserMessage(networkErr), "paused") {
		t.Fatalf("network message does not mention the paused project: %q", auth.UserMessage(networkErr))
	}
}

func TestMutationsAfterSignOutFailFast(t *testing.T) {
	backend := newFakeBackend()
	profiles := newFakeProfiles()
	userID := backend.addAccount("asha@example.com", "password123")
	profiles.put(&profileModel.UserProfile{ID: userID, Email: "asha@example.com"})

	s := sessionService.NewStore(backend, profiles, nil)
	if _, err := s.SignIn(context.Background(), "asha@example.com", "password123"); err != nil {
		t.Fatalf("SignIn err: %v", err)
	}
	if err := s.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut err: %v", err)
	}
	if err := s.SignOut(context.Background()); err != nil {
		t.Fatalf("second SignOut err: %v", err)
	}

	gets, updates := profiles.calls()

	name := "New Name"
	if _, err := s.UpdateProfile(context.Background(), store.ProfileUpdates{FullName: &name}); auth.CategoryOf(err) != auth.CategoryNotAuthenticated {
		t.Fatalf("expected NotAuthenticated, got %v", err)
	}
	if err := s.UpdateSpiritualPreferences(context.Background(), profileModel.SpiritualPreferences{}); auth.CategoryOf(err) != auth.CategoryNotAuthenticated {
		t.Fatalf("expected NotAuthenticated, got %v", err)
	}

	// Fail-fast means no repository traffic at all.
	getsAfter, updatesAfter := profiles.calls()
	if getsAfter != gets || updatesAfter != updates {
		t.Fatalf("repository was called after sign-out: gets %d->%d updates %d->%d", gets, getsAfter, updates, updatesAfter)
	}
}

func TestPreferencesReadAfterWrite(t *testing.T) {
	backend := newFakeBackend()
	profiles := newFakeProfiles()
	userID := backend.addAccount("asha@example.com", "password123")
	profiles.put(&profileModel.UserProfile{ID: userID, Email: "asha@example.com"})

	s := sessionService.NewStore(backend, profiles, nil)
	if _, err := s.SignIn(context.Background(), "asha@example.com", "password123"); err != nil {
		t.Fatalf("SignIn err: %v", err)
	}

	prefs := profileModel.SpiritualPreferences{
		PreferredTraditions: datatypes.NewJSONSlice([]profileModel.Tradition{profileModel.TraditionBuddhism}),
		MeditationPractice:  true,
		GuidanceFrequency:   profileModel.FrequencyDaily,
	}
	if err := s.UpdateSpiritualPreferences(context.Background(), prefs); err != nil {
		t.Fatalf("UpdateSpiritualPreferences err: %v", err)
	}

	// The refetch completes before the call returns, so the embedded
	// preferences are immediately visible.
	cached := s.Profile()
	if cached == nil || cached.SpiritualPreferences == nil {
		t.Fatal("profile cache missing preferences after update")
	}
	got := cached.SpiritualPreferences
	if !got.MeditationPractice || got.GuidanceFrequency != profileModel.FrequencyDaily {
		t.Fatalf("stale preferences in cache: %+v", got)
	}
	if len(got.PreferredTraditions) != 1 || got.PreferredTraditions[0] != profileModel.TraditionBuddhism {
		t.Fatalf("unexpected traditions: %v", got.PreferredTraditions)
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	backend := newFakeBackend()
	s := sessionService.NewStore(backend, newFakeProfiles(), nil)

	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize err: %v", err)
	}
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("second Initialize err: %v", err)
	}

	backend.mu.Lock()
	registered := backend.registered
	backend.mu.Unlock()
	if registered != 1 {
		t.Fatalf("expected 1 listener registration, got %d", registered)
	}
}

func TestExternalSignOutClearsSession(t *testing.T) {
	backend := newFakeBackend()
	profiles := newFakeProfiles()
	userID := backend.addAccount("asha@example.com", "password123")
	profiles.put(&profileModel.UserProfile{ID: userID, Email: "asha@example.com"})

	s := sessionService.NewStore(backend, profiles, nil)
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize err: %v", err)
	}
	if _, err := s.SignIn(context.Background(), "asha@example.com", "password123"); err != nil {
		t.Fatalf("SignIn err: %v", err)
	}

	// Sign-out from another tab arrives through the listener.
	backend.mu.Lock()
	listeners := append([]func(*sessionmodel.Session){}, backend.listeners...)
	backend.mu.Unlock()
	for _, fn := range listeners {
		fn(nil)
	}

	if s.Session() != nil {
		t.Fatal("session survived an external sign-out")
	}
	if s.Profile() != nil {
		t.Fatal("profile survived an external sign-out")
	}
}

func TestStaleProfileLoadIsDiscarded(t *testing.T) {
	backend := newFakeBackend()
	profiles := newFakeProfiles()
	profiles.slow = 30 * time.Millisecond

	aliceID := backend.addAccount("alice@example.com", "password123")
	bobID := backend.addAccount("bob@example.com", "password123")
	profiles.put(&profileModel.UserProfile{ID: aliceID, Email: "alice@example.com", FullName: "Alice"})
	profiles.put(&profileModel.UserProfile{ID: bobID, Email: "bob@example.com", FullName: "Bob"})

	s := sessionService.NewStore(backend, profiles, nil)
	if _, err := s.SignIn(context.Background(), "alice@example.com", "password123"); err != nil {
		t.Fatalf("SignIn alice err: %v", err)
	}
	// Bob signs in while Alice's profile load is still in flight.
	if _, err := s.SignIn(context.Background(), "bob@example.com", "password123"); err != nil {
		t.Fatalf("SignIn bob err: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return s.Profile() != nil })
	time.Sleep(60 * time.Millisecond)

	if got := s.Profile(); got.ID != bobID {
		t.Fatalf("stale profile applied: got %s (%s)", got.FullName, got.ID)
	}
}
