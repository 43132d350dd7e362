package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vanba/spiritchat/backend/internal/config"
	"github.com/vanba/spiritchat/backend/internal/model/profile"
	sessionmodel "github.com/vanba/spiritchat/backend/internal/model/session"
	"github.com/vanba/spiritchat/backend/internal/store"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotVerified   = errors.New("email address not verified")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUnknownProvider    = errors.New("unknown oauth provider")
)

// SignUpMetadata travels with a sign-up request, mirroring the metadata
// blob the frontend attaches.
type SignUpMetadata struct {
	FullName          string
	PreferredLanguage string
}

// Provider is the backing authentication service: credential checks, token
// issuance, and the session-change broadcast that the session store
// subscribes to. It also tracks the process-wide current session the way a
// hosted auth client would persist one.
type Provider struct {
	profiles store.ProfileStore
	tokens   store.TokenStore
	cfg      config.AuthConfig
	now      func() time.Time

	mu        sync.Mutex
	current   *sessionmodel.Session
	listeners map[int]func(*sessionmodel.Session)
	nextID    int
}

// NewProvider wires the provider over its stores.
func NewProvider(profiles store.ProfileStore, tokens store.TokenStore, cfg config.AuthConfig) *Provider {
	return &Provider{
		profiles:  profiles,
		tokens:    tokens,
		cfg:       cfg,
		now:       time.Now,
		listeners: make(map[int]func(*sessionmodel.Session)),
	}
}

// GetSession returns the persisted session, if any. A nil session with a
// nil error means "signed out".
func (p *Provider) GetSession(ctx context.Context) (*sessionmodel.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil, nil
	}
	if p.current.Expired(p.now()) {
		return nil, nil
	}
	copied := *p.current
	return &copied, nil
}

// OnSessionChange registers a listener for external session events (token
// refresh, OAuth completion, sign-out elsewhere). The returned func
// removes the listener and is safe to call more than once.
func (p *Provider) OnSessionChange(fn func(*sessionmodel.Session)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

// SignUp creates an account. It never signs the user in: when email
// verification is required the account stays unverified until confirmed.
func (p *Provider) SignUp(ctx context.Context, email, password string, meta SignUpMetadata) (*sessionmodel.Identity, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || len(password) < 8 {
		return nil, Fail(CategoryValidation, "Email is required and the password must be at least 8 characters.", nil)
	}

	if _, err := p.profiles.GetByEmail(ctx, email); err == nil {
		return nil, Fail(CategoryAuth, "This email is already registered. Try signing in instead.", ErrEmailTaken)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, classifyBackendErr(err, "Could not create the account.")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, Fail(CategoryInternal, "Could not create the account.", err)
	}

	account := &profile.UserProfile{
		ID:                uuid.New(),
		FullName:          meta.FullName,
		Email:             email,
		PasswordHash:      string(hash),
		Role:              "user",
		PreferredLanguage: defaultLanguage(meta.PreferredLanguage),
		EmailVerified:     !p.cfg.RequireVerification,
		AuthProvider:      "email",
	}

	if err := p.profiles.Create(ctx, account); err != nil {
		return nil, classifyBackendErr(err, "Could not create the account.")
	}

	return &sessionmodel.Identity{
		UserID:        account.ID,
		Email:         account.Email,
		EmailVerified: account.EmailVerified,
	}, nil
}

// SignInWithPassword checks credentials and establishes the session. The
// session is set before this returns; network failures read differently
// from wrong credentials.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*sessionmodel.Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	account, err := p.profiles.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, Fail(CategoryAuth, "Invalid email or password.", ErrInvalidCredentials)
		}
		return nil, classifyBackendErr(err, "Could not sign in.")
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return nil, Fail(CategoryAuth, "Invalid email or password.", ErrInvalidCredentials)
	}

	if p.cfg.RequireVerification && !account.EmailVerified {
		return nil, Fail(CategoryAuth, "Please verify your email address before signing in.", ErrEmailNotVerified)
	}

	sess, err := p.establishSession(ctx, account)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// SignInWithOAuth builds the provider redirect URL. It never sets the
// session: the redirect return path re-enters through CompleteOAuth and
// the session-change listeners.
func (p *Provider) SignInWithOAuth(ctx context.Context, providerID, redirectTo string) (string, error) {
	oauthCfg, ok := p.cfg.OAuth[providerID]
	if !ok || !oauthCfg.Configured() {
		return "", Fail(CategoryAuth, fmt.Sprintf("Sign-in with %s is not available.", providerID), ErrUnknownProvider)
	}
	return buildAuthorizeURL(oauthCfg, providerID, redirectTo), nil
}

// SignOut revokes the session's refresh token, clears it, and broadcasts.
// Signing out twice is a no-op.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	current := p.current
	p.current = nil
	p.mu.Unlock()

	if current == nil {
		return nil
	}

	if err := p.tokens.RevokeRefresh(ctx, hashToken(current.RefreshToken)); err != nil {
		// The local session is already gone; revocation failure only
		// shortens nothing, so log and move on.
		slog.Warn("failed to revoke refresh token", "error", err)
	}

	p.broadcast(nil)
	return nil
}

// SignOutToken revokes one refresh token for a stateless API client. When
// the token belongs to the current session it signs that out too.
func (p *Provider) SignOutToken(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	p.mu.Lock()
	matchesCurrent := p.current != nil && p.current.RefreshToken == refreshToken
	p.mu.Unlock()
	if matchesCurrent {
		return p.SignOut(ctx)
	}

	if err := p.tokens.RevokeRefresh(ctx, hashToken(refreshToken)); err != nil && !errors.Is(err, store.ErrNotFound) {
		return classifyBackendErr(err, "Could not sign out.")
	}
	return nil
}

// Refresh rotates a refresh token into a fresh session and broadcasts the
// change, modelling an external token refresh re-entering the listener.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*sessionmodel.Session, error) {
	stored, err := p.tokens.FindActiveRefresh(ctx, hashToken(refreshToken))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, Fail(CategoryAuth, "Your session has expired. Please sign in again.", ErrInvalidToken)
		}
		return nil, classifyBackendErr(err, "Could not refresh the session.")
	}

	if p.now().After(stored.ExpiresAt) {
		_ = p.tokens.RevokeRefresh(ctx, stored.TokenHash)
		return nil, Fail(CategoryAuth, "Your session has expired. Please sign in again.", ErrInvalidToken)
	}

	if err := p.tokens.RevokeRefresh(ctx, stored.TokenHash); err != nil {
		return nil, classifyBackendErr(err, "Could not refresh the session.")
	}

	account, err := p.profiles.Get(ctx, stored.UserID)
	if err != nil {
		return nil, classifyBackendErr(err, "Could not refresh the session.")
	}

	return p.establishSession(ctx, account)
}

// RequestPasswordReset records a reset token. Delivery of the email is a
// separate concern; unknown addresses are not revealed.
func (p *Provider) RequestPasswordReset(ctx context.Context, email string) error {
	account, err := p.profiles.GetByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return classifyBackendErr(err, "Could not request a password reset.")
	}

	raw, err := randomToken()
	if err != nil {
		return Fail(CategoryInternal, "Could not request a password reset.", err)
	}

	reset := &store.PasswordResetToken{
		UserID:    account.ID,
		TokenHash: hashToken(raw),
		ExpiresAt: p.now().Add(1 * time.Hour),
	}
	if err := p.tokens.CreateReset(ctx, reset); err != nil {
		return classifyBackendErr(err, "Could not request a password reset.")
	}
	return nil
}

// ParseAccessToken validates a bearer token and returns its claims.
func (p *Provider) ParseAccessToken(tokenString string) (AccessClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(p.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return AccessClaims{}, Fail(CategoryAuth, "Invalid or expired token.", ErrInvalidToken)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return AccessClaims{}, Fail(CategoryAuth, "Invalid or expired token.", ErrInvalidToken)
	}

	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return AccessClaims{}, Fail(CategoryAuth, "Invalid or expired token.", ErrInvalidToken)
	}

	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	return AccessClaims{UserID: userID, Email: email, Role: role}, nil
}

// AccessClaims is the validated content of an access token.
type AccessClaims struct {
	UserID uuid.UUID
	Email  string
	Role   string
}

func (p *Provider) establishSession(ctx context.Context, account *profile.UserProfile) (*sessionmodel.Session, error) {
	accessToken, expiresAt, err := p.generateAccessToken(account)
	if err != nil {
		return nil, Fail(CategoryInternal, "Could not sign in.", err)
	}

	refreshToken, err := p.generateRefreshToken(ctx, account.ID)
	if err != nil {
		return nil, classifyBackendErr(err, "Could not sign in.")
	}

	sess := &sessionmodel.Session{
		UserID:        account.ID,
		Email:         account.Email,
		EmailVerified: account.EmailVerified,
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		ExpiresAt:     expiresAt,
	}

	p.mu.Lock()
	p.current = sess
	p.mu.Unlock()

	p.broadcast(sess)

	copied := *sess
	return &copied, nil
}

func (p *Provider) generateAccessToken(account *profile.UserProfile) (string, time.Time, error) {
	expiresAt := p.now().Add(p.cfg.AccessExpiry)
	claims := jwt.MapClaims{
		"sub":   account.ID.String(),
		"email": account.Email,
		"role":  account.Role,
		"iat":   p.now().Unix(),
		"exp":   expiresAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(p.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

func (p *Provider) generateRefreshToken(ctx context.Context, userID uuid.UUID) (string, error) {
	raw, err := randomToken()
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}

	record := &store.RefreshToken{
		UserID:    userID,
		TokenHash: hashToken(raw),
		ExpiresAt: p.now().Add(p.cfg.RefreshExpiry),
	}
	if err := p.tokens.CreateRefresh(ctx, record); err != nil {
		return "", err
	}
	return raw, nil
}

func (p *Provider) broadcast(sess *sessionmodel.Session) {
	p.mu.Lock()
	fns := make([]func(*sessionmodel.Session), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		if sess == nil {
			fn(nil)
			continue
		}
		copied := *sess
		fn(&copied)
	}
}

func defaultLanguage(lang string) string {
	if lang == "" {
		return "en"
	}
	return lang
}

func randomToken() (string, error) {
	rawBytes := make([]byte, 32)
	if _, err := rand.Read(rawBytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(rawBytes), nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", h)
}
