package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/vanba/spiritchat/backend/internal/config"
	"github.com/vanba/spiritchat/backend/internal/model/profile"
	sessionmodel "github.com/vanba/spiritchat/backend/internal/model/session"
	"github.com/vanba/spiritchat/backend/internal/store"
)

func buildAuthorizeURL(cfg config.OAuthProvider, providerID, redirectTo string) string {
	query := url.Values{}
	query.Set("client_id", cfg.ClientID)
	query.Set("response_type", "code")
	query.Set("scope", cfg.Scopes)
	if redirectTo != "" {
		query.Set("redirect_uri", redirectTo)
	}
	query.Set("state", providerID)
	return cfg.AuthURL + "?" + query.Encode()
}

type oauthTokenResponse struct {
	AccessToken string `json:"access_token"`
	Error       string `json:"error"`
}

type oauthUserInfo struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// CompleteOAuth exchanges an authorization code, creates or links the
// account by email, and establishes the session. The session store learns
// about it through the session-change broadcast, exactly like any other
// external session event.
func (p *Provider) CompleteOAuth(ctx context.Context, providerID, code, redirectURI string) (*sessionmodel.Session, error) {
	oauthCfg, ok := p.cfg.OAuth[providerID]
	if !ok || !oauthCfg.Configured() {
		return nil, Fail(CategoryAuth, fmt.Sprintf("Sign-in with %s is not available.", providerID), ErrUnknownProvider)
	}

	info, err := p.fetchOAuthIdentity(ctx, oauthCfg, code, redirectURI)
	if err != nil {
		return nil, err
	}

	email := strings.TrimSpace(strings.ToLower(info.Email))
	if email == "" {
		return nil, Fail(CategoryAuth, "The sign-in provider did not share an email address.", nil)
	}

	account, err := p.profiles.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		displayName := info.Name
		if displayName == "" {
			displayName = strings.Split(email, "@")[0]
		}
		account = &profile.UserProfile{
			ID:                uuid.New(),
			FullName:          displayName,
			Email:             email,
			PasswordHash:      "",
			Role:              "user",
			PreferredLanguage: "en",
			EmailVerified:     true,
			AuthProvider:      providerID,
		}
		if err := p.profiles.Create(ctx, account); err != nil {
			return nil, classifyBackendErr(err, "OAuth sign-in failed.")
		}
	case err != nil:
		return nil, classifyBackendErr(err, "OAuth sign-in failed.")
	}

	return p.establishSession(ctx, account)
}

func (p *Provider) fetchOAuthIdentity(ctx context.Context, cfg config.OAuthProvider, code, redirectURI string) (*oauthUserInfo, error) {
	form := url.Values{}
	form.Set("client_id", cfg.ClientID)
	form.Set("client_secret", cfg.ClientSecret)
	form.Set("code", code)
	form.Set("grant_type", "authorization_code")
	if redirectURI != "" {
		form.Set("redirect_uri", redirectURI)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, Fail(CategoryInternal, "OAuth sign-in failed.", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, classifyBackendErr(err, "OAuth sign-in failed.")
	}
	defer resp.Body.Close()

	var token oauthTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, Fail(CategoryAuth, "OAuth sign-in failed.", err)
	}
	if token.Error != "" || token.AccessToken == "" {
		return nil, Fail(CategoryAuth, "OAuth sign-in failed.", fmt.Errorf("token exchange rejected: %s", token.Error))
	}

	infoReq, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.UserInfoURL, nil)
	if err != nil {
		return nil, Fail(CategoryInternal, "OAuth sign-in failed.", err)
	}
	infoReq.Header.Set("Authorization", "Bearer "+token.AccessToken)
	infoReq.Header.Set("Accept", "application/json")

	infoResp, err := http.DefaultClient.Do(infoReq)
	if err != nil {
		return nil, classifyBackendErr(err, "OAuth sign-in failed.")
	}
	defer infoResp.Body.Close()

	var info oauthUserInfo
	if err := json.NewDecoder(infoResp.Body).Decode(&info); err != nil {
		return nil, Fail(CategoryAuth, "OAuth sign-in failed.", err)
	}
	return &info, nil
}
