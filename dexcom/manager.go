package dexcom

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/cgmlink/observe"
)

// TokenManagerConfig configures a TokenManager.
type TokenManagerConfig struct {
	// OAuth holds the vendor application settings.
	OAuth OAuthConfig

	// User identifies whose tokens this manager owns. Required.
	User string

	// Provider names the vendor.
	// Default: "dexcom"
	Provider string

	// RefreshBuffer is how long before expiry a token counts as expiring
	// and triggers auto-refresh.
	// Default: 30s
	RefreshBuffer time.Duration

	// VerifierLength is the PKCE code verifier length.
	// Default: 64
	VerifierLength int
}

// TokenManager owns the OAuth2 token lifecycle for one (user, provider)
// pair: PKCE authorization, code exchange, and auto-refresh. Concurrent
// refreshes are coalesced into a single in-flight call so racing callers
// cannot invalidate one another's refresh token.
type TokenManager struct {
	config TokenManagerConfig
	oauth  *oauthClient
	store  TokenStore
	log    observe.Logger

	sf singleflight.Group
}

// NewTokenManager creates a TokenManager backed by store. A nil observer
// gets noop telemetry.
func NewTokenManager(config TokenManagerConfig, store TokenStore, obs observe.Observer) (*TokenManager, error) {
	if config.User == "" {
		return nil, &ConfigError{Field: "user"}
	}
	if store == nil {
		return nil, &ConfigError{Field: "store"}
	}
	if config.Provider == "" {
		config.Provider = "dexcom"
	}
	if config.RefreshBuffer <= 0 {
		config.RefreshBuffer = 30 * time.Second
	}
	if obs == nil {
		obs = observe.NewNoopObserver()
	}

	return &TokenManager{
		config: config,
		oauth:  newOAuthClient(config.OAuth),
		store:  store,
		log:    obs.Logger().WithComponent("token_manager"),
	}, nil
}

// Authorization is the outcome of InitiateAuthorization. The caller redirects
// the user to URL and must hold CodeVerifier for the callback exchange.
type Authorization struct {
	URL          string
	State        string
	CodeVerifier string
}

// InitiateAuthorization generates a PKCE pair and builds the vendor
// authorization URL. Fails with ConfigError when client_id or redirect_uri
// are unset.
func (m *TokenManager) InitiateAuthorization(state string) (*Authorization, error) {
	verifier, err := GenerateVerifier(m.config.VerifierLength)
	if err != nil {
		return nil, err
	}

	authURL, err := m.oauth.AuthorizationURL(state, ChallengeS256(verifier))
	if err != nil {
		return nil, err
	}

	return &Authorization{
		URL:          authURL,
		State:        state,
		CodeVerifier: verifier,
	}, nil
}

// HandleCallback exchanges the authorization code, persists the new token,
// and returns it.
func (m *TokenManager) HandleCallback(ctx context.Context, code, codeVerifier string) (*Token, error) {
	token, err := m.oauth.ExchangeCode(ctx, code, codeVerifier)
	if err != nil {
		m.log.Error(ctx, "authorization code exchange failed",
			observe.Field{Key: "user", Value: m.config.User},
			observe.Field{Key: "error", Value: err.Error()},
		)
		return nil, err
	}

	if err := m.store.Put(ctx, m.config.User, m.config.Provider, token); err != nil {
		return nil, err
	}

	m.log.Info(ctx, "token obtained",
		observe.Field{Key: "user", Value: m.config.User},
		observe.Field{Key: "expires_at", Value: token.ExpiresAt.Format(time.RFC3339)},
	)
	return token, nil
}

// Token returns a token suitable for an outbound call, refreshing first when
// the stored token expires within RefreshBuffer and a refresh token exists.
// A failed refresh falls back to the stale token so the caller can still
// attempt the request (and receive a 401 if the vendor rejects it). Fails
// with AuthError when nothing is stored.
func (m *TokenManager) Token(ctx context.Context) (*Token, error) {
	token, err := m.store.Get(ctx, m.config.User, m.config.Provider)
	if err != nil {
		return nil, &AuthError{Description: "no valid token available", Err: err}
	}

	if !token.ExpiresWithin(m.config.RefreshBuffer) || token.RefreshToken == "" {
		return token, nil
	}

	refreshed, err := m.Refresh(ctx)
	if err != nil {
		m.log.Warn(ctx, "token refresh failed, using stale token",
			observe.Field{Key: "user", Value: m.config.User},
			observe.Field{Key: "expires_at", Value: token.ExpiresAt.Format(time.RFC3339)},
			observe.Field{Key: "error", Value: err.Error()},
		)
		return token, nil
	}
	return refreshed, nil
}

// CurrentToken returns the stored token without refreshing.
func (m *TokenManager) CurrentToken(ctx context.Context) (*Token, error) {
	token, err := m.store.Get(ctx, m.config.User, m.config.Provider)
	if err != nil {
		return nil, &AuthError{Description: "no valid token available", Err: err}
	}
	return token, nil
}

// Refresh exchanges the stored refresh token for a new token and atomically
// replaces the stored one. Concurrent callers share a single in-flight
// refresh and all receive its result. On failure the stored token is left
// untouched.
//
// The shared call runs under the first caller's context; a later caller's
// cancellation does not abort it.
func (m *TokenManager) Refresh(ctx context.Context) (*Token, error) {
	result, err, _ := m.sf.Do("refresh", func() (any, error) {
		current, err := m.store.Get(ctx, m.config.User, m.config.Provider)
		if err != nil {
			return nil, &AuthError{Description: "no valid token available", Err: err}
		}
		if current.RefreshToken == "" {
			return nil, &AuthError{Description: "no refresh token available"}
		}

		token, err := m.oauth.RefreshToken(ctx, current.RefreshToken)
		if err != nil {
			return nil, err
		}

		if err := m.store.Put(ctx, m.config.User, m.config.Provider, token); err != nil {
			return nil, err
		}

		m.log.Info(ctx, "token refreshed",
			observe.Field{Key: "user", Value: m.config.User},
			observe.Field{Key: "expires_at", Value: token.ExpiresAt.Format(time.RFC3339)},
		)
		return token, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Token), nil
}
