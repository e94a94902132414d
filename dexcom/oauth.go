package dexcom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonwraymond/cgmlink/secret"
)

// Default vendor OAuth2 endpoints.
const (
	DefaultAuthURL  = "https://api.dexcom.com/v2/oauth2/login"
	DefaultTokenURL = "https://api.dexcom.com/v2/oauth2/token"
	DefaultScope    = "offline_access"
)

// OAuthConfig holds the vendor OAuth2 application settings.
type OAuthConfig struct {
	// ClientID identifies the registered application. Required.
	ClientID string

	// ClientSecret authenticates the application at the token endpoint.
	// Optional for public PKCE clients.
	ClientSecret string

	// RedirectURI is the registered callback URL. Required.
	RedirectURI string

	// AuthURL is the authorization endpoint.
	// Default: DefaultAuthURL
	AuthURL string

	// TokenURL is the token endpoint.
	// Default: DefaultTokenURL
	TokenURL string

	// Scope requested during authorization.
	// Default: "offline_access"
	Scope string

	// HTTPClient performs token endpoint requests.
	// Default: client with a 10 second timeout
	HTTPClient *http.Client
}

// ResolveSecrets returns a copy of the config with ClientID and ClientSecret
// passed through the resolver, so values may be env expansions or secretrefs.
func (c OAuthConfig) ResolveSecrets(ctx context.Context, r *secret.Resolver) (OAuthConfig, error) {
	id, err := r.ResolveValue(ctx, c.ClientID)
	if err != nil {
		return OAuthConfig{}, fmt.Errorf("resolve client_id: %w", err)
	}
	c.ClientID = id

	if c.ClientSecret != "" {
		cs, err := r.ResolveValue(ctx, c.ClientSecret)
		if err != nil {
			return OAuthConfig{}, fmt.Errorf("resolve client_secret: %w", err)
		}
		c.ClientSecret = cs
	}
	return c, nil
}

// oauthClient talks to the vendor token endpoint. It owns the wire format:
// form-encoded requests, JSON token responses, and the vendor's
// {error, error_description} failure shape.
type oauthClient struct {
	config OAuthConfig
	http   *http.Client
}

func newOAuthClient(config OAuthConfig) *oauthClient {
	if config.AuthURL == "" {
		config.AuthURL = DefaultAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = DefaultTokenURL
	}
	if config.Scope == "" {
		config.Scope = DefaultScope
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &oauthClient{config: config, http: httpClient}
}

// AuthorizationURL builds the vendor authorization URL with PKCE parameters.
func (c *oauthClient) AuthorizationURL(state, codeChallenge string) (string, error) {
	if c.config.ClientID == "" {
		return "", &ConfigError{Field: "client_id"}
	}
	if c.config.RedirectURI == "" {
		return "", &ConfigError{Field: "redirect_uri"}
	}

	q := url.Values{}
	q.Set("client_id", c.config.ClientID)
	q.Set("redirect_uri", c.config.RedirectURI)
	q.Set("response_type", "code")
	q.Set("scope", c.config.Scope)
	q.Set("state", state)
	q.Set("code_challenge", codeChallenge)
	q.Set("code_challenge_method", "S256")

	sep := "?"
	if strings.Contains(c.config.AuthURL, "?") {
		sep = "&"
	}
	return c.config.AuthURL + sep + q.Encode(), nil
}

// ExchangeCode redeems an authorization code for a token.
func (c *oauthClient) ExchangeCode(ctx context.Context, code, codeVerifier string) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("code_verifier", codeVerifier)
	form.Set("redirect_uri", c.config.RedirectURI)
	return c.requestToken(ctx, form)
}

// RefreshToken redeems a refresh token for a new token.
func (c *oauthClient) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return c.requestToken(ctx, form)
}

// tokenResponse is the vendor token endpoint success body.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
	TokenType    string `json:"token_type"`
}

// oauthErrorResponse is the vendor token endpoint failure body.
type oauthErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (c *oauthClient) requestToken(ctx context.Context, form url.Values) (*Token, error) {
	form.Set("client_id", c.config.ClientID)
	if c.config.ClientSecret != "" {
		form.Set("client_secret", c.config.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &AuthError{Err: err, StatusCode: resp.StatusCode}
	}

	if resp.StatusCode != http.StatusOK {
		var oe oauthErrorResponse
		_ = json.Unmarshal(body, &oe)
		return nil, &AuthError{
			Code:        oe.Error,
			Description: oe.ErrorDescription,
			StatusCode:  resp.StatusCode,
		}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, &ValidationError{Err: err}
	}
	return tokenFromResponse(tr)
}

// tokenFromResponse validates the wire token and stamps issue/expiry times.
func tokenFromResponse(tr tokenResponse) (*Token, error) {
	if tr.AccessToken == "" {
		return nil, &ValidationError{Err: fmt.Errorf("token response missing access_token")}
	}
	if tr.ExpiresIn <= 0 {
		return nil, &ValidationError{Err: fmt.Errorf("token response has non-positive expires_in %d", tr.ExpiresIn)}
	}

	now := time.Now()
	return &Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		Scope:        tr.Scope,
		IssuedAt:     now,
		ExpiresAt:    now.Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}
