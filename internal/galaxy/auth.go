package galaxy

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// defaultClientID is the SSO client the hosted service registers for CLI
// and test tooling.
const defaultClientID = "cloud-services"

// refreshWindow is how long before a tracked expiry the session is renewed.
const refreshWindow = 10 * time.Second

// Credential is one of PasswordAuth, TokenAuth, JWTAuth or GatewayAuth.
// A nil Credential yields an anonymous session.
type Credential interface {
	credential()
}

// PasswordAuth exchanges a username and password for an API token once, at
// client construction.
type PasswordAuth struct {
	Username string
	Password string
}

// TokenAuth uses a pre-issued API token as-is.
type TokenAuth struct {
	Token     string
	TokenType string // defaults to "Token"
}

// JWTAuth obtains a bearer token from an SSO token endpoint. When
// RefreshToken is set the refresh-token grant is used, otherwise the
// password grant.
type JWTAuth struct {
	AuthURL      string
	RefreshToken string
	Username     string
	Password     string
	ClientID     string // defaults to "cloud-services"
}

// GatewayAuth logs in through the platform gateway and authenticates with
// the resulting session cookie.
type GatewayAuth struct {
	Username string
	Password string
	RootURL  string // gateway origin; defaults to the server origin
}

func (PasswordAuth) credential() {}
func (TokenAuth) credential()    {}
func (JWTAuth) credential()      {}
func (GatewayAuth) credential()  {}

// AuthMode identifies which credential form produced an AuthState.
type AuthMode int

// Auth modes.
const (
	ModeAnonymous AuthMode = iota
	ModePassword
	ModeToken
	ModeJWT
	ModeGateway
)

func (m AuthMode) String() string {
	switch m {
	case ModeAnonymous:
		return "anonymous"
	case ModePassword:
		return "password"
	case ModeToken:
		return "token"
	case ModeJWT:
		return "jwt"
	case ModeGateway:
		return "gateway"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// AuthState is the credential material attached to every request. Values
// are never modified after construction; refreshes build a new AuthState
// and the Client swaps it in.
type AuthState struct {
	Mode         AuthMode
	Header       http.Header
	Token        string
	TokenType    string
	RefreshToken string
	Expiry       time.Time
}

// gatewaySession reports whether the state authenticates with a gateway
// session cookie.
func (s *AuthState) gatewaySession() bool {
	return strings.Contains(s.Header.Get("Cookie"), gatewaySessionName)
}

// stale reports whether the state is inside the proactive refresh window.
// A zero expiry counts as stale only for gateway sessions.
func (s *AuthState) stale(now time.Time) bool {
	switch s.Mode {
	case ModeGateway:
		return s.Expiry.IsZero() || !now.Before(s.Expiry.Add(-refreshWindow))
	case ModeJWT:
		return !s.Expiry.IsZero() && !now.Before(s.Expiry.Add(-refreshWindow))
	default:
		return false
	}
}

func anonymousState() *AuthState {
	h := make(http.Header)
	h.Set("Accept", "application/json")

	return &AuthState{Mode: ModeAnonymous, Header: h}
}

func tokenState(mode AuthMode, tokenType, token string) *AuthState {
	h := make(http.Header)
	h.Set("Accept", "application/json")
	h.Set("Authorization", tokenType+" "+token)

	return &AuthState{Mode: mode, Header: h, Token: token, TokenType: tokenType}
}

// resolve turns a Credential into the initial AuthState.
func (c *Client) resolve(ctx context.Context, cred Credential) (*AuthState, error) {
	switch cr := cred.(type) {
	case nil:
		return anonymousState(), nil
	case PasswordAuth:
		return c.passwordToken(ctx, cr)
	case TokenAuth:
		tokenType := cr.TokenType
		if tokenType == "" {
			tokenType = "Token"
		}

		return tokenState(ModeToken, tokenType, cr.Token), nil
	case JWTAuth:
		return c.jwtExchange(ctx, cr, cr.RefreshToken)
	case GatewayAuth:
		return c.gatewayLogin(ctx, cr)
	default:
		return nil, fmt.Errorf("galaxy: unsupported credential type %T", cred)
	}
}

// passwordToken issues exactly one POST to v3/auth/token/ with basic auth.
func (c *Client) passwordToken(ctx context.Context, cr PasswordAuth) (*AuthState, error) {
	target, err := c.resolveURL("v3/auth/token/")
	if err != nil {
		return nil, err
	}

	c.logger.Debug("requesting API token", slog.String("url", target), slog.String("username", cr.Username))

	req := &Request{Method: http.MethodPost, Path: "v3/auth/token/"}

	basic := anonymousState()
	basic.Header.Set("Authorization", basicAuthValue(cr.Username, cr.Password))

	resp, err := c.send(ctx, req, target, basic)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		reason := "token request failed"
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			reason = "token endpoint rejected username or password"
		}

		return nil, &CredentialError{
			Mode:       ModePassword.String(),
			StatusCode: resp.StatusCode,
			Reason:     reason,
			Body:       string(resp.Body),
			Err:        classifyStatus(resp.StatusCode),
		}
	}

	var payload struct {
		Token string `json:"token"`
	}

	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, &CredentialError{
			Mode:       ModePassword.String(),
			StatusCode: resp.StatusCode,
			Reason:     "token response is not JSON",
			Body:       string(resp.Body),
			Err:        err,
		}
	}

	if payload.Token == "" {
		return nil, &CredentialError{
			Mode:       ModePassword.String(),
			StatusCode: resp.StatusCode,
			Reason:     "token response has no token field",
			Body:       string(resp.Body),
		}
	}

	return tokenState(ModePassword, "Token", payload.Token), nil
}

// jwtExchange runs the password grant (refreshToken empty) or the
// refresh-token grant against the SSO endpoint.
func (c *Client) jwtExchange(ctx context.Context, cr JWTAuth, refreshToken string) (*AuthState, error) {
	clientID := cr.ClientID
	if clientID == "" {
		clientID = defaultClientID
	}

	cfg := &oauth2.Config{
		ClientID: clientID,
		Endpoint: oauth2.Endpoint{
			TokenURL:  cr.AuthURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	rec := &recordingTransport{base: c.httpClient.Transport, userAgent: c.userAgent}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{
		Transport: rec,
		Timeout:   c.httpClient.Timeout,
	})

	grant := "password"

	var (
		tok *oauth2.Token
		err error
	)

	if refreshToken != "" {
		grant = "refresh_token"
		tok, err = cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	} else {
		tok, err = cfg.PasswordCredentialsToken(ctx, cr.Username, cr.Password)
	}

	c.logger.Debug("JWT exchange",
		slog.String("grant", grant),
		slog.String("url", cr.AuthURL),
		slog.Int("status", rec.status()),
	)

	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if !errors.As(err, &retrieveErr) && rec.status() == 0 {
			// Nothing reached the server: surface the transport error.
			return nil, fmt.Errorf("galaxy: JWT %s grant: %w", grant, err)
		}

		return nil, &CredentialError{
			Mode:       ModeJWT.String(),
			StatusCode: rec.status(),
			Reason:     "access_token not found in JWT response",
			Body:       string(rec.body()),
			Err:        err,
		}
	}

	if refreshToken != "" && tok.RefreshToken == "" {
		tok.RefreshToken = refreshToken
	}

	state := tokenState(ModeJWT, "Bearer", tok.AccessToken)
	state.RefreshToken = tok.RefreshToken
	state.Expiry = jwtExpiry(tok)

	return state, nil
}

// jwtExpiry prefers the exp claim of the access token over expires_in.
// The signature is not checked; the server does that.
func jwtExpiry(tok *oauth2.Token) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok.AccessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}

	return tok.Expiry
}

func basicAuthValue(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// recordingTransport keeps the last token endpoint response so a
// malformed-but-successful reply can be reported verbatim.
type recordingTransport struct {
	base      http.RoundTripper
	userAgent string

	mu       sync.Mutex
	lastCode int
	lastBody []byte
}

func (t *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	if t.userAgent != "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()

	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	t.mu.Lock()
	t.lastCode = resp.StatusCode
	t.lastBody = data
	t.mu.Unlock()

	resp.Body = io.NopCloser(bytes.NewReader(data))

	return resp, nil
}

func (t *recordingTransport) status() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.lastCode
}

func (t *recordingTransport) body() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.lastBody
}
