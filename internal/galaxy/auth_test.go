package galaxy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordAuth_SingleTokenRequest(t *testing.T) {
	var tokenCalls, apiCalls atomic.Int32

	var gotAuth string

	mux := http.NewServeMux()
	mux.HandleFunc(apiRoot+"v3/auth/token/", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "admin", user)
		assert.Equal(t, "secret", pass)

		_, _ = w.Write([]byte(`{"token":"issued-1"}`))
	})
	mux.HandleFunc(apiRoot+"_ui/v1/me/", func(w http.ResponseWriter, r *http.Request) {
		apiCalls.Add(1)
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"username":"admin"}`))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClientWith(t, srv.URL+apiRoot, PasswordAuth{Username: "admin", Password: "secret"}, Options{})
	assert.Equal(t, ModePassword, client.AuthState().Mode)

	for range 3 {
		me, err := client.Me(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "admin", me.Username)
	}

	assert.Equal(t, int32(1), tokenCalls.Load())
	assert.Equal(t, int32(3), apiCalls.Load())
	assert.Equal(t, "Token issued-1", gotAuth)
}

func TestPasswordAuth_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Invalid username/password."}`))
	}))
	defer srv.Close()

	_, err := NewClient(context.Background(), srv.URL+apiRoot, PasswordAuth{Username: "a", Password: "b"}, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCredential)
	assert.ErrorIs(t, err, ErrUnauthorized)

	var credErr *CredentialError
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, http.StatusUnauthorized, credErr.StatusCode)
	assert.Contains(t, credErr.Body, "Invalid username/password")
}

func TestPasswordAuth_MissingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"something":"else"}`))
	}))
	defer srv.Close()

	_, err := NewClient(context.Background(), srv.URL+apiRoot, PasswordAuth{Username: "a", Password: "b"}, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCredential)
	assert.Contains(t, err.Error(), "no token field")
}

func TestTokenAuth_DefaultAndCustomType(t *testing.T) {
	c := newTestClientWith(t, "http://hub.example/api/", TokenAuth{Token: "abc"}, Options{})
	assert.Equal(t, "Token abc", c.AuthState().Header.Get("Authorization"))

	c = newTestClientWith(t, "http://hub.example/api/", TokenAuth{Token: "abc", TokenType: "Bearer"}, Options{})
	assert.Equal(t, "Bearer abc", c.AuthState().Header.Get("Authorization"))
}

func TestAuthState_SnapshotIsCopy(t *testing.T) {
	c := newTestClientWith(t, "http://hub.example/api/", TokenAuth{Token: "abc"}, Options{})

	snap := c.AuthState()
	snap.Header.Set("Authorization", "tampered")

	assert.Equal(t, "Token abc", c.AuthState().Header.Get("Authorization"))
}

// fakeSSO is a token endpoint that issues jwt-<n> access tokens and
// records the grants it served.
type fakeSSO struct {
	mu     sync.Mutex
	grants []string
	forms  []map[string]string
	issued atomic.Int32
	noTok  bool
}

func (f *fakeSSO) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	form := map[string]string{}
	for k := range r.PostForm {
		form[k] = r.PostForm.Get(k)
	}

	f.mu.Lock()
	f.grants = append(f.grants, r.PostForm.Get("grant_type"))
	f.forms = append(f.forms, form)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	if f.noTok {
		_, _ = w.Write([]byte(`{"error_hint":"account locked"}`))
		return
	}

	n := f.issued.Add(1)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  fmt.Sprintf("jwt-%d", n),
		"refresh_token": fmt.Sprintf("refresh-%d", n),
		"token_type":    "Bearer",
	})
}

func (f *fakeSSO) grantList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.grants...)
}

func TestJWTAuth_PasswordGrant(t *testing.T) {
	sso := &fakeSSO{}
	srv := httptest.NewServer(sso)
	defer srv.Close()

	c := newTestClientWith(t, "http://hub.example/api/", JWTAuth{
		AuthURL:  srv.URL + "/token",
		Username: "jdoe",
		Password: "pw",
	}, Options{})

	state := c.AuthState()
	assert.Equal(t, ModeJWT, state.Mode)
	assert.Equal(t, "Bearer jwt-1", state.Header.Get("Authorization"))
	assert.Equal(t, "refresh-1", state.RefreshToken)

	require.Len(t, sso.forms, 1)
	assert.Equal(t, "password", sso.forms[0]["grant_type"])
	assert.Equal(t, "jdoe", sso.forms[0]["username"])
	assert.Equal(t, "pw", sso.forms[0]["password"])
	assert.Equal(t, defaultClientID, sso.forms[0]["client_id"])
}

func TestJWTAuth_RefreshGrant(t *testing.T) {
	sso := &fakeSSO{}
	srv := httptest.NewServer(sso)
	defer srv.Close()

	c := newTestClientWith(t, "http://hub.example/api/", JWTAuth{
		AuthURL:      srv.URL + "/token",
		RefreshToken: "offline-token",
		ClientID:     "my-client",
	}, Options{})

	assert.Equal(t, "Bearer jwt-1", c.AuthState().Header.Get("Authorization"))
	require.Len(t, sso.forms, 1)
	assert.Equal(t, "refresh_token", sso.forms[0]["grant_type"])
	assert.Equal(t, "offline-token", sso.forms[0]["refresh_token"])
	assert.Equal(t, "my-client", sso.forms[0]["client_id"])
}

func TestJWTAuth_MissingAccessToken(t *testing.T) {
	sso := &fakeSSO{noTok: true}
	srv := httptest.NewServer(sso)
	defer srv.Close()

	_, err := NewClient(context.Background(), "http://hub.example/api/", JWTAuth{
		AuthURL:      srv.URL + "/token",
		RefreshToken: "offline-token",
	}, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCredential)

	var credErr *CredentialError
	require.ErrorAs(t, err, &credErr)
	assert.Contains(t, credErr.Reason, "access_token")
	assert.Contains(t, credErr.Body, "account locked")
}

func TestJWTAuth_EndpointRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	_, err := NewClient(context.Background(), "http://hub.example/api/", JWTAuth{
		AuthURL: srv.URL, Username: "u", Password: "p",
	}, Options{})

	var credErr *CredentialError
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, http.StatusBadRequest, credErr.StatusCode)
	assert.Contains(t, credErr.Body, "invalid_grant")
}

// jwtAPI serves an API that accepts only the most recently issued token.
func jwtAPI(t *testing.T, sso *fakeSSO, calls *atomic.Int32, seen *[]string, mu *sync.Mutex) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		auth := r.Header.Get("Authorization")

		mu.Lock()
		*seen = append(*seen, auth)
		mu.Unlock()

		if auth != fmt.Sprintf("Bearer jwt-%d", sso.issued.Load()) || auth == "Bearer jwt-1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Invalid JWT token"}`))

			return
		}

		_, _ = w.Write([]byte(`{"ok":true}`))
	}
}

func TestDo_JWTRefreshAndReplay(t *testing.T) {
	sso := &fakeSSO{}
	ssoSrv := httptest.NewServer(sso)
	defer ssoSrv.Close()

	var (
		calls atomic.Int32
		mu    sync.Mutex
		seen  []string
	)

	api := httptest.NewServer(jwtAPI(t, sso, &calls, &seen, &mu))
	defer api.Close()

	c := newTestClientWith(t, api.URL+apiRoot, JWTAuth{
		AuthURL: ssoSrv.URL, Username: "u", Password: "p",
	}, Options{})

	var out map[string]bool
	require.NoError(t, c.Get(context.Background(), "v3/", &out))
	assert.True(t, out["ok"])

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []string{"Bearer jwt-1", "Bearer jwt-2"}, seen)
	assert.Equal(t, []string{"password", "refresh_token"}, sso.grantList())
	assert.Equal(t, "refresh-1", sso.forms[1]["refresh_token"])
	assert.Equal(t, "Bearer jwt-2", c.AuthState().Header.Get("Authorization"))
}

func TestDo_JWTRefreshOnlyOnce(t *testing.T) {
	sso := &fakeSSO{}
	ssoSrv := httptest.NewServer(sso)
	defer ssoSrv.Close()

	var calls atomic.Int32

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Invalid JWT token"}`))
	}))
	defer api.Close()

	c := newTestClientWith(t, api.URL+apiRoot, JWTAuth{
		AuthURL: ssoSrv.URL, Username: "u", Password: "p",
	}, Options{})

	err := c.Get(context.Background(), "v3/", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, int32(2), calls.Load())
	assert.Len(t, sso.grantList(), 2)
}

func TestDo_JWTConcurrentRefreshShared(t *testing.T) {
	sso := &fakeSSO{}
	ssoSrv := httptest.NewServer(sso)
	defer ssoSrv.Close()

	var (
		calls atomic.Int32
		mu    sync.Mutex
		seen  []string
	)

	api := httptest.NewServer(jwtAPI(t, sso, &calls, &seen, &mu))
	defer api.Close()

	c := newTestClientWith(t, api.URL+apiRoot, JWTAuth{
		AuthURL: ssoSrv.URL, Username: "u", Password: "p",
	}, Options{})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()
			assert.NoError(t, c.Get(context.Background(), "v3/", nil))
		}()
	}

	wg.Wait()

	// One initial password grant and exactly one refresh.
	assert.Equal(t, []string{"password", "refresh_token"}, sso.grantList())
}

func signedJWT(t *testing.T, exp time.Time) string {
	t.Helper()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix(), "sub": "u"})
	s, err := tok.SignedString([]byte("test-key"))
	require.NoError(t, err)

	return s
}

func TestJWTAuth_ExpiryFromClaimAndProactiveRefresh(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	exp := base.Add(5 * time.Minute)

	var grants atomic.Int32

	ssoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		grants.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  signedJWT(t, exp),
			"refresh_token": "r",
		})
	}))
	defer ssoSrv.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer api.Close()

	c := newTestClientWith(t, api.URL+apiRoot, JWTAuth{AuthURL: ssoSrv.URL, Username: "u", Password: "p"}, Options{})
	assert.True(t, c.AuthState().Expiry.Equal(time.Unix(exp.Unix(), 0)))

	now := base
	c.now = func() time.Time { return now }

	require.NoError(t, c.Get(context.Background(), "v3/", nil))
	assert.Equal(t, int32(1), grants.Load())

	now = exp.Add(-5 * time.Second)

	require.NoError(t, c.Get(context.Background(), "v3/", nil))
	assert.Equal(t, int32(2), grants.Load())
}

func TestAuthState_Stale(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		state AuthState
		want  bool
	}{
		{"token never stale", AuthState{Mode: ModeToken}, false},
		{"jwt unknown expiry", AuthState{Mode: ModeJWT}, false},
		{"jwt far expiry", AuthState{Mode: ModeJWT, Expiry: now.Add(time.Hour)}, false},
		{"jwt inside window", AuthState{Mode: ModeJWT, Expiry: now.Add(5 * time.Second)}, true},
		{"gateway unknown expiry", AuthState{Mode: ModeGateway}, true},
		{"gateway far expiry", AuthState{Mode: ModeGateway, Expiry: now.Add(time.Hour)}, false},
		{"gateway exactly at window", AuthState{Mode: ModeGateway, Expiry: now.Add(refreshWindow)}, true},
		{"gateway past expiry", AuthState{Mode: ModeGateway, Expiry: now.Add(-time.Minute)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.stale(now))
		})
	}
}

func TestAuthMode_String(t *testing.T) {
	assert.Equal(t, "anonymous", ModeAnonymous.String())
	assert.Equal(t, "gateway", ModeGateway.String())
	assert.Equal(t, "mode(42)", AuthMode(42).String())
}
