package galaxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const gatewayLoginPath = "/api/gateway/v1/login/"

// gatewayOrigin returns scheme://host[:port] for a gateway root URL.
func gatewayOrigin(root string) (string, error) {
	u, err := url.Parse(root)
	if err != nil {
		return "", fmt.Errorf("galaxy: parsing gateway url %q: %w", root, err)
	}

	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("galaxy: gateway url %q must be absolute", root)
	}

	return u.Scheme + "://" + u.Host, nil
}

// gatewayLogin emulates the browser login: fetch the login page for a CSRF
// token, then post the credentials as multipart form data. Both requests
// share one cookie jar and redirects are not followed.
func (c *Client) gatewayLogin(ctx context.Context, cr GatewayAuth) (*AuthState, error) {
	origin, err := gatewayOrigin(cr.RootURL)
	if err != nil {
		return nil, err
	}

	loginURL := origin + gatewayLoginPath

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("galaxy: creating cookie jar: %w", err)
	}

	hc := &http.Client{
		Transport: c.httpClient.Transport,
		Timeout:   c.httpClient.Timeout,
		Jar:       jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	csrf, err := c.gatewayCSRF(ctx, hc, loginURL)
	if err != nil {
		return nil, err
	}

	form, contentType, err := gatewayForm(cr.Username, cr.Password)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, bytes.NewReader(form))
	if err != nil {
		return nil, fmt.Errorf("galaxy: creating gateway login request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Referer", origin+"/login")
	req.Header.Set("X-CSRFToken", csrf)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("galaxy: gateway login: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("galaxy: reading gateway login response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, &CredentialError{
			Mode:       ModeGateway.String(),
			StatusCode: resp.StatusCode,
			Reason:     "incorrect username or password",
			Body:       string(body),
			Err:        ErrUnauthorized,
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &CredentialError{
			Mode:       ModeGateway.String(),
			StatusCode: resp.StatusCode,
			Reason:     "gateway login rejected",
			Body:       string(body),
			Err:        classifyStatus(resp.StatusCode),
		}
	}

	return c.gatewayState(resp, jar, loginURL, csrf)
}

// gatewayCSRF fetches the login page and extracts the CSRF token, falling
// back to the csrftoken cookie when no scrape pattern matches.
func (c *Client) gatewayCSRF(ctx context.Context, hc *http.Client, loginURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loginURL, nil)
	if err != nil {
		return "", fmt.Errorf("galaxy: creating gateway page request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)

	resp, err := hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("galaxy: fetching gateway login page: %w", err)
	}
	defer resp.Body.Close()

	page, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("galaxy: reading gateway login page: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return "", &CredentialError{
			Mode:       ModeGateway.String(),
			StatusCode: resp.StatusCode,
			Reason:     "gateway login page unavailable",
			Body:       string(page),
			Err:        classifyStatus(resp.StatusCode),
		}
	}

	if token, ok := c.classifier.CSRFToken(page); ok {
		return token, nil
	}

	for _, ck := range resp.Cookies() {
		if ck.Name == csrfTokenCookie && ck.Value != "" {
			c.logger.Debug("CSRF token taken from cookie")
			return ck.Value, nil
		}
	}

	return "", &CredentialError{
		Mode:   ModeGateway.String(),
		Reason: "no CSRF token on gateway login page",
		Body:   string(page),
	}
}

// gatewayForm encodes username and password as multipart form fields.
func gatewayForm(username, password string) ([]byte, string, error) {
	var buf bytes.Buffer

	w := multipart.NewWriter(&buf)
	if err := w.SetBoundary(strings.ReplaceAll(uuid.NewString(), "-", "")); err != nil {
		return nil, "", fmt.Errorf("galaxy: setting multipart boundary: %w", err)
	}

	for _, f := range [][2]string{{"username", username}, {"password", password}} {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("galaxy: writing %s field: %w", f[0], err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("galaxy: closing multipart form: %w", err)
	}

	return buf.Bytes(), w.FormDataContentType(), nil
}

// gatewayState builds the cookie header set from the login response.
func (c *Client) gatewayState(resp *http.Response, jar *cookiejar.Jar, loginURL, scraped string) (*AuthState, error) {
	var (
		csrf, session string
		expiry        time.Time
	)

	for _, ck := range resp.Cookies() {
		switch ck.Name {
		case csrfTokenCookie:
			csrf = ck.Value
		case gatewaySessionName:
			session = ck.Value
			expiry = cookieExpiry(ck, c.now())
		}
	}

	if u, err := url.Parse(loginURL); err == nil {
		for _, ck := range jar.Cookies(u) {
			switch {
			case ck.Name == csrfTokenCookie && csrf == "":
				csrf = ck.Value
			case ck.Name == gatewaySessionName && session == "":
				session = ck.Value
			}
		}
	}

	if session == "" {
		return nil, &CredentialError{
			Mode:       ModeGateway.String(),
			StatusCode: resp.StatusCode,
			Reason:     "gateway login did not set " + gatewaySessionName,
		}
	}

	if csrf == "" {
		csrf = scraped
	}

	h := make(http.Header)
	h.Set("Accept", "application/json")
	h.Set("Cookie", fmt.Sprintf("%s=%s; %s=%s", csrfTokenCookie, csrf, gatewaySessionName, session))
	h.Set("X-CSRFToken", csrf)

	c.logger.Debug("gateway session established", slog.Time("expiry", expiry))

	return &AuthState{Mode: ModeGateway, Header: h, Expiry: expiry}, nil
}

func cookieExpiry(ck *http.Cookie, now time.Time) time.Time {
	if ck.MaxAge > 0 {
		return now.Add(time.Duration(ck.MaxAge) * time.Second)
	}

	if !ck.Expires.IsZero() {
		return ck.Expires
	}

	return time.Time{}
}
