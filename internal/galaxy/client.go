package galaxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/tidwall/gjson"
)

// Retry budgets. Neither retry class backs off.
const (
	gatewayTimeoutAttempts = 3
	gatewayReplayAttempts  = 2
	defaultUserAgent       = "galaxykit-go"
	jsonContentType        = "application/json;charset=utf-8"
)

var (
	errGatewayTimeout = errors.New("gateway timeout")
	errReplayRejected = errors.New("replay rejected")
)

// Options configures a Client. The zero value is usable.
type Options struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
	UserAgent  string
	Classifier ResponseClassifier
	Polling    Polling
}

// Client is an authenticated session against one Galaxy NG API root.
// It is safe for concurrent use; credential refreshes are serialized and
// swap the AuthState under a lock.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string
	classifier ResponseClassifier
	polling    Polling
	cred       Credential

	mu      sync.Mutex
	auth    *AuthState
	version string

	refreshMu sync.Mutex

	// sleepFunc waits between polls and replays. Tests override it.
	sleepFunc func(ctx context.Context, d time.Duration) error
	now       func() time.Time
}

// NewClient resolves cred against baseURL and returns a ready session.
// With GatewayAuth the API root becomes {gateway}/api/galaxy/.
func NewClient(ctx context.Context, baseURL string, cred Credential, opts Options) (*Client, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	if opts.Classifier == nil {
		opts.Classifier = DefaultClassifier{}
	}

	if opts.Polling == (Polling{}) {
		opts.Polling = DefaultPolling()
	}

	if gw, ok := cred.(GatewayAuth); ok {
		root := gw.RootURL
		if root == "" {
			root = baseURL
		}

		origin, err := gatewayOrigin(root)
		if err != nil {
			return nil, err
		}

		gw.RootURL = origin
		cred = gw
		baseURL = origin + "/api/galaxy/"
	}

	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL:    base,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		userAgent:  opts.UserAgent,
		classifier: opts.Classifier,
		polling:    opts.Polling,
		cred:       cred,
		sleepFunc:  timeSleep,
		now:        time.Now,
	}

	state, err := c.resolve(ctx, cred)
	if err != nil {
		return nil, err
	}

	c.setAuthState(state)

	c.logger.Debug("galaxy session ready",
		slog.String("base_url", base.String()),
		slog.String("mode", state.Mode.String()),
	)

	return c, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(raw, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("galaxy: parsing server url %q: %w", raw, err)
	}

	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("galaxy: server url %q must be absolute", raw)
	}

	return u, nil
}

// BaseURL returns the API root the client resolves relative paths against.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Polling returns the polling tunables in effect.
func (c *Client) Polling() Polling {
	return c.polling
}

// AuthState returns a snapshot of the current credential material.
func (c *Client) AuthState() AuthState {
	s := c.authState()
	cp := *s
	cp.Header = s.Header.Clone()

	return cp
}

func (c *Client) authState() *AuthState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.auth
}

func (c *Client) setAuthState(s *AuthState) {
	c.mu.Lock()
	c.auth = s
	c.mu.Unlock()
}

// Request is one logical API call. Raw skips JSON decoding; only the status
// checks and the gateway-cookie replay apply.
type Request struct {
	Method string
	Path   string
	Body   []byte
	Header http.Header
	Raw    bool
}

// Response is a fully read API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
}

// Decode unmarshals the body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if v == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}

	if err := json.Unmarshal(r.Body, v); err != nil {
		return &ResponseFormatError{StatusCode: r.StatusCode, URL: r.URL, Body: string(r.Body), Err: err}
	}

	return nil
}

// JSON returns the body as a gjson result for ad-hoc field access.
func (r *Response) JSON() gjson.Result {
	return gjson.ParseBytes(r.Body)
}

// Do executes req: proactive refresh, URL resolution, 504 retry, JWT replay
// and structured error classification.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if err := c.ensureFresh(ctx); err != nil {
		return nil, err
	}

	target, err := c.resolveURL(req.Path)
	if err != nil {
		return nil, err
	}

	state := c.authState()

	resp, err := c.send(ctx, req, target, state)
	if err != nil {
		return nil, err
	}

	if state.Mode == ModeJWT && c.classifier.TokenExpired(resp.Body) {
		c.logger.Warn("JWT rejected, refreshing and replaying",
			slog.String("method", req.Method),
			slog.String("url", target),
		)

		state, err = c.refresh(ctx, state)
		if err != nil {
			return nil, err
		}

		resp, err = c.send(ctx, req, target, state)
		if err != nil {
			return nil, err
		}

		if c.classifier.TokenExpired(resp.Body) {
			return nil, c.apiError(req, target, resp, nil, ErrAuth)
		}
	}

	return c.interpret(ctx, req, target, resp, state, true)
}

// interpret maps a response to a result or typed error. allowReplay is false
// for responses that came from a gateway replay.
func (c *Client) interpret(
	ctx context.Context, req *Request, target string, resp *Response, state *AuthState, allowReplay bool,
) (*Response, error) {
	canReplay := allowReplay && state.gatewaySession()

	if req.Raw {
		if resp.StatusCode == http.StatusUnauthorized && canReplay {
			return c.replayGateway(ctx, req, target, state)
		}

		if resp.StatusCode >= http.StatusBadRequest {
			return nil, c.apiError(req, target, resp, nil, ErrAPI)
		}

		return resp, nil
	}

	if len(bytes.TrimSpace(resp.Body)) == 0 {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, c.apiError(req, target, resp, nil, ErrAPI)
		}

		return resp, nil
	}

	if !gjson.ValidBytes(resp.Body) {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, c.apiError(req, target, resp, nil, ErrAPI)
		}

		c.logger.Error("cannot parse expected JSON response",
			slog.String("url", target),
			slog.Int("status", resp.StatusCode),
		)

		return nil, &ResponseFormatError{StatusCode: resp.StatusCode, URL: target, Body: string(resp.Body)}
	}

	if details, ok := c.classifier.Errors(resp.Body); ok {
		switch c.classifier.Kind(resp.StatusCode, details) {
		case KindPermission:
			return nil, c.apiError(req, target, resp, details, ErrPermission)
		case KindAuth:
			if canReplay {
				return c.replayGateway(ctx, req, target, state)
			}

			return nil, c.apiError(req, target, resp, details, ErrAuth)
		default:
			return nil, c.apiError(req, target, resp, details, ErrAPI)
		}
	}

	if (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) &&
		c.classifier.SessionExpiredDetail(resp.Body) {
		if canReplay {
			c.logger.Debug("session expired, logging in again", slog.String("url", target))
			return c.replayGateway(ctx, req, target, state)
		}

		return nil, c.apiError(req, target, resp, nil, ErrAuth)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, c.apiError(req, target, resp, nil, ErrAPI)
	}

	return resp, nil
}

// replayGateway logs in again and resends req, up to gatewayReplayAttempts
// times with the onetime delay between attempts. The first response below
// 400 wins; whatever comes back is interpreted with replay disabled.
func (c *Client) replayGateway(ctx context.Context, req *Request, target string, used *AuthState) (*Response, error) {
	var (
		last      *Response
		lastState = used
		fatal     error
	)

	err := retry.Do(
		func() error {
			c.logger.Debug("reloading gateway session", slog.String("url", target))

			state, err := c.refresh(ctx, lastState)
			if err != nil {
				fatal = err
				return retry.Unrecoverable(err)
			}

			lastState = state

			resp, err := c.send(ctx, req, target, state)
			if err != nil {
				fatal = err
				return retry.Unrecoverable(err)
			}

			last = resp
			if resp.StatusCode >= http.StatusBadRequest {
				c.logger.Debug("replay after gateway login rejected",
					slog.Int("status", resp.StatusCode),
					slog.String("body", truncate(string(resp.Body), maxErrorBody)),
				)

				return errReplayRejected
			}

			return nil
		},
		retry.Attempts(gatewayReplayAttempts),
		retry.Delay(c.polling.Onetime),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.WithTimer(sleepTimer{ctx: ctx, sleep: c.sleepFunc}),
	)

	if fatal != nil {
		return nil, fatal
	}

	if last == nil {
		return nil, fmt.Errorf("galaxy: gateway replay of %s %s: %w", req.Method, target, err)
	}

	return c.interpret(ctx, req, target, last, lastState, false)
}

// ensureFresh renews the session before the request when the tracked
// expiry is within refreshWindow.
func (c *Client) ensureFresh(ctx context.Context) error {
	state := c.authState()
	if !state.stale(c.now()) {
		return nil
	}

	c.logger.Debug("proactive session refresh", slog.String("mode", state.Mode.String()))

	_, err := c.refresh(ctx, state)

	return err
}

// refresh re-runs the credential exchange for stale and installs the result.
// Concurrent callers holding the same stale state share one refresh.
func (c *Client) refresh(ctx context.Context, stale *AuthState) (*AuthState, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	if cur := c.authState(); cur != stale {
		return cur, nil
	}

	var (
		next *AuthState
		err  error
	)

	switch cr := c.cred.(type) {
	case JWTAuth:
		refreshToken := stale.RefreshToken
		if refreshToken == "" {
			refreshToken = cr.RefreshToken
		}

		next, err = c.jwtExchange(ctx, cr, refreshToken)
	case GatewayAuth:
		next, err = c.gatewayLogin(ctx, cr)
	default:
		return nil, fmt.Errorf("galaxy: %s sessions cannot be refreshed: %w", stale.Mode, ErrAuth)
	}

	if err != nil {
		return nil, err
	}

	c.setAuthState(next)

	return next, nil
}

// resolveURL joins path onto the API root. Paths starting with "/" resolve
// against the host root; absolute URLs pass through.
func (c *Client) resolveURL(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("galaxy: parsing path %q: %w", path, err)
	}

	return c.baseURL.ResolveReference(ref).String(), nil
}

// send issues req with state's headers, retrying 504 responses without
// delay. Transport errors are returned as-is.
func (c *Client) send(ctx context.Context, req *Request, target string, state *AuthState) (*Response, error) {
	var (
		resp   *Response
		netErr error
	)

	attempt := 0

	err := retry.Do(
		func() error {
			attempt++

			r, err := c.doOnce(ctx, req, target, state)
			if err != nil {
				netErr = err
				return retry.Unrecoverable(err)
			}

			resp = r
			if r.StatusCode == http.StatusGatewayTimeout {
				c.logger.Debug("504 gateway timeout, retrying",
					slog.String("method", req.Method),
					slog.String("url", target),
					slog.Int("attempt", attempt),
				)

				return errGatewayTimeout
			}

			return nil
		},
		retry.Attempts(gatewayTimeoutAttempts),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)

	if netErr != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("galaxy: request canceled: %w", ctx.Err())
		}

		return nil, fmt.Errorf("galaxy: %s %s: %w", req.Method, target, netErr)
	}

	if err != nil {
		if resp == nil || resp.StatusCode != http.StatusGatewayTimeout {
			return nil, fmt.Errorf("galaxy: %s %s: %w", req.Method, target, err)
		}

		c.logger.Warn("giving up after repeated gateway timeouts",
			slog.String("method", req.Method),
			slog.String("url", target),
			slog.Int("attempts", attempt),
		)

		return nil, c.apiError(req, target, resp, nil, ErrAPI)
	}

	return resp, nil
}

// doOnce executes a single HTTP request and reads the whole body.
func (c *Client) doOnce(ctx context.Context, req *Request, target string, state *AuthState) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for k, v := range state.Header {
		httpReq.Header[k] = append([]string(nil), v...)
	}

	httpReq.Header.Set("User-Agent", c.userAgent)

	if req.Body != nil {
		httpReq.Header.Set("Content-Type", jsonContentType)
	}

	for k, v := range req.Header {
		httpReq.Header[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
	}

	c.logger.Debug("request",
		slog.String("method", method),
		slog.String("url", target),
		slog.Int("body_bytes", len(req.Body)),
	)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	c.logger.Debug("response",
		slog.String("method", method),
		slog.String("url", target),
		slog.Int("status", httpResp.StatusCode),
	)

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
		URL:        target,
	}, nil
}

func (c *Client) apiError(req *Request, target string, resp *Response, details []ErrorDetail, category error) *APIError {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Method:     method,
		URL:        target,
		Body:       string(resp.Body),
		Errors:     details,
		Err:        category,
	}
}

// sleepTimer adapts sleepFunc to retry-go's Timer so replay delays honor
// the same test hook as polling.
type sleepTimer struct {
	ctx   context.Context //nolint:containedctx // scoped to one retry.Do call
	sleep func(ctx context.Context, d time.Duration) error
}

func (t sleepTimer) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	_ = t.sleep(t.ctx, d) // cancellation is observed by retry.Context
	ch <- time.Now()

	return ch
}

// timeSleep waits for the given duration or until the context is canceled.
// It is the default sleepFunc for Client.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
