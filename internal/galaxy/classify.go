package galaxy

import (
	"bytes"
	"net/http"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrorKind is the pipeline's reading of a structured errors[] payload.
type ErrorKind int

const (
	// KindOther is any structured error that is neither auth nor permission.
	KindOther ErrorKind = iota
	// KindPermission means the caller is authenticated but not allowed.
	KindPermission
	// KindAuth means the credential was rejected.
	KindAuth
)

// ResponseClassifier isolates the string matching the backend forces on
// clients. The retry control flow in Client only consults this interface.
type ResponseClassifier interface {
	// TokenExpired reports whether body carries the JWT expiry marker.
	TokenExpired(body []byte) bool

	// Errors extracts a non-empty top-level "errors" list.
	Errors(body []byte) ([]ErrorDetail, bool)

	// Kind classifies a structured error response.
	Kind(status int, details []ErrorDetail) ErrorKind

	// SessionExpiredDetail reports whether a detail-only 401/403 body asks
	// the client to log in again.
	SessionExpiredDetail(body []byte) bool

	// CSRFToken scrapes the CSRF token from a gateway login page.
	CSRFToken(page []byte) (string, bool)
}

// Backend markers.
const (
	invalidJWTMarker   = "Invalid JWT token"
	notProvidedMarker  = "Authentication credentials were not provided"
	jwtExpiredMarker   = "JWT has expired"
	codePermission     = "permission_denied"
	codeNotAuth        = "not_authenticated"
	codeAuthFailed     = "authentication_failed"
	csrfTokenCookie    = "csrftoken"
	gatewaySessionName = "gateway_sessionid"
)

// CSRFPattern is one known way a gateway release embeds its CSRF token.
type CSRFPattern struct {
	Name string
	Re   *regexp.Regexp
}

// DefaultCSRFPatterns lists the scrape patterns, newest release first.
// The first capture group must hold the token.
var DefaultCSRFPatterns = []CSRFPattern{
	{Name: "gateway-js", Re: regexp.MustCompile(`csrfToken:\s+?"(.+?)"`)},
	{Name: "django-form", Re: regexp.MustCompile(`name="csrfmiddlewaretoken"\s+value="(.+?)"`)},
	{Name: "meta-tag", Re: regexp.MustCompile(`<meta\s+name="csrf-token"\s+content="(.+?)"`)},
}

// DefaultClassifier implements ResponseClassifier for the markers the
// Galaxy NG and gateway backends emit today.
type DefaultClassifier struct {
	// CSRFPatterns overrides DefaultCSRFPatterns when non-empty.
	CSRFPatterns []CSRFPattern
}

// TokenExpired implements ResponseClassifier.
func (DefaultClassifier) TokenExpired(body []byte) bool {
	return bytes.Contains(body, []byte(invalidJWTMarker))
}

// Errors implements ResponseClassifier.
func (DefaultClassifier) Errors(body []byte) ([]ErrorDetail, bool) {
	list := gjson.GetBytes(body, "errors")
	if !list.IsArray() {
		return nil, false
	}

	entries := list.Array()
	if len(entries) == 0 {
		return nil, false
	}

	details := make([]ErrorDetail, 0, len(entries))
	for _, e := range entries {
		details = append(details, ErrorDetail{
			Status: e.Get("status").String(),
			Code:   e.Get("code").String(),
			Title:  e.Get("title").String(),
			Detail: e.Get("detail").String(),
		})
	}

	return details, true
}

// Kind implements ResponseClassifier. Only the first entry decides.
func (DefaultClassifier) Kind(status int, details []ErrorDetail) ErrorKind {
	var code string
	if len(details) > 0 {
		code = details[0].Code
	}

	switch {
	case strings.Contains(code, codePermission):
		return KindPermission
	case strings.Contains(code, codeNotAuth),
		strings.Contains(code, codeAuthFailed),
		status == http.StatusUnauthorized,
		status == http.StatusForbidden:
		return KindAuth
	default:
		return KindOther
	}
}

// SessionExpiredDetail implements ResponseClassifier.
func (DefaultClassifier) SessionExpiredDetail(body []byte) bool {
	detail := gjson.GetBytes(body, "detail")
	if detail.Type != gjson.String {
		return false
	}

	return strings.Contains(detail.Str, notProvidedMarker) ||
		strings.Contains(detail.Str, jwtExpiredMarker)
}

// CSRFToken implements ResponseClassifier.
func (d DefaultClassifier) CSRFToken(page []byte) (string, bool) {
	patterns := d.CSRFPatterns
	if len(patterns) == 0 {
		patterns = DefaultCSRFPatterns
	}

	for _, p := range patterns {
		if m := p.Re.FindSubmatch(page); len(m) > 1 {
			return string(m[1]), true
		}
	}

	return "", false
}
