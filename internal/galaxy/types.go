package galaxy

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Page is the envelope of _ui/v1 and v3 list endpoints.
type Page[T any] struct {
	Meta struct {
		Count int `json:"count"`
	} `json:"meta"`
	Links map[string]any `json:"links"`
	Data  []T            `json:"data"`
}

// PulpPage is the envelope of pulp/api/v3 list endpoints.
type PulpPage[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// Record is a loosely typed API object, used where callers only print or
// forward the document.
type Record map[string]any

// String returns the string form of key, or "" when absent.
func (r Record) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}

	if s, ok := v.(string); ok {
		return s
	}

	return fmt.Sprint(v)
}

var uuidSegment = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

// PulpHrefToID returns the first UUID path segment of a pulp href, or ""
// when there is none. A bare UUID is returned unchanged.
func PulpHrefToID(href string) string {
	for _, section := range strings.Split(href, "/") {
		if uuidSegment.MatchString(section) {
			return section
		}
	}

	return ""
}

// query builds "?k=v&..." from alternating key/value pairs.
func query(kv ...string) string {
	v := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		v.Add(kv[i], kv[i+1])
	}

	return "?" + v.Encode()
}

// notFound wraps ErrNotFound with a resource description.
func notFound(kind, name string) error {
	return fmt.Errorf("%w: no %s %q", ErrNotFound, kind, name)
}
