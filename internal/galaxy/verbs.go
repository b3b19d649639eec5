package galaxy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Get issues a GET and decodes the JSON response into out (nil to discard).
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.call(ctx, http.MethodGet, path, nil, out)
}

// Post sends body as JSON and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, http.MethodPost, path, body, out)
}

// Put sends body as JSON and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, http.MethodPut, path, body, out)
}

// Patch sends body as JSON and decodes the response into out.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, http.MethodPatch, path, body, out)
}

// Delete issues a DELETE and decodes any JSON response into out.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.call(ctx, http.MethodDelete, path, nil, out)
}

// Options issues an OPTIONS request.
func (c *Client) Options(ctx context.Context, path string, out any) error {
	return c.call(ctx, http.MethodOptions, path, nil, out)
}

// GetRaw issues a GET without JSON decoding.
func (c *Client) GetRaw(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Raw: true})
}

// DeleteRaw issues a DELETE without JSON decoding. Most delete endpoints
// answer 204 with no body.
func (c *Client) DeleteRaw(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path, Raw: true})
}

// PostRaw sends body as JSON without decoding the response.
func (c *Client) PostRaw(ctx context.Context, path string, body any) (*Response, error) {
	data, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: data, Raw: true})
}

// PatchRaw sends body as JSON without decoding the response.
func (c *Client) PatchRaw(ctx context.Context, path string, body any) (*Response, error) {
	data, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	return c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: data, Raw: true})
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	data, err := encodeBody(body)
	if err != nil {
		return err
	}

	resp, err := c.Do(ctx, &Request{Method: method, Path: path, Body: data})
	if err != nil {
		return err
	}

	return resp.Decode(out)
}

// encodeBody marshals body to JSON. []byte and json.RawMessage pass
// through; nil means no body.
func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("galaxy: encoding request body: %w", err)
		}

		return data, nil
	}
}
