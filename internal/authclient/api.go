package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const (
	pathMe     = "/api/v1/me"
	pathLogin  = "/api/v1/login"
	pathSignup = "/api/v1/signup"
	pathLogout = "/api/v1/logout"

	maxErrorBody = 64 << 10
)

type userEnvelope struct {
	User *User `json:"user"`
}

type errorBody struct {
	Error  string              `json:"error"`
	Errors map[string][]string `json:"errors"`
}

// do sends a JSON request and decodes a JSON response into out. Transport
// failures become KindNetwork, non-2xx responses KindHTTP. A cancelled
// ctx is returned as ctx.Err() so callers can tell it from a network error.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("authclient: encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("authclient: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &Error{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httpError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return &Error{Kind: KindHTTP, Status: resp.StatusCode, Message: "malformed response", Err: err}
	}
	return nil
}

func httpError(resp *http.Response) *Error {
	e := &Error{Kind: KindHTTP, Status: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var b errorBody
	if json.Unmarshal(raw, &b) == nil {
		e.Message = b.Error
		e.Fields = b.Errors
	}
	return e
}
