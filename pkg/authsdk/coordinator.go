package authsdk

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ErrNotLoggedIn is returned by a bearer call when the session has no token
// and no refresh cookie could produce one.
var ErrNotLoggedIn = errors.New("authsdk: not logged in")

// DefaultExemptPaths answer 401 as a normal outcome and must never trigger a
// refresh.
var DefaultExemptPaths = []string{
	"/login",
	"/register",
	"/verify-otp",
	"/resend-otp",
	"/forgot-password",
	"/reset-password",
	"/refresh",
}

// Request is a bearer-authenticated call. Body is JSON encoded once so the
// request can be replayed after a refresh.
type Request struct {
	Method string
	Path   string
	Body   any
	Header http.Header
}

// Coordinator attaches the session's access token to requests and silently
// refreshes it on a 401. At most one refresh is in flight per Session, other
// requests that hit a 401 meanwhile queue behind it and are released in
// order once it settles. Every request is retried at most once.
type Coordinator struct {
	Client  *Client
	Session *Session

	// Exempt paths are sent as-is and their 401s returned untouched.
	Exempt []string

	// OnAuthFailure, if set, is called once for every refresh that fails,
	// never once per queued request.
	OnAuthFailure func(error)
}

// NewCoordinator returns a coordinator with DefaultExemptPaths.
func NewCoordinator(client *Client, session *Session) *Coordinator {
	return &Coordinator{
		Client:  client,
		Session: session,
		Exempt:  DefaultExemptPaths,
	}
}

func (c *Coordinator) exempt(path string) bool {
	path, _, _ = strings.Cut(path, "?")
	for _, p := range c.Exempt {
		if path == p {
			return true
		}
	}
	return false
}

// Do sends req with the current access token. A 401 from a non-exempt path
// leads to one refresh and one retry. The caller owns the returned response
// body. A response that is still 401 after the retry is returned as final.
func (c *Coordinator) Do(ctx context.Context, req Request) (*http.Response, error) {
	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	token := c.Session.AccessToken()
	resp, err := c.Client.doRequest(ctx, req.Method, req.Path, body, token, req.Header)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || c.exempt(req.Path) {
		return resp, nil
	}
	drain(resp)

	fresh, err := c.renew(ctx, token)
	if err != nil {
		return nil, err
	}
	return c.Client.doRequest(ctx, req.Method, req.Path, body, fresh, req.Header)
}

// renew returns a token newer than stale, refreshing only when no other
// request already did or is doing so.
func (c *Coordinator) renew(ctx context.Context, stale string) (string, error) {
	token, wait, lead := c.Session.begin(stale)
	switch {
	case wait != nil:
		select {
		case r := <-wait:
			return r.token, r.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	case !lead:
		return token, nil
	}

	// The refresh outlives the leader's context, waiters depend on it.
	out, err := c.Client.Refresh(context.WithoutCancel(ctx))
	if err != nil {
		if IsCode(err, CodeUnauthorized) {
			err = errors.Join(ErrNotLoggedIn, err)
		}
		c.Session.settle("", err)
		if c.OnAuthFailure != nil {
			c.OnAuthFailure(err)
		}
		return "", err
	}

	c.Session.settle(out.AccessToken, nil)
	return out.AccessToken, nil
}

// call runs Do and decodes a 200 into out.
func (c *Coordinator) call(ctx context.Context, method, path string, in, out any) error {
	resp, err := c.Do(ctx, Request{Method: method, Path: path, Body: in})
	if err != nil {
		return err
	}
	return decodeJSON(resp, out, http.StatusOK)
}

// VerifyOTP completes a login and stores the access token in the session.
func (c *Coordinator) VerifyOTP(ctx context.Context, email, code, otpID string) (*LoginResponse, error) {
	out, err := c.Client.VerifyOTP(ctx, email, code, otpID)
	if err != nil {
		return nil, err
	}
	c.Session.SetAccessToken(out.AccessToken)
	return out, nil
}

// Logout clears the session even when the server cannot be reached. The
// transport error is still returned.
func (c *Coordinator) Logout(ctx context.Context) error {
	err := c.Client.Logout(ctx)
	c.Session.Clear()
	return err
}
