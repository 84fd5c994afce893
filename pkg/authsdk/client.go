package authsdk

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"
)

// Client is a client for the otpgate authentication service. It covers the
// unauthenticated endpoints. Bearer-authenticated calls go through a
// Coordinator so expired access tokens are refreshed transparently.
//
// The refresh token never leaves the HTTP client's cookie jar.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client with its own cookie jar.
func NewClient(baseURL string) *Client {
	jar, _ := cookiejar.New(nil) // only fails with a non-nil Options
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
			Jar:     jar,
		},
	}
}

// Login submits credentials. On success an OTP has been emailed.
func (c *Client) Login(ctx context.Context, email, password string) (*OTPChallengeResponse, error) {
	return c.challenge(ctx, "/login", CredentialsRequest{Email: email, Password: password})
}

// ResendOTP re-submits credentials for a fresh login OTP.
func (c *Client) ResendOTP(ctx context.Context, email, password string) (*OTPChallengeResponse, error) {
	return c.challenge(ctx, "/resend-otp", CredentialsRequest{Email: email, Password: password})
}

// ForgotPassword requests a password reset OTP.
func (c *Client) ForgotPassword(ctx context.Context, email string) (*OTPChallengeResponse, error) {
	return c.challenge(ctx, "/forgot-password", ForgotPasswordRequest{Email: email})
}

func (c *Client) challenge(ctx context.Context, path string, req any) (*OTPChallengeResponse, error) {
	var out OTPChallengeResponse
	resp, err := c.postJSON(ctx, path, req, &out)
	if err != nil {
		return nil, err
	}
	out.DevCode = resp.Header.Get(devCodeHeader)
	return &out, nil
}

// Register creates an account. An OTP has been emailed on success.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	var out RegisterResponse
	resp, err := c.postJSON(ctx, "/register", req, &out)
	if err != nil {
		return nil, err
	}
	out.DevCode = resp.Header.Get(devCodeHeader)
	return &out, nil
}

// VerifyOTP completes a login. The refresh cookie lands in the cookie jar.
// otpID may be empty.
func (c *Client) VerifyOTP(ctx context.Context, email, code, otpID string) (*LoginResponse, error) {
	var out LoginResponse
	if _, err := c.postJSON(ctx, "/verify-otp", VerifyOTPRequest{Email: email, Code: code, OTPID: otpID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetPassword sets a new password using a reset OTP.
func (c *Client) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	_, err := c.postJSON(ctx, "/reset-password", req, nil)
	return err
}

// Refresh exchanges the refresh cookie for a new access token. It is a plain
// request and never itself triggers a refresh.
func (c *Client) Refresh(ctx context.Context) (*RefreshResponse, error) {
	var out RefreshResponse
	if _, err := c.postJSON(ctx, "/refresh", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout asks the server to clear the refresh cookie.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.postJSON(ctx, "/logout", nil, nil)
	return err
}
