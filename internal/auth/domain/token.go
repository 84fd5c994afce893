package domain

import "time"

// TokenPair is what a successful OTP verification or refresh mints. The
// refresh token only ever leaves the server inside an http-only cookie.
type TokenPair struct {
	AccessToken      string
	AccessExpiresIn  time.Duration
	RefreshToken     string
	RefreshExpiresIn time.Duration
}
