package cryptox

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCodeCost is the bcrypt cost used for OTP digests.
const DefaultCodeCost = bcrypt.DefaultCost

// GenerateNumericCode returns a uniformly random string of the given number
// of decimal digits, left padded with zeros ("000000" to "999999" for 6).
func GenerateNumericCode(digits int) (string, error) {
	if digits <= 0 || digits > 18 {
		return "", fmt.Errorf("cryptox: unsupported code length %d", digits)
	}

	upper := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, upper)
	if err != nil {
		return "", fmt.Errorf("cryptox: generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}

// HashCode returns a salted bcrypt digest of a one-time code.
func HashCode(code string, cost int) (string, error) {
	if cost == 0 {
		cost = DefaultCodeCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(code), cost)
	if err != nil {
		return "", fmt.Errorf("cryptox: hash code: %w", err)
	}
	return string(b), nil
}

// CompareCode reports whether code matches the bcrypt digest.
func CompareCode(digest, code string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(code)) == nil
}
