package credential

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var errNoExpiration = errors.New("response carries no expiration")

// maxExpiresIn is the largest lifetime in seconds a time.Duration can hold.
const maxExpiresIn = math.MaxInt64 / int64(time.Second)

// tokenResponse is the body returned by the credential endpoint.
type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	TokenID     string `json:"tokenId,omitempty"`
	Expiration  string `json:"expiration,omitempty"`
	ExpiresIn   int64  `json:"expiresIn,omitempty"`
}

// expiration resolves the absolute expiry of a response, in order of
// preference: the explicit timestamp, the relative lifetime, the token's
// own exp claim.
func (r tokenResponse) expiration(receivedAt time.Time) (time.Time, error) {
	if r.Expiration != "" {
		t, err := time.Parse(time.RFC3339, r.Expiration)
		if err != nil {
			return time.Time{}, err
		}
		return t, nil
	}

	if r.ExpiresIn > maxExpiresIn {
		return time.Time{}, fmt.Errorf("expiresIn %d out of range", r.ExpiresIn)
	}
	if r.ExpiresIn > 0 {
		return receivedAt.Add(time.Duration(r.ExpiresIn) * time.Second), nil
	}

	if exp, ok := jwtExpiry(r.AccessToken); ok {
		return exp, nil
	}

	return time.Time{}, errNoExpiration
}

// jwtExpiry reads the exp claim without verifying the signature. The
// fetcher only needs a scheduling hint; the embedding surface validates the
// token itself.
func jwtExpiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
