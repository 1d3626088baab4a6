package token

import (
	"time"
)

// Triple holds the bearer credentials for one authenticated session: the
// short-lived access token, the refresh token used to renew it, and the
// absolute expiry of the access token.
//
// ExpiresAt is fixed at assignment time from issuedAt + expiresIn and is
// never recomputed afterwards. A triple whose expiry is already in the past
// is legal; it simply forces the refresh path on first use.
type Triple struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// NewTriple builds a Triple from a token grant. expiresIn is the lifetime in
// seconds as reported by the backend; it may be zero or negative.
func NewTriple(accessToken, refreshToken string, expiresIn int64, issuedAt time.Time) Triple {
	return Triple{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    issuedAt.Add(time.Duration(expiresIn) * time.Second),
	}
}

// IsZero reports whether the triple carries no credentials at all.
func (t Triple) IsZero() bool {
	return t.AccessToken == "" && t.RefreshToken == ""
}

// ExpiresWithin reports whether the access token expires before now+margin.
func (t Triple) ExpiresWithin(now time.Time, margin time.Duration) bool {
	return !t.ExpiresAt.After(now.Add(margin))
}

// Expired reports whether the access token has lapsed.
func (t Triple) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// Refreshable reports whether a refresh token is present.
func (t Triple) Refreshable() bool {
	return t.RefreshToken != ""
}
