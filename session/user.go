package session

import (
	"time"

	"github.com/jrsteele09/go-identity-client/internal/utils"
)

// User is the cached identity of the session holder. The ID always comes
// from the access token's subject claim; Claims is the identity payload the
// backend returned alongside it.
type User struct {
	ID        string                 `json:"id"`
	Claims    map[string]interface{} `json:"claims,omitempty"`
	FetchedAt time.Time              `json:"fetchedAt"`
}

// Fresh reports whether the cached entry is still inside its TTL.
func (u *User) Fresh(now time.Time, ttl time.Duration) bool {
	if u == nil {
		return false
	}
	return now.Sub(u.FetchedAt) < ttl
}

// Type returns the user's type/role discriminator claim, if present.
func (u *User) Type() string {
	if u == nil {
		return ""
	}
	if t, ok := u.Claims["userType"].(string); ok {
		return t
	}
	return ""
}

// Permissions returns the user's permission strings, if present.
func (u *User) Permissions() []string {
	if u == nil {
		return nil
	}
	if perms, ok := u.Claims["permissions"].([]any); ok {
		return utils.ToStringSlice(perms)
	}
	return nil
}
