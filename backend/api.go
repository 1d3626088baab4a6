package backend

import (
	"context"
)

// TokenGrant is the token shape returned by the login and refresh endpoints.
// ExpiresIn is the access token lifetime in seconds from the moment of issue.
type TokenGrant struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// LoginResult bundles the token grant with the identity payload the login
// endpoint returns alongside it. The payload is advisory; the authoritative
// user key is always the token's subject claim.
type LoginResult struct {
	TokenGrant
	User map[string]interface{} `json:"user,omitempty"`
}

// TenantInfo is the public tenant record used to resolve a slug to its
// backend-assigned id and canonical domain during a cross-tenant switch.
type TenantInfo struct {
	ID     string `json:"id"`
	Domain string `json:"domain"`
	AppID  string `json:"appId"`
}

// API is the backend collaborator the session layer talks to. Implementations
// must honour context cancellation on every call.
type API interface {
	// Login exchanges credentials for a token grant.
	Login(ctx context.Context, email, password string) (*LoginResult, error)

	// Refresh exchanges a refresh token for a new grant. A rejected refresh
	// token is a terminal condition for the session that held it.
	Refresh(ctx context.Context, refreshToken string) (*TokenGrant, error)

	// User fetches the identity payload for the bearer of accessToken.
	User(ctx context.Context, accessToken string) (map[string]interface{}, error)

	// TenantPublic resolves a tenant slug within an application.
	TenantPublic(ctx context.Context, appID, slug string) (*TenantInfo, error)
}
