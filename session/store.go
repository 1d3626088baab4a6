package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-identity-client/storage"
	"github.com/jrsteele09/go-identity-client/token"
)

const (
	tokenKey        = "token"
	refreshTokenKey = "refreshToken"
	tokenExpiryKey  = "tokenExpiry"
	userKey         = "user"
)

// Store persists the token triple and cached user identity through the
// key-value collaborator. Keys are scoped by application id, and by tenant
// slug when one is set, so two tenants on the same device never read each
// other's credentials.
//
// Writes are last-writer-wins; there is no coordination between concurrent
// writers (e.g. multiple tabs sharing one persistent store).
type Store struct {
	kv         storage.KV
	appID      string
	tenantSlug string
}

func NewStore(kv storage.KV, appID, tenantSlug string) (*Store, error) {
	if kv == nil {
		return nil, errors.New("[NewStore] kv is required")
	}
	if appID == "" {
		return nil, errors.New("[NewStore] appID is required")
	}
	return &Store{kv: kv, appID: appID, tenantSlug: tenantSlug}, nil
}

// key builds "{appId}_{name}" or the tenant-scoped "{appId}_{slug}_{name}".
func (s *Store) key(name string) string {
	if s.tenantSlug == "" {
		return s.appID + "_" + name
	}
	return s.appID + "_" + s.tenantSlug + "_" + name
}

// SaveTriple persists all three parts of the triple.
func (s *Store) SaveTriple(ctx context.Context, t token.Triple) error {
	if err := s.kv.Set(ctx, s.key(tokenKey), t.AccessToken); err != nil {
		return errors.Wrap(err, "[Store.SaveTriple] set token")
	}
	if err := s.kv.Set(ctx, s.key(refreshTokenKey), t.RefreshToken); err != nil {
		return errors.Wrap(err, "[Store.SaveTriple] set refresh token")
	}
	if err := s.kv.Set(ctx, s.key(tokenExpiryKey), t.ExpiresAt.Format(time.RFC3339)); err != nil {
		return errors.Wrap(err, "[Store.SaveTriple] set expiry")
	}
	return nil
}

// LoadTriple returns the persisted triple, or nil when none is stored.
func (s *Store) LoadTriple(ctx context.Context) (*token.Triple, error) {
	accessToken, _, err := s.kv.Get(ctx, s.key(tokenKey))
	if err != nil {
		return nil, errors.Wrap(err, "[Store.LoadTriple] get token")
	}
	refreshToken, _, err := s.kv.Get(ctx, s.key(refreshTokenKey))
	if err != nil {
		return nil, errors.Wrap(err, "[Store.LoadTriple] get refresh token")
	}
	if accessToken == "" && refreshToken == "" {
		return nil, nil
	}

	expiry, _, err := s.kv.Get(ctx, s.key(tokenExpiryKey))
	if err != nil {
		return nil, errors.Wrap(err, "[Store.LoadTriple] get expiry")
	}
	expiresAt, err := time.Parse(time.RFC3339, expiry)
	if err != nil {
		// Corrupt expiry: treat the access token as already lapsed so the
		// refresh path decides whether the session is still usable.
		expiresAt = time.Time{}
	}

	return &token.Triple{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}

// SaveUser persists the cached user identity.
func (s *Store) SaveUser(ctx context.Context, user *User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "[Store.SaveUser] json.Marshal")
	}
	if err := s.kv.Set(ctx, s.key(userKey), string(raw)); err != nil {
		return errors.Wrap(err, "[Store.SaveUser] set user")
	}
	return nil
}

// LoadUser returns the persisted user, or nil when none is stored.
func (s *Store) LoadUser(ctx context.Context) (*User, error) {
	raw, ok, err := s.kv.Get(ctx, s.key(userKey))
	if err != nil {
		return nil, errors.Wrap(err, "[Store.LoadUser] get user")
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var user User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, errors.Wrap(err, "[Store.LoadUser] json.Unmarshal")
	}
	return &user, nil
}

// ClearUser removes the cached user only.
func (s *Store) ClearUser(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.key(userKey)); err != nil {
		return errors.Wrap(err, "[Store.ClearUser] delete user")
	}
	return nil
}

// Clear removes everything the store holds for this (app, tenant) scope.
// Clearing an already-empty store is a no-op.
func (s *Store) Clear(ctx context.Context) error {
	for _, name := range []string{tokenKey, refreshTokenKey, tokenExpiryKey, userKey} {
		if err := s.kv.Delete(ctx, s.key(name)); err != nil {
			return errors.Wrapf(err, "[Store.Clear] delete %s", name)
		}
	}
	return nil
}
