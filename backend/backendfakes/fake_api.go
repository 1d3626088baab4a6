package backendfakes

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jrsteele09/go-identity-client/backend"
	clienterrors "github.com/jrsteele09/go-identity-client/internal/errors"
)

var _ backend.API = (*FakeAPI)(nil)

var fakeSigningKey = []byte("fake-backend-signing-key")

// FakeAPI is an in-memory backend collaborator. It mints real (HS256-signed)
// JWTs so that subject extraction behaves as it does against a live backend,
// and counts calls per endpoint so tests can assert on refresh traffic.
type FakeAPI struct {
	lock sync.Mutex

	subject      string
	userPayload  map[string]interface{}
	tenants      map[string]*backend.TenantInfo // keyed by appID+"/"+slug
	validRefresh map[string]struct{}
	expiresIn    int64
	refreshDelay time.Duration
	failRefresh  bool
	loginCalls   int
	refreshCalls int
	userCalls    int
	nowFunc      func() time.Time
}

func NewFakeAPI(subject string) *FakeAPI {
	return &FakeAPI{
		subject:      subject,
		userPayload:  map[string]interface{}{"id": subject},
		tenants:      make(map[string]*backend.TenantInfo),
		validRefresh: make(map[string]struct{}),
		expiresIn:    3600,
		nowFunc:      time.Now,
	}
}

// SetExpiresIn controls the lifetime of minted grants. Negative values mint
// pre-expired tokens.
func (f *FakeAPI) SetExpiresIn(seconds int64) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.expiresIn = seconds
}

// SetRefreshDelay makes every refresh call block, so tests can pile up
// concurrent callers on one in-flight refresh.
func (f *FakeAPI) SetRefreshDelay(d time.Duration) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.refreshDelay = d
}

// SetFailRefresh makes subsequent refresh calls fail with a 401.
func (f *FakeAPI) SetFailRefresh(fail bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.failRefresh = fail
}

// SetUserPayload replaces the identity payload returned by User.
func (f *FakeAPI) SetUserPayload(payload map[string]interface{}) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.userPayload = payload
}

// AddTenant registers a tenant for TenantPublic lookups.
func (f *FakeAPI) AddTenant(appID, slug string, info *backend.TenantInfo) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.tenants[appID+"/"+slug] = info
}

func (f *FakeAPI) LoginCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.loginCalls
}

func (f *FakeAPI) RefreshCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.refreshCalls
}

func (f *FakeAPI) UserCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.userCalls
}

func (f *FakeAPI) Login(ctx context.Context, email, password string) (*backend.LoginResult, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.loginCalls++
	grant := f.mintGrantLocked()
	return &backend.LoginResult{
		TokenGrant: *grant,
		User:       f.userPayload,
	}, nil
}

func (f *FakeAPI) Refresh(ctx context.Context, refreshToken string) (*backend.TokenGrant, error) {
	f.lock.Lock()
	f.refreshCalls++
	delay := f.refreshDelay
	fail := f.failRefresh
	_, known := f.validRefresh[refreshToken]
	f.lock.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if fail || !known {
		return nil, &clienterrors.HTTPStatusError{StatusCode: 401, Body: `{"error":"invalid refresh token"}`}
	}

	f.lock.Lock()
	defer f.lock.Unlock()
	delete(f.validRefresh, refreshToken)
	return f.mintGrantLocked(), nil
}

func (f *FakeAPI) User(ctx context.Context, accessToken string) (map[string]interface{}, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.userCalls++
	return f.userPayload, nil
}

func (f *FakeAPI) TenantPublic(ctx context.Context, appID, slug string) (*backend.TenantInfo, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	info, ok := f.tenants[appID+"/"+slug]
	if !ok {
		return nil, &clienterrors.HTTPStatusError{StatusCode: 404, Body: `{"error":"tenant not found"}`}
	}
	return info, nil
}

func (f *FakeAPI) mintGrantLocked() *backend.TokenGrant {
	now := f.nowFunc()
	claims := jwt.MapClaims{
		"sub": f.subject,
		"iat": now.Unix(),
		"exp": now.Add(time.Duration(f.expiresIn) * time.Second).Unix(),
		"jti": uuid.New().String(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(fakeSigningKey)
	if err != nil {
		panic(err) // static key and marshalable claims
	}

	refreshToken := uuid.New().String()
	f.validRefresh[refreshToken] = struct{}{}
	return &backend.TokenGrant{
		AccessToken:  signed,
		RefreshToken: refreshToken,
		ExpiresIn:    f.expiresIn,
	}
}
