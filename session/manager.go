package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/jrsteele09/go-identity-client/backend"
	clienterrors "github.com/jrsteele09/go-identity-client/internal/errors"
	"github.com/jrsteele09/go-identity-client/token"
)

const (
	defaultSafetyMargin   = 60 * time.Second
	defaultUserCacheTTL   = 5 * time.Minute
	defaultRefreshTimeout = 30 * time.Second

	refreshKey = "refresh"
)

// Manager owns the token lifecycle for one (app, tenant) session: expiry
// tracking, single-flight refresh, bearer-header production and user-identity
// caching.
//
// The token moves through three states: fresh (inside the safety margin),
// refreshing (one shared in-flight refresh that every concurrent caller
// joins), and expired-terminal (the backend rejected the refresh token; the
// session is cleared and callers get ErrAuthenticationExpired).
type Manager struct {
	store *Store
	api   backend.API

	safetyMargin   time.Duration
	userCacheTTL   time.Duration
	refreshTimeout time.Duration
	nowFunc        func() time.Time

	lock     sync.Mutex
	loaded   bool
	triple   *token.Triple
	user     *User
	fetching bool

	refreshGroup singleflight.Group
}

type ManagerOption func(*Manager)

// WithSafetyMargin sets how far ahead of actual expiry a token is treated as
// needing refresh.
func WithSafetyMargin(margin time.Duration) ManagerOption {
	return func(m *Manager) {
		m.safetyMargin = margin
	}
}

// WithUserCacheTTL sets how long a cached user identity is considered fresh.
func WithUserCacheTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		m.userCacheTTL = ttl
	}
}

// WithRefreshTimeout caps the backend refresh call. The shared refresh runs
// under this timeout rather than any single caller's context.
func WithRefreshTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		m.refreshTimeout = timeout
	}
}

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func NewManager(store *Store, api backend.API, options ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, errors.New("[NewManager] store is required")
	}
	if api == nil {
		return nil, errors.New("[NewManager] api is required")
	}

	m := &Manager{
		store:          store,
		api:            api,
		safetyMargin:   defaultSafetyMargin,
		userCacheTTL:   defaultUserCacheTTL,
		refreshTimeout: defaultRefreshTimeout,
		nowFunc:        time.Now,
	}

	for _, opt := range options {
		opt(m)
	}

	return m, nil
}

// SetTokens installs a new triple, persists it and invalidates the cached
// user. A pre-expired triple is accepted; it forces the refresh path on the
// next token request.
func (m *Manager) SetTokens(ctx context.Context, t token.Triple) error {
	m.lock.Lock()
	m.triple = &t
	m.user = nil
	m.loaded = true
	m.lock.Unlock()

	if err := m.store.SaveTriple(ctx, t); err != nil {
		return errors.Wrap(err, "[Manager.SetTokens] SaveTriple")
	}
	if err := m.store.ClearUser(ctx); err != nil {
		return errors.Wrap(err, "[Manager.SetTokens] ClearUser")
	}
	return nil
}

// AccessToken returns a usable bearer token. A token expiring more than the
// safety margin from now is returned as-is; otherwise the caller joins the
// single-flight refresh. Concurrent callers during an in-flight refresh all
// resolve from the same pending operation.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	t, err := m.currentTriple(ctx)
	if err != nil {
		return "", errors.Wrap(err, "[Manager.AccessToken] currentTriple")
	}
	if t == nil || t.IsZero() {
		return "", clienterrors.ErrNoSession
	}
	if !t.ExpiresWithin(m.nowFunc(), m.safetyMargin) {
		return t.AccessToken, nil
	}
	return m.refreshAndWait(ctx)
}

// ForceRefresh discards the current access token's remaining lifetime and
// performs (or joins) a refresh. Used when the backend has already rejected
// the token with a 401.
func (m *Manager) ForceRefresh(ctx context.Context) (string, error) {
	t, err := m.currentTriple(ctx)
	if err != nil {
		return "", errors.Wrap(err, "[Manager.ForceRefresh] currentTriple")
	}
	if t == nil || t.IsZero() {
		return "", clienterrors.ErrNoSession
	}
	return m.refreshAndWait(ctx)
}

// AuthHeaders returns the Authorization header map for an outbound request.
func (m *Manager) AuthHeaders(ctx context.Context) (map[string]string, error) {
	accessToken, err := m.AccessToken(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.AuthHeaders] AccessToken")
	}
	return map[string]string{"Authorization": "Bearer " + accessToken}, nil
}

// HasValidSession reports whether a session exists that is either unexpired
// or refreshable. A lapsed access token with a refresh token still counts.
func (m *Manager) HasValidSession(ctx context.Context) bool {
	t, err := m.currentTriple(ctx)
	if err != nil || t == nil || t.IsZero() {
		return false
	}
	return !t.Expired(m.nowFunc()) || t.Refreshable()
}

// ClearSession erases the triple and cached user from memory and the store.
// Idempotent.
func (m *Manager) ClearSession(ctx context.Context) error {
	m.lock.Lock()
	m.triple = nil
	m.user = nil
	m.loaded = true
	m.lock.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		return errors.Wrap(err, "[Manager.ClearSession] store.Clear")
	}
	return nil
}

// CurrentTriple returns a copy of the current token triple, or nil when no
// session exists. Used at tenant-switch boundaries to hand the session off.
func (m *Manager) CurrentTriple(ctx context.Context) (*token.Triple, error) {
	t, err := m.currentTriple(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.CurrentTriple] currentTriple")
	}
	if t == nil || t.IsZero() {
		return nil, nil
	}
	copied := *t
	return &copied, nil
}

// CurrentUser returns the cached user identity without fetching. Returns nil
// when no user has been loaded for the current session.
func (m *Manager) CurrentUser(ctx context.Context) *User {
	if _, err := m.currentTriple(ctx); err != nil {
		return nil
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.user
}

// LoadUserData returns the session holder's identity. A cache entry inside
// its TTL is returned directly; a stale entry is returned while a background
// refetch runs; forceRefresh always fetches before returning. The user key is
// the access token's subject claim, never an id embedded only in a response
// payload.
func (m *Manager) LoadUserData(ctx context.Context, forceRefresh bool) (*User, error) {
	accessToken, err := m.AccessToken(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.LoadUserData] AccessToken")
	}
	subject, err := token.Subject(accessToken)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.LoadUserData] Subject")
	}

	m.lock.Lock()
	cached := m.user
	m.lock.Unlock()

	if !forceRefresh && cached != nil && cached.ID == subject {
		if cached.Fresh(m.nowFunc(), m.userCacheTTL) {
			return cached, nil
		}
		m.refetchInBackground(accessToken, subject)
		return cached, nil
	}

	return m.fetchUser(ctx, accessToken, subject)
}

// currentTriple returns the in-memory triple, hydrating it from the store on
// first use so a session survives process restarts.
func (m *Manager) currentTriple(ctx context.Context) (*token.Triple, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if !m.loaded {
		t, err := m.store.LoadTriple(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "[Manager.currentTriple] LoadTriple")
		}
		m.triple = t

		user, err := m.store.LoadUser(ctx)
		if err != nil {
			log.Debug().Err(err).Msg("discarding unreadable persisted user cache")
		} else {
			m.user = user
		}
		m.loaded = true
	}
	return m.triple, nil
}

// refreshAndWait joins the single-flight refresh. A caller whose context
// expires abandons only its own wait; the shared refresh keeps running under
// the manager's refresh timeout and releases the slot when it returns, so a
// later caller can retry.
func (m *Manager) refreshAndWait(ctx context.Context) (string, error) {
	started := m.nowFunc()
	ch := m.refreshGroup.DoChan(refreshKey, m.doRefresh)

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &clienterrors.TimeoutError{Elapsed: m.nowFunc().Sub(started)}
		}
		return "", ctx.Err()
	}
}

// doRefresh performs the actual backend refresh. It runs once per flight,
// detached from caller contexts. A backend rejection of the refresh token is
// terminal: the session is cleared and callers receive
// ErrAuthenticationExpired. Transport failures leave the session intact so a
// later attempt can succeed.
func (m *Manager) doRefresh() (interface{}, error) {
	m.lock.Lock()
	t := m.triple
	m.lock.Unlock()

	if t == nil || !t.Refreshable() {
		return nil, clienterrors.ErrSessionExpired
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.refreshTimeout)
	defer cancel()

	grant, err := m.api.Refresh(ctx, t.RefreshToken)
	if err != nil {
		var statusErr *clienterrors.HTTPStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode >= 400 && statusErr.StatusCode < 500 {
			if clearErr := m.ClearSession(context.Background()); clearErr != nil {
				log.Debug().Err(clearErr).Msg("clearing session after rejected refresh")
			}
			return nil, clienterrors.ErrAuthenticationExpired
		}
		return nil, errors.Wrap(err, "[Manager.doRefresh] api.Refresh")
	}

	newTriple := token.NewTriple(grant.AccessToken, grant.RefreshToken, grant.ExpiresIn, m.nowFunc())

	// A refresh replaces the triple in place; the cached user survives.
	m.lock.Lock()
	m.triple = &newTriple
	m.loaded = true
	m.lock.Unlock()

	if err := m.store.SaveTriple(ctx, newTriple); err != nil {
		log.Warn().Err(err).Msg("failed to persist refreshed tokens")
	}

	return newTriple.AccessToken, nil
}

func (m *Manager) fetchUser(ctx context.Context, accessToken, subject string) (*User, error) {
	payload, err := m.api.User(ctx, accessToken)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.fetchUser] api.User")
	}

	user := &User{
		ID:        subject,
		Claims:    payload,
		FetchedAt: m.nowFunc(),
	}

	m.lock.Lock()
	m.user = user
	m.lock.Unlock()

	if err := m.store.SaveUser(ctx, user); err != nil {
		log.Debug().Err(err).Msg("failed to persist user cache")
	}
	return user, nil
}

// refetchInBackground refreshes a stale user cache without blocking the
// caller. Only one background fetch runs at a time; failures leave the stale
// entry in place.
func (m *Manager) refetchInBackground(accessToken, subject string) {
	m.lock.Lock()
	if m.fetching {
		m.lock.Unlock()
		return
	}
	m.fetching = true
	m.lock.Unlock()

	go func() {
		defer func() {
			m.lock.Lock()
			m.fetching = false
			m.lock.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), m.refreshTimeout)
		defer cancel()

		if _, err := m.fetchUser(ctx, accessToken, subject); err != nil {
			log.Debug().Err(err).Msg("background user refetch failed")
		}
	}()
}
