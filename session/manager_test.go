package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-identity-client/backend/backendfakes"
	clienterrors "github.com/jrsteele09/go-identity-client/internal/errors"
	"github.com/jrsteele09/go-identity-client/session"
	"github.com/jrsteele09/go-identity-client/storage"
	"github.com/jrsteele09/go-identity-client/token"
)

const (
	testAppID   = "app"
	testSubject = "user-1"
)

// testClock is a controllable time source shared with the manager.
type testClock struct {
	lock sync.Mutex
	now  time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now()}
}

func (c *testClock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.now = c.now.Add(d)
}

type testFixture struct {
	kv      *storage.Memory
	store   *session.Store
	api     *backendfakes.FakeAPI
	clock   *testClock
	manager *session.Manager
}

func setupTestFixture(t *testing.T, options ...session.ManagerOption) *testFixture {
	t.Helper()

	kv := storage.NewMemory()
	store, err := session.NewStore(kv, testAppID, "")
	require.NoError(t, err)

	api := backendfakes.NewFakeAPI(testSubject)
	clock := newTestClock()

	opts := append([]session.ManagerOption{session.WithNowFunc(clock.Now)}, options...)
	manager, err := session.NewManager(store, api, opts...)
	require.NoError(t, err)

	return &testFixture{
		kv:      kv,
		store:   store,
		api:     api,
		clock:   clock,
		manager: manager,
	}
}

// login installs a grant minted by the fake backend. expiresIn controls the
// access token lifetime; subsequent refreshes mint hour-long tokens.
func (f *testFixture) login(t *testing.T, expiresIn int64) token.Triple {
	t.Helper()

	f.api.SetExpiresIn(expiresIn)
	result, err := f.api.Login(context.Background(), "john.doe@example.com", "password123")
	require.NoError(t, err)
	f.api.SetExpiresIn(3600)

	triple := token.NewTriple(result.AccessToken, result.RefreshToken, result.ExpiresIn, f.clock.Now())
	require.NoError(t, f.manager.SetTokens(context.Background(), triple))
	return triple
}

func TestManager_AccessToken(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh token is returned without a refresh", func(t *testing.T) {
		f := setupTestFixture(t)
		triple := f.login(t, 3600)

		accessToken, err := f.manager.AccessToken(ctx)
		require.NoError(t, err)
		require.Equal(t, triple.AccessToken, accessToken)
		require.Zero(t, f.api.RefreshCalls())
	})

	t.Run("token inside the safety margin is refreshed", func(t *testing.T) {
		f := setupTestFixture(t)
		stale := f.login(t, 30) // expires inside the 60s margin

		accessToken, err := f.manager.AccessToken(ctx)
		require.NoError(t, err)
		require.NotEqual(t, stale.AccessToken, accessToken)
		require.Equal(t, 1, f.api.RefreshCalls())
	})

	t.Run("no session", func(t *testing.T) {
		f := setupTestFixture(t)

		_, err := f.manager.AccessToken(ctx)
		require.ErrorIs(t, err, clienterrors.ErrNoSession)
	})

	t.Run("expired without a refresh token", func(t *testing.T) {
		f := setupTestFixture(t)
		expired := token.Triple{AccessToken: "lapsed", ExpiresAt: f.clock.Now().Add(-time.Hour)}
		require.NoError(t, f.manager.SetTokens(ctx, expired))

		_, err := f.manager.AccessToken(ctx)
		require.ErrorIs(t, err, clienterrors.ErrSessionExpired)
	})
}

func TestManager_SingleFlightRefresh(t *testing.T) {
	const callers = 10

	f := setupTestFixture(t)
	f.login(t, -1) // pre-expired, every caller needs a refresh
	f.api.SetRefreshDelay(250 * time.Millisecond)

	results := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.manager.AccessToken(context.Background())
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, f.api.RefreshCalls(), "concurrent callers must share one refresh")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, results[0], results[i], "all callers must resolve to the same new token")
	}
}

func TestManager_RefreshFailureClearsSession(t *testing.T) {
	ctx := context.Background()

	f := setupTestFixture(t)
	f.login(t, -1)
	f.api.SetFailRefresh(true)

	_, err := f.manager.AccessToken(ctx)
	require.ErrorIs(t, err, clienterrors.ErrAuthenticationExpired)

	require.False(t, f.manager.HasValidSession(ctx))

	persisted, err := f.store.LoadTriple(ctx)
	require.NoError(t, err)
	require.Nil(t, persisted, "rejected refresh must wipe the persisted triple")
}

func TestManager_PreExpiredLoginTriggersOneRefresh(t *testing.T) {
	ctx := context.Background()

	f := setupTestFixture(t)
	f.login(t, -1)

	user, err := f.manager.LoadUserData(ctx, false)
	require.NoError(t, err)
	require.Equal(t, testSubject, user.ID)
	require.Equal(t, 1, f.api.RefreshCalls(), "exactly one refresh before the protected call")
	require.Equal(t, 1, f.api.UserCalls())
}

func TestManager_ClearSessionIdempotent(t *testing.T) {
	ctx := context.Background()

	f := setupTestFixture(t)
	f.login(t, 3600)
	_, err := f.manager.LoadUserData(ctx, false)
	require.NoError(t, err)

	require.NoError(t, f.manager.ClearSession(ctx))
	require.False(t, f.manager.HasValidSession(ctx))
	require.Nil(t, f.manager.CurrentUser(ctx))

	// Second clear observes the exact same state.
	require.NoError(t, f.manager.ClearSession(ctx))
	require.False(t, f.manager.HasValidSession(ctx))
	require.Nil(t, f.manager.CurrentUser(ctx))
}

func TestManager_HasValidSession(t *testing.T) {
	ctx := context.Background()

	t.Run("no session", func(t *testing.T) {
		f := setupTestFixture(t)
		require.False(t, f.manager.HasValidSession(ctx))
	})

	t.Run("fresh token", func(t *testing.T) {
		f := setupTestFixture(t)
		f.login(t, 3600)
		require.True(t, f.manager.HasValidSession(ctx))
	})

	t.Run("lapsed token with refresh token still counts", func(t *testing.T) {
		f := setupTestFixture(t)
		f.login(t, -1)
		require.True(t, f.manager.HasValidSession(ctx))
	})

	t.Run("lapsed token without refresh token does not", func(t *testing.T) {
		f := setupTestFixture(t)
		expired := token.Triple{AccessToken: "lapsed", ExpiresAt: f.clock.Now().Add(-time.Hour)}
		require.NoError(t, f.manager.SetTokens(ctx, expired))
		require.False(t, f.manager.HasValidSession(ctx))
	})
}

func TestManager_LoadUserData(t *testing.T) {
	ctx := context.Background()

	t.Run("cache hit inside ttl", func(t *testing.T) {
		f := setupTestFixture(t)
		f.login(t, 3600)

		first, err := f.manager.LoadUserData(ctx, false)
		require.NoError(t, err)
		require.Equal(t, 1, f.api.UserCalls())

		second, err := f.manager.LoadUserData(ctx, false)
		require.NoError(t, err)
		require.Equal(t, first, second)
		require.Equal(t, 1, f.api.UserCalls(), "fresh cache must not refetch")
	})

	t.Run("stale cache returns immediately and refetches in background", func(t *testing.T) {
		f := setupTestFixture(t)
		f.login(t, 3600)

		first, err := f.manager.LoadUserData(ctx, false)
		require.NoError(t, err)

		f.clock.Advance(6 * time.Minute)

		stale, err := f.manager.LoadUserData(ctx, false)
		require.NoError(t, err)
		require.Equal(t, first.FetchedAt, stale.FetchedAt, "stale entry is returned, not blocked on")

		require.Eventually(t, func() bool {
			return f.api.UserCalls() == 2
		}, time.Second, 10*time.Millisecond, "stale cache must trigger a background refetch")
	})

	t.Run("force refresh bypasses the ttl", func(t *testing.T) {
		f := setupTestFixture(t)
		f.login(t, 3600)

		_, err := f.manager.LoadUserData(ctx, false)
		require.NoError(t, err)

		f.clock.Advance(time.Second)

		forced, err := f.manager.LoadUserData(ctx, true)
		require.NoError(t, err)
		require.Equal(t, 2, f.api.UserCalls())
		require.True(t, forced.FetchedAt.After(time.Time{}))
	})

	t.Run("subject comes from the token", func(t *testing.T) {
		f := setupTestFixture(t)
		f.login(t, 3600)
		// The backend embeds a conflicting id in the payload; the token wins.
		f.api.SetUserPayload(map[string]interface{}{"id": "someone-else", "userType": "admin"})

		user, err := f.manager.LoadUserData(ctx, false)
		require.NoError(t, err)
		require.Equal(t, testSubject, user.ID)
		require.Equal(t, "admin", user.Type())
	})

	t.Run("set tokens invalidates the cached user", func(t *testing.T) {
		f := setupTestFixture(t)
		f.login(t, 3600)

		_, err := f.manager.LoadUserData(ctx, false)
		require.NoError(t, err)
		require.NotNil(t, f.manager.CurrentUser(ctx))

		f.login(t, 3600)
		require.Nil(t, f.manager.CurrentUser(ctx))
	})
}

func TestManager_TimeoutReleasesRefreshSlot(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t, -1)
	f.api.SetRefreshDelay(200 * time.Millisecond)

	waitCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.manager.AccessToken(waitCtx)
	require.ErrorIs(t, err, clienterrors.ErrTimeout, "an abandoned wait surfaces as a timeout")

	// The shared refresh keeps running and completes on its own; a later
	// caller must not find the slot wedged.
	require.Eventually(t, func() bool {
		accessToken, err := f.manager.AccessToken(context.Background())
		return err == nil && accessToken != ""
	}, time.Second, 20*time.Millisecond)
	require.Equal(t, 1, f.api.RefreshCalls(), "the abandoned refresh still counts once")
}

func TestManager_PersistenceAcrossRestarts(t *testing.T) {
	ctx := context.Background()

	f := setupTestFixture(t)
	triple := f.login(t, 3600)
	_, err := f.manager.LoadUserData(ctx, false)
	require.NoError(t, err)

	// A second manager over the same store stands in for a fresh page load.
	reloaded, err := session.NewManager(f.store, f.api, session.WithNowFunc(f.clock.Now))
	require.NoError(t, err)

	require.True(t, reloaded.HasValidSession(ctx))

	accessToken, err := reloaded.AccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, triple.AccessToken, accessToken)
	require.Zero(t, f.api.RefreshCalls())

	user := reloaded.CurrentUser(ctx)
	require.NotNil(t, user)
	require.Equal(t, testSubject, user.ID)
}
