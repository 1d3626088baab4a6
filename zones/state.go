package zones

import (
	"context"

	"github.com/jrsteele09/go-identity-client/session"
)

// BuildState captures a snapshot of the session manager and resolved tenant
// for evaluation. It reads only cached state: the session check looks at the
// held triple and the user comes from the identity cache, so taking a
// snapshot never blocks on the network. Callers wanting fresh identity data
// load it through the manager before snapshotting.
func BuildState(ctx context.Context, manager *session.Manager, tenantSlug string) State {
	state := State{
		HasTenant:       tenantSlug != "",
		TenantSlug:      tenantSlug,
		IsAuthenticated: manager.HasValidSession(ctx),
	}
	if user := manager.CurrentUser(ctx); user != nil {
		state.UserType = user.Type()
		state.Permissions = user.Permissions()
	}
	return state
}
