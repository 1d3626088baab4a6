package zones

// RedirectTable computes the default redirect target for a denial, keyed by
// where the visitor actually stands: no tenant context, a guest within a
// tenant, or an authenticated user (optionally per user type).
type RedirectTable struct {
	NoTenant      string            // no tenant resolved
	Guest         string            // tenant present, not authenticated
	Authenticated string            // authenticated, no per-type home
	TypeHomes     map[string]string // authenticated, keyed by user type
}

func DefaultRedirects() RedirectTable {
	return RedirectTable{
		NoTenant:      "/",
		Guest:         "/login",
		Authenticated: "/dashboard",
	}
}

// For picks the redirect target for the given state.
func (t RedirectTable) For(state State) string {
	if !state.HasTenant {
		return t.NoTenant
	}
	if !state.IsAuthenticated {
		return t.Guest
	}
	if home, ok := t.TypeHomes[state.UserType]; ok {
		return home
	}
	return t.Authenticated
}
