package zones

// Mode expresses whether a zone requires, forbids, or ignores a condition.
// The zero value is optional.
type Mode string

const (
	Optional  Mode = "optional"
	Required  Mode = "required"
	Forbidden Mode = "forbidden"
)

// Requirement declares what a zone demands of the current state. Stateless;
// constructed per route check.
type Requirement struct {
	Tenant Mode
	Auth   Mode

	// UserTypes constrains the authenticated user's type when non-empty.
	UserTypes []string

	// Permissions constrains the authenticated user's permissions when
	// non-empty. All listed permissions are required unless AnyPermission
	// is set, which switches to any-of semantics.
	Permissions   []string
	AnyPermission bool

	// Redirect overrides the smart-redirect table for denials in this zone.
	Redirect string
}

// DeniedKind identifies which check failed first. The evaluation order is
// fixed (tenant, auth, user type, permissions), so the kind is deterministic
// for a given requirement and state.
type DeniedKind string

const (
	DeniedNoTenant             DeniedKind = "no_tenant"
	DeniedHasTenant            DeniedKind = "has_tenant"
	DeniedNotAuthenticated     DeniedKind = "not_authenticated"
	DeniedAlreadyAuthenticated DeniedKind = "already_authenticated"
	DeniedWrongUserType        DeniedKind = "wrong_user_type"
	DeniedMissingPermissions   DeniedKind = "missing_permissions"
)

// Decision is the outcome of one zone check. Decisions are transient values,
// recomputed on every check and never persisted. A denial is data, not an
// error.
type Decision struct {
	Granted    bool
	Reason     DeniedKind `json:"reason,omitempty"`
	RedirectTo string     `json:"redirectTo,omitempty"`
}

// Denied reports whether the decision blocks access.
func (d Decision) Denied() bool {
	return !d.Granted
}
