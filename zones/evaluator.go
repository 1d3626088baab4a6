package zones

import "slices"

// State is a snapshot of session and tenant state taken at evaluation time.
// The evaluator performs no I/O; callers capture the snapshot and pass it in.
type State struct {
	HasTenant       bool
	TenantSlug      string
	IsAuthenticated bool
	UserType        string
	Permissions     []string
}

// Evaluator classifies zone access. It holds only the redirect table; each
// Evaluate call is a pure function of its arguments.
type Evaluator struct {
	redirects RedirectTable
}

type EvaluatorOption func(*Evaluator)

// WithRedirectTable replaces the default smart-redirect table.
func WithRedirectTable(table RedirectTable) EvaluatorOption {
	return func(e *Evaluator) {
		e.redirects = table
	}
}

func NewEvaluator(options ...EvaluatorOption) *Evaluator {
	e := &Evaluator{redirects: DefaultRedirects()}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// Evaluate checks the requirement against the state. The order is fixed and
// significant: tenant, then auth, then user type, then permissions. Each
// stage short-circuits, so the first failing stage determines the denial
// reason and redirect target.
func (e *Evaluator) Evaluate(req Requirement, state State) Decision {
	if kind := checkMode(req.Tenant, state.HasTenant, DeniedNoTenant, DeniedHasTenant); kind != "" {
		return e.deny(req, state, kind)
	}

	if kind := checkMode(req.Auth, state.IsAuthenticated, DeniedNotAuthenticated, DeniedAlreadyAuthenticated); kind != "" {
		return e.deny(req, state, kind)
	}

	// Identity constraints only apply to an authenticated user.
	if state.IsAuthenticated && len(req.UserTypes) > 0 {
		if !slices.Contains(req.UserTypes, state.UserType) {
			return e.deny(req, state, DeniedWrongUserType)
		}
	}

	if state.IsAuthenticated && len(req.Permissions) > 0 {
		if !hasPermissions(req, state.Permissions) {
			return e.deny(req, state, DeniedMissingPermissions)
		}
	}

	return Decision{Granted: true}
}

// checkMode applies required/forbidden/optional logic to one boolean
// condition, returning the denial kind or "" on pass.
func checkMode(mode Mode, present bool, whenMissing, whenPresent DeniedKind) DeniedKind {
	switch mode {
	case Required:
		if !present {
			return whenMissing
		}
	case Forbidden:
		if present {
			return whenPresent
		}
	}
	// Optional (and the zero value) never fails.
	return ""
}

func hasPermissions(req Requirement, held []string) bool {
	if req.AnyPermission {
		for _, p := range req.Permissions {
			if slices.Contains(held, p) {
				return true
			}
		}
		return false
	}
	for _, p := range req.Permissions {
		if !slices.Contains(held, p) {
			return false
		}
	}
	return true
}

func (e *Evaluator) deny(req Requirement, state State, kind DeniedKind) Decision {
	redirectTo := req.Redirect
	if redirectTo == "" {
		redirectTo = e.redirects.For(state)
	}
	return Decision{
		Granted:    false,
		Reason:     kind,
		RedirectTo: redirectTo,
	}
}
