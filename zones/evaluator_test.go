package zones_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-identity-client/zones"
)

func TestEvaluator_TenantAndAuthModes(t *testing.T) {
	evaluator := zones.NewEvaluator()

	t.Run("tenant required without tenant", func(t *testing.T) {
		decision := evaluator.Evaluate(
			zones.Requirement{Tenant: zones.Required},
			zones.State{},
		)
		require.True(t, decision.Denied())
		require.Equal(t, zones.DeniedNoTenant, decision.Reason)
	})

	t.Run("tenant forbidden with tenant", func(t *testing.T) {
		decision := evaluator.Evaluate(
			zones.Requirement{Tenant: zones.Forbidden},
			zones.State{HasTenant: true, TenantSlug: "acme"},
		)
		require.True(t, decision.Denied())
		require.Equal(t, zones.DeniedHasTenant, decision.Reason)
	})

	t.Run("auth required as guest", func(t *testing.T) {
		decision := evaluator.Evaluate(
			zones.Requirement{Auth: zones.Required},
			zones.State{HasTenant: true},
		)
		require.True(t, decision.Denied())
		require.Equal(t, zones.DeniedNotAuthenticated, decision.Reason)
	})

	t.Run("auth forbidden while authenticated", func(t *testing.T) {
		decision := evaluator.Evaluate(
			zones.Requirement{Auth: zones.Forbidden},
			zones.State{HasTenant: true, IsAuthenticated: true},
		)
		require.True(t, decision.Denied())
		require.Equal(t, zones.DeniedAlreadyAuthenticated, decision.Reason)
	})

	t.Run("optional never fails", func(t *testing.T) {
		decision := evaluator.Evaluate(
			zones.Requirement{Tenant: zones.Optional, Auth: zones.Optional},
			zones.State{},
		)
		require.True(t, decision.Granted)
	})

	t.Run("zero value requirement grants everything", func(t *testing.T) {
		decision := evaluator.Evaluate(zones.Requirement{}, zones.State{})
		require.True(t, decision.Granted)
	})
}

func TestEvaluator_EvaluationOrder(t *testing.T) {
	evaluator := zones.NewEvaluator()

	t.Run("tenant check fires before auth", func(t *testing.T) {
		// Both checks would fail; the tenant denial must always win.
		decision := evaluator.Evaluate(
			zones.Requirement{Tenant: zones.Required, Auth: zones.Required},
			zones.State{HasTenant: false, IsAuthenticated: false},
		)
		require.Equal(t, zones.DeniedNoTenant, decision.Reason)
	})

	t.Run("auth check fires before user type", func(t *testing.T) {
		decision := evaluator.Evaluate(
			zones.Requirement{Tenant: zones.Required, Auth: zones.Required, UserTypes: []string{"admin"}},
			zones.State{HasTenant: true, IsAuthenticated: false, UserType: "member"},
		)
		require.Equal(t, zones.DeniedNotAuthenticated, decision.Reason)
	})

	t.Run("user type fires before permissions", func(t *testing.T) {
		decision := evaluator.Evaluate(
			zones.Requirement{
				Auth:        zones.Required,
				UserTypes:   []string{"admin"},
				Permissions: []string{"billing.read"},
			},
			zones.State{HasTenant: true, IsAuthenticated: true, UserType: "member"},
		)
		require.Equal(t, zones.DeniedWrongUserType, decision.Reason)
	})
}

func TestEvaluator_UserTypeAndPermissions(t *testing.T) {
	evaluator := zones.NewEvaluator()

	authedState := func(userType string, permissions ...string) zones.State {
		return zones.State{
			HasTenant:       true,
			IsAuthenticated: true,
			UserType:        userType,
			Permissions:     permissions,
		}
	}

	t.Run("single user type match", func(t *testing.T) {
		decision := evaluator.Evaluate(
			zones.Requirement{Auth: zones.Required, UserTypes: []string{"admin"}},
			authedState("admin"),
		)
		require.True(t, decision.Granted)
	})

	t.Run("user type set membership", func(t *testing.T) {
		decision := evaluator.Evaluate(
			zones.Requirement{Auth: zones.Required, UserTypes: []string{"admin", "owner"}},
			authedState("owner"),
		)
		require.True(t, decision.Granted)
	})

	t.Run("wrong user type", func(t *testing.T) {
		decision := evaluator.Evaluate(
			zones.Requirement{Auth: zones.Required, UserTypes: []string{"admin"}},
			authedState("member"),
		)
		require.Equal(t, zones.DeniedWrongUserType, decision.Reason)
	})

	t.Run("user type ignored for guests", func(t *testing.T) {
		// Auth optional, not authenticated: identity constraints do not apply.
		decision := evaluator.Evaluate(
			zones.Requirement{UserTypes: []string{"admin"}},
			zones.State{HasTenant: true},
		)
		require.True(t, decision.Granted)
	})

	t.Run("all permissions required by default", func(t *testing.T) {
		req := zones.Requirement{Auth: zones.Required, Permissions: []string{"billing.read", "billing.write"}}

		decision := evaluator.Evaluate(req, authedState("member", "billing.read"))
		require.Equal(t, zones.DeniedMissingPermissions, decision.Reason)

		decision = evaluator.Evaluate(req, authedState("member", "billing.read", "billing.write"))
		require.True(t, decision.Granted)
	})

	t.Run("any permission suffices when requested", func(t *testing.T) {
		req := zones.Requirement{
			Auth:          zones.Required,
			Permissions:   []string{"billing.read", "billing.write"},
			AnyPermission: true,
		}

		decision := evaluator.Evaluate(req, authedState("member", "billing.write"))
		require.True(t, decision.Granted)

		decision = evaluator.Evaluate(req, authedState("member", "reports.read"))
		require.Equal(t, zones.DeniedMissingPermissions, decision.Reason)
	})
}

func TestEvaluator_Redirects(t *testing.T) {
	t.Run("smart redirect table", func(t *testing.T) {
		evaluator := zones.NewEvaluator(zones.WithRedirectTable(zones.RedirectTable{
			NoTenant:      "/pick-a-tenant",
			Guest:         "/signin",
			Authenticated: "/home",
			TypeHomes:     map[string]string{"admin": "/admin"},
		}))

		t.Run("no tenant", func(t *testing.T) {
			decision := evaluator.Evaluate(zones.Requirement{Tenant: zones.Required}, zones.State{})
			require.Equal(t, "/pick-a-tenant", decision.RedirectTo)
		})

		t.Run("guest inside tenant", func(t *testing.T) {
			decision := evaluator.Evaluate(zones.Requirement{Auth: zones.Required}, zones.State{HasTenant: true})
			require.Equal(t, "/signin", decision.RedirectTo)
		})

		t.Run("authenticated per type", func(t *testing.T) {
			decision := evaluator.Evaluate(
				zones.Requirement{Auth: zones.Forbidden},
				zones.State{HasTenant: true, IsAuthenticated: true, UserType: "admin"},
			)
			require.Equal(t, "/admin", decision.RedirectTo)
		})

		t.Run("authenticated default", func(t *testing.T) {
			decision := evaluator.Evaluate(
				zones.Requirement{Auth: zones.Forbidden},
				zones.State{HasTenant: true, IsAuthenticated: true, UserType: "member"},
			)
			require.Equal(t, "/home", decision.RedirectTo)
		})
	})

	t.Run("explicit override wins", func(t *testing.T) {
		evaluator := zones.NewEvaluator()
		decision := evaluator.Evaluate(
			zones.Requirement{Auth: zones.Required, Redirect: "/custom-login"},
			zones.State{HasTenant: true},
		)
		require.Equal(t, "/custom-login", decision.RedirectTo)
	})

	t.Run("granted decisions carry no redirect", func(t *testing.T) {
		evaluator := zones.NewEvaluator()
		decision := evaluator.Evaluate(zones.Requirement{}, zones.State{HasTenant: true})
		require.True(t, decision.Granted)
		require.Empty(t, decision.RedirectTo)
	})
}

func TestRegistry(t *testing.T) {
	registry := zones.NewRegistry()
	evaluator := zones.NewEvaluator()

	registry.Register("admin-area", zones.Requirement{
		Tenant:    zones.Required,
		Auth:      zones.Required,
		UserTypes: []string{"admin"},
	})

	t.Run("evaluates a named zone", func(t *testing.T) {
		decision, err := registry.Evaluate(evaluator, "admin-area", zones.State{
			HasTenant:       true,
			IsAuthenticated: true,
			UserType:        "admin",
		})
		require.NoError(t, err)
		require.True(t, decision.Granted)
	})

	t.Run("unknown zone is an error", func(t *testing.T) {
		_, err := registry.Evaluate(evaluator, "missing", zones.State{})
		require.Error(t, err)
	})
}
