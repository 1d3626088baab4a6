// Command demo walks the identity toolkit through a full client lifecycle
// against an in-memory backend: tenant resolution, login with a pre-expired
// grant, a zone check before and after authentication, and a cross-subdomain
// handoff.
package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-identity-client/backend/backendfakes"
	"github.com/jrsteele09/go-identity-client/internal/config"
	"github.com/jrsteele09/go-identity-client/session"
	"github.com/jrsteele09/go-identity-client/storage"
	"github.com/jrsteele09/go-identity-client/tenants"
	"github.com/jrsteele09/go-identity-client/token"
	"github.com/jrsteele09/go-identity-client/transfer"
	"github.com/jrsteele09/go-identity-client/zones"
)

const baseDomain = "kommi.click"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("demo failed")
	}
}

func run() error {
	c := config.New()
	displayAppname(c.GetAppName())

	ctx := context.Background()
	appID := c.GetAppID()
	kv := storage.NewMemory()

	// Tenant resolution from the hostname the app is "served" from.
	resolver, err := tenants.NewResolver(kv, appID, tenants.WithBaseDomain(baseDomain))
	if err != nil {
		return err
	}
	slug, err := resolver.Resolve(ctx, tenants.ModeSubdomain, tenants.RequestContext{Hostname: "acme." + baseDomain})
	if err != nil {
		return err
	}
	log.Info().Str("tenant", slug).Msg("resolved tenant from subdomain")

	store, err := session.NewStore(kv, appID, slug)
	if err != nil {
		return err
	}
	api := backendfakes.NewFakeAPI("user-1")
	api.SetUserPayload(map[string]interface{}{
		"id":          "user-1",
		"userType":    "admin",
		"permissions": []any{"billing.read", "billing.write"},
	})
	manager, err := session.NewManager(store, api)
	if err != nil {
		return err
	}

	registry := zones.NewRegistry()
	registry.Register("billing", zones.Requirement{
		Tenant:      zones.Required,
		Auth:        zones.Required,
		Permissions: []string{"billing.read"},
	})
	evaluator := zones.NewEvaluator()

	decision, err := registry.Evaluate(evaluator, "billing", zones.BuildState(ctx, manager, slug))
	if err != nil {
		return err
	}
	log.Info().
		Str("reason", string(decision.Reason)).
		Str("redirectTo", decision.RedirectTo).
		Msg("billing zone as guest")

	// Login with a pre-expired grant: the first token request must transparently
	// refresh before anything else works.
	api.SetExpiresIn(-1)
	result, err := api.Login(ctx, "john.doe@example.com", "password123")
	if err != nil {
		return err
	}
	api.SetExpiresIn(3600)
	if err := manager.SetTokens(ctx, token.NewTriple(result.AccessToken, result.RefreshToken, result.ExpiresIn, time.Now())); err != nil {
		return err
	}

	user, err := manager.LoadUserData(ctx, false)
	if err != nil {
		return err
	}
	log.Info().
		Str("user", user.ID).
		Str("userType", user.Type()).
		Int("refreshCalls", api.RefreshCalls()).
		Msg("loaded user after forced refresh")

	decision, err = registry.Evaluate(evaluator, "billing", zones.BuildState(ctx, manager, slug))
	if err != nil {
		return err
	}
	log.Info().Bool("granted", decision.Granted).Msg("billing zone after login")

	// Cross-subdomain handoff to another tenant.
	destHost := resolver.BuildHostname("globex", "acme."+baseDomain)
	sourceTransfer, err := transfer.New(manager)
	if err != nil {
		return err
	}
	handoffURL, err := sourceTransfer.BuildURL(ctx, "https://"+destHost+"/dashboard")
	if err != nil {
		return err
	}
	log.Info().Str("url", truncate(handoffURL, 80)).Msg("built handoff URL")

	destStore, err := session.NewStore(kv, appID, "globex")
	if err != nil {
		return err
	}
	destManager, err := session.NewManager(destStore, api)
	if err != nil {
		return err
	}
	destTransfer, err := transfer.New(destManager)
	if err != nil {
		return err
	}
	cleanURL, transferred, err := destTransfer.Consume(ctx, handoffURL)
	if err != nil {
		return err
	}
	cleaned, _ := url.Parse(cleanURL)
	log.Info().
		Bool("transferred", transferred).
		Bool("validSession", destManager.HasValidSession(ctx)).
		Str("historyURL", cleaned.String()).
		Msg("consumed handoff on destination")

	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
