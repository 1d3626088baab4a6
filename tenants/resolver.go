package tenants

import (
	"context"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-identity-client/storage"
)

// Mode selects how the active tenant is derived.
type Mode string

const (
	// ModeSubdomain derives the tenant from the hostname. It never consults
	// the persistent store: a stale persisted tenant must not override a
	// subdomain-derived identity.
	ModeSubdomain Mode = "subdomain"

	// ModeSelector derives the tenant from a query parameter, falling back
	// to the last persisted value. It never looks at the hostname.
	ModeSelector Mode = "selector"
)

const defaultTenantParam = "tenant"

// RequestContext carries the raw inputs of one resolution: the hostname the
// application is being served from and the query string of the current URL.
type RequestContext struct {
	Hostname string
	Query    url.Values
}

// Resolver derives the active tenant slug from the execution context.
type Resolver struct {
	kv         storage.KV
	appID      string
	baseDomain string
	param      string
}

type ResolverOption func(*Resolver)

// WithBaseDomain sets the configured base domain (e.g. "kommi.click").
// Without it, subdomain mode falls back to positional heuristics.
func WithBaseDomain(baseDomain string) ResolverOption {
	return func(r *Resolver) {
		r.baseDomain = strings.ToLower(baseDomain)
	}
}

// WithTenantParam overrides the selector-mode query parameter name.
func WithTenantParam(param string) ResolverOption {
	return func(r *Resolver) {
		r.param = param
	}
}

func NewResolver(kv storage.KV, appID string, options ...ResolverOption) (*Resolver, error) {
	if kv == nil {
		return nil, errors.New("[NewResolver] kv is required")
	}
	if appID == "" {
		return nil, errors.New("[NewResolver] appID is required")
	}

	r := &Resolver{
		kv:    kv,
		appID: appID,
		param: defaultTenantParam,
	}

	for _, opt := range options {
		opt(r)
	}

	return r, nil
}

// Resolve returns the active tenant slug, or "" when no tenant applies.
func (r *Resolver) Resolve(ctx context.Context, mode Mode, rc RequestContext) (string, error) {
	switch mode {
	case ModeSubdomain:
		return r.resolveSubdomain(rc.Hostname), nil
	case ModeSelector:
		return r.resolveSelector(ctx, rc.Query)
	default:
		return "", errors.Errorf("[Resolver.Resolve] unknown mode %q", mode)
	}
}

// BuildHostname returns the hostname serving the given tenant, or "" when the
// current hostname has no valid place to attach a subdomain.
func (r *Resolver) BuildHostname(newSlug, currentHostname string) string {
	return BuildHostname(newSlug, currentHostname, r.baseDomain)
}

func (r *Resolver) resolveSubdomain(hostname string) string {
	host := normaliseHost(hostname)
	if host == "" || isPrivateHost(host) {
		return ""
	}

	if r.baseDomain != "" {
		if host == r.baseDomain {
			return ""
		}
		sub, ok := strings.CutSuffix(host, "."+r.baseDomain)
		if !ok || sub == "" || sub == "www" {
			return ""
		}
		// Nested subdomains are returned verbatim, not just the first label.
		return sub
	}

	// No configured base domain: positional heuristics.
	labels := strings.Split(host, ".")
	if labels[0] == "www" {
		labels = labels[1:]
	}
	if len(labels) < 3 {
		return ""
	}
	return labels[0]
}

func (r *Resolver) resolveSelector(ctx context.Context, query url.Values) (string, error) {
	if slug := query.Get(r.param); slug != "" {
		if err := r.kv.Set(ctx, r.storageKey(), slug); err != nil {
			log.Warn().Err(err).Str("tenant", slug).Msg("failed to persist selected tenant")
		}
		return slug, nil
	}

	slug, ok, err := r.kv.Get(ctx, r.storageKey())
	if err != nil {
		return "", errors.Wrap(err, "[Resolver.resolveSelector] kv.Get")
	}
	if !ok {
		return "", nil
	}
	return slug, nil
}

func (r *Resolver) storageKey() string {
	return r.appID + "_" + r.param
}

// normaliseHost lowercases the hostname and strips any port.
func normaliseHost(hostname string) string {
	host := strings.ToLower(strings.TrimSpace(hostname))
	if idx := strings.IndexByte(host, ':'); idx >= 0 {
		host = host[:idx]
	}
	return strings.TrimSuffix(host, ".")
}

// isPrivateHost reports whether the host is a loopback or private-network
// address where tenant subdomains cannot exist.
func isPrivateHost(host string) bool {
	return host == "localhost" ||
		strings.HasSuffix(host, ".localhost") ||
		strings.HasPrefix(host, "127.") ||
		strings.HasPrefix(host, "192.168.")
}
