package tenants

import (
	"context"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-identity-client/backend"
	clienterrors "github.com/jrsteele09/go-identity-client/internal/errors"
)

// Identity is a resolved tenant: the slug the client works with and the
// backend-assigned id. Immutable for the lifetime of a navigation context
// except via an explicit switch.
type Identity struct {
	Slug   string `json:"slug"`
	ID     string `json:"id"`
	Domain string `json:"domain,omitempty"`
}

// Lookup resolves tenant slugs to full identities through the backend's
// public tenant endpoint. Used at cross-tenant switch boundaries, where the
// destination tenant's id and canonical domain are needed before navigating.
type Lookup struct {
	api   backend.API
	appID string
}

func NewLookup(api backend.API, appID string) (*Lookup, error) {
	if api == nil {
		return nil, errors.New("[NewLookup] api is required")
	}
	if appID == "" {
		return nil, errors.New("[NewLookup] appID is required")
	}
	return &Lookup{api: api, appID: appID}, nil
}

// Resolve fetches the identity for a slug. An unknown slug maps to
// ErrTenantNotFound.
func (l *Lookup) Resolve(ctx context.Context, slug string) (*Identity, error) {
	if slug == "" {
		return nil, clienterrors.ErrNoTenant
	}

	info, err := l.api.TenantPublic(ctx, l.appID, slug)
	if err != nil {
		var statusErr *clienterrors.HTTPStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == 404 {
			return nil, clienterrors.ErrTenantNotFound
		}
		return nil, errors.Wrap(err, "[Lookup.Resolve] TenantPublic")
	}

	return &Identity{
		Slug:   slug,
		ID:     info.ID,
		Domain: info.Domain,
	}, nil
}
