// Package transfer moves a session across a hostname boundary. Client-side
// storage is scoped per origin, so a tenant switch that changes subdomain
// would otherwise drop the session and force a second login. The departing
// page appends the encoded triple to the destination URL under a reserved
// parameter; the arriving page consumes it, installs the tokens and strips
// the parameter before it can land in history.
package transfer

import (
	"context"
	"net/url"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-identity-client/session"
	"github.com/jrsteele09/go-identity-client/token"
)

const defaultParam = "_auth"

type Transfer struct {
	manager *session.Manager
	codec   *token.Codec
	param   string
}

type Option func(*Transfer)

// WithParam overrides the reserved query parameter name.
func WithParam(param string) Option {
	return func(t *Transfer) {
		t.param = param
	}
}

// WithCodec overrides the token codec (primarily for testing)
func WithCodec(codec *token.Codec) Option {
	return func(t *Transfer) {
		t.codec = codec
	}
}

func New(manager *session.Manager, options ...Option) (*Transfer, error) {
	if manager == nil {
		return nil, errors.New("[transfer.New] manager is required")
	}

	t := &Transfer{
		manager: manager,
		codec:   token.NewCodec(),
		param:   defaultParam,
	}

	for _, opt := range options {
		opt(t)
	}

	return t, nil
}

// BuildURL appends the current session's encoded triple to the destination
// URL. Returns the destination unchanged when there is no session to carry.
func (t *Transfer) BuildURL(ctx context.Context, destination string) (string, error) {
	u, err := url.Parse(destination)
	if err != nil {
		return "", errors.Wrap(err, "[Transfer.BuildURL] url.Parse")
	}

	triple, err := t.manager.CurrentTriple(ctx)
	if err != nil {
		return "", errors.Wrap(err, "[Transfer.BuildURL] CurrentTriple")
	}
	if triple == nil {
		return destination, nil
	}

	query := u.Query()
	query.Set(t.param, t.codec.Encode(*triple))
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// Consume extracts a transferred session from the arriving page's URL. It
// must run before the first access-control evaluation, or an authenticated
// arrival is momentarily misclassified as a guest. It returns the URL with
// the reserved parameter stripped, for history replacement: the token must
// never stay visible in the address bar. transferred reports whether a
// session was actually installed.
//
// A malformed parameter degrades to "no transferred session"; it is logged,
// stripped, and never fails the page load.
func (t *Transfer) Consume(ctx context.Context, rawURL string) (cleanURL string, transferred bool, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL, false, errors.Wrap(err, "[Transfer.Consume] url.Parse")
	}

	query := u.Query()
	encoded := query.Get(t.param)
	if encoded == "" {
		return rawURL, false, nil
	}

	query.Del(t.param)
	u.RawQuery = query.Encode()
	cleanURL = u.String()

	triple := t.codec.Decode(encoded)
	if triple == nil {
		log.Warn().Str("url", u.Host+u.Path).Msg("discarding malformed transfer token")
		return cleanURL, false, nil
	}

	if err := t.manager.SetTokens(ctx, *triple); err != nil {
		return cleanURL, false, errors.Wrap(err, "[Transfer.Consume] SetTokens")
	}
	return cleanURL, true, nil
}
