package token

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
)

// transferPayload is the wire shape carried in the cross-domain handoff
// parameter. The expiry travels as a relative lifetime so the two sides do
// not need synchronised clocks.
type transferPayload struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Codec encodes a Triple for transport as a URL query value and decodes it
// back. The encoding is reversible base64url(JSON) with padding stripped; the
// channel is a same-organisation redirect, so no encryption is applied.
type Codec struct {
	nowFunc func() time.Time
}

type CodecOption func(*Codec)

// WithCodecNowFunc sets the now time function (primarily for testing)
func WithCodecNowFunc(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.nowFunc = now
	}
}

func NewCodec(options ...CodecOption) *Codec {
	c := &Codec{nowFunc: time.Now}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Encode serialises the triple into a URL-safe string.
func (c *Codec) Encode(t Triple) string {
	payload := transferPayload{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresIn:    int64(t.ExpiresAt.Sub(c.nowFunc()).Seconds()),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		// transferPayload contains only strings and an int64
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// Decode parses a transfer string back into a Triple. It returns nil on any
// malformed input: a decode failure degrades to "no transferred session" and
// must never take down the consuming page.
func (c *Codec) Decode(encoded string) *Triple {
	if strings.TrimSpace(encoded) == "" {
		return nil
	}

	// Tolerate padded input and standard-alphabet escapes from sloppy senders.
	normalised := strings.TrimRight(encoded, "=")
	normalised = strings.ReplaceAll(normalised, "+", "-")
	normalised = strings.ReplaceAll(normalised, "/", "_")

	raw, err := base64.RawURLEncoding.DecodeString(normalised)
	if err != nil {
		return nil
	}

	var payload transferPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	if payload.AccessToken == "" {
		return nil
	}

	triple := NewTriple(payload.AccessToken, payload.RefreshToken, payload.ExpiresIn, c.nowFunc())
	return &triple
}
