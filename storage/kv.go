package storage

import "context"

// KV is the persistent key-value collaborator the identity client writes
// through. It stands in for whatever durable, per-device storage the host
// application has (browser localStorage, a CLI config dir, redis for a
// shared agent). Implementations must tolerate concurrent access.
//
// Get returns ok=false for a missing key; absence is not an error.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
