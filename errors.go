package jarkeep

import "errors"

// ErrVaultUnavailable is returned when the secure backend cannot be reached in
// the current execution context (sandboxing, missing keyring daemon, unsigned
// build). Callers treat it as "no session", not as a fatal condition.
var ErrVaultUnavailable = errors.New("jarkeep: credential vault unavailable")

// ErrVaultCorrupted is returned when a vault entry exists but cannot be
// decoded. The entry is left in place; the session is treated as absent.
var ErrVaultCorrupted = errors.New("jarkeep: credential vault entry corrupted")

// ErrMigrationVerify is returned when a legacy migration wrote to the vault
// but the read-back verification failed. The legacy artifact is retained.
var ErrMigrationVerify = errors.New("jarkeep: migration verification failed")

// ErrNoAuthSecret is returned when signing is attempted without an auth
// secret. Callers must check GetAuthSecret before signing.
var ErrNoAuthSecret = errors.New("jarkeep: no auth secret available")

// ErrNoCookies is returned by EncodeArchive for an empty record set. An empty
// session is never persisted over a previously good one.
var ErrNoCookies = errors.New("jarkeep: no cookies to archive")
