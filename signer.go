package jarkeep

import (
	"crypto/sha1" //nolint:gosec // The SAPISIDHASH protocol is defined over SHA-1.
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// AuthScheme is the fixed prefix placed before the signature in the
// Authorization header.
const AuthScheme = "SAPISIDHASH"

// SignRequest computes the SAPISIDHASH-style signature for one request:
// "<unix-seconds>_<lowercase sha1 hex>" over the exact byte string
// "<unix-seconds> <secret> <origin>". The remote service compares this value
// verbatim; any deviation makes the request unauthenticated.
func SignRequest(secret, origin string, now time.Time) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", ErrNoAuthSecret
	}
	ts := now.Unix()
	sum := sha1.Sum([]byte(fmt.Sprintf("%d %s %s", ts, secret, origin))) //nolint:gosec // Protocol-mandated SHA-1.
	return fmt.Sprintf("%d_%s", ts, hex.EncodeToString(sum[:])), nil
}

// AuthorizationHeader returns the full Authorization header value, scheme
// prefix included.
func AuthorizationHeader(secret, origin string, now time.Time) (string, error) {
	sig, err := SignRequest(secret, origin, now)
	if err != nil {
		return "", err
	}
	return AuthScheme + " " + sig, nil
}
