// Package jarkeep keeps an authenticated web session alive across host
// application restarts.
//
// It synchronizes the live in-memory cookie jar of an embedded web surface
// with the operating system's secure credential store, migrates cookies out of
// a legacy on-disk profile exactly once, and computes the SAPISIDHASH-style
// authorization material that cookie-trusting APIs expect on every request.
package jarkeep
