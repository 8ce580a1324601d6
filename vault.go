package jarkeep

import (
	"encoding/base64"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/zalando/go-keyring"
)

// Vault is a durable, secure, single-slot store for one opaque blob. At most
// one entry exists at any time; Save is an atomic upsert.
type Vault interface {
	HasEntry() bool
	Save(blob []byte) error
	// Load returns (nil, nil) when no entry exists; absence is not an error.
	Load() ([]byte, error)
	Delete() error
}

// KeyringVault stores the blob as one generic password in the OS secure store
// (Keychain, Secret Service, Credential Manager), addressed by a fixed
// (service, account) pair.
type KeyringVault struct {
	service string
	account string
	log     *log.Logger
}

// NewKeyringVault returns a vault bound to cfg's keyring service and account.
// A nil logger means the process-wide standard logger.
func NewKeyringVault(cfg Config, logger *log.Logger) *KeyringVault {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &KeyringVault{service: cfg.KeyringService, account: cfg.KeyringAccount, log: logger}
}

// HasEntry reports whether the vault currently holds an entry. Backend
// failures read as "no entry": the caller paths that branch on presence all
// degrade to "please sign in".
func (v *KeyringVault) HasEntry() bool {
	_, err := keyring.Get(v.service, v.account)
	return err == nil
}

// Save upserts the single vault entry. The keyring backend replaces an
// existing password under the same (service, account) in one operation, so a
// reader never observes a partial or duplicate entry.
func (v *KeyringVault) Save(blob []byte) error {
	encoded := base64.StdEncoding.EncodeToString(blob)
	if err := keyring.Set(v.service, v.account, encoded); err != nil {
		return v.wrap("save", err)
	}
	v.log.WithField("bytes", len(blob)).Debug("vault: entry saved")
	return nil
}

// Load returns the stored blob, or (nil, nil) when no entry exists.
func (v *KeyringVault) Load() ([]byte, error) {
	encoded, err := keyring.Get(v.service, v.account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			v.log.Debug("vault: no entry")
			return nil, nil
		}
		return nil, v.wrap("load", err)
	}

	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		// The entry is left in place: silently deleting secure data over a
		// decode error is too destructive. Treated as absent upstream.
		v.log.WithError(err).Error("vault: entry is not valid base64")
		return nil, fmt.Errorf("%w: %v", ErrVaultCorrupted, err)
	}
	v.log.WithField("bytes", len(blob)).Debug("vault: entry loaded")
	return blob, nil
}

// Delete removes the vault entry. Deleting an absent entry is not an error.
func (v *KeyringVault) Delete() error {
	if err := keyring.Delete(v.service, v.account); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return v.wrap("delete", err)
	}
	v.log.Debug("vault: entry deleted")
	return nil
}

func (v *KeyringVault) wrap(op string, err error) error {
	if errors.Is(err, keyring.ErrUnsupportedPlatform) {
		return fmt.Errorf("%w: %v", ErrVaultUnavailable, err)
	}
	return fmt.Errorf("jarkeep: vault %s: %w", op, err)
}
