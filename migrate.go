package jarkeep

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// MigrationResult reports the outcome of one Migrator run.
type MigrationResult int

const (
	// NotMigrated means no migration happened this run: already migrated,
	// no legacy artifact, nothing worth keeping, or verification failed.
	NotMigrated MigrationResult = iota
	// Migrated means legacy cookies were moved into the vault and verified.
	Migrated
)

func (r MigrationResult) String() string {
	if r == Migrated {
		return "migrated"
	}
	return "not-migrated"
}

// Migrator moves cookies from the legacy on-disk store into the vault,
// exactly once. It is safe and cheap to run on every process start: an
// existing vault entry short-circuits everything else.
type Migrator struct {
	vault Vault
	cfg   Config
	log   *log.Logger
	now   func() time.Time
}

// NewMigrator returns a migrator for cfg's legacy store and the given vault.
func NewMigrator(vault Vault, cfg Config, logger *log.Logger) *Migrator {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Migrator{vault: vault, cfg: cfg, log: logger, now: time.Now}
}

// Run executes the migration state machine. The legacy artifact survives only
// when it may still be needed: it is deleted once its contents are verified
// in the vault (or found worthless), and retained whenever verification
// fails, so a failed run never loses the only copy of a session.
func (m *Migrator) Run(ctx context.Context) (MigrationResult, error) {
	if m.vault.HasEntry() {
		return NotMigrated, nil
	}

	path := m.cfg.LegacyStorePath
	if path == "" || !fileExists(path) {
		return NotMigrated, nil
	}

	records, err := readLegacyStore(ctx, path, m.cfg.LegacySafeStoragePassword, m.log)
	if err != nil {
		// Unreadable artifact is treated as corrupted and removed; it can
		// never become readable again and would re-fail every launch.
		m.log.WithError(err).Error("migrate: legacy store unreadable, removing")
		if rmErr := removeLegacyStore(path); rmErr != nil {
			m.log.WithError(rmErr).Error("migrate: failed to remove legacy store")
		}
		return NotMigrated, nil
	}

	now := m.now()
	valid := make([]Cookie, 0, len(records))
	for _, c := range records {
		if IsValidAuthCookie(c, now) {
			valid = append(valid, c)
		}
	}
	if len(valid) == 0 {
		m.log.WithField("cookies", len(records)).Info("migrate: no valid auth cookies in legacy store")
		if !m.cfg.PreserveLegacy {
			if rmErr := removeLegacyStore(path); rmErr != nil {
				m.log.WithError(rmErr).Error("migrate: failed to remove legacy store")
			}
		}
		return NotMigrated, nil
	}

	blob, err := EncodeArchive(valid)
	if err != nil {
		return NotMigrated, err
	}
	if err := m.vault.Save(blob); err != nil {
		m.log.WithError(err).Error("migrate: vault save failed, keeping legacy store")
		return NotMigrated, fmt.Errorf("%w: %v", ErrMigrationVerify, err)
	}

	if err := m.verify(); err != nil {
		// The vault write did not stick; the artifact stays as fallback.
		m.log.WithError(err).Error("migrate: verification failed, keeping legacy store")
		return NotMigrated, err
	}

	m.log.WithField("cookies", len(valid)).Info("migrate: legacy cookies moved to vault")
	if !m.cfg.PreserveLegacy {
		if err := removeLegacyStore(path); err != nil {
			m.log.WithError(err).Error("migrate: failed to remove legacy store")
		}
	}
	return Migrated, nil
}

func (m *Migrator) verify() error {
	blob, err := m.vault.Load()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMigrationVerify, err)
	}
	if len(blob) == 0 {
		return fmt.Errorf("%w: entry absent after save", ErrMigrationVerify)
	}
	records, err := DecodeArchive(blob)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMigrationVerify, err)
	}
	if len(records) == 0 {
		return fmt.Errorf("%w: archive empty after save", ErrMigrationVerify)
	}
	return nil
}
