package jarkeep

import (
	"os"
	"strings"
	"time"

	"github.com/go-ini/ini"
)

// Env overrides, mainly for deterministic tooling/CI.
const (
	envLegacyStore  = "JARKEEP_LEGACY_STORE"
	envKeepLegacy   = "JARKEEP_KEEP_LEGACY"
	envLegacySecret = "JARKEEP_LEGACY_SAFE_STORAGE_PASSWORD"
)

// Config wires the session keeper into a host application.
type Config struct {
	// KeyringService and KeyringAccount address the single vault entry in
	// the OS secure store.
	KeyringService string
	KeyringAccount string

	// ServiceDomain is the primary service host; AuthDomain is its
	// auth-cookie-bearing parent (usually dotted). Backup filtering keeps
	// only cookies matching one of the two.
	ServiceDomain string
	AuthDomain    string

	// DebounceWindow coalesces bursts of jar-change notifications into one
	// vault write. Tunable; affects write volume, not correctness.
	DebounceWindow time.Duration

	// LegacyStorePath points at the old on-disk cookie database left by the
	// embedded surface before secure storage existed. Empty disables
	// migration.
	LegacyStorePath string

	// LegacySafeStoragePassword decrypts v10-prefixed values in the legacy
	// store. Empty falls back to the store's well-known default.
	LegacySafeStoragePassword string

	// PreserveLegacy keeps the legacy artifact on disk after a successful
	// migration, for offline diagnostics tooling.
	PreserveLegacy bool

	// MirrorPath, when set, additionally writes each persisted archive as
	// plaintext JSON for offline tooling. Write-only; never read back.
	MirrorPath string
}

// DefaultConfig returns the stock wiring for the primary service.
func DefaultConfig() Config {
	return Config{
		KeyringService: "com.jarkeep.session",
		KeyringAccount: "default",
		ServiceDomain:  "music.youtube.com",
		AuthDomain:     ".youtube.com",
		DebounceWindow: 2 * time.Second,
	}
}

// LoadConfig reads an INI config file and applies environment overrides on
// top. Missing keys keep their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	out := DefaultConfig()

	file, err := ini.Load(path)
	if err != nil {
		return out, err
	}

	vault := file.Section("vault")
	if v := vault.Key("service").String(); v != "" {
		out.KeyringService = v
	}
	if v := vault.Key("account").String(); v != "" {
		out.KeyringAccount = v
	}

	sync := file.Section("sync")
	if v := sync.Key("service_domain").String(); v != "" {
		out.ServiceDomain = v
	}
	if v := sync.Key("auth_domain").String(); v != "" {
		out.AuthDomain = v
	}
	if ms, err := sync.Key("debounce_ms").Int64(); err == nil && ms > 0 {
		out.DebounceWindow = time.Duration(ms) * time.Millisecond
	}

	legacy := file.Section("legacy")
	if v := legacy.Key("store_path").String(); v != "" {
		out.LegacyStorePath = v
	}
	if v, err := legacy.Key("preserve").Bool(); err == nil {
		out.PreserveLegacy = v
	}

	diag := file.Section("diagnostics")
	if v := diag.Key("mirror_path").String(); v != "" {
		out.MirrorPath = v
	}

	out.applyEnv()
	return out, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(envLegacyStore)); v != "" {
		c.LegacyStorePath = v
	}
	if v := strings.TrimSpace(os.Getenv(envKeepLegacy)); v == "1" || strings.EqualFold(v, "true") {
		c.PreserveLegacy = true
	}
	if v := strings.TrimSpace(os.Getenv(envLegacySecret)); v != "" {
		c.LegacySafeStoragePassword = v
	}
}

// syncDomains lists the domains whose cookies are persisted during backup.
func (c Config) syncDomains() []string {
	var out []string
	if c.ServiceDomain != "" {
		out = append(out, c.ServiceDomain)
	}
	if c.AuthDomain != "" {
		out = append(out, c.AuthDomain)
	}
	return out
}
