package jarkeep

import (
	"crypto/aes"
	"crypto/cipher"
	"database/sql"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// memVault is an in-memory Vault test double.
type memVault struct {
	mu        sync.Mutex
	blob      []byte
	saves     int
	saveErr   error
	loadErr   error
	dropSaves bool // Save reports success but stores nothing
}

func (v *memVault) HasEntry() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.blob != nil
}

func (v *memVault) Save(blob []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.saveErr != nil {
		return v.saveErr
	}
	v.saves++
	if v.dropSaves {
		return nil
	}
	v.blob = append([]byte(nil), blob...)
	return nil
}

func (v *memVault) Load() ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.loadErr != nil {
		return nil, v.loadErr
	}
	if v.blob == nil {
		return nil, nil
	}
	return append([]byte(nil), v.blob...), nil
}

func (v *memVault) Delete() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.blob = nil
	return nil
}

func (v *memVault) saveCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.saves
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

// writeLegacyFixture builds a legacy-format cookie database at dir/Cookies.
func writeLegacyFixture(t *testing.T, dir string, metaVersion int, rows []legacyFixtureRow) string {
	t.Helper()

	path := filepath.Join(dir, "Cookies")
	db, err := sql.Open("sqlite", "file:"+filepath.ToSlash(path)+"?mode=rwc")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	stmts := []string{
		`CREATE TABLE meta (key TEXT, value TEXT)`,
		`CREATE TABLE cookies (
			host_key TEXT, name TEXT, path TEXT, value TEXT,
			encrypted_value BLOB, expires_utc INTEGER
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := db.Exec(`INSERT INTO meta (key, value) VALUES ('version', ?)`, metaVersion); err != nil {
		t.Fatal(err)
	}
	for _, r := range rows {
		if _, err := db.Exec(
			`INSERT INTO cookies (host_key, name, path, value, encrypted_value, expires_utc) VALUES (?, ?, ?, ?, ?, ?)`,
			r.hostKey, r.name, r.path, r.value, r.encrypted, r.expiresUTC,
		); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

type legacyFixtureRow struct {
	hostKey    string
	name       string
	path       string
	value      string
	encrypted  []byte
	expiresUTC int64
}

func legacyExpiresFromUnix(sec int64) int64 {
	return sec*1_000_000 + legacyEpochDiffMicros
}

func pkcs7Pad(t *testing.T, b []byte) []byte {
	t.Helper()
	paddingLen := aes.BlockSize - (len(b) % aes.BlockSize)
	if paddingLen == 0 {
		paddingLen = aes.BlockSize
	}
	out := make([]byte, 0, len(b)+paddingLen)
	out = append(out, b...)
	for i := 0; i < paddingLen; i++ {
		out = append(out, byte(paddingLen))
	}
	return out
}

func encryptLegacyValueForTest(t *testing.T, key []byte, plaintext []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatal(err)
	}
	padded := pkcs7Pad(t, plaintext)
	ciphertext := make([]byte, len(padded))
	cbc := cipher.NewCBCEncrypter(block, []byte(legacySafeStorageIV))
	cbc.CryptBlocks(ciphertext, padded)
	return append([]byte("v10"), ciphertext...)
}

var errBackendDown = errors.New("backend down")

// testLogger returns a logger that stays quiet under `go test`.
func testLogger() *log.Logger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}
