package jarkeep

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1" //nolint:gosec // The legacy store's PBKDF2 scheme ("saltysalt", sha1) predates this package.
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/pbkdf2"
	_ "modernc.org/sqlite" // SQLite driver (pure Go).
)

// The legacy artifact is the Chromium-format cookie database the embedded web
// surface kept on disk before the secure vault existed. Values are either
// plaintext or v10-prefixed AES-128-CBC with the surface's safe-storage key.
const (
	legacySafeStorageSalt       = "saltysalt"
	legacySafeStorageIV         = "                " // 16 spaces
	legacySafeStorageIterations = 1
	legacySafeStorageKeyLen     = 16
	legacyDefaultPassword       = "peanuts"
)

// legacyEpochDiffMicros converts the store's microseconds-since-1601 stamps
// to unix time.
const legacyEpochDiffMicros = int64(11644473600000000)

type legacyRow struct {
	hostKey        string
	name           string
	path           string
	value          string
	encryptedValue []byte
	expiresUTC     int64
}

// readLegacyStore loads every cookie from the legacy database at path. The
// file is snapshotted to a temp directory before opening so a surface still
// holding the database does not block the read.
func readLegacyStore(ctx context.Context, path, password string, logger *log.Logger) ([]Cookie, error) {
	snapshot, cleanup, err := legacySnapshot(path)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	db, err := legacyOpenDB(ctx, snapshot)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	metaVersion := legacyMetaVersion(ctx, db)
	rows, err := legacyReadRows(ctx, db)
	if err != nil {
		return nil, err
	}

	if password == "" {
		password = legacyDefaultPassword
	}
	key := legacyDeriveKey(password)

	out := make([]Cookie, 0, len(rows))
	for _, row := range rows {
		c, ok := legacyRowToCookie(row, metaVersion, key)
		if !ok {
			logger.WithField("name", row.name).Debug("legacy: skipping undecodable row")
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func legacySnapshot(dbPath string) (snapshotPath string, cleanup func(), err error) {
	dir, err := os.MkdirTemp("", "jarkeep-legacy-")
	if err != nil {
		return "", nil, err
	}
	cleanup = func() { _ = os.RemoveAll(dir) }

	target := filepath.Join(dir, "Cookies")
	if err := copyFile(dbPath, target); err != nil {
		cleanup()
		return "", nil, err
	}

	// If WAL mode is enabled, recent writes may live in sidecars.
	_ = copyFileIfExists(dbPath+"-wal", target+"-wal")
	_ = copyFileIfExists(dbPath+"-shm", target+"-shm")

	return target, cleanup, nil
}

func legacyOpenDB(ctx context.Context, snapshotPath string) (*sql.DB, error) {
	dsn := "file:" + filepath.ToSlash(snapshotPath) + "?mode=ro"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func legacyMetaVersion(ctx context.Context, db *sql.DB) int64 {
	var value int64
	err := db.QueryRowContext(ctx, `SELECT CAST(value AS INTEGER) FROM meta WHERE key = 'version'`).Scan(&value)
	if err != nil {
		return 0
	}
	return value
}

func legacyReadRows(ctx context.Context, db *sql.DB) ([]legacyRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT host_key, name, path, value, encrypted_value, expires_utc
		FROM cookies
		ORDER BY expires_utc DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []legacyRow
	for rows.Next() {
		var r legacyRow
		var encrypted []byte
		var expires sql.NullInt64

		if err := rows.Scan(&r.hostKey, &r.name, &r.path, &r.value, &encrypted, &expires); err != nil {
			return nil, err
		}
		r.encryptedValue = encrypted
		if expires.Valid {
			r.expiresUTC = expires.Int64
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func legacyRowToCookie(row legacyRow, metaVersion int64, key []byte) (Cookie, bool) {
	if row.name == "" || row.hostKey == "" {
		return Cookie{}, false
	}

	value := row.value
	if value == "" && len(row.encryptedValue) > 0 {
		plain, err := legacyDecryptValue(row.encryptedValue, key, metaVersion)
		if err != nil {
			return Cookie{}, false
		}
		decoded, ok := legacyDecodeValue(plain)
		if !ok {
			return Cookie{}, false
		}
		value = decoded
	}
	if value == "" {
		return Cookie{}, false
	}

	c := Cookie{
		Name:   row.name,
		Value:  value,
		Domain: row.hostKey,
		Path:   row.path,
	}
	if expires, ok := legacyExpiresToTime(row.expiresUTC); ok {
		c.Expires = &expires
	} else {
		c.SessionOnly = true
	}
	if c.Path == "" {
		c.Path = "/"
	}
	return c, true
}

func legacyExpiresToTime(expiresUTC int64) (time.Time, bool) {
	unixMicros := expiresUTC - legacyEpochDiffMicros
	if unixMicros <= 0 {
		return time.Time{}, false
	}
	return time.Unix(0, unixMicros*1000).UTC(), true
}

func legacyDeriveKey(password string) []byte {
	return pbkdf2.Key([]byte(password), []byte(legacySafeStorageSalt),
		legacySafeStorageIterations, legacySafeStorageKeyLen, sha1.New)
}

// legacyDecryptValue handles the two value encodings found in legacy stores:
// a v10-prefixed AES-CBC ciphertext, or raw plaintext bytes.
func legacyDecryptValue(encrypted []byte, key []byte, metaVersion int64) ([]byte, error) {
	if len(encrypted) == 0 {
		return nil, errors.New("empty encrypted value")
	}
	if !hasLegacyVersionPrefix(encrypted) {
		plain := make([]byte, len(encrypted))
		copy(plain, encrypted)
		return plain, nil
	}

	ciphertext := encrypted[3:]
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.New("cipher input not full blocks")
	}

	out := make([]byte, len(ciphertext))
	cbc := cipher.NewCBCDecrypter(block, []byte(legacySafeStorageIV))
	cbc.CryptBlocks(out, ciphertext)

	out, err = stripPKCS7Padding(out)
	if err != nil {
		return nil, err
	}
	if metaVersion >= 24 && len(out) >= 32 {
		// Newer schema versions prepend a 32-byte host hash.
		out = out[32:]
	}
	return out, nil
}

func hasLegacyVersionPrefix(b []byte) bool {
	if len(b) < 3 || b[0] != 'v' {
		return false
	}
	return b[1] >= '0' && b[1] <= '9' && b[2] >= '0' && b[2] <= '9'
}

func stripPKCS7Padding(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return b, nil
	}
	paddingLen := int(b[len(b)-1])
	if paddingLen <= 0 || paddingLen > aes.BlockSize || paddingLen > len(b) {
		return nil, fmt.Errorf("invalid padding length: %d", paddingLen)
	}
	for _, p := range b[len(b)-paddingLen:] {
		if int(p) != paddingLen {
			return nil, errors.New("invalid padding bytes")
		}
	}
	return b[:len(b)-paddingLen], nil
}

func legacyDecodeValue(b []byte) (string, bool) {
	i := 0
	for i < len(b) && b[i] < 0x20 {
		i++
	}
	if !utf8.Valid(b[i:]) {
		return "", false
	}
	return string(b[i:]), true
}

// removeLegacyStore deletes the artifact and its WAL sidecars.
func removeLegacyStore(path string) error {
	err := os.Remove(path)
	_ = os.Remove(path + "-wal")
	_ = os.Remove(path + "-shm")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

func copyFileIfExists(src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return copyFile(src, dst)
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
