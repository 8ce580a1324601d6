package jarkeep

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tidwall/gjson"
)

func TestWriteMirror(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.json")
	exp := time.Unix(1900000000, 0).UTC()

	err := writeMirror(path, []Cookie{
		{Name: "SAPISID", Value: "s", Domain: ".youtube.com", Path: "/", Expires: &exp},
		{Name: "SID", Value: "x", Domain: ".youtube.com", Path: "/", SessionOnly: true},
	})
	if err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if n := gjson.GetBytes(raw, "cookies.#").Int(); n != 2 {
		t.Fatalf("want 2 mirrored cookies, got %d", n)
	}
	if got := gjson.GetBytes(raw, "cookies.0.expires").String(); got != exp.Format(time.RFC3339) {
		t.Fatalf("expires: %q", got)
	}
	if !gjson.GetBytes(raw, "cookies.1.sessionOnly").Bool() {
		t.Fatalf("sessionOnly lost: %s", raw)
	}

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != 0o600 {
		t.Fatalf("mirror mode %v, want 0600", fi.Mode().Perm())
	}
}
