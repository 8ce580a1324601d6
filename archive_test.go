package jarkeep

import (
	"errors"
	"testing"
	"time"
)

func archivesEqual(a, b []Cookie) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.Name != y.Name || x.Value != y.Value || x.Domain != y.Domain || x.Path != y.Path || x.SessionOnly != y.SessionOnly {
			return false
		}
		if (x.Expires == nil) != (y.Expires == nil) {
			return false
		}
		if x.Expires != nil && x.Expires.Unix() != y.Expires.Unix() {
			return false
		}
	}
	return true
}

func TestArchiveRoundTrip(t *testing.T) {
	expires := time.Unix(1900000000, 0).UTC()
	records := []Cookie{
		{Name: "SAPISID", Value: "abc/123-xyz", Domain: ".youtube.com", Path: "/", Expires: &expires},
		{Name: "SID", Value: "söme·ünïcode™", Domain: ".youtube.com", Path: "/", SessionOnly: true},
		// Same name, different domain: both must survive.
		{Name: "SID", Value: "other", Domain: "music.youtube.com", Path: "/library", Expires: &expires},
		{Name: "HSID", Value: "", Domain: ".youtube.com", Path: "/"},
	}

	blob, err := EncodeArchive(records)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeArchive(blob)
	if err != nil {
		t.Fatal(err)
	}
	if !archivesEqual(records, got) {
		t.Fatalf("round trip mismatch:\n in: %#v\nout: %#v", records, got)
	}
}

func TestArchiveRoundTrip_SingleRecordNoExpiry(t *testing.T) {
	records := []Cookie{{Name: "APISID", Value: "v", Domain: "youtube.com", Path: "/", SessionOnly: true}}
	blob, err := EncodeArchive(records)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeArchive(blob)
	if err != nil {
		t.Fatal(err)
	}
	if !archivesEqual(records, got) {
		t.Fatalf("round trip mismatch: %#v", got)
	}
	if got[0].Expires != nil {
		t.Fatalf("expiry materialized from nothing")
	}
}

func TestEncodeArchive_EmptyIsSentinel(t *testing.T) {
	if _, err := EncodeArchive(nil); !errors.Is(err, ErrNoCookies) {
		t.Fatalf("got %v, want ErrNoCookies", err)
	}
	if _, err := EncodeArchive([]Cookie{}); !errors.Is(err, ErrNoCookies) {
		t.Fatalf("got %v, want ErrNoCookies", err)
	}
}

func TestDecodeArchive_Garbage(t *testing.T) {
	cases := map[string][]byte{
		"empty":         {},
		"wrong version": {0x7f, 0x01},
		"huge count":    {archiveVersion, 0xff, 0xff, 0xff, 0x7f},
		"truncated":     {archiveVersion, 0x01, 0x04, 'S', 'I'},
	}
	for name, blob := range cases {
		if _, err := DecodeArchive(blob); err == nil {
			t.Errorf("%s: decode succeeded on garbage", name)
		}
	}
}

func TestDecodeArchive_TrailingBytes(t *testing.T) {
	blob, err := EncodeArchive([]Cookie{{Name: "SID", Value: "v", Domain: "youtube.com", Path: "/"}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeArchive(append(blob, 0x00)); err == nil {
		t.Fatalf("decode accepted trailing bytes")
	}
}
