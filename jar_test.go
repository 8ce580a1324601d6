package jarkeep

import (
	"context"
	"testing"
)

func TestMemoryJar_UpsertByIdentity(t *testing.T) {
	jar := NewMemoryJar()
	ctx := context.Background()

	mustSet := func(c Cookie) {
		t.Helper()
		if err := jar.SetCookie(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	mustSet(Cookie{Name: "SID", Domain: ".youtube.com", Path: "/", Value: "one"})
	mustSet(Cookie{Name: "SID", Domain: "music.youtube.com", Path: "/", Value: "two"})
	mustSet(Cookie{Name: "SID", Domain: ".youtube.com", Path: "/", Value: "three"})

	got, err := jar.Cookies(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 records, got %d", len(got))
	}
	// Replacement keeps the original slot, order is insertion order.
	if got[0].Value != "three" || got[1].Value != "two" {
		t.Fatalf("unexpected contents: %#v", got)
	}
}

func TestMemoryJar_Notifications(t *testing.T) {
	jar := NewMemoryJar()
	ctx := context.Background()

	var fired int
	jar.OnChange(func() { fired++ })

	if err := jar.SetCookie(ctx, Cookie{Name: "SID", Domain: "youtube.com", Path: "/", Value: "v"}); err != nil {
		t.Fatal(err)
	}
	if fired != 1 {
		t.Fatalf("want 1 notification, got %d", fired)
	}

	jar.RemoveCookie(Cookie{Name: "SID", Domain: "youtube.com", Path: "/"})
	if fired != 2 {
		t.Fatalf("want 2 notifications, got %d", fired)
	}

	got, err := jar.Cookies(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("remove left %d records", len(got))
	}
}
