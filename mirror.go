package jarkeep

import (
	"encoding/json"
	"os"
	"time"
)

// mirrorCookie is the JSON shape written to the diagnostics mirror file. The
// mirror is write-only from this package's perspective; offline tooling is
// the only consumer.
type mirrorCookie struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Domain      string `json:"domain"`
	Path        string `json:"path"`
	Expires     string `json:"expires,omitempty"`
	SessionOnly bool   `json:"sessionOnly,omitempty"`
}

func writeMirror(path string, records []Cookie) error {
	out := make([]mirrorCookie, 0, len(records))
	for _, c := range records {
		mc := mirrorCookie{
			Name:        c.Name,
			Value:       c.Value,
			Domain:      c.Domain,
			Path:        c.Path,
			SessionOnly: c.SessionOnly,
		}
		if c.Expires != nil {
			mc.Expires = c.Expires.UTC().Format(time.RFC3339)
		}
		out = append(out, mc)
	}

	b, err := json.MarshalIndent(struct {
		Cookies []mirrorCookie `json:"cookies"`
	}{Cookies: out}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o600)
}
