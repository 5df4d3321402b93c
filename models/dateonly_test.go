package models

import (
	"encoding/json"
	"testing"
	"time"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("parse date %q: %v", s, err)
	}
	return d
}

func TestDateOnlyJSON(t *testing.T) {
	d := NewDateOnly(mustDate(t, "2026-03-01"))
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"2026-03-01"` {
		t.Fatalf("marshal = %s", b)
	}

	var parsed DateOnly
	if err := json.Unmarshal([]byte(`"2026-12-31"`), &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if parsed.String() != "2026-12-31" {
		t.Fatalf("round trip = %s", parsed.String())
	}

	if err := json.Unmarshal([]byte(`"31/12/2026"`), &parsed); err == nil {
		t.Fatal("non-ISO date must be rejected")
	}
}
