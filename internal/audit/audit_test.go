package audit

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestComplete_FillsDefaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	entry := complete(Entry{Action: "feature.rate", Metadata: []byte(`{"rating":4}`)}, now)

	if !strings.HasPrefix(entry.ID, "audit-") {
		t.Fatalf("unexpected id %q", entry.ID)
	}
	if !entry.CreatedAt.Equal(now) || entry.CreatedAt.Location() != time.UTC {
		t.Fatalf("expected UTC timestamp, got %v", entry.CreatedAt)
	}
	if entry.PayloadDigest != DigestJSON([]byte(`{"rating":4}`)) || len(entry.PayloadDigest) != 64 {
		t.Fatalf("unexpected digest %q", entry.PayloadDigest)
	}
}

func TestComplete_KeepsProvidedValues(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entry := complete(Entry{ID: "audit-1", CreatedAt: at, PayloadDigest: "d"}, time.Now())
	if entry.ID != "audit-1" || !entry.CreatedAt.Equal(at) || entry.PayloadDigest != "d" {
		t.Fatalf("provided values overwritten: %+v", entry)
	}
}

func TestDigestJSON_Empty(t *testing.T) {
	if DigestJSON(nil) != "" {
		t.Fatalf("expected empty digest")
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("PUT", "/features/gcpv/cafe/1/rating", nil)
	req.RemoteAddr = "203.0.113.7:5123"
	if got := ClientIP(req); got != "203.0.113.7" {
		t.Fatalf("got %q", got)
	}
	req.RemoteAddr = "203.0.113.8"
	if got := ClientIP(req); got != "203.0.113.8" {
		t.Fatalf("got %q", got)
	}
	if ClientIP(nil) != "" {
		t.Fatalf("expected empty for nil request")
	}
}

func TestNewRepository_NilExecutor(t *testing.T) {
	if _, err := NewRepository(nil); err == nil {
		t.Fatalf("expected error")
	}
}
