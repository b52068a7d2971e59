package postgres

import (
	"errors"
	"strings"
	"testing"
	"time"

	"geotourist/internal/points/domain"
)

func TestBuildInsert_Placeholders(t *testing.T) {
	rating := 4.5
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []domain.PointRecord{
		{ID: 1, Bucket: "gcpv", Category: "pub", DisplayName: "A", Coordinates: domain.Coordinates{Lat: 51.5, Lon: -0.12}},
		{ID: 2, Bucket: "gcpv", Category: "cafe", DisplayName: "B", Tags: []string{"b"}, Rating: &rating, RatingTimestamp: &ts},
	}
	stmt, err := BuildInsert(records)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.HasPrefix(stmt.SQL, "INSERT INTO osm (geohash4, amenity, id,") {
		t.Fatalf("unexpected sql: %s", stmt.SQL)
	}
	if !strings.Contains(stmt.SQL, "($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12), ($13,") {
		t.Fatalf("unexpected placeholders: %s", stmt.SQL)
	}
	if !strings.HasSuffix(stmt.SQL, "$24)") {
		t.Fatalf("unexpected tail: %s", stmt.SQL)
	}
	if len(stmt.Args) != 24 {
		t.Fatalf("expected 24 args, got %d", len(stmt.Args))
	}
	if tags, ok := stmt.Args[8].([]string); !ok || tags == nil || len(tags) != 0 {
		t.Fatalf("nil tags should be sent as an empty array, got %#v", stmt.Args[8])
	}
	if got := stmt.Args[12+10].(*float64); got == nil || *got != 4.5 {
		t.Fatalf("rating arg = %v", stmt.Args[22])
	}
}

func TestBuildInsert_TooLarge(t *testing.T) {
	records := make([]domain.PointRecord, MaxBatchRows+1)
	if _, err := BuildInsert(records); !errors.Is(err, ErrBatchTooLarge) {
		t.Fatalf("expected ErrBatchTooLarge, got %v", err)
	}
}

func TestDefaultSites(t *testing.T) {
	if len(DefaultSites) != 18 {
		t.Fatalf("expected 18 seed sites, got %d", len(DefaultSites))
	}
	seen := map[string]bool{}
	for _, site := range DefaultSites {
		if !site.Coordinates.Valid() || seen[site.Name] {
			t.Fatalf("bad seed site %+v", site)
		}
		seen[site.Name] = true
	}
}
