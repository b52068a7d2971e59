package query

import (
	"errors"
	"strings"
	"testing"

	"geotourist/internal/points/domain"
)

var trafalgar = domain.Coordinates{Lat: 51.506712, Lon: -0.127235}

func TestBuild_Bucket(t *testing.T) {
	b, err := NewBuilder(StrategyBucket)
	if err != nil {
		t.Fatalf("builder: %v", err)
	}
	stmt, err := b.Build(trafalgar, "pub")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, want := range []string{
		"geohash4 = $3 AND amenity = $4",
		"WHERE dist_m < $5",
		"ORDER BY dist_m ASC",
		"LIMIT $6",
		"::NUMERIC(9, 2)",
		"FROM osm",
	} {
		if !strings.Contains(stmt.SQL, want) {
			t.Fatalf("sql missing %q:\n%s", want, stmt.SQL)
		}
	}
	if strings.Contains(stmt.SQL, "ST_DWithin") {
		t.Fatalf("bucket statement should not use ST_DWithin")
	}
	wantArgs := []any{trafalgar.Lon, trafalgar.Lat, "gcpv", "pub", DefaultRadiusMeters, DefaultLimit}
	assertArgs(t, stmt.Args, wantArgs)
}

func TestBuild_BucketCategoryPrefix(t *testing.T) {
	b, _ := NewBuilder(StrategyBucket, WithCategoryPrefix("amenity="))
	stmt, err := b.Build(trafalgar, "cafe")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if stmt.Args[3] != "amenity=cafe" {
		t.Fatalf("category arg = %v", stmt.Args[3])
	}
}

func TestBuild_Radius(t *testing.T) {
	b, _ := NewBuilder(StrategyRadius, WithRadius(2500), WithLimit(5))
	stmt, err := b.Build(trafalgar, "cafe")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, want := range []string{
		"ST_DWithin(ST_MakePoint($1::FLOAT8, $2::FLOAT8)::GEOGRAPHY, ref_point, $3::FLOAT8, TRUE)",
		"key_value && ARRAY[$4::TEXT]",
		"LIMIT $5",
	} {
		if !strings.Contains(stmt.SQL, want) {
			t.Fatalf("sql missing %q:\n%s", want, stmt.SQL)
		}
	}
	if strings.Contains(stmt.SQL, "geohash4 =") || strings.Contains(stmt.SQL, "dist_m <") {
		t.Fatalf("radius statement should not filter by bucket:\n%s", stmt.SQL)
	}
	assertArgs(t, stmt.Args, []any{trafalgar.Lon, trafalgar.Lat, 2500.0, "amenity=cafe", 5})
}

func TestBuild_RejectsBadInput(t *testing.T) {
	b, _ := NewBuilder(StrategyBucket)
	if _, err := b.Build(domain.Coordinates{Lat: 120}, "pub"); !errors.Is(err, domain.ErrInvalidCoordinates) {
		t.Fatalf("expected invalid coordinates, got %v", err)
	}
	if _, err := b.Build(trafalgar, "  "); !errors.Is(err, domain.ErrEmptyCategory) {
		t.Fatalf("expected empty category, got %v", err)
	}
}

func TestParseStrategy(t *testing.T) {
	if s, err := ParseStrategy(" Radius "); err != nil || s != StrategyRadius {
		t.Fatalf("unexpected %v %v", s, err)
	}
	if _, err := ParseStrategy("grid"); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := NewBuilder("grid"); err == nil {
		t.Fatalf("expected error")
	}
}

func assertArgs(t *testing.T, got, want []any) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("args = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("arg %d = %v (%T), want %v (%T)", i, got[i], got[i], want[i], want[i])
		}
	}
}
