package ingest

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

const sampleLine = "78347<2018-08-09T22:29:35Z<366321<51.5194<-0.1270<Museum Tavern<amenity=pub|addr:street=Great Russell Street|addr:postcode=WC1B 3BA<gcpvhf3x8<<"

func TestParse_Transforms(t *testing.T) {
	n := NewNormalizer(SchemaIngest)
	rec, err := n.Parse(sampleLine)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rec.ID != 78347 || rec.Bucket != "gcpv" || rec.Category != "pub" || rec.SubmitterID != "366321" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Coordinates.Lat != 51.5194 || rec.Coordinates.Lon != -0.1270 {
		t.Fatalf("unexpected coordinates: %+v", rec.Coordinates)
	}
	wantTags := []string{"museum", "tavern", "amenity=pub", "addr:street=Great Russell Street", "addr:postcode=WC1B 3BA"}
	if !reflect.DeepEqual(rec.Tags, wantTags) {
		t.Fatalf("tags = %q, want %q", rec.Tags, wantTags)
	}
	if rec.SearchHints != "Great Russell Street WC1B 3BA" {
		t.Fatalf("hints = %q", rec.SearchHints)
	}
	if rec.Rating != nil || rec.RatingTimestamp != nil {
		t.Fatalf("expected no rating")
	}
	want := time.Date(2018, 8, 9, 22, 29, 35, 0, time.UTC)
	if rec.CapturedAt == nil || !rec.CapturedAt.Equal(want) {
		t.Fatalf("captured at = %v", rec.CapturedAt)
	}
}

func TestParse_ScenarioTagsAndHints(t *testing.T) {
	n := NewNormalizer(SchemaIngest)
	line := "1<<u<48.1<11.5<Café Zur Post<amenity=cafe|addr:city=Springfield|cuisine=coffee_shop<u281<4.5<2024-03-01T10:00:00"
	rec, err := n.Parse(line)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rec.Category != "cafe" || rec.SearchHints != "Springfield" || rec.DisplayName != "Café Zur Post" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	wantTags := []string{"café", "zur", "post", "amenity=cafe", "addr:city=Springfield", "cuisine=coffee_shop"}
	if !reflect.DeepEqual(rec.Tags, wantTags) {
		t.Fatalf("tags = %q, want %q", rec.Tags, wantTags)
	}
	if rec.Bucket != "u281" {
		t.Fatalf("bucket = %q", rec.Bucket)
	}
	if rec.Rating == nil || *rec.Rating != 4.5 || rec.RatingTimestamp == nil {
		t.Fatalf("expected rating with timestamp: %+v", rec)
	}
}

func TestParse_HTMLDecodingAndStripping(t *testing.T) {
	n := NewNormalizer(SchemaRaw)
	line := `5<<u<40.7<-73.9<Ben &amp; Jerry&#39;s<amenity=ice_cream|brand={&quot;Ben, Jerry&quot;}<dr5r`
	rec, err := n.Parse(line)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rec.DisplayName != "Ben & Jerry's" {
		t.Fatalf("name = %q", rec.DisplayName)
	}
	if rec.Tags[len(rec.Tags)-1] != "brand=Ben Jerry" {
		t.Fatalf("tags = %q", rec.Tags)
	}
	if rec.Category != "ice_cream" {
		t.Fatalf("category = %q", rec.Category)
	}
}

func TestParse_LastAmenityWins(t *testing.T) {
	n := NewNormalizer(SchemaRaw)
	rec, err := n.Parse("9<<u<1.5<2.5<X<amenity=bar|amenity=pub<s00t")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rec.Category != "pub" {
		t.Fatalf("category = %q", rec.Category)
	}
}

func TestParse_OnlyAmenityEqualsSetsCategory(t *testing.T) {
	n := NewNormalizer(SchemaRaw)
	rec, err := n.Parse("1<<u<1.5<2.5<X<amenity_disused=pub|amenity:cuisine=thai<s00t")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rec.Category != "" {
		t.Fatalf("category = %q, want empty", rec.Category)
	}
	wantTags := []string{"x", "amenity_disused=pub", "amenity:cuisine=thai"}
	if !reflect.DeepEqual(rec.Tags, wantTags) {
		t.Fatalf("tags = %q, want %q", rec.Tags, wantTags)
	}

	rec, err = n.Parse("2<<u<1.5<2.5<X<amenity:cuisine=thai|amenity=restaurant<s00t")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rec.Category != "restaurant" {
		t.Fatalf("category = %q, want restaurant", rec.Category)
	}
}

func TestParse_ScenarioTrafficSignalsWithoutCategory(t *testing.T) {
	n := NewNormalizer(SchemaIngest)
	rec, err := n.Parse("78347<2018-08-09T22:29:35Z<366321<63.4305942<10.3921538<Prinsenkrysset<highway=traffic_signals<u5r2u7<<")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rec.Category != "" || rec.Bucket != "u5r2" || rec.DisplayName != "Prinsenkrysset" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	wantTags := []string{"prinsenkrysset", "highway=traffic_signals"}
	if !reflect.DeepEqual(rec.Tags, wantTags) {
		t.Fatalf("tags = %q, want %q", rec.Tags, wantTags)
	}
	if rec.Coordinates.Lat != 63.4305942 || rec.Coordinates.Lon != 10.3921538 || rec.Rating != nil {
		t.Fatalf("unexpected coordinates/rating: %+v", rec)
	}
}

func TestParse_DerivesBucketWhenGeohashMissing(t *testing.T) {
	n := NewNormalizer(SchemaRaw)
	rec, err := n.Parse("9<<u<51.506712<-0.127235<Trafalgar<tourism=attraction<")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rec.Bucket != "gcpv" {
		t.Fatalf("bucket = %q", rec.Bucket)
	}
}

func TestParse_SkipsSentinelAndBlank(t *testing.T) {
	n := NewNormalizer(SchemaIngest)
	for _, line := range []string{"N rows: 12345", "", "   "} {
		if _, err := n.Parse(line); !errors.Is(err, ErrSkipLine) {
			t.Fatalf("%q: expected skip, got %v", line, err)
		}
	}
}

func TestParse_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		schema Schema
		line   string
		reason string
	}{
		{"nine fields", SchemaIngest, "1<d<u<1.5<2.5<n<kv<hash<4", ReasonFieldCount},
		{"raw with ten", SchemaRaw, "1<<u<1.5<2.5<n<kv<hash<<", ReasonFieldCount},
		{"dms latitude", SchemaRaw, "1<<u<54°05.131'<2.5<n<kv<hash", ReasonCoordinates},
		{"integer latitude", SchemaRaw, "1<<u<54<2.5<n<kv<hash", ReasonCoordinates},
		{"latitude out of range", SchemaRaw, "1<<u<95.5<2.5<n<kv<hash", ReasonCoordinates},
		{"leading space latitude", SchemaIngest, "78347<<366321< 63.4305942<10.3921538<P<highway=x<u5r2u7<<", ReasonCoordinates},
		{"trailing space latitude", SchemaIngest, "78347<<366321<63.4305942 <10.3921538<P<highway=x<u5r2u7<<", ReasonCoordinates},
		{"tab before latitude", SchemaIngest, "78347<<366321<\t63.4305942<10.3921538<P<highway=x<u5r2u7<<", ReasonCoordinates},
		{"trailing space longitude", SchemaIngest, "78347<<366321<63.4305942<10.3921538 <P<highway=x<u5r2u7<<", ReasonCoordinates},
		{"bad id", SchemaRaw, "x1<<u<1.5<2.5<n<kv<hash", ReasonID},
		{"bad timestamp", SchemaRaw, "1<yesterday<u<1.5<2.5<n<kv<hash", ReasonTimestamp},
		{"bad rating", SchemaIngest, "1<<u<1.5<2.5<n<kv<hash<great<2024-01-01T00:00:00Z", ReasonRating},
		{"rating above scale", SchemaIngest, "1<<u<1.5<2.5<n<kv<hash<7<2024-01-01T00:00:00Z", ReasonRating},
		{"rating without timestamp", SchemaIngest, "1<<u<1.5<2.5<n<kv<hash<4<", ReasonRating},
	}
	for _, tc := range cases {
		_, err := NewNormalizer(tc.schema).Parse(tc.line)
		var rejectErr *RejectError
		if !errors.As(err, &rejectErr) || !errors.Is(err, ErrMalformedRow) {
			t.Fatalf("%s: expected reject, got %v", tc.name, err)
		}
		if rejectErr.Reason != tc.reason {
			t.Fatalf("%s: reason = %q, want %q", tc.name, rejectErr.Reason, tc.reason)
		}
	}
}

func TestParseSchema(t *testing.T) {
	if s, err := ParseSchema("raw"); err != nil || s != SchemaRaw {
		t.Fatalf("raw: %v %v", s, err)
	}
	if _, err := ParseSchema("csv"); err == nil {
		t.Fatalf("expected error")
	}
}
