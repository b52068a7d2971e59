package domain

import "testing"

func TestFeatureRatingText(t *testing.T) {
	four := 4.0
	half := 3.5
	cases := []struct {
		rating *float64
		want   string
	}{
		{nil, "Rating: (not rated)"},
		{&four, "Rating: 4.0 out of 5"},
		{&half, "Rating: 3.5 out of 5"},
	}
	for _, tc := range cases {
		if got := (Feature{Rating: tc.rating}).RatingText(); got != tc.want {
			t.Fatalf("RatingText = %q, want %q", got, tc.want)
		}
	}
}

func TestCoordinatesValid(t *testing.T) {
	if !(Coordinates{Lat: 51.5, Lon: -0.12}).Valid() {
		t.Fatalf("expected valid")
	}
	if (Coordinates{Lat: 91, Lon: 0}).Valid() || (Coordinates{Lat: 0, Lon: 181}).Valid() {
		t.Fatalf("expected invalid")
	}
}
