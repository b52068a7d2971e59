package domain

import (
	"fmt"
	"math"
	"strconv"
)

// Location is a curated tourist site used as a default query center.
type Location struct {
	Name        string
	Coordinates Coordinates
	Enabled     bool
}

// DefaultLocation is returned when no tourist location is enabled.
var DefaultLocation = Coordinates{Lat: 51.506712, Lon: -0.127235}

// Feature is one row of a proximity query result.
type Feature struct {
	Name           string
	Category       string
	DistanceMeters float64
	Coordinates    Coordinates
	Rating         *float64
	BucketKey      string
	RowID          int64
}

// RatingText renders the rating the way the map popup shows it.
func (f Feature) RatingText() string {
	if f.Rating == nil {
		return "Rating: (not rated)"
	}
	return fmt.Sprintf("Rating: %s out of 5", trimFloat(*f.Rating))
}

// trimFloat keeps one decimal for whole numbers (4 -> "4.0") and the shortest form otherwise.
func trimFloat(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
