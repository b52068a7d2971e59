package domain

import (
	"errors"
	"time"
)

// BucketLength is the number of geohash characters in a spatial bucket.
const BucketLength = 4

var (
	ErrInvalidCoordinates = errors.New("points: invalid coordinates")
	ErrInvalidRating      = errors.New("points: rating must be between 0 and 5")
	ErrEmptyCategory      = errors.New("points: category required")
	ErrNotFound           = errors.New("points: feature not found")
)

// Coordinates are WGS84 decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinates are within range.
func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// PointKey identifies a stored point: (bucket, category, id) is unique.
type PointKey struct {
	Bucket   string
	Category string
	ID       int64
}

// PointRecord is one normalized point of interest.
type PointRecord struct {
	ID              int64
	Bucket          string
	Category        string
	CapturedAt      *time.Time
	SubmitterID     string
	DisplayName     string
	Coordinates     Coordinates
	Tags            []string
	SearchHints     string
	Rating          *float64
	RatingTimestamp *time.Time
}

// Key returns the composite key of the record.
func (r PointRecord) Key() PointKey {
	return PointKey{Bucket: r.Bucket, Category: r.Category, ID: r.ID}
}

// ValidRating reports whether a rating is on the 0-5 scale.
func ValidRating(rating float64) bool {
	return rating >= 0 && rating <= 5
}
