// Package ingest turns '<'-delimited point lines into PointRecords.
//
// Two input layouts are accepted. SchemaIngest carries ten fields:
//
//	id < captured_at < submitter < lat < lon < name < kv_tags < geohash < rating < rating_ts
//
// SchemaRaw is the same without the trailing rating pair. kv_tags is a
// '|'-joined list of key=value pairs.
package ingest

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/mmcloughlin/geohash"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"geotourist/internal/points/domain"
)

// Schema selects the expected field layout.
type Schema int

const (
	SchemaIngest Schema = iota
	SchemaRaw
)

// Fields returns the field count for the schema.
func (s Schema) Fields() int {
	if s == SchemaRaw {
		return 8
	}
	return 10
}

// ParseSchema maps a flag value to a Schema.
func ParseSchema(value string) (Schema, error) {
	switch strings.ToLower(value) {
	case "", "ingest":
		return SchemaIngest, nil
	case "raw":
		return SchemaRaw, nil
	default:
		return SchemaIngest, fmt.Errorf("ingest: unknown schema %q", value)
	}
}

// Reject reasons.
const (
	ReasonFieldCount  = "field_count"
	ReasonCoordinates = "coordinates"
	ReasonID          = "id"
	ReasonTimestamp   = "timestamp"
	ReasonRating      = "rating"
)

var (
	// ErrSkipLine marks lines that are silently ignored (row-count sentinels, blank lines).
	ErrSkipLine = errors.New("ingest: skip line")
	// ErrMalformedRow matches every RejectError.
	ErrMalformedRow = errors.New("ingest: malformed row")
)

// RejectError reports why a line was dropped.
type RejectError struct {
	Reason string
	Detail string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("ingest: malformed row (%s): %s", e.Reason, e.Detail)
}

func (e *RejectError) Unwrap() error { return ErrMalformedRow }

func reject(reason, format string, args ...any) error {
	return &RejectError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

var (
	coordinatePattern = regexp.MustCompile(`^-?\d+\.\d+$`)
	sentinelPattern   = regexp.MustCompile(`^N rows: \d+$`)
	addressPattern    = regexp.MustCompile(`^addr:(?:city|postcode|street)=(.+)$`)
	tagStripper       = strings.NewReplacer(`'`, "", `"`, "", ",", "", "{", "", "}", "")
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// Normalizer parses lines of one schema. It is not safe for concurrent use.
type Normalizer struct {
	schema Schema
	lower  cases.Caser
}

// NewNormalizer constructs a Normalizer.
func NewNormalizer(schema Schema) *Normalizer {
	return &Normalizer{schema: schema, lower: cases.Lower(language.Und)}
}

// Parse converts one input line. It returns ErrSkipLine for sentinel and blank
// lines and a *RejectError for malformed ones.
func (n *Normalizer) Parse(line string) (domain.PointRecord, error) {
	line = strings.TrimRight(line, " \t\r\n")
	if line == "" || sentinelPattern.MatchString(line) {
		return domain.PointRecord{}, ErrSkipLine
	}

	fields := strings.Split(line, "<")
	if len(fields) != n.schema.Fields() {
		return domain.PointRecord{}, reject(ReasonFieldCount, "got %d fields, want %d", len(fields), n.schema.Fields())
	}
	// Coordinates are matched untrimmed; surrounding whitespace is malformed.
	coords, err := parseCoordinates(fields[3], fields[4])
	if err != nil {
		return domain.PointRecord{}, err
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return domain.PointRecord{}, reject(ReasonID, "%q", fields[0])
	}
	capturedAt, err := parseTimestamp(fields[1])
	if err != nil {
		return domain.PointRecord{}, err
	}

	name := html.UnescapeString(fields[5])
	tags := n.nameTokens(name)
	category, hints, kvTags := parseTags(fields[6])
	tags = append(tags, kvTags...)

	rec := domain.PointRecord{
		ID:          id,
		Bucket:      bucketFor(fields[7], coords),
		Category:    category,
		CapturedAt:  capturedAt,
		SubmitterID: fields[2],
		DisplayName: name,
		Coordinates: coords,
		Tags:        tags,
		SearchHints: strings.Join(hints, " "),
	}

	if n.schema == SchemaIngest {
		if err := applyRating(&rec, fields[8], fields[9]); err != nil {
			return domain.PointRecord{}, err
		}
	}
	return rec, nil
}

func parseCoordinates(lat, lon string) (domain.Coordinates, error) {
	if !coordinatePattern.MatchString(lat) || !coordinatePattern.MatchString(lon) {
		return domain.Coordinates{}, reject(ReasonCoordinates, "lat=%q lon=%q", lat, lon)
	}
	latF, errLat := strconv.ParseFloat(lat, 64)
	lonF, errLon := strconv.ParseFloat(lon, 64)
	coords := domain.Coordinates{Lat: latF, Lon: lonF}
	if errLat != nil || errLon != nil || !coords.Valid() {
		return domain.Coordinates{}, reject(ReasonCoordinates, "lat=%q lon=%q out of range", lat, lon)
	}
	return coords, nil
}

func parseTimestamp(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return &ts, nil
		}
	}
	return nil, reject(ReasonTimestamp, "%q", value)
}

// nameTokens splits the lowercased name on runs of non-word characters.
func (n *Normalizer) nameTokens(name string) []string {
	return strings.FieldsFunc(n.lower.String(name), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})
}

// parseTags decodes kv tags, returning the category, address hints and cleaned tags.
func parseTags(raw string) (string, []string, []string) {
	var (
		category string
		hints    []string
		tags     []string
	)
	for _, tag := range strings.Split(raw, "|") {
		if tag == "" {
			continue
		}
		tag = tagStripper.Replace(html.UnescapeString(tag))
		tags = append(tags, tag)
		if rest, ok := strings.CutPrefix(tag, "amenity="); ok {
			category, _, _ = strings.Cut(rest, "=")
			continue
		}
		if m := addressPattern.FindStringSubmatch(tag); m != nil {
			hints = append(hints, m[1])
		}
	}
	return category, hints, tags
}

func bucketFor(hash string, coords domain.Coordinates) string {
	if len(hash) >= domain.BucketLength {
		return hash[:domain.BucketLength]
	}
	return geohash.EncodeWithPrecision(coords.Lat, coords.Lon, domain.BucketLength)
}

func applyRating(rec *domain.PointRecord, rating, ratingTS string) error {
	if rating == "" && ratingTS == "" {
		return nil
	}
	if rating == "" || ratingTS == "" {
		return reject(ReasonRating, "rating %q and timestamp %q must be set together", rating, ratingTS)
	}
	value, err := strconv.ParseFloat(rating, 64)
	if err != nil || !domain.ValidRating(value) {
		return reject(ReasonRating, "%q", rating)
	}
	ts, err := parseTimestamp(ratingTS)
	if err != nil {
		return err
	}
	rec.Rating = &value
	rec.RatingTimestamp = ts
	return nil
}
