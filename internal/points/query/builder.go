// Package query builds the parameterized proximity statements run against the osm table.
package query

import (
	"fmt"
	"strings"

	"github.com/mmcloughlin/geohash"

	"geotourist/internal/datastore"
	"geotourist/internal/points/domain"
)

// Strategy selects how candidate rows are narrowed before distance ranking.
type Strategy string

const (
	// StrategyBucket matches the 4-character geohash bucket and exact category.
	StrategyBucket Strategy = "bucket"
	// StrategyRadius uses a spheroid radius test and tag-array overlap.
	StrategyRadius Strategy = "radius"
)

const (
	DefaultRadiusMeters = 5000.0
	DefaultLimit        = 10
	DefaultTable        = "osm"

	categoryTagPrefix = "amenity="
)

// ParseStrategy maps a configuration value to a Strategy.
func ParseStrategy(value string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(value))) {
	case StrategyBucket:
		return StrategyBucket, nil
	case StrategyRadius:
		return StrategyRadius, nil
	default:
		return "", fmt.Errorf("query: unknown strategy %q", value)
	}
}

// Builder produces proximity statements. The strategy is fixed at construction.
type Builder struct {
	strategy       Strategy
	categoryPrefix string
	radius         float64
	limit          int
	table          string
}

// Option configures a Builder.
type Option func(*Builder)

// WithCategoryPrefix prepends prefix to the category in bucket lookups.
func WithCategoryPrefix(prefix string) Option {
	return func(b *Builder) {
		b.categoryPrefix = prefix
	}
}

// WithRadius sets the search radius in meters.
func WithRadius(meters float64) Option {
	return func(b *Builder) {
		if meters > 0 {
			b.radius = meters
		}
	}
}

// WithLimit caps the number of returned rows.
func WithLimit(limit int) Option {
	return func(b *Builder) {
		if limit > 0 {
			b.limit = limit
		}
	}
}

// WithTable overrides the point table name.
func WithTable(table string) Option {
	return func(b *Builder) {
		if table != "" {
			b.table = table
		}
	}
}

// NewBuilder constructs a Builder.
func NewBuilder(strategy Strategy, opts ...Option) (*Builder, error) {
	if strategy != StrategyBucket && strategy != StrategyRadius {
		return nil, fmt.Errorf("query: unknown strategy %q", strategy)
	}
	b := &Builder{
		strategy: strategy,
		radius:   DefaultRadiusMeters,
		limit:    DefaultLimit,
		table:    DefaultTable,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b, nil
}

// Strategy returns the configured strategy.
func (b *Builder) Strategy() Strategy {
	return b.strategy
}

// Build returns the statement for the nearest rows of category around center.
// Result columns: name, amenity, dist_m, lat, lon, rating, geohash4, id.
func (b *Builder) Build(center domain.Coordinates, category string) (datastore.Statement, error) {
	if !center.Valid() {
		return datastore.Statement{}, domain.ErrInvalidCoordinates
	}
	category = strings.TrimSpace(category)
	if category == "" {
		return datastore.Statement{}, domain.ErrEmptyCategory
	}

	args := []any{center.Lon, center.Lat}
	var filter, outer string
	switch b.strategy {
	case StrategyBucket:
		bucket := geohash.EncodeWithPrecision(center.Lat, center.Lon, domain.BucketLength)
		args = append(args, bucket, b.categoryPrefix+category, b.radius)
		filter = "geohash4 = $3 AND amenity = $4"
		outer = "WHERE dist_m < $5"
	case StrategyRadius:
		args = append(args, b.radius, categoryTagPrefix+category)
		filter = "ST_DWithin(ST_MakePoint($1::FLOAT8, $2::FLOAT8)::GEOGRAPHY, ref_point, $3::FLOAT8, TRUE) AND key_value && ARRAY[$4::TEXT]"
	}
	args = append(args, b.limit)

	sql := fmt.Sprintf(`WITH q1 AS (
  SELECT
    name,
    amenity,
    ST_Distance(ST_MakePoint($1::FLOAT8, $2::FLOAT8)::GEOGRAPHY, ref_point)::NUMERIC(9, 2)::FLOAT8 AS dist_m,
    ST_Y(ref_point::GEOMETRY) AS lat,
    ST_X(ref_point::GEOMETRY) AS lon,
    rating,
    geohash4,
    id
  FROM %s
  WHERE %s
)
SELECT name, amenity, dist_m, lat, lon, rating, geohash4, id FROM q1
%s
ORDER BY dist_m ASC
LIMIT $%d`, b.table, filter, outer, len(args))

	return datastore.Statement{SQL: sql, Args: args}, nil
}
