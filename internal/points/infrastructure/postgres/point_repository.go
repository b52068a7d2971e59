package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"geotourist/internal/datastore"
	"geotourist/internal/points/domain"
	"geotourist/internal/points/query"
)

const (
	insertColumns = "geohash4, amenity, id, date_time, uid, name, lat, lon, key_value, search_hints, rating, rating_ts"
	columnsPerRow = 12

	// MaxBatchRows keeps one INSERT under the 65535 bind parameter limit.
	MaxBatchRows = 65535 / columnsPerRow

	updateRatingSQL = `UPDATE osm
SET rating = $1, rating_ts = now(), name = COALESCE(NULLIF($2, ''), name)
WHERE geohash4 = $3 AND amenity = $4 AND id = $5
RETURNING rating`
)

var ErrBatchTooLarge = fmt.Errorf("point repo: batch exceeds %d rows", MaxBatchRows)

// PointRepository stores and queries points of interest.
type PointRepository struct {
	exec    *datastore.Executor
	builder *query.Builder
}

// NewPointRepository constructs a PointRepository.
func NewPointRepository(exec *datastore.Executor, builder *query.Builder) (*PointRepository, error) {
	if exec == nil {
		return nil, errors.New("point repo: nil executor")
	}
	if builder == nil {
		return nil, errors.New("point repo: nil query builder")
	}
	return &PointRepository{exec: exec, builder: builder}, nil
}

// InsertBatch writes records in one multi-row INSERT inside one write transaction.
func (r *PointRepository) InsertBatch(ctx context.Context, records []domain.PointRecord) (datastore.Outcome, error) {
	if len(records) == 0 {
		return datastore.Outcome{}, nil
	}
	stmt, err := BuildInsert(records)
	if err != nil {
		return datastore.Outcome{}, err
	}
	_, outcome, err := datastore.Exec(ctx, r.exec, datastore.ModeWrite, "points.insert_batch", stmt)
	return outcome, err
}

// BuildInsert renders a multi-row INSERT with positional parameters.
func BuildInsert(records []domain.PointRecord) (datastore.Statement, error) {
	if len(records) > MaxBatchRows {
		return datastore.Statement{}, ErrBatchTooLarge
	}
	var sb strings.Builder
	sb.WriteString("INSERT INTO osm (")
	sb.WriteString(insertColumns)
	sb.WriteString(") VALUES ")

	args := make([]any, 0, len(records)*columnsPerRow)
	for i, rec := range records {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * columnsPerRow
		sb.WriteByte('(')
		for col := 1; col <= columnsPerRow; col++ {
			if col > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", base+col)
		}
		sb.WriteByte(')')

		args = append(args,
			rec.Bucket,
			rec.Category,
			rec.ID,
			rec.CapturedAt,
			rec.SubmitterID,
			rec.DisplayName,
			rec.Coordinates.Lat,
			rec.Coordinates.Lon,
			tagsOrEmpty(rec.Tags),
			rec.SearchHints,
			rec.Rating,
			rec.RatingTimestamp,
		)
	}
	return datastore.Statement{SQL: sb.String(), Args: args}, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// FindNearby returns the closest features of category around center, ascending by distance.
func (r *PointRepository) FindNearby(ctx context.Context, center domain.Coordinates, category string) ([]domain.Feature, error) {
	stmt, err := r.builder.Build(center, category)
	if err != nil {
		return nil, err
	}
	features, _, err := datastore.Query(ctx, r.exec, datastore.ModeRead, "points.find_nearby", stmt, scanFeature)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(features, func(i, j int) bool {
		return features[i].DistanceMeters < features[j].DistanceMeters
	})
	return features, nil
}

// Strategy reports the proximity strategy in use.
func (r *PointRepository) Strategy() query.Strategy {
	return r.builder.Strategy()
}

func scanFeature(row pgx.CollectableRow) (domain.Feature, error) {
	var f domain.Feature
	err := row.Scan(
		&f.Name,
		&f.Category,
		&f.DistanceMeters,
		&f.Coordinates.Lat,
		&f.Coordinates.Lon,
		&f.Rating,
		&f.BucketKey,
		&f.RowID,
	)
	return f, err
}

// UpdateRating sets rating and name for key. It returns nil when no row matches.
func (r *PointRepository) UpdateRating(ctx context.Context, key domain.PointKey, rating float64, name string) (*float64, error) {
	stmt := datastore.Statement{
		SQL:  updateRatingSQL,
		Args: []any{rating, name, key.Bucket, key.Category, key.ID},
	}
	ratings, _, err := datastore.Query(ctx, r.exec, datastore.ModeWrite, "points.update_rating", stmt, pgx.RowTo[float64])
	if err != nil {
		return nil, err
	}
	if len(ratings) == 0 {
		return nil, nil
	}
	return &ratings[0], nil
}
