package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"geotourist/internal/datastore"
	"geotourist/internal/points/domain"
)

const pickLocationSQL = `SELECT lat, lon FROM tourist_locations WHERE enabled = TRUE ORDER BY random() LIMIT 1`

// LocationRepository reads curated tourist locations.
type LocationRepository struct {
	exec *datastore.Executor
}

// NewLocationRepository constructs a LocationRepository.
func NewLocationRepository(exec *datastore.Executor) (*LocationRepository, error) {
	if exec == nil {
		return nil, errors.New("location repo: nil executor")
	}
	return &LocationRepository{exec: exec}, nil
}

// PickRandomEnabled returns one enabled location chosen uniformly, or nil if none is enabled.
func (r *LocationRepository) PickRandomEnabled(ctx context.Context) (*domain.Coordinates, error) {
	stmt := datastore.Statement{SQL: pickLocationSQL}
	rows, _, err := datastore.Query(ctx, r.exec, datastore.ModeRead, "locations.pick_random", stmt, pgx.RowToStructByPos[domain.Coordinates])
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
