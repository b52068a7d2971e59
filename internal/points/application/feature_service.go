package application

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"geotourist/internal/observability/metrics"
	"geotourist/internal/points/domain"
	"geotourist/internal/points/query"
)

// PointStore reads and updates stored points.
type PointStore interface {
	FindNearby(ctx context.Context, center domain.Coordinates, category string) ([]domain.Feature, error)
	UpdateRating(ctx context.Context, key domain.PointKey, rating float64, name string) (*float64, error)
	Strategy() query.Strategy
}

// LocationStore reads tourist locations.
type LocationStore interface {
	PickRandomEnabled(ctx context.Context) (*domain.Coordinates, error)
}

// FeatureService serves map queries.
type FeatureService struct {
	points    PointStore
	locations LocationStore
	logger    zerolog.Logger
}

// NewFeatureService constructs a FeatureService.
func NewFeatureService(points PointStore, locations LocationStore, logger zerolog.Logger) (*FeatureService, error) {
	if points == nil || locations == nil {
		return nil, errors.New("feature service: nil store")
	}
	return &FeatureService{points: points, locations: locations, logger: logger}, nil
}

// PickRandomEnabledLocation returns a random enabled site, or DefaultLocation when none is enabled.
func (s *FeatureService) PickRandomEnabledLocation(ctx context.Context) (domain.Coordinates, error) {
	loc, err := s.locations.PickRandomEnabled(ctx)
	if err != nil {
		return domain.Coordinates{}, err
	}
	if loc == nil {
		return domain.DefaultLocation, nil
	}
	return *loc, nil
}

// FindNearbyFeatures returns up to the configured limit of features, nearest first.
func (s *FeatureService) FindNearbyFeatures(ctx context.Context, lat, lon float64, category string) ([]domain.Feature, error) {
	start := time.Now()
	strategy := string(s.points.Strategy())
	features, err := s.points.FindNearby(ctx, domain.Coordinates{Lat: lat, Lon: lon}, category)
	if err != nil {
		metrics.ObserveFeatureQuery(strategy, metrics.ResultError, time.Since(start))
		return nil, err
	}
	metrics.ObserveFeatureQuery(strategy, metrics.ResultSuccess, time.Since(start))
	s.logger.Debug().
		Float64("lat", lat).
		Float64("lon", lon).
		Str("category", category).
		Int("results", len(features)).
		Msg("nearby features")
	return features, nil
}

// UpdateFeatureRating sets the rating (and optionally the name) of one feature.
// It returns nil when no feature matches key.
func (s *FeatureService) UpdateFeatureRating(ctx context.Context, key domain.PointKey, rating float64, name string) (*float64, error) {
	if !domain.ValidRating(rating) {
		return nil, domain.ErrInvalidRating
	}
	updated, err := s.points.UpdateRating(ctx, key, rating, name)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		s.logger.Info().Str("bucket", key.Bucket).Str("category", key.Category).Int64("id", key.ID).Msg("rating update matched no feature")
	}
	return updated, nil
}
