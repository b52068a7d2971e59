package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"geotourist/internal/datastore"
	"geotourist/internal/points/domain"
)

var schemaStatements = []struct {
	name string
	sql  string
}{
	{"osm table", `CREATE TABLE IF NOT EXISTS osm (
  geohash4 TEXT NOT NULL,
  amenity TEXT NOT NULL,
  id BIGINT NOT NULL,
  date_time TIMESTAMPTZ,
  uid TEXT,
  name TEXT NOT NULL,
  lat FLOAT8 NOT NULL,
  lon FLOAT8 NOT NULL,
  key_value TEXT[],
  search_hints TEXT,
  rating FLOAT8,
  rating_ts TIMESTAMP,
  ref_point GEOGRAPHY GENERATED ALWAYS AS (ST_MakePoint(lon, lat)::GEOGRAPHY) STORED,
  CONSTRAINT osm_pkey PRIMARY KEY (geohash4, amenity, id)
)`},
	{"osm spatial index", `CREATE INDEX IF NOT EXISTS osm_geo_idx ON osm USING GIST (ref_point)`},
	{"tourist_locations table", `CREATE TABLE IF NOT EXISTS tourist_locations (
  name TEXT,
  lat FLOAT8,
  lon FLOAT8,
  enabled BOOLEAN DEFAULT TRUE,
  geohash CHAR(9) GENERATED ALWAYS AS (ST_GeoHash(ST_SetSRID(ST_MakePoint(lon, lat), 4326), 9)) STORED,
  CONSTRAINT tourist_locations_pkey PRIMARY KEY (geohash)
)`},
}

const (
	dropLocationsSQL = `DROP TABLE IF EXISTS tourist_locations`
	seedLocationSQL  = `INSERT INTO tourist_locations (name, lat, lon) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`
)

// DefaultSites seeds tourist_locations.
var DefaultSites = []domain.Location{
	{Name: "British Museum", Coordinates: domain.Coordinates{Lat: 51.519844, Lon: -0.126731}},
	{Name: "Trafalgar Square", Coordinates: domain.Coordinates{Lat: 51.506712, Lon: -0.127235}},
	{Name: "Tate Modern", Coordinates: domain.Coordinates{Lat: 51.508337, Lon: -0.099281}},
	{Name: "Dublin", Coordinates: domain.Coordinates{Lat: 53.346028, Lon: -6.279658}},
	{Name: "Munich", Coordinates: domain.Coordinates{Lat: 48.135056, Lon: 11.576097}},
	{Name: "Le Marais", Coordinates: domain.Coordinates{Lat: 48.857744, Lon: 2.357768}},
	{Name: "Trastevere", Coordinates: domain.Coordinates{Lat: 41.886071, Lon: 12.467422}},
	{Name: "Prado Museum", Coordinates: domain.Coordinates{Lat: 40.41367, Lon: -3.69185}},
	{Name: "Mercado Antón Martín", Coordinates: domain.Coordinates{Lat: 40.41170, Lon: -3.69850}},
	{Name: "Kyiv", Coordinates: domain.Coordinates{Lat: 50.4474203, Lon: 30.5265874}},
	{Name: "Austin", Coordinates: domain.Coordinates{Lat: 30.260721, Lon: -97.747101}},
	{Name: "Charlottesville", Coordinates: domain.Coordinates{Lat: 38.0311977, Lon: -78.4829433}},
	{Name: "Madison Square Park", Coordinates: domain.Coordinates{Lat: 40.742348, Lon: -73.988355}},
	{Name: "Dupont Circle", Coordinates: domain.Coordinates{Lat: 38.9100535, Lon: -77.0426321}},
	{Name: "Laguna Beach", Coordinates: domain.Coordinates{Lat: 33.5418456, Lon: -117.7838984}},
	{Name: "Westwood", Coordinates: domain.Coordinates{Lat: 34.0620851, Lon: -118.4428635}},
	{Name: "Pasadena", Coordinates: domain.Coordinates{Lat: 34.1390904, Lon: -118.1277370}},
	{Name: "Orlando", Coordinates: domain.Coordinates{Lat: 28.5458843, Lon: -81.3760205}},
}

// SchemaManager creates tables and seeds tourist locations.
type SchemaManager struct {
	exec   *datastore.Executor
	logger zerolog.Logger
}

// NewSchemaManager constructs a SchemaManager.
func NewSchemaManager(exec *datastore.Executor, logger zerolog.Logger) (*SchemaManager, error) {
	if exec == nil {
		return nil, errors.New("schema: nil executor")
	}
	return &SchemaManager{exec: exec, logger: logger}, nil
}

// Ensure creates missing tables and indexes, then seeds sites. With resetSites
// the tourist_locations table is recreated first.
func (m *SchemaManager) Ensure(ctx context.Context, resetSites bool) error {
	if resetSites {
		m.logger.Info().Msg("dropping tourist_locations")
		if _, _, err := datastore.Exec(ctx, m.exec, datastore.ModeWrite, "schema.drop_locations", datastore.Statement{SQL: dropLocationsSQL}); err != nil {
			return err
		}
	}
	for _, stmt := range schemaStatements {
		m.logger.Info().Str("object", stmt.name).Msg("ensuring schema object")
		if _, _, err := datastore.Exec(ctx, m.exec, datastore.ModeWrite, "schema.ensure", datastore.Statement{SQL: stmt.sql}); err != nil {
			return err
		}
	}
	return m.SeedSites(ctx, DefaultSites)
}

// SeedSites inserts locations, ignoring ones already present.
func (m *SchemaManager) SeedSites(ctx context.Context, sites []domain.Location) error {
	if len(sites) == 0 {
		return nil
	}
	m.logger.Info().Int("sites", len(sites)).Msg("seeding tourist_locations")
	_, err := m.exec.Execute(ctx, datastore.ModeWrite, "schema.seed_sites", func(ctx context.Context, tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, site := range sites {
			batch.Queue(seedLocationSQL, site.Name, site.Coordinates.Lat, site.Coordinates.Lon)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	return err
}
