package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"geotourist/internal/audit"
	"geotourist/internal/auth"
	"geotourist/internal/points/domain"
)

const maxBodyBytes = 1 << 16

// FeatureService is the application surface used by the handlers.
type FeatureService interface {
	PickRandomEnabledLocation(ctx context.Context) (domain.Coordinates, error)
	FindNearbyFeatures(ctx context.Context, lat, lon float64, category string) ([]domain.Feature, error)
	UpdateFeatureRating(ctx context.Context, key domain.PointKey, rating float64, name string) (*float64, error)
}

// Handler serves the map endpoints.
type Handler struct {
	service     FeatureService
	auditLogger audit.Logger
	validate    *validator.Validate
	logger      zerolog.Logger

	ratingLimit  int
	ratingWindow time.Duration
}

// Option configures a Handler.
type Option func(*Handler)

// WithRatingRateLimit caps rating updates per client IP within window. Zero disables the cap.
func WithRatingRateLimit(requests int, window time.Duration) Option {
	return func(h *Handler) {
		h.ratingLimit = requests
		h.ratingWindow = window
	}
}

// NewHandler constructs a Handler. auditLogger may be nil.
func NewHandler(service FeatureService, auditLogger audit.Logger, logger zerolog.Logger, opts ...Option) (*Handler, error) {
	if service == nil {
		return nil, errors.New("points handler: nil service")
	}
	h := &Handler{service: service, auditLogger: auditLogger, validate: validator.New(), logger: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Routes registers the endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/sites", h.handleSites)
	r.Post("/features", h.handleFeatures)

	rating := r
	if h.ratingLimit > 0 && h.ratingWindow > 0 {
		rating = r.With(httprate.LimitByIP(h.ratingLimit, h.ratingWindow))
	}
	rating.Put("/features/{bucket}/{amenity}/{id}/rating", h.handleRating)
}

type featuresRequest struct {
	Lat     *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lon     *float64 `json:"lon" validate:"required,gte=-180,lte=180"`
	Amenity string   `json:"amenity" validate:"required,max=64"`
}

type featureResponse struct {
	Name        string   `json:"name"`
	Amenity     string   `json:"amenity"`
	DistM       string   `json:"dist_m"`
	Lat         float64  `json:"lat"`
	Lon         float64  `json:"lon"`
	Rating      string   `json:"rating"`
	RatingValue *float64 `json:"rating_value"`
	BucketKey   string   `json:"bucket_key,omitempty"`
	RowID       *int64   `json:"row_id,omitempty"`
}

type ratingRequest struct {
	Rating *float64 `json:"rating" validate:"required,gte=0,lte=5"`
	Name   string   `json:"name" validate:"max=256"`
}

func (h *Handler) handleSites(w http.ResponseWriter, r *http.Request) {
	loc, err := h.service.PickRandomEnabledLocation(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (h *Handler) handleFeatures(w http.ResponseWriter, r *http.Request) {
	var req featuresRequest
	if !h.decode(w, r, &req) {
		return
	}
	features, err := h.service.FindNearbyFeatures(r.Context(), *req.Lat, *req.Lon, req.Amenity)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	showKeys := auth.RoleAtLeast(auth.RoleFromContext(r.Context()), auth.RoleEditor)
	out := make([]featureResponse, 0, len(features))
	for _, f := range features {
		item := featureResponse{
			Name:        f.Name,
			Amenity:     req.Amenity,
			DistM:       strconv.FormatFloat(f.DistanceMeters, 'f', 2, 64),
			Lat:         f.Coordinates.Lat,
			Lon:         f.Coordinates.Lon,
			Rating:      f.RatingText(),
			RatingValue: f.Rating,
		}
		if showKeys {
			rowID := f.RowID
			item.BucketKey = f.BucketKey
			item.RowID = &rowID
		}
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleRating(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	key := domain.PointKey{
		Bucket:   chi.URLParam(r, "bucket"),
		Category: chi.URLParam(r, "amenity"),
		ID:       id,
	}

	var req ratingRequest
	if !h.decode(w, r, &req) {
		return
	}
	updated, err := h.service.UpdateFeatureRating(r.Context(), key, *req.Rating, req.Name)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if updated == nil {
		http.Error(w, "feature not found", http.StatusNotFound)
		return
	}
	h.logger.Info().
		Str("subject", auth.SubjectFromContext(r.Context())).
		Str("bucket", key.Bucket).
		Str("amenity", key.Category).
		Int64("id", key.ID).
		Float64("rating", *updated).
		Msg("feature rating updated")
	h.logAudit(r, key, map[string]any{"rating": *updated, "name": req.Name})
	writeJSON(w, http.StatusOK, map[string]float64{"rating": *updated})
}

func (h *Handler) logAudit(r *http.Request, key domain.PointKey, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	payload, _ := json.Marshal(meta)
	err := h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       "feature.rate",
		ResourceType: "feature",
		ResourceID:   key.Bucket + "/" + key.Category + "/" + strconv.FormatInt(key.ID, 10),
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
	if err != nil {
		h.logger.Warn().Err(err).Str("action", "feature.rate").Msg("audit write failed")
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidCoordinates),
		errors.Is(err, domain.ErrEmptyCategory),
		errors.Is(err, domain.ErrInvalidRating):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
