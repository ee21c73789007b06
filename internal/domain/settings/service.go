package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/visitplan/visitplan/internal/platform/geo"
	"github.com/visitplan/visitplan/internal/platform/geocode"
)

// DefaultPracticePoint is used until a practice location has been
// configured (Würzburg city center).
var DefaultPracticePoint = geo.Point{Lat: 49.79245, Lon: 9.93296}

// ErrAddressNotFound is returned when the practice address cannot be
// geocoded.
var ErrAddressNotFound = errors.New("settings: address not found")

type Service struct {
	repo     Repository
	geocoder geocode.Geocoder
	logger   zerolog.Logger
}

func NewService(repo Repository, geocoder geocode.Geocoder, logger zerolog.Logger) *Service {
	return &Service{repo: repo, geocoder: geocoder, logger: logger}
}

func (s *Service) Get(ctx context.Context, key string) (string, error) {
	return s.repo.Get(ctx, key)
}

func (s *Service) Set(ctx context.Context, key, value string) error {
	return s.repo.Set(ctx, key, value)
}

func (s *Service) All(ctx context.Context) ([]Setting, error) {
	return s.repo.All(ctx)
}

// PracticePoint returns the practice's stored home-base coordinates.
// Missing or corrupt values fall back to the built-in default so planning
// always has a start point.
func (s *Service) PracticePoint(ctx context.Context) geo.Point {
	latStr, errLat := s.repo.Get(ctx, KeyPracticeLat)
	lonStr, errLon := s.repo.Get(ctx, KeyPracticeLon)
	if errLat != nil || errLon != nil {
		return DefaultPracticePoint
	}

	lat, errLat := strconv.ParseFloat(latStr, 64)
	lon, errLon := strconv.ParseFloat(lonStr, 64)
	if errLat != nil || errLon != nil {
		s.logger.Warn().Str("lat", latStr).Str("lon", lonStr).Msg("stored practice coordinates are invalid, using default")
		return DefaultPracticePoint
	}
	return geo.Point{Lat: lat, Lon: lon}
}

// SetLocation geocodes the practice address and persists address, city, and
// the resolved coordinates.
func (s *Service) SetLocation(ctx context.Context, address, city string) (geo.Point, error) {
	res, err := s.geocoder.Geocode(ctx, address+", "+city)
	if err != nil {
		return geo.Point{}, fmt.Errorf("geocode practice location: %w", err)
	}
	if res == nil {
		return geo.Point{}, ErrAddressNotFound
	}

	pairs := map[string]string{
		KeyPracticeAddress: address,
		KeyPracticeCity:    city,
		KeyPracticeLat:     strconv.FormatFloat(res.Point.Lat, 'f', -1, 64),
		KeyPracticeLon:     strconv.FormatFloat(res.Point.Lon, 'f', -1, 64),
	}
	for _, key := range []string{KeyPracticeAddress, KeyPracticeCity, KeyPracticeLat, KeyPracticeLon} {
		if err := s.repo.Set(ctx, key, pairs[key]); err != nil {
			return geo.Point{}, fmt.Errorf("store %s: %w", key, err)
		}
	}

	s.logger.Info().
		Float64("lat", res.Point.Lat).
		Float64("lon", res.Point.Lon).
		Msg("practice location updated")
	return res.Point, nil
}
