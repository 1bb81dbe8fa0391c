// Package utils holds geography helpers for provider service areas.
package utils

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"p9e.in/fixflow/models"
)

// ParseServiceArea parses a provider's configured geojson service area.
// Accepts a Feature, FeatureCollection or bare geometry containing polygons.
func ParseServiceArea(raw string) ([]orb.Polygon, error) {
	if raw == "" {
		return nil, nil
	}

	var polygons []orb.Polygon
	collect := func(g orb.Geometry) {
		switch geom := g.(type) {
		case orb.Polygon:
			polygons = append(polygons, geom)
		case orb.MultiPolygon:
			polygons = append(polygons, geom...)
		}
	}

	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return nil, fmt.Errorf("service area is not valid geojson: %w", err)
	}

	switch probe.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid feature collection: %w", err)
		}
		for _, f := range fc.Features {
			collect(f.Geometry)
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid feature: %w", err)
		}
		collect(f.Geometry)
	default:
		g, err := geojson.UnmarshalGeometry([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid geometry: %w", err)
		}
		collect(g.Geometry())
	}

	if len(polygons) == 0 {
		return nil, fmt.Errorf("service area contains no polygons")
	}
	return polygons, nil
}

// CoversPoint reports whether the provider serves the given coordinates.
// A configured polygon wins; otherwise the base-point radius applies. A
// provider with neither configured serves everywhere.
func CoversPoint(p *models.Participant, lat, lng float64) (bool, error) {
	point := orb.Point{lng, lat}

	if p.ServiceArea != "" {
		polygons, err := ParseServiceArea(p.ServiceArea)
		if err != nil {
			return false, err
		}
		for _, poly := range polygons {
			if planar.PolygonContains(poly, point) {
				return true, nil
			}
		}
		return false, nil
	}

	if p.ServiceRadiusKm > 0 {
		base := orb.Point{p.BaseLng, p.BaseLat}
		return geo.Distance(base, point) <= p.ServiceRadiusKm*1000, nil
	}

	return true, nil
}
