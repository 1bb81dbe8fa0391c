package utils

import (
	"testing"

	"p9e.in/fixflow/models"
)

// a rough box around central Berlin
const berlinBox = `{
  "type": "Feature",
  "geometry": {
    "type": "Polygon",
    "coordinates": [[
      [13.2, 52.4], [13.6, 52.4], [13.6, 52.6], [13.2, 52.6], [13.2, 52.4]
    ]]
  }
}`

func TestCoversPointPolygon(t *testing.T) {
	p := &models.Participant{ServiceArea: berlinBox}

	inside, err := CoversPoint(p, 52.52, 13.405)
	if err != nil {
		t.Fatalf("CoversPoint: %v", err)
	}
	if !inside {
		t.Errorf("central Berlin should be inside the polygon")
	}

	outside, err := CoversPoint(p, 48.137, 11.575) // Munich
	if err != nil {
		t.Fatalf("CoversPoint: %v", err)
	}
	if outside {
		t.Errorf("Munich should be outside the polygon")
	}
}

func TestCoversPointRadiusFallback(t *testing.T) {
	p := &models.Participant{BaseLat: 52.52, BaseLng: 13.405, ServiceRadiusKm: 50}

	near, err := CoversPoint(p, 52.53, 13.39)
	if err != nil || !near {
		t.Fatalf("nearby point: covered=%v err=%v", near, err)
	}
	far, err := CoversPoint(p, 48.137, 11.575)
	if err != nil {
		t.Fatalf("CoversPoint: %v", err)
	}
	if far {
		t.Errorf("Munich is well beyond 50 km of Berlin")
	}
}

func TestCoversPointUnrestricted(t *testing.T) {
	p := &models.Participant{}
	ok, err := CoversPoint(p, 0, 0)
	if err != nil || !ok {
		t.Fatalf("unconfigured provider should cover everywhere: covered=%v err=%v", ok, err)
	}
}

func TestParseServiceAreaErrors(t *testing.T) {
	if _, err := ParseServiceArea("not json"); err == nil {
		t.Errorf("expected an error for invalid geojson")
	}
	point := `{"type":"Point","coordinates":[13.4,52.5]}`
	if _, err := ParseServiceArea(point); err == nil {
		t.Errorf("expected an error for geometry without polygons")
	}
	polys, err := ParseServiceArea(berlinBox)
	if err != nil || len(polys) != 1 {
		t.Errorf("ParseServiceArea = %d polygons, err %v", len(polys), err)
	}
}
