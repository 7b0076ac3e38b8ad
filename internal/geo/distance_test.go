package geo

import (
	"math"
	"testing"

	"github.com/thomaskoefod/quakereadr/pkg/models"
)

func TestDistanceKnownPair(t *testing.T) {
	home := models.Coordinates{Latitude: 49.25, Longitude: -123.1}
	quake := models.Coordinates{Latitude: 44.11, Longitude: -66.23}

	d := Distance(home, quake)
	if math.Abs(d-4272.4) > 0.05 {
		t.Errorf("expected ~4272.4 km, got %f", d)
	}
}

func TestDistanceSymmetricAndZero(t *testing.T) {
	points := []models.Coordinates{
		{Latitude: 0, Longitude: 0},
		{Latitude: 49.25, Longitude: -123.1},
		{Latitude: -33.87, Longitude: 151.21},
		{Latitude: 90, Longitude: 0},
		{Latitude: -90, Longitude: 180},
		{Latitude: 10, Longitude: -179.9},
	}

	for _, a := range points {
		if d := Distance(a, a); d != 0 {
			t.Errorf("Distance(%v, %v) = %f, want 0", a, a, d)
		}
		for _, b := range points {
			ab, ba := Distance(a, b), Distance(b, a)
			if math.Abs(ab-ba) > 1e-9 {
				t.Errorf("Distance not symmetric for %v, %v: %f vs %f", a, b, ab, ba)
			}
		}
	}
}

func TestDistanceAntipodal(t *testing.T) {
	d := Distance(models.Coordinates{Latitude: 0, Longitude: 0}, models.Coordinates{Latitude: 0, Longitude: 180})
	want := math.Pi * EarthRadiusKm
	if math.Abs(d-want) > 1e-6 {
		t.Errorf("expected half circumference %f, got %f", want, d)
	}
}

func TestDistanceNaN(t *testing.T) {
	d := Distance(models.Coordinates{Latitude: math.NaN(), Longitude: 0}, models.Coordinates{})
	if !math.IsNaN(d) {
		t.Errorf("expected NaN, got %f", d)
	}
}
