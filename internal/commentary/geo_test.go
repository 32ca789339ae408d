package commentary

import (
	"math"
	"testing"
)

func TestHaversineKnownDistances(t *testing.T) {
	// One degree of latitude is about 111.2 km.
	d := haversineMeters(0, 0, 1, 0)
	if math.Abs(d-111195) > 200 {
		t.Fatalf("one degree latitude: got %.0fm", d)
	}

	if d := haversineMeters(51.5, -0.12, 51.5, -0.12); d != 0 {
		t.Fatalf("zero distance: got %.2fm", d)
	}

	// Symmetric.
	a := haversineMeters(40.7, -74.0, 48.85, 2.35)
	b := haversineMeters(48.85, 2.35, 40.7, -74.0)
	if math.Abs(a-b) > 1e-6 {
		t.Fatalf("asymmetric: %f vs %f", a, b)
	}
	// New York to Paris is about 5837 km.
	if math.Abs(a-5837000) > 20000 {
		t.Fatalf("NY-Paris: got %.0fm", a)
	}
}
