package geo

import "testing"

func TestPlanarDistance(t *testing.T) {
	d := PlanarDistance(Point{X: 0, Y: 0}, Point{X: 3, Y: 4})
	if d != 5 {
		t.Fatalf("expected 5, got %v", d)
	}
}

func TestHaversineMetersZeroForSamePoint(t *testing.T) {
	p := Point{X: -122.4, Y: 37.7}
	if d := HaversineMeters(p, p); d != 0 {
		t.Fatalf("expected 0 distance for identical points, got %v", d)
	}
}

func TestPointInPolygon(t *testing.T) {
	square := []Point{{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 0}}
	if !PointInPolygon(Point{X: 5, Y: 5}, square) {
		t.Fatalf("expected the center point to be inside the square")
	}
	if PointInPolygon(Point{X: 50, Y: 50}, square) {
		t.Fatalf("expected a far-away point to be outside the square")
	}
}

func TestInBox(t *testing.T) {
	lo, hi := Point{X: 0, Y: 0}, Point{X: 10, Y: 10}
	if !InBox(Point{X: 5, Y: 5}, lo, hi) {
		t.Fatalf("expected (5,5) to be inside the box")
	}
	if InBox(Point{X: 20, Y: 20}, lo, hi) {
		t.Fatalf("expected (20,20) to be outside the box")
	}
}

func TestInCenter(t *testing.T) {
	center := Point{X: 0, Y: 0}
	if !InCenter(Point{X: 1, Y: 1}, center, 2) {
		t.Fatalf("expected (1,1) within radius 2 of the origin")
	}
	if InCenter(Point{X: 10, Y: 10}, center, 2) {
		t.Fatalf("expected (10,10) to be outside radius 2")
	}
}
