package routing

import (
	"testing"

	"github.com/visitplan/visitplan/internal/platform/geo"
)

type stop struct {
	name    string
	pt      geo.Point
	located bool
}

func (s stop) Coords() (geo.Point, bool) { return s.pt, s.located }

func names(stops []stop) []string {
	out := make([]string, len(stops))
	for i, s := range stops {
		out[i] = s.name
	}
	return out
}

func TestOrderVisitsNearestFirst(t *testing.T) {
	start := geo.Point{Lat: 0, Lon: 0}
	stops := []stop{
		{name: "far", pt: geo.Point{Lat: 0, Lon: 2}, located: true},
		{name: "near", pt: geo.Point{Lat: 0, Lon: 0.5}, located: true},
		{name: "mid", pt: geo.Point{Lat: 0, Lon: 1}, located: true},
	}

	got := names(Order(start, stops))
	want := []string{"near", "mid", "far"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestOrderIsPermutation(t *testing.T) {
	start := geo.Point{Lat: 49.79, Lon: 9.93}
	stops := []stop{
		{name: "a", pt: geo.Point{Lat: 49.80, Lon: 9.95}, located: true},
		{name: "b", located: false},
		{name: "c", pt: geo.Point{Lat: 49.78, Lon: 9.91}, located: true},
		{name: "d", located: false},
	}

	got := Order(start, stops)
	if len(got) != len(stops) {
		t.Fatalf("expected %d stops, got %d", len(stops), len(got))
	}
	seen := map[string]bool{}
	for _, s := range got {
		if seen[s.name] {
			t.Fatalf("stop %s appears twice", s.name)
		}
		seen[s.name] = true
	}
}

func TestOrderUnlocatedAppendedInInputOrder(t *testing.T) {
	start := geo.Point{}
	stops := []stop{
		{name: "x", located: false},
		{name: "a", pt: geo.Point{Lat: 0, Lon: 1}, located: true},
		{name: "y", located: false},
	}

	got := names(Order(start, stops))
	want := []string{"a", "x", "y"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestOrderTieBreaksOnInputOrder(t *testing.T) {
	start := geo.Point{Lat: 0, Lon: 0}
	// Equidistant stops east and west of the start.
	stops := []stop{
		{name: "east", pt: geo.Point{Lat: 0, Lon: 1}, located: true},
		{name: "west", pt: geo.Point{Lat: 0, Lon: -1}, located: true},
	}

	got := names(Order(start, stops))
	if got[0] != "east" {
		t.Errorf("expected first-listed stop to win the tie, got %v", got)
	}
}

func TestOrderEmpty(t *testing.T) {
	got := Order(geo.Point{}, []stop{})
	if len(got) != 0 {
		t.Errorf("expected empty result, got %d stops", len(got))
	}
}

func TestLegsUseFallbackForUnlocated(t *testing.T) {
	start := geo.Point{Lat: 0, Lon: 0}
	ordered := []stop{
		{name: "a", pt: geo.Point{Lat: 0, Lon: 0}, located: true},
		{name: "b", located: false},
	}

	legs := Legs(start, ordered)
	if len(legs) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(legs))
	}
	if legs[0].TravelMinutes != 5 {
		t.Errorf("expected 5 minutes for zero-distance leg, got %d", legs[0].TravelMinutes)
	}
	if legs[1].TravelMinutes != 15 {
		t.Errorf("expected 15 minute fallback for unlocated stop, got %d", legs[1].TravelMinutes)
	}
}

func TestReturnMinutesSkipsUnlocatedTail(t *testing.T) {
	start := geo.Point{Lat: 0, Lon: 0}
	ordered := []stop{
		{name: "a", pt: geo.Point{Lat: 0, Lon: 0}, located: true},
		{name: "b", located: false},
	}

	// Return leg measured from "a", the last geocoded stop.
	if got := ReturnMinutes(start, ordered); got != 5 {
		t.Errorf("expected 5 minute return leg, got %d", got)
	}

	if got := ReturnMinutes(start, []stop{{name: "b", located: false}}); got != 0 {
		t.Errorf("expected 0 return minutes without geocoded stops, got %d", got)
	}
}
