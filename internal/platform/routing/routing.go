// Package routing orders visit stops with a greedy nearest-neighbor walk.
package routing

import (
	"math"

	"github.com/visitplan/visitplan/internal/platform/geo"
)

// Order returns stops rearranged into visiting order. Starting from start,
// the nearest unvisited geocoded stop is chosen repeatedly; ties go to the
// stop that appears first in the input. Stops without coordinates cannot be
// ranked and are appended after the tour in their original order.
//
// The result is always a permutation of the input. O(n^2) over n stops.
func Order[T geo.Locatable](start geo.Point, stops []T) []T {
	located := make([]T, 0, len(stops))
	var unlocated []T
	for _, s := range stops {
		if _, ok := s.Coords(); ok {
			located = append(located, s)
		} else {
			unlocated = append(unlocated, s)
		}
	}

	ordered := make([]T, 0, len(stops))
	current := start
	for len(located) > 0 {
		best := 0
		bestDist := math.Inf(1)
		for i, s := range located {
			if d := geo.DistanceTo(current, s); d < bestDist {
				bestDist = d
				best = i
			}
		}

		chosen := located[best]
		ordered = append(ordered, chosen)
		current, _ = chosen.Coords()
		located = append(located[:best], located[best+1:]...)
	}

	return append(ordered, unlocated...)
}

// Leg describes the drive into one stop of an ordered tour.
type Leg struct {
	DistanceKm    float64
	TravelMinutes int
}

// Legs computes the per-stop legs of an already ordered tour starting at
// start. A stop without coordinates produces an infinite distance and the
// flat fallback travel estimate, and does not advance the current position.
func Legs[T geo.Locatable](start geo.Point, ordered []T) []Leg {
	legs := make([]Leg, len(ordered))
	current := start
	for i, s := range ordered {
		d := geo.DistanceTo(current, s)
		legs[i] = Leg{DistanceKm: d, TravelMinutes: geo.TravelTimeMinutes(d)}
		if pt, ok := s.Coords(); ok {
			current = pt
		}
	}
	return legs
}

// ReturnMinutes estimates the drive back to start from the last geocoded
// stop of an ordered tour. It returns 0 when no stop has coordinates.
func ReturnMinutes[T geo.Locatable](start geo.Point, ordered []T) int {
	for i := len(ordered) - 1; i >= 0; i-- {
		if pt, ok := ordered[i].Coords(); ok {
			return geo.TravelTimeMinutes(geo.DistanceKm(pt, start))
		}
	}
	return 0
}
