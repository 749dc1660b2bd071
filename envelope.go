package landcover

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// ErrNoOverlap is returned when two envelopes that are required to overlap do
// not.
var ErrNoOverlap = errors.New("envelopes do not overlap")

// An Envelope is an axis-aligned bounding rectangle in world coordinates.
type Envelope struct {
	Left   float64
	Right  float64
	Bottom float64
	Top    float64
}

// A NoOverlapError is returned by [Envelope.Intersection] when the envelopes
// do not overlap.
type NoOverlapError struct {
	Envelope Envelope
	Other    Envelope
}

func (e *NoOverlapError) Error() string {
	return fmt.Sprintf("%v and %v: %v", e.Envelope, e.Other, ErrNoOverlap)
}

func (e *NoOverlapError) Unwrap() error {
	return ErrNoOverlap
}

// EnvelopeFromBound returns the Envelope of bound.
func EnvelopeFromBound(bound orb.Bound) Envelope {
	return Envelope{
		Left:   bound.Min.X(),
		Right:  bound.Max.X(),
		Bottom: bound.Min.Y(),
		Top:    bound.Max.Y(),
	}
}

// Area returns e's area.
func (e Envelope) Area() float64 {
	return math.Abs(e.Top-e.Bottom) * math.Abs(e.Right-e.Left)
}

// Width returns e's width.
func (e Envelope) Width() float64 {
	return e.Right - e.Left
}

// Height returns e's height.
func (e Envelope) Height() float64 {
	return e.Top - e.Bottom
}

// Bound returns e as an orb.Bound.
func (e Envelope) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{e.Left, e.Bottom},
		Max: orb.Point{e.Right, e.Top},
	}
}

// Overlap returns the intersection of e and other. The second return value is
// false if e and other do not overlap. Envelopes that share only an edge
// overlap.
func (e Envelope) Overlap(other Envelope) (Envelope, bool) {
	if e.Left > other.Right || other.Left > e.Right || e.Bottom > other.Top || other.Bottom > e.Top {
		return Envelope{}, false
	}
	return Envelope{
		Left:   max(e.Left, other.Left),
		Right:  min(e.Right, other.Right),
		Bottom: max(e.Bottom, other.Bottom),
		Top:    min(e.Top, other.Top),
	}, true
}

// Intersection is like [Envelope.Overlap] but returns a *NoOverlapError if e
// and other do not overlap.
func (e Envelope) Intersection(other Envelope) (Envelope, error) {
	overlap, ok := e.Overlap(other)
	if !ok {
		return Envelope{}, &NoOverlapError{
			Envelope: e,
			Other:    other,
		}
	}
	return overlap, nil
}

func (e Envelope) String() string {
	return fmt.Sprintf("Envelope(%g, %g, %g, %g)", e.Left, e.Right, e.Bottom, e.Top)
}
