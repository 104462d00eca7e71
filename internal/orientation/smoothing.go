// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import "math"

const (
	twoPi  = 2 * math.Pi
	halfPi = math.Pi / 2
)

// Smooth interpolates from prevAngle towards newAngle along the shorter arc
// of a circle with circumference rng (radians; 2π when rng <= 0). k weights
// the new sample: k -> 1 yields newAngle, k -> 0 yields prevAngle. The result
// is wrapped into [0, rng).
//
// k >= 1 disables smoothing and returns newAngle untouched.
//
// When the two angles are exactly half a circle apart the arc starts at
// prevAngle and runs in the increasing direction.
func Smooth(newAngle, prevAngle, k, rng float64) float64 {
	if k >= 1 {
		return newAngle
	}
	if rng <= 0 {
		rng = twoPi
	}
	a := wrap(newAngle, rng)
	b := wrap(prevAngle, rng)

	left, right := orderAngles(a, b, rng)

	// Shift so that the arc starts at 0 and runs to span.
	span := right - left
	if span < 0 {
		span += rng
	}

	var out float64
	if left == a {
		// new at 0, previous at span
		out = (1 - k) * span
	} else {
		// previous at 0, new at span
		out = k * span
	}
	return wrap(out+left, rng)
}

// orderAngles returns the endpoints of the shorter arc between a and b so
// that travelling forward from left reaches right within rng/2.
func orderAngles(a, b, rng float64) (left, right float64) {
	d := math.Abs(b - a)
	if (b > a && d < rng/2) || (a > b && d > rng/2) {
		return a, b
	}
	return b, a
}

// Deadband suppresses changes smaller than threshold: it returns prevAngle
// when |newAngle-prevAngle| < threshold and newAngle otherwise. A threshold
// of 0 always returns newAngle.
func Deadband(newAngle, prevAngle, threshold float64) float64 {
	if threshold > 0 && math.Abs(newAngle-prevAngle) < threshold {
		return prevAngle
	}
	return newAngle
}

func wrap(v, rng float64) float64 {
	v = math.Mod(v, rng)
	if v < 0 {
		v += rng
	}
	// math.Mod of a tiny negative can round up to rng
	if v >= rng {
		v -= rng
	}
	return v
}
