// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import "math"

// compassHeading is the bearing from a magnetometer heading, compensated
// for screen rotation.
func compassHeading(s Sample, orientationOffset float64) float64 {
	return mod360(360 - s.CompassHeading + rad2deg(orientationOffset))
}

// alphaHeading is the bearing from alpha alone.
func alphaHeading(s Sample) float64 {
	if s.Absolute {
		// Absolute events are already referenced to north on every platform
		// seen so far, so no system offset is applied.
		return mod360(360 - s.Alpha)
	}
	return mod360(360 - s.Alpha)
}

// mod360 wraps deg into [0, 360).
func mod360(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg -= 360
	}
	return deg
}
