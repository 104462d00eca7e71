// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Angles are corrected device angles in radians.
type Angles struct {
	Alpha float64
	Beta  float64
	Gamma float64
}

// cameraCorrection is -90° about X: the camera looks out of the back of the
// device, not its top edge.
var cameraCorrection = axisAngle(1, 0, 0, -halfPi)

func axisAngle(x, y, z, angle float64) quat.Number {
	s := math.Sin(angle / 2)
	return quat.Number{Real: math.Cos(angle / 2), Imag: x * s, Jmag: y * s, Kmag: z * s}
}

// fromEulerYXZ builds the intrinsic rotation Y(y) · X(x) · Z(z).
func fromEulerYXZ(x, y, z float64) quat.Number {
	return quat.Mul(quat.Mul(axisAngle(0, 1, 0, y), axisAngle(1, 0, 0, x)), axisAngle(0, 0, 1, z))
}

// toEulerYXZ decomposes q into intrinsic Y-X-Z angles. x is in
// [-π/2, π/2]; at gimbal lock z is reported as 0.
func toEulerYXZ(q quat.Number) (x, y, z float64) {
	if n := quat.Abs(q); n > 0 && n != 1 {
		q = quat.Scale(1/n, q)
	}
	w, qx, qy, qz := q.Real, q.Imag, q.Jmag, q.Kmag

	m11 := 1 - 2*(qy*qy+qz*qz)
	m13 := 2 * (qx*qz + w*qy)
	m21 := 2 * (qx*qy + w*qz)
	m22 := 1 - 2*(qx*qx+qz*qz)
	m23 := 2 * (qy*qz - w*qx)
	m31 := 2 * (qx*qz - w*qy)
	m33 := 1 - 2*(qx*qx+qy*qy)

	x = math.Asin(-clamp(m23, -1, 1))
	if math.Abs(m23) < 0.9999999 {
		y = math.Atan2(m13, m33)
		z = math.Atan2(m21, m22)
	} else {
		y = math.Atan2(-m31, m11)
		z = 0
	}
	return x, y, z
}

// Compose maps device angles (Z-X'-Y'' sensor convention) and a screen
// rotation into a camera rotation in a Y-up frame.
func Compose(a Angles, screen float64) quat.Number {
	q := fromEulerYXZ(a.Beta, a.Alpha, -a.Gamma)
	q = quat.Mul(q, cameraCorrection)
	return quat.Mul(q, axisAngle(0, 0, 1, -screen))
}

// Decompose is the inverse of Compose for beta in (-π/2, π/2).
func Decompose(q quat.Number, screen float64) Angles {
	undo := quat.Mul(cameraCorrection, axisAngle(0, 0, 1, -screen))
	x, y, z := toEulerYXZ(quat.Mul(q, quat.Conj(undo)))
	return Angles{Alpha: y, Beta: x, Gamma: -z}
}

// Strategy is the per-device-family correction path. It is selected once
// when Controls is built.
type Strategy interface {
	Name() string
	// CorrectAlpha converts a raw alpha in degrees into radians with the
	// north alignment offset applied.
	CorrectAlpha(alphaDeg float64, off offsets) float64
	// OnSample and OnScreen recompute offsets after an input event.
	OnSample(s Sample, off *offsets)
	OnScreen(screenDeg float64, off *offsets)
	// CompassYaw returns the compass-derived yaw in radians, if this
	// strategy uses one and the sample carries a heading.
	CompassYaw(s Sample) (float64, bool)
	// Compose builds the final rotation. yaw is only meaningful when
	// haveYaw is set.
	Compose(a Angles, screen float64, yaw float64, haveYaw bool, off offsets) quat.Number
	Heading(s Sample, off offsets) float64
}

// offsets are the correction terms maintained from sensor and screen
// events. The update cycle reads them but never resets them.
type offsets struct {
	alpha       float64 // north alignment, radians
	orientation float64 // screen compensation for the compass path, radians
}

// NewStrategy selects the correction path for a device family.
func NewStrategy(appleMobile bool) Strategy {
	if appleMobile {
		return CompassYawStrategy{}
	}
	return StandardStrategy{}
}

// StandardStrategy uses the composed rotation as is.
type StandardStrategy struct{}

func (StandardStrategy) Name() string { return "standard" }

func (StandardStrategy) CorrectAlpha(alphaDeg float64, off offsets) float64 {
	if alphaDeg < 0 || alphaDeg >= 360 {
		alphaDeg = math.Mod(alphaDeg, 360)
		if alphaDeg < 0 {
			alphaDeg += 360
		}
	}
	return deg2rad(alphaDeg) + off.alpha
}

func (StandardStrategy) OnSample(Sample, *offsets) {}

func (StandardStrategy) OnScreen(float64, *offsets) {}

func (StandardStrategy) CompassYaw(Sample) (float64, bool) { return 0, false }

func (StandardStrategy) Compose(a Angles, screen float64, _ float64, _ bool, _ offsets) quat.Number {
	return Compose(a, screen)
}

func (StandardStrategy) Heading(s Sample, _ offsets) float64 {
	return alphaHeading(s)
}

// CompassYawStrategy keeps gyro pitch and roll but drives yaw from the
// compass so that it tracks true north without drift.
type CompassYawStrategy struct{}

func (CompassYawStrategy) Name() string { return "compass_yaw" }

func (CompassYawStrategy) CorrectAlpha(alphaDeg float64, off offsets) float64 {
	return deg2rad(alphaDeg) + off.alpha
}

func (CompassYawStrategy) OnSample(s Sample, off *offsets) {
	if !s.HasCompass {
		return
	}
	off.alpha = deg2rad(360-s.CompassHeading) - deg2rad(s.Alpha)
}

func (CompassYawStrategy) OnScreen(screenDeg float64, off *offsets) {
	switch NormalizeScreenAngle(screenDeg) {
	case 90:
		off.orientation = halfPi
	case -90:
		off.orientation = -halfPi
	default:
		off.orientation = 0
	}
}

func (CompassYawStrategy) CompassYaw(s Sample) (float64, bool) {
	if !s.HasCompass {
		return 0, false
	}
	return wrap(deg2rad(360-s.CompassHeading), twoPi), true
}

func (CompassYawStrategy) Compose(a Angles, screen float64, yaw float64, haveYaw bool, off offsets) quat.Number {
	q := Compose(a, screen)
	if !haveYaw {
		return q
	}
	x, _, z := toEulerYXZ(q)
	return fromEulerYXZ(x, yaw+off.orientation, z)
}

func (CompassYawStrategy) Heading(s Sample, off offsets) float64 {
	if !s.HasCompass {
		return alphaHeading(s)
	}
	return compassHeading(s, off.orientation)
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }

func rad2deg(r float64) float64 { return r * 180 / math.Pi }

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
