// Package orientation fuses device-orientation samples into a camera
// rotation and a compass heading for AR overlays.
package orientation

import (
	"gonum.org/v1/gonum/num/quat"
)

// Pose is the transport representation of a fused orientation.
// Angles are degrees in the Y-up camera frame.
type Pose struct {
	Roll    float64    `json:"roll"`
	Pitch   float64    `json:"pitch"`
	Yaw     float64    `json:"yaw"`
	Heading float64    `json:"heading"`
	Quat    [4]float64 `json:"quat"` // w, x, y, z
}

// Source is anything that can provide samples over time: the mock source,
// or a replay.
type Source interface {
	Next() (Sample, error)
}

// PoseFromQuaternion converts a camera rotation into a Pose.
func PoseFromQuaternion(q quat.Number, heading float64) Pose {
	x, y, z := toEulerYXZ(q)
	return Pose{
		Roll:    rad2deg(z),
		Pitch:   rad2deg(x),
		Yaw:     rad2deg(y),
		Heading: heading,
		Quat:    [4]float64{q.Real, q.Imag, q.Jmag, q.Kmag},
	}
}

// Quaternion returns the rotation carried by p.
func (p Pose) Quaternion() quat.Number {
	return quat.Number{Real: p.Quat[0], Imag: p.Quat[1], Jmag: p.Quat[2], Kmag: p.Quat[3]}
}
