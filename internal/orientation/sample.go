package orientation

import (
	"encoding/json"
	"math"
)

// Sample is one raw device-orientation reading, in degrees.
//
//	Alpha          [0,360)    rotation about device Z
//	Beta           [-180,180] rotation about X'
//	Gamma          [-90,90]   rotation about Y''
//	CompassHeading [0,360)    magnetometer bearing, only when HasCompass
type Sample struct {
	Alpha          float64
	Beta           float64
	Gamma          float64
	CompassHeading float64
	HasCompass     bool
	Absolute       bool
}

// NewSample builds a sample, replacing non-finite angles with 0.
func NewSample(alpha, beta, gamma float64) Sample {
	return Sample{
		Alpha: finiteOrZero(alpha),
		Beta:  finiteOrZero(beta),
		Gamma: finiteOrZero(gamma),
	}
}

// WithCompass returns a copy of s carrying a compass heading. Non-finite
// headings are dropped.
func (s Sample) WithCompass(heading float64) Sample {
	if math.IsNaN(heading) || math.IsInf(heading, 0) {
		s.CompassHeading = 0
		s.HasCompass = false
		return s
	}
	s.CompassHeading = heading
	s.HasCompass = true
	return s
}

// sampleWire is the JSON shape used on MQTT and the browser bridge.
// Pointers distinguish missing fields from zero.
type sampleWire struct {
	Alpha          *float64 `json:"alpha"`
	Beta           *float64 `json:"beta"`
	Gamma          *float64 `json:"gamma"`
	CompassHeading *float64 `json:"compass_heading,omitempty"`
	Absolute       *bool    `json:"absolute,omitempty"`
}

// UnmarshalJSON decodes a sample. Missing or null angles become 0.
func (s *Sample) UnmarshalJSON(b []byte) error {
	var w sampleWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*s = NewSample(deref(w.Alpha), deref(w.Beta), deref(w.Gamma))
	if w.CompassHeading != nil {
		*s = s.WithCompass(*w.CompassHeading)
	}
	if w.Absolute != nil {
		s.Absolute = *w.Absolute
	}
	return nil
}

// MarshalJSON encodes a sample. The compass heading and the absolute flag are
// omitted unless set.
func (s Sample) MarshalJSON() ([]byte, error) {
	w := sampleWire{Alpha: &s.Alpha, Beta: &s.Beta, Gamma: &s.Gamma}
	if s.HasCompass {
		w.CompassHeading = &s.CompassHeading
	}
	if s.Absolute {
		w.Absolute = &s.Absolute
	}
	return json.Marshal(w)
}

// NormalizeScreenAngle folds a screen rotation angle into (-180,180], so
// that 270 is reported as -90. Non-finite input is treated as portrait.
func NormalizeScreenAngle(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	a := math.Mod(deg, 360)
	if a > 180 {
		a -= 360
	}
	if a <= -180 {
		a += 360
	}
	return a
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
