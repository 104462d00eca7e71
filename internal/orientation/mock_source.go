// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"time"
)

type mockSource struct {
	start   time.Time
	now     func() time.Time
	compass bool
}

// NewMockSource creates a mock source of a phone held upright and slowly
// panned around, with a little hand tremor on beta and gamma. When compass
// is set samples also carry a matching compass heading.
func NewMockSource(compass bool) Source {
	return &mockSource{start: time.Now(), now: time.Now, compass: compass}
}

func (m *mockSource) Next() (Sample, error) {
	elapsed := m.now().Sub(m.start).Seconds()

	alpha := math.Mod(elapsed*20, 360)
	s := NewSample(
		alpha,
		85+2*math.Sin(elapsed*3.1),
		1.5*math.Cos(elapsed*2.3),
	)
	if m.compass {
		s = s.WithCompass(mod360(360 - alpha))
	}
	return s, nil
}
