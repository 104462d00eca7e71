// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"fmt"
	"math"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
)

// ErrNoHeading is returned for valid NMEA sentences that carry no usable
// heading (other sentence types, invalid THS status, empty fields).
var ErrNoHeading = errors.New("sensors: sentence carries no heading")

// CompassReading is the payload published on the compass topic.
type CompassReading struct {
	// Heading is degrees clockwise from true north in [0,360).
	Heading float64 `json:"heading"`
	// Sentence is the NMEA sentence type the heading came from.
	Sentence string `json:"sentence,omitempty"`
}

// ParseCompassSentence extracts a true heading from an NMEA line. HDT and
// THS carry true heading directly; HDG carries a magnetic heading that is
// corrected by deviation and variation when present.
func ParseCompassSentence(line string) (CompassReading, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return CompassReading{}, fmt.Errorf("sensors: not an NMEA sentence: %q", line)
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		return CompassReading{}, fmt.Errorf("sensors: parse NMEA: %w", err)
	}

	var heading float64
	switch sentence.DataType() {
	case nmea.TypeHDT:
		m := sentence.(nmea.HDT)
		if !m.True {
			return CompassReading{}, ErrNoHeading
		}
		heading = m.Heading
	case nmea.TypeTHS:
		m := sentence.(nmea.THS)
		// V marks the data as invalid
		if m.Status == "V" {
			return CompassReading{}, ErrNoHeading
		}
		heading = m.Heading
	case nmea.TypeHDG:
		m := sentence.(nmea.HDG)
		heading = m.Heading + signed(m.Deviation, m.DeviationDirection) + signed(m.Variation, m.VariationDirection)
	default:
		return CompassReading{}, ErrNoHeading
	}

	if math.IsNaN(heading) || math.IsInf(heading, 0) {
		return CompassReading{}, ErrNoHeading
	}
	heading = math.Mod(heading, 360)
	if heading < 0 {
		heading += 360
	}
	return CompassReading{Heading: heading, Sentence: sentence.DataType()}, nil
}

// signed applies the E/W convention: easterly corrections are added.
func signed(v float64, dir string) float64 {
	if dir == "W" {
		return -v
	}
	return v
}
