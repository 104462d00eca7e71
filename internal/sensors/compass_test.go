package sensors

import (
	"errors"
	"math"
	"testing"
)

func TestParseCompassSentence(t *testing.T) {
	cases := []struct {
		name     string
		line     string
		want     float64
		sentence string
	}{
		{"HDT", "$HEHDT,274.07,T*19", 274.07, "HDT"},
		{"HDTWithCRLF", "$HEHDT,274.07,T*19\r\n", 274.07, "HDT"},
		{"HDGWesterlyVariation", "$HCHDG,98.3,0.0,E,12.6,W*57", 85.7, "HDG"},
		{"HDGWrapsPastNorth", "$HCHDG,350.0,2.0,E,15.0,E*72", 7, "HDG"},
		{"THS", "$INTHS,77.52,A*20", 77.52, "THS"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseCompassSentence(tc.line)
			if err != nil {
				t.Fatalf("ParseCompassSentence: %v", err)
			}
			if math.Abs(got.Heading-tc.want) > 1e-9 || got.Sentence != tc.sentence {
				t.Fatalf("got=%+v want heading=%v sentence=%s", got, tc.want, tc.sentence)
			}
		})
	}
}

func TestParseCompassSentence_NoHeading(t *testing.T) {
	for _, line := range []string{
		"$INTHS,77.52,V*37",
		"$GPRMC,220516,A,5133.82,N,00042.24,W,173.8,231.8,130694,004.2,W*70",
	} {
		if _, err := ParseCompassSentence(line); !errors.Is(err, ErrNoHeading) {
			t.Fatalf("line=%q err=%v want ErrNoHeading", line, err)
		}
	}
}

func TestParseCompassSentence_Malformed(t *testing.T) {
	for _, line := range []string{
		"",
		"HEHDT,274.07,T*19",
		"$HEHDT,274.07,T*00",
	} {
		_, err := ParseCompassSentence(line)
		if err == nil || errors.Is(err, ErrNoHeading) {
			t.Fatalf("line=%q err=%v want parse error", line, err)
		}
	}
}
