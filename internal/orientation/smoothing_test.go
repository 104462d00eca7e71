package orientation

import (
	"math"
	"testing"
)

// arcDist is the shorter distance between a and b on a circle of size rng.
func arcDist(a, b, rng float64) float64 {
	d := math.Abs(wrap(a, rng) - wrap(b, rng))
	return math.Min(d, rng-d)
}

func TestSmooth_StaysOnShorterArc(t *testing.T) {
	for _, rng := range []float64{twoPi, math.Pi} {
		step := rng / 37
		for a := 0.0; a < rng; a += step {
			for b := 0.0; b < rng; b += step * 1.3 {
				if math.Abs(arcDist(a, b, rng)-rng/2) < 1e-9 {
					continue // tie, covered separately
				}
				for _, k := range []float64{0.1, 0.5, 0.9} {
					got := Smooth(a, b, k, rng)
					if got < 0 || got >= rng {
						t.Fatalf("Smooth(%v,%v,%v,%v)=%v out of [0,%v)", a, b, k, rng, got, rng)
					}
					total := arcDist(got, a, rng) + arcDist(got, b, rng)
					if math.Abs(total-arcDist(a, b, rng)) > 1e-9 {
						t.Fatalf("Smooth(%v,%v,%v,%v)=%v not on shorter arc", a, b, k, rng, got)
					}
					if arcDist(got, a, rng) > rng/2+1e-9 || arcDist(got, b, rng) > rng/2+1e-9 {
						t.Fatalf("Smooth(%v,%v,%v,%v)=%v travels more than half", a, b, k, rng, got)
					}
				}
			}
		}
	}
}

func TestSmooth_Limits(t *testing.T) {
	a, b := deg2rad(40), deg2rad(300)
	if got := Smooth(a, b, 1-1e-9, twoPi); arcDist(got, a, twoPi) > 1e-6 {
		t.Fatalf("k->1 got=%v want~%v", got, a)
	}
	if got := Smooth(a, b, 1e-9, twoPi); arcDist(got, b, twoPi) > 1e-6 {
		t.Fatalf("k->0 got=%v want~%v", got, b)
	}
}

func TestSmooth_WeightOneIsPassThrough(t *testing.T) {
	for _, a := range []float64{-1, 0, 1.5, 7} {
		if got := Smooth(a, 3, 1, twoPi); got != a {
			t.Fatalf("got=%v want=%v", got, a)
		}
	}
}

func TestSmooth_EqualAngles(t *testing.T) {
	a := deg2rad(123)
	if got := Smooth(a, a, 0.3, twoPi); got != a {
		t.Fatalf("got=%v want=%v", got, a)
	}
}

func TestSmooth_WrapDoesNotSweep(t *testing.T) {
	got := Smooth(deg2rad(10), deg2rad(350), 0.5, twoPi)
	if arcDist(got, 0, twoPi) > 1e-9 {
		t.Fatalf("got=%v deg want 0", rad2deg(got))
	}
	got = Smooth(deg2rad(350), deg2rad(10), 0.25, twoPi)
	if want := deg2rad(5); arcDist(got, want, twoPi) > 1e-9 {
		t.Fatalf("got=%v deg want 5", rad2deg(got))
	}
}

func TestSmooth_HalfCircleTieStartsAtPrevious(t *testing.T) {
	// prev=π, new=0: increasing from π through the wrap.
	got := Smooth(0, math.Pi, 0.5, twoPi)
	if math.Abs(got-1.5*math.Pi) > 1e-9 {
		t.Fatalf("got=%v want=%v", got, 1.5*math.Pi)
	}
	// prev=0, new=π: increasing from 0.
	got = Smooth(math.Pi, 0, 0.5, twoPi)
	if math.Abs(got-0.5*math.Pi) > 1e-9 {
		t.Fatalf("got=%v want=%v", got, 0.5*math.Pi)
	}
}

func TestSmooth_HalfRange(t *testing.T) {
	// gamma axis: range π, 170° and 10° (as offsets) are 20° apart across the wrap.
	got := Smooth(deg2rad(170), deg2rad(10), 0.5, math.Pi)
	if arcDist(got, 0, math.Pi) > 1e-9 {
		t.Fatalf("got=%v deg want 0", rad2deg(got))
	}
}

func TestDeadband(t *testing.T) {
	cases := []struct {
		name      string
		a, b, th  float64
		want      float64
	}{
		{"BelowThreshold", 1.02, 1.0, 0.05, 1.0},
		{"AtThreshold", 1.05, 1.0, 0.05, 1.05},
		{"AboveThreshold", 1.2, 1.0, 0.05, 1.2},
		{"ZeroThreshold", 1.0000001, 1.0, 0, 1.0000001},
		{"ZeroThresholdEqual", 2, 2, 0, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Deadband(tc.a, tc.b, tc.th); got != tc.want {
				t.Fatalf("got=%v want=%v", got, tc.want)
			}
		})
	}
}
