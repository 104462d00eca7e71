package orientation

import "sync"

// SampleStore holds the latest sample and screen angle. Sensor callbacks
// write it from transport goroutines; the update cycle reads it.
type SampleStore struct {
	mu     sync.Mutex
	sample Sample
	have   bool
	screen float64
}

func (s *SampleStore) SetSample(v Sample) {
	s.mu.Lock()
	s.sample = v
	s.have = true
	s.mu.Unlock()
}

// SetScreenAngle stores the screen angle in degrees, normalized.
func (s *SampleStore) SetScreenAngle(deg float64) {
	s.mu.Lock()
	s.screen = NormalizeScreenAngle(deg)
	s.mu.Unlock()
}

// ClearSample forgets the last sample. The screen angle is kept.
func (s *SampleStore) ClearSample() {
	s.mu.Lock()
	s.sample = Sample{}
	s.have = false
	s.mu.Unlock()
}

// Snapshot returns the last sample, the screen angle and whether a sample
// has been received since the last clear.
func (s *SampleStore) Snapshot() (Sample, float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sample, s.screen, s.have
}

func (s *SampleStore) ScreenAngle() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screen
}
