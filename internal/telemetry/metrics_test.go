package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.Tick(TickApplied, time.Now())
	m.Sample("orientation")
	m.Permission("granted")
	m.Heading(90)
	m.SessionOpened()
	m.SessionClosed()
}

func TestMetrics_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := InitMetrics(reg)

	m.Tick(TickApplied, time.Now())
	m.Tick(TickApplied, time.Now())
	m.Tick(TickDisabled, time.Now())
	m.Sample("orientation")
	m.Permission("denied")
	m.Heading(270)

	if got := testutil.ToFloat64(m.UpdateTicks.WithLabelValues(TickApplied)); got != 2 {
		t.Fatalf("applied=%v want=2", got)
	}
	if got := testutil.ToFloat64(m.UpdateTicks.WithLabelValues(TickDisabled)); got != 1 {
		t.Fatalf("disabled=%v want=1", got)
	}
	if got := testutil.ToFloat64(m.SamplesReceived.WithLabelValues("orientation")); got != 1 {
		t.Fatalf("samples=%v want=1", got)
	}
	if got := testutil.ToFloat64(m.PermissionOutcomes.WithLabelValues("denied")); got != 1 {
		t.Fatalf("denied=%v want=1", got)
	}
	if got := testutil.ToFloat64(m.HeadingDegrees); got != 270 {
		t.Fatalf("heading=%v want=270", got)
	}
}

func TestDefault_ConcurrentFirstUse(t *testing.T) {
	const callers = 8
	got := make([]*Metrics, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i] = Default()
		}()
	}
	wg.Wait()

	for i, m := range got {
		if m == nil || m != got[0] {
			t.Fatalf("caller %d got %p want %p", i, m, got[0])
		}
	}
}

func TestInitMetrics_CustomRegistryLeavesDefault(t *testing.T) {
	d := Default()
	if m := InitMetrics(prometheus.NewRegistry()); m == d {
		t.Fatal("custom registry replaced the default instance")
	}
	if Default() != d {
		t.Fatal("default instance changed")
	}
}
