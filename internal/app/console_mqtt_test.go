package app

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/relabs-tech/arfusion/internal/config"
	"github.com/relabs-tech/arfusion/internal/orientation"
	"github.com/relabs-tech/arfusion/internal/sensors"
)

func update(t *testing.T, m monitor, msg tea.Msg) monitor {
	t.Helper()
	next, _ := m.Update(msg)
	mm, ok := next.(monitor)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return mm
}

func TestMonitor_View(t *testing.T) {
	m := newMonitor(config.TopicsConfig{Pose: "arfusion/pose"})
	if v := m.View(); !strings.Contains(v, "waiting for arfusion/pose") || !strings.Contains(v, "unknown") {
		t.Fatalf("view=%q", v)
	}

	m = update(t, m, clockMsg(time.Unix(10, 0)))
	m = update(t, m, statusMsg(StatusReport{State: "granted", Strategy: "compass_yaw"}))
	m = update(t, m, poseMsg(orientation.Pose{Roll: 1.5, Pitch: -2, Yaw: 91, Heading: 269, Quat: [4]float64{1}}))
	m = update(t, m, compassMsg(sensors.CompassReading{Heading: 91, Sentence: "HDT"}))

	v := m.View()
	for _, want := range []string{"granted", "compass_yaw", "YAW=  91.00", "HEADING=269.00", "W", "compass  91.00", "HDT", "(1 poses)"} {
		if !strings.Contains(v, want) {
			t.Fatalf("view missing %q:\n%s", want, v)
		}
	}
	if m.poseAt != time.Unix(10, 0) {
		t.Fatalf("poseAt=%v", m.poseAt)
	}
}

func TestMonitor_ErrorStatus(t *testing.T) {
	m := update(t, newMonitor(config.TopicsConfig{}), statusMsg(StatusReport{State: "insecure", Code: "NO_HTTPS", Message: "needs https"}))
	if v := m.View(); !strings.Contains(v, "insecure NO_HTTPS") || !strings.Contains(v, "needs https") {
		t.Fatalf("view=%q", v)
	}
}

func TestMonitor_Quit(t *testing.T) {
	_, cmd := newMonitor(config.TopicsConfig{}).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("cmd did not quit")
	}
}

func TestCardinal(t *testing.T) {
	cases := map[float64]string{0: "N", 22: "N", 23: "NE", 90: "E", 180: "S", 269: "W", 315: "NW", 359.9: "N"}
	for in, want := range cases {
		if got := cardinal(in); got != want {
			t.Fatalf("cardinal(%v)=%s want %s", in, got, want)
		}
	}
}
