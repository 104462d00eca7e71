package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/arfusion/internal/config"
	"github.com/relabs-tech/arfusion/internal/orientation"
	"github.com/relabs-tech/arfusion/internal/sensors"
)

// Messages fed into the monitor from MQTT callbacks.
type poseMsg orientation.Pose
type statusMsg StatusReport
type compassMsg sensors.CompassReading
type clockMsg time.Time

// monitor is the console view of the fusion daemon output.
type monitor struct {
	topics config.TopicsConfig

	pose     orientation.Pose
	havePose bool
	poseAt   time.Time
	poses    int

	status     StatusReport
	haveStatus bool

	compass     sensors.CompassReading
	haveCompass bool

	now time.Time
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			PaddingLeft(2)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 2)

	grantedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#50FA7B")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555")).Bold(true)
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB800"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			PaddingTop(1).
			PaddingLeft(2)
)

func newMonitor(topics config.TopicsConfig) monitor {
	return monitor{topics: topics}
}

func clock() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return clockMsg(t) })
}

func (m monitor) Init() tea.Cmd {
	return clock()
}

func (m monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case poseMsg:
		m.pose = orientation.Pose(msg)
		m.havePose = true
		m.poseAt = m.now
		m.poses++
	case statusMsg:
		m.status = StatusReport(msg)
		m.haveStatus = true
	case compassMsg:
		m.compass = sensors.CompassReading(msg)
		m.haveCompass = true
	case clockMsg:
		m.now = time.Time(msg)
		return m, clock()
	}
	return m, nil
}

func (m monitor) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("arfusion monitor"))
	b.WriteString("\n\n")

	var body strings.Builder
	body.WriteString("permission  ")
	body.WriteString(m.statusLine())
	body.WriteString("\n")

	if m.havePose {
		fmt.Fprintf(&body, "ROLL=%7.2f  PITCH=%7.2f  YAW=%7.2f\n", m.pose.Roll, m.pose.Pitch, m.pose.Yaw)
		fmt.Fprintf(&body, "HEADING=%6.2f°  %s\n", m.pose.Heading, cardinal(m.pose.Heading))
		fmt.Fprintf(&body, "quat w=%.4f x=%.4f y=%.4f z=%.4f (%d poses)",
			m.pose.Quat[0], m.pose.Quat[1], m.pose.Quat[2], m.pose.Quat[3], m.poses)
	} else {
		body.WriteString(pendingStyle.Render("waiting for " + m.topics.Pose))
	}
	if m.haveCompass {
		fmt.Fprintf(&body, "\ncompass %6.2f° (%s)", m.compass.Heading, m.compass.Sentence)
	}

	b.WriteString(panelStyle.Render(body.String()))
	b.WriteString(helpStyle.Render("q: quit"))
	b.WriteString("\n")
	return b.String()
}

func (m monitor) statusLine() string {
	if !m.haveStatus {
		return pendingStyle.Render("unknown")
	}
	switch {
	case m.status.State == "granted":
		return grantedStyle.Render(m.status.State) + " (" + m.status.Strategy + ")"
	case m.status.Code != "":
		return errorStyle.Render(m.status.State+" "+m.status.Code) + " " + m.status.Message
	default:
		return pendingStyle.Render(m.status.State)
	}
}

// cardinal names the 8-point compass direction of a heading.
func cardinal(deg float64) string {
	names := [...]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}
	i := int((deg+22.5)/45) % len(names)
	if i < 0 {
		i += len(names)
	}
	return names[i]
}

// RunConsoleMQTT subscribes to the fusion output topics and renders a live
// monitor in the terminal.
func RunConsoleMQTT(ctx context.Context) error {
	cfg := config.Get()
	if cfg == nil {
		return errNoConfig
	}

	client, err := connectMQTT(cfg.MQTT, "console")
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	p := tea.NewProgram(newMonitor(cfg.MQTT.Topics), tea.WithContext(ctx))

	subs := []struct {
		topic  string
		decode func([]byte) (tea.Msg, error)
	}{
		{cfg.MQTT.Topics.Pose, func(b []byte) (tea.Msg, error) {
			var v orientation.Pose
			err := json.Unmarshal(b, &v)
			return poseMsg(v), err
		}},
		{cfg.MQTT.Topics.Status, func(b []byte) (tea.Msg, error) {
			var v StatusReport
			err := json.Unmarshal(b, &v)
			return statusMsg(v), err
		}},
		{cfg.MQTT.Topics.Compass, func(b []byte) (tea.Msg, error) {
			var v sensors.CompassReading
			err := json.Unmarshal(b, &v)
			return compassMsg(v), err
		}},
	}
	for _, s := range subs {
		decode := s.decode
		token := client.Subscribe(s.topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			v, err := decode(msg.Payload())
			if err != nil {
				log.Printf("console: %s unmarshal error: %v", msg.Topic(), err)
				return
			}
			p.Send(v)
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
	}

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("console: %w", err)
	}
	log.Println("console: shutting down")
	return nil
}
