package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/arfusion/internal/orientation"
)

// Config holds all application configuration values.
type Config struct {
	Fusion  FusionConfig  `yaml:"fusion"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Web     WebConfig     `yaml:"web"`
	Compass CompassConfig `yaml:"compass"`
}

type FusionConfig struct {
	// SmoothingFactor in (0,1]; 1 disables smoothing.
	SmoothingFactor float64 `yaml:"smoothing_factor"`
	// OrientationChangeThreshold is the per-axis deadband in radians.
	OrientationChangeThreshold float64 `yaml:"orientation_change_threshold"`
	// Platform is auto, apple or standard.
	Platform               string        `yaml:"platform"`
	EnablePermissionDialog *bool         `yaml:"enable_permission_dialog"`
	PreferConfirmDialog    bool          `yaml:"prefer_confirm_dialog"`
	UpdateInterval         time.Duration `yaml:"update_interval"`
	// MetricsListen serves /metrics from the fusion daemon when set.
	MetricsListen string `yaml:"metrics_listen"`
}

type MQTTConfig struct {
	Broker   string       `yaml:"broker"`
	ClientID string       `yaml:"client_id"`
	Topics   TopicsConfig `yaml:"topics"`
}

type TopicsConfig struct {
	Orientation string `yaml:"orientation"`
	Screen      string `yaml:"screen"`
	Compass     string `yaml:"compass"`
	Pose        string `yaml:"pose"`
	Heading     string `yaml:"heading"`
	Status      string `yaml:"status"`
}

type WebConfig struct {
	Listen    string `yaml:"listen"`
	StaticDir string `yaml:"static_dir"`
}

type CompassConfig struct {
	Enable     bool   `yaml:"enable"`
	SerialPort string `yaml:"serial_port"`
	BaudRate   uint   `yaml:"baud_rate"`
}

// Platform values.
const (
	PlatformAuto     = "auto"
	PlatformApple    = "apple"
	PlatformStandard = "standard"
)

// Package-level singleton, set once by InitGlobal and read through Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the YAML configuration file at path.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to open config file: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML configuration, applies defaults and validates it.
func Parse(b []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		if strings.Contains(err.Error(), "not found in type") {
			return Config{}, fmt.Errorf("config contains unknown fields: %s", unknownField(err))
		}
		return Config{}, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Fusion.SmoothingFactor == 0 {
		c.Fusion.SmoothingFactor = 1
	}
	if c.Fusion.Platform == "" {
		c.Fusion.Platform = PlatformAuto
	}
	if c.Fusion.EnablePermissionDialog == nil {
		enable := true
		c.Fusion.EnablePermissionDialog = &enable
	}
	if c.Fusion.UpdateInterval <= 0 {
		c.Fusion.UpdateInterval = 16 * time.Millisecond
	}

	if c.MQTT.Broker == "" {
		c.MQTT.Broker = "tcp://localhost:1883"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "arfusion"
	}
	t := &c.MQTT.Topics
	if t.Orientation == "" {
		t.Orientation = "arfusion/sensor/orientation"
	}
	if t.Screen == "" {
		t.Screen = "arfusion/sensor/screen"
	}
	if t.Compass == "" {
		t.Compass = "arfusion/sensor/compass"
	}
	if t.Pose == "" {
		t.Pose = "arfusion/pose"
	}
	if t.Heading == "" {
		t.Heading = "arfusion/heading"
	}
	if t.Status == "" {
		t.Status = "arfusion/status"
	}

	if c.Web.Listen == "" {
		c.Web.Listen = ":8080"
	}
	if c.Web.StaticDir == "" {
		c.Web.StaticDir = "web"
	}

	if c.Compass.BaudRate == 0 {
		c.Compass.BaudRate = 4800
	}
}

// validate checks ranges and required fields.
func (c *Config) validate() error {
	f := c.Fusion
	if math.IsNaN(f.SmoothingFactor) || f.SmoothingFactor <= 0 || f.SmoothingFactor > 1 {
		return fmt.Errorf("fusion.smoothing_factor must be in (0,1], got %v", f.SmoothingFactor)
	}
	if math.IsNaN(f.OrientationChangeThreshold) || f.OrientationChangeThreshold < 0 {
		return fmt.Errorf("fusion.orientation_change_threshold must be >= 0, got %v", f.OrientationChangeThreshold)
	}
	switch f.Platform {
	case PlatformAuto, PlatformApple, PlatformStandard:
	default:
		return fmt.Errorf("fusion.platform must be one of auto, apple, standard, got %q", f.Platform)
	}
	if c.Compass.Enable && c.Compass.SerialPort == "" {
		return fmt.Errorf("compass.serial_port is required when compass.enable is true")
	}
	return nil
}

// Controls builds the fusion configuration. appleDetected is used when the
// platform is auto.
func (c Config) Controls(appleDetected bool) orientation.Config {
	apple := appleDetected
	switch c.Fusion.Platform {
	case PlatformApple:
		apple = true
	case PlatformStandard:
		apple = false
	}
	dialog := true
	if c.Fusion.EnablePermissionDialog != nil {
		dialog = *c.Fusion.EnablePermissionDialog
	}
	return orientation.Config{
		SmoothingFactor:            c.Fusion.SmoothingFactor,
		OrientationChangeThreshold: c.Fusion.OrientationChangeThreshold,
		AppleMobile:                apple,
		EnablePermissionDialog:     dialog,
		PreferConfirmDialog:        c.Fusion.PreferConfirmDialog,
	}
}

func unknownField(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, "field "); i >= 0 {
		return msg[i:]
	}
	return msg
}

// InitGlobal loads the global configuration from file. Only the first call
// has an effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		var cfg Config
		cfg, err = Load(configPath)
		if err != nil {
			return
		}
		configMu.Lock()
		globalConfig = &cfg
		configMu.Unlock()
	})
	return err
}

// Get returns the global configuration, or nil before InitGlobal.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
