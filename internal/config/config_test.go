package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arfusion.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

func TestLoad_EmptyFileGetsDefaults(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, ""))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Fusion.SmoothingFactor != 1 {
		t.Fatalf("smoothing_factor=%v want 1", cfg.Fusion.SmoothingFactor)
	}
	if cfg.Fusion.Platform != PlatformAuto {
		t.Fatalf("platform=%q want auto", cfg.Fusion.Platform)
	}
	if cfg.Fusion.UpdateInterval != 16*time.Millisecond {
		t.Fatalf("update_interval=%s want 16ms", cfg.Fusion.UpdateInterval)
	}
	if cfg.MQTT.Broker != "tcp://localhost:1883" || cfg.MQTT.Topics.Pose != "arfusion/pose" {
		t.Fatalf("mqtt=%+v", cfg.MQTT)
	}
	if cfg.Web.Listen != ":8080" || cfg.Compass.BaudRate != 4800 {
		t.Fatalf("web=%+v compass=%+v", cfg.Web, cfg.Compass)
	}
	oc := cfg.Controls(false)
	if !oc.EnablePermissionDialog || oc.AppleMobile {
		t.Fatalf("controls=%+v", oc)
	}
}

func TestLoad_Values(t *testing.T) {
	path := writeTempConfig(t, `
fusion:
  smoothing_factor: 0.25
  orientation_change_threshold: 0.01
  platform: apple
  enable_permission_dialog: false
  prefer_confirm_dialog: true
  update_interval: 50ms
mqtt:
  broker: tcp://broker:1883
  topics:
    pose: car/pose
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Fusion.UpdateInterval != 50*time.Millisecond {
		t.Fatalf("update_interval=%s", cfg.Fusion.UpdateInterval)
	}
	if cfg.MQTT.Topics.Pose != "car/pose" || cfg.MQTT.Topics.Heading != "arfusion/heading" {
		t.Fatalf("topics=%+v", cfg.MQTT.Topics)
	}
	oc := cfg.Controls(false)
	if oc.SmoothingFactor != 0.25 || oc.OrientationChangeThreshold != 0.01 {
		t.Fatalf("controls=%+v", oc)
	}
	if !oc.AppleMobile || oc.EnablePermissionDialog || !oc.PreferConfirmDialog {
		t.Fatalf("controls=%+v", oc)
	}
}

func TestConfig_ControlsPlatform(t *testing.T) {
	cases := []struct {
		platform string
		detected bool
		want     bool
	}{
		{PlatformAuto, true, true},
		{PlatformAuto, false, false},
		{PlatformApple, false, true},
		{PlatformStandard, true, false},
	}
	for _, tc := range cases {
		t.Run(tc.platform, func(t *testing.T) {
			cfg := Config{Fusion: FusionConfig{Platform: tc.platform}}
			if got := cfg.Controls(tc.detected).AppleMobile; got != tc.want {
				t.Fatalf("detected=%v got=%v want=%v", tc.detected, got, tc.want)
			}
		})
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name     string
		contents string
		want     string
	}{
		{
			name:     "SmoothingTooLarge",
			contents: "fusion:\n  smoothing_factor: 1.5\n",
			want:     "fusion.smoothing_factor must be in (0,1], got 1.5",
		},
		{
			name:     "SmoothingNegative",
			contents: "fusion:\n  smoothing_factor: -0.5\n",
			want:     "fusion.smoothing_factor must be in (0,1], got -0.5",
		},
		{
			name:     "NegativeThreshold",
			contents: "fusion:\n  orientation_change_threshold: -1\n",
			want:     "fusion.orientation_change_threshold must be >= 0, got -1",
		},
		{
			name:     "BadPlatform",
			contents: "fusion:\n  platform: windows\n",
			want:     `fusion.platform must be one of auto, apple, standard, got "windows"`,
		},
		{
			name:     "CompassNeedsPort",
			contents: "compass:\n  enable: true\n",
			want:     "compass.serial_port is required when compass.enable is true",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeTempConfig(t, tc.contents))
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	_, err := Load(writeTempConfig(t, "fusion:\n  smoothing: 0.5\n"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.HasPrefix(err.Error(), "config contains unknown fields: field smoothing") {
		t.Fatalf("error=%q", err.Error())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.HasPrefix(err.Error(), "failed to open config file") {
		t.Fatalf("error=%v", err)
	}
}

func TestInitGlobal(t *testing.T) {
	if err := InitGlobal(writeTempConfig(t, "web:\n  listen: ':9090'\n")); err != nil {
		t.Fatalf("InitGlobal() error: %v", err)
	}
	cfg := Get()
	if cfg == nil || cfg.Web.Listen != ":9090" {
		t.Fatalf("Get()=%+v", cfg)
	}
	// Later calls are ignored.
	if err := InitGlobal("does-not-exist.yaml"); err != nil {
		t.Fatalf("second InitGlobal() error: %v", err)
	}
	if Get().Web.Listen != ":9090" {
		t.Fatalf("global config replaced")
	}
}
