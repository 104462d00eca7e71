// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"errors"
	"log"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/num/quat"

	"github.com/relabs-tech/arfusion/internal/events"
	"github.com/relabs-tech/arfusion/internal/permission"
	"github.com/relabs-tech/arfusion/internal/telemetry"
)

// changeEpsilon is the minimum 8*(1-dot) between two successive rotations
// for Update to report a change.
const changeEpsilon = 0.000001

// ErrNotGranted is returned by Connect before permission has been granted.
var ErrNotGranted = errors.New("orientation: sensor permission not granted")

// Environment is everything Controls needs from the host: capability and
// permission checks plus orientation and screen-rotation listeners.
type Environment interface {
	permission.Platform
	// OnOrientation registers fn for orientation samples and returns a
	// function that removes it.
	OnOrientation(fn func(Sample)) (remove func())
	// OnScreenRotation registers fn for screen angle changes (degrees).
	OnScreenRotation(fn func(deg float64)) (remove func())
	// ScreenAngle is the current screen angle in degrees.
	ScreenAngle() float64
}

// Config is fixed for the lifetime of a Controls.
type Config struct {
	// SmoothingFactor in (0,1]; 1 disables smoothing. Out of range values
	// are treated as 1.
	SmoothingFactor float64
	// OrientationChangeThreshold is the per-axis deadband in radians.
	OrientationChangeThreshold float64
	AppleMobile                bool
	EnablePermissionDialog     bool
	PreferConfirmDialog        bool
	// InitialAlphaOffset seeds the north alignment offset, radians.
	InitialAlphaOffset float64
}

// SmoothingState is the last filtered state of the update cycle. Angles
// carry the smoothing pre-rotation while smoothing is active.
type SmoothingState struct {
	Angles  Angles
	Yaw     float64
	HaveYaw bool
}

// Option configures Controls.
type Option func(*Controls)

// WithMetrics records update and sample metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Controls) { c.metrics = m }
}

// WithPrompter sets the UI collaborator used for the permission gesture.
func WithPrompter(p permission.Prompter) Option {
	return func(c *Controls) { c.prompter = p }
}

// WithBus uses an existing notification bus.
func WithBus(b *events.Bus) Option {
	return func(c *Controls) { c.bus = b }
}

// Controls turns orientation samples from an Environment into a camera
// rotation and a heading.
//
// Update must not be called concurrently with itself. All other methods are
// safe to call from sensor callbacks and other goroutines.
type Controls struct {
	cfg      Config
	strategy Strategy
	env      Environment
	store    SampleStore
	bus      *events.Bus
	perm     *permission.Controller
	prompter permission.Prompter
	metrics  *telemetry.Metrics
	granted  *events.Listener

	mu      sync.Mutex
	enabled bool
	off     offsets
	removes []func()
	state   *SmoothingState

	// owned by the update cycle
	last     quat.Number
	haveLast bool
}

// NewControls builds Controls for env. The device-family strategy is chosen
// here from cfg.AppleMobile and never re-evaluated.
func NewControls(env Environment, cfg Config, opts ...Option) *Controls {
	if cfg.SmoothingFactor <= 0 || cfg.SmoothingFactor > 1 || math.IsNaN(cfg.SmoothingFactor) {
		cfg.SmoothingFactor = 1
	}
	if cfg.OrientationChangeThreshold < 0 || math.IsNaN(cfg.OrientationChangeThreshold) {
		cfg.OrientationChangeThreshold = 0
	}

	c := &Controls{
		cfg:      cfg,
		strategy: NewStrategy(cfg.AppleMobile),
		env:      env,
		off:      offsets{alpha: cfg.InitialAlphaOffset},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.bus == nil {
		c.bus = events.NewBus()
	}

	c.perm = permission.NewController(env, c.prompter, c.bus, permission.Options{
		EnableDialog:  cfg.EnablePermissionDialog,
		PreferConfirm: cfg.PreferConfirmDialog,
		OnState: func(_, to permission.State) {
			if to.Terminal() {
				c.metrics.Permission(string(to))
			}
		},
	})

	c.granted = c.bus.On(events.Granted, func(events.Event) {
		if err := c.Connect(); err != nil {
			log.Printf("orientation: connect after grant: %v", err)
		}
	})
	return c
}

// Bus is the notification bus carrying granted/error events.
func (c *Controls) Bus() *events.Bus { return c.bus }

// Strategy is the selected device-family strategy.
func (c *Controls) Strategy() Strategy { return c.strategy }

// PermissionState is the current permission state.
func (c *Controls) PermissionState() permission.State { return c.perm.State() }

// Init runs the capability checks. The outcome arrives on the bus; on
// grant the sensors are connected automatically.
func (c *Controls) Init() error {
	return c.perm.Init()
}

// HandleGesture forwards a host UI gesture to the permission flow, for
// hosts that render their own permission button.
func (c *Controls) HandleGesture() (*permission.PendingRequest, error) {
	return c.perm.HandleGesture()
}

// Connect attaches the sensor listeners. It is a no-op when already
// connected.
func (c *Controls) Connect() error {
	if c.perm.State() != permission.Granted {
		return ErrNotGranted
	}

	c.mu.Lock()
	if c.enabled {
		c.mu.Unlock()
		return nil
	}
	c.enabled = true
	screen := c.env.ScreenAngle()
	c.store.SetScreenAngle(screen)
	c.strategy.OnScreen(screen, &c.off)
	c.mu.Unlock()

	// Listeners are registered without holding mu: an environment may
	// deliver the current value synchronously.
	removes := []func(){
		c.env.OnOrientation(c.handleSample),
		c.env.OnScreenRotation(c.handleScreen),
	}

	c.mu.Lock()
	if !c.enabled {
		// Disconnect ran while registering
		c.mu.Unlock()
		for _, rm := range removes {
			if rm != nil {
				rm()
			}
		}
		return nil
	}
	c.removes = removes
	c.mu.Unlock()

	log.Printf("orientation: connected (%s)", c.strategy.Name())
	return nil
}

// Disconnect detaches all listeners and forgets the last sample. Offsets
// and smoothing state are kept. It is idempotent.
func (c *Controls) Disconnect() {
	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		return
	}
	removes := c.removes
	c.removes = nil
	c.enabled = false
	c.mu.Unlock()

	for _, rm := range removes {
		if rm != nil {
			rm()
		}
	}
	c.store.ClearSample()
	log.Printf("orientation: disconnected")
}

// Close disconnects and stops waiting for any pending permission request.
func (c *Controls) Close() {
	c.Disconnect()
	c.perm.Close()
	c.bus.Off(c.granted)
}

// Enabled reports whether sensors are connected.
func (c *Controls) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

func (c *Controls) handleSample(s Sample) {
	c.store.SetSample(s)
	c.mu.Lock()
	c.strategy.OnSample(s, &c.off)
	c.mu.Unlock()
	c.metrics.Sample("orientation")
}

func (c *Controls) handleScreen(deg float64) {
	c.store.SetScreenAngle(deg)
	c.mu.Lock()
	c.strategy.OnScreen(deg, &c.off)
	c.mu.Unlock()
	c.metrics.Sample("screen")
}

// Update runs one fusion tick and writes the rotation into target. It
// reports whether the rotation changed noticeably since the last write.
// It does nothing while disabled or before the first sample.
func (c *Controls) Update(target *quat.Number) bool {
	return c.UpdateWithTheta(target, 0)
}

// UpdateWithTheta is Update with an extra yaw theta (radians) added on top
// of the sensor yaw.
func (c *Controls) UpdateWithTheta(target *quat.Number, theta float64) bool {
	started := time.Now()

	c.mu.Lock()
	enabled := c.enabled
	off := c.off
	prev := c.state
	c.mu.Unlock()
	if !enabled {
		c.metrics.Tick(telemetry.TickDisabled, started)
		return false
	}

	s, screen, ok := c.store.Snapshot()
	if !ok {
		c.metrics.Tick(telemetry.TickNoSample, started)
		return false
	}

	next := c.filter(s, prev, off)
	c.mu.Lock()
	c.state = next
	c.mu.Unlock()

	a := next.Angles
	if c.smoothing() {
		a.Beta -= math.Pi
		a.Gamma -= halfPi
	}
	a.Alpha += theta

	q := c.strategy.Compose(a, deg2rad(screen), next.Yaw+theta, next.HaveYaw, off)
	*target = q

	changed := !c.haveLast || 8*(1-dot(c.last, q)) > changeEpsilon
	if changed {
		c.last = q
		c.haveLast = true
	}

	c.metrics.Tick(telemetry.TickApplied, started)
	c.metrics.Heading(c.strategy.Heading(s, off))
	return changed
}

func (c *Controls) smoothing() bool { return c.cfg.SmoothingFactor < 1 }

// filter computes the next smoothing state from s and the previous state.
func (c *Controls) filter(s Sample, prev *SmoothingState, off offsets) *SmoothingState {
	k := c.cfg.SmoothingFactor
	th := c.cfg.OrientationChangeThreshold

	a := Angles{
		Alpha: c.strategy.CorrectAlpha(s.Alpha, off),
		Beta:  deg2rad(s.Beta),
		Gamma: deg2rad(s.Gamma),
	}
	if c.smoothing() {
		// keep beta and gamma away from their wrap points while smoothing
		a.Beta += math.Pi
		a.Gamma += halfPi
	}
	yaw, haveYaw := c.strategy.CompassYaw(s)

	if prev != nil {
		if c.smoothing() {
			a.Alpha = Smooth(a.Alpha, prev.Angles.Alpha, k, twoPi)
			a.Beta = Smooth(a.Beta, prev.Angles.Beta, k, twoPi)
			a.Gamma = Smooth(a.Gamma, prev.Angles.Gamma, k, math.Pi)
			if haveYaw && prev.HaveYaw {
				yaw = Smooth(yaw, prev.Yaw, k, twoPi)
			}
		}
		if th > 0 {
			a.Alpha = Deadband(a.Alpha, prev.Angles.Alpha, th)
			a.Beta = Deadband(a.Beta, prev.Angles.Beta, th)
			a.Gamma = Deadband(a.Gamma, prev.Angles.Gamma, th)
			if haveYaw && prev.HaveYaw {
				yaw = Deadband(yaw, prev.Yaw, th)
			}
		}
		if !haveYaw && prev.HaveYaw {
			yaw, haveYaw = prev.Yaw, true
		}
	}
	return &SmoothingState{Angles: a, Yaw: yaw, HaveYaw: haveYaw}
}

// State returns a copy of the last smoothing state, or nil before the
// first applied tick.
func (c *Controls) State() *SmoothingState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return nil
	}
	st := *c.state
	return &st
}

// Heading returns the compass bearing in [0,360), or 0 before any sample.
func (c *Controls) Heading() float64 {
	s, _, ok := c.store.Snapshot()
	if !ok {
		return 0
	}
	c.mu.Lock()
	off := c.off
	c.mu.Unlock()
	return c.strategy.Heading(s, off)
}

// Alpha is the offset-corrected alpha in radians, independent of
// smoothing. It is 0 without a sample.
func (c *Controls) Alpha() float64 {
	s, _, ok := c.store.Snapshot()
	if !ok {
		return 0
	}
	c.mu.Lock()
	off := c.off
	c.mu.Unlock()
	return c.strategy.CorrectAlpha(s.Alpha, off)
}

// Beta is the raw beta in radians, or 0 without a sample.
func (c *Controls) Beta() float64 {
	s, _, ok := c.store.Snapshot()
	if !ok {
		return 0
	}
	return deg2rad(s.Beta)
}

// Gamma is the raw gamma in radians, or 0 without a sample.
func (c *Controls) Gamma() float64 {
	s, _, ok := c.store.Snapshot()
	if !ok {
		return 0
	}
	return deg2rad(s.Gamma)
}

func dot(a, b quat.Number) float64 {
	return a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
}
