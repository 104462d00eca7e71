// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/arfusion/internal/orientation"
	"github.com/relabs-tech/arfusion/internal/permission"
)

const writeWait = 5 * time.Second

// ErrSessionClosed is returned when writing to a finished session.
var ErrSessionClosed = errors.New("sensors: browser session closed")

// Browser to server actions.
const (
	ActionCapabilities     = "capabilities"
	ActionOrientation      = "orientation"
	ActionScreen           = "screen"
	ActionPermissionResult = "permission_result"
	ActionConfirm          = "confirm"
)

// Server to browser message types.
const (
	TypePrompt            = "prompt"
	TypeRequestPermission = "request_permission"
	TypeStatus            = "status"
	TypePose              = "pose"
)

// Capabilities describe what the browser page can do.
type Capabilities struct {
	OrientationAPI bool    `json:"orientation_api"`
	PermissionAPI  bool    `json:"permission_api"`
	SecureContext  bool    `json:"secure_context"`
	AppleMobile    bool    `json:"apple_mobile"`
	ScreenAngle    float64 `json:"screen_angle"`
}

// ClientMessage is a message from the browser page.
type ClientMessage struct {
	Action       string              `json:"action"`
	Capabilities *Capabilities       `json:"capabilities,omitempty"`
	Orientation  *orientation.Sample `json:"orientation,omitempty"`
	Angle        float64             `json:"angle,omitempty"`
	Status       string              `json:"status,omitempty"`
	Error        string              `json:"error,omitempty"`
	Accepted     bool                `json:"accepted,omitempty"`
}

// PromptPayload asks the page to render the permission gesture.
type PromptPayload struct {
	Kind    string `json:"kind"` // button, confirm
	Message string `json:"message"`
	Button  string `json:"button,omitempty"`
}

// ServerMessage is a message to the browser page.
type ServerMessage struct {
	Type    string            `json:"type"`
	Prompt  *PromptPayload    `json:"prompt,omitempty"`
	State   string            `json:"state,omitempty"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message,omitempty"`
	Pose    *orientation.Pose `json:"pose,omitempty"`
}

// BrowserEnvironment is one websocket session with a browser page that
// forwards its deviceorientation events. It implements both the sensor
// environment and the permission prompter.
type BrowserEnvironment struct {
	conn *websocket.Conn

	orientation listeners[orientation.Sample]
	screen      listeners[float64]

	writeMu sync.Mutex

	mu       sync.Mutex
	caps     Capabilities
	angle    float64
	pending  chan permission.Result
	onAccept func()
	closed   bool

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
}

// NewBrowserEnvironment wraps an upgraded websocket connection. Call Serve
// to start reading.
func NewBrowserEnvironment(conn *websocket.Conn) *BrowserEnvironment {
	return &BrowserEnvironment{
		conn:  conn,
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Serve reads messages until the connection fails or ctx is cancelled.
// It closes the connection on return.
func (e *BrowserEnvironment) Serve(ctx context.Context) error {
	defer close(e.done)
	defer func() {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()
		e.conn.Close()
	}()

	stop := context.AfterFunc(ctx, func() { e.conn.Close() })
	defer stop()

	for {
		var msg ClientMessage
		if err := e.conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		e.dispatch(msg)
	}
}

func (e *BrowserEnvironment) dispatch(msg ClientMessage) {
	switch msg.Action {
	case ActionCapabilities:
		if msg.Capabilities == nil {
			return
		}
		e.mu.Lock()
		e.caps = *msg.Capabilities
		e.angle = orientation.NormalizeScreenAngle(msg.Capabilities.ScreenAngle)
		e.mu.Unlock()
		e.readyOnce.Do(func() { close(e.ready) })

	case ActionOrientation:
		if msg.Orientation == nil {
			return
		}
		e.orientation.emit(*msg.Orientation)

	case ActionScreen:
		angle := orientation.NormalizeScreenAngle(msg.Angle)
		e.mu.Lock()
		e.angle = angle
		e.mu.Unlock()
		e.screen.emit(angle)

	case ActionPermissionResult:
		e.mu.Lock()
		ch := e.pending
		e.pending = nil
		e.mu.Unlock()
		if ch == nil {
			log.Printf("browser env: permission result without a request")
			return
		}
		res := permission.Result{Status: msg.Status}
		if msg.Error != "" {
			res.Err = errors.New(msg.Error)
		}
		ch <- res

	case ActionConfirm:
		e.mu.Lock()
		fn := e.onAccept
		if msg.Accepted {
			e.onAccept = nil
		}
		e.mu.Unlock()
		if msg.Accepted && fn != nil {
			fn()
		}

	default:
		log.Printf("browser env: unknown action %q", msg.Action)
	}
}

// Ready is closed once the page has reported its capabilities.
func (e *BrowserEnvironment) Ready() <-chan struct{} { return e.ready }

// Done is closed when Serve returns.
func (e *BrowserEnvironment) Done() <-chan struct{} { return e.done }

// Capabilities returns the last reported capabilities.
func (e *BrowserEnvironment) Capabilities() Capabilities {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.caps
}

func (e *BrowserEnvironment) send(msg ServerMessage) error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	if err := e.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return e.conn.WriteJSON(msg)
}

// SendStatus reports the permission state and an optional error code.
func (e *BrowserEnvironment) SendStatus(state, code, message string) error {
	return e.send(ServerMessage{Type: TypeStatus, State: state, Code: code, Message: message})
}

// SendPose pushes the latest fused pose.
func (e *BrowserEnvironment) SendPose(p orientation.Pose) error {
	return e.send(ServerMessage{Type: TypePose, Pose: &p})
}

// Show implements permission.Prompter. onAccept runs on the session's read
// goroutine when the page confirms.
func (e *BrowserEnvironment) Show(p permission.Prompt, onAccept func()) {
	e.mu.Lock()
	e.onAccept = onAccept
	e.mu.Unlock()

	err := e.send(ServerMessage{
		Type:   TypePrompt,
		Prompt: &PromptPayload{Kind: p.Kind.String(), Message: p.Message, Button: p.Button},
	})
	if err != nil {
		log.Printf("browser env: send prompt: %v", err)
	}
}

func (e *BrowserEnvironment) HasOrientationAPI() bool { return e.Capabilities().OrientationAPI }
func (e *BrowserEnvironment) IsSecureContext() bool   { return e.Capabilities().SecureContext }
func (e *BrowserEnvironment) HasPermissionAPI() bool  { return e.Capabilities().PermissionAPI }

// RequestPermission asks the page to call its permission API. The result
// arrives with the next permission_result message; if the page never
// answers the channel never delivers.
func (e *BrowserEnvironment) RequestPermission(ctx context.Context) (<-chan permission.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !e.HasPermissionAPI() {
		return nil, permission.ErrNoPermissionAPI
	}

	ch := make(chan permission.Result, 1)
	e.mu.Lock()
	e.pending = ch
	e.mu.Unlock()

	if err := e.send(ServerMessage{Type: TypeRequestPermission}); err != nil {
		e.mu.Lock()
		if e.pending == ch {
			e.pending = nil
		}
		e.mu.Unlock()
		return nil, fmt.Errorf("request permission: %w", err)
	}
	return ch, nil
}

func (e *BrowserEnvironment) OnOrientation(fn func(orientation.Sample)) func() {
	return e.orientation.add(fn)
}

func (e *BrowserEnvironment) OnScreenRotation(fn func(float64)) func() {
	return e.screen.add(fn)
}

func (e *BrowserEnvironment) ScreenAngle() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.angle
}
