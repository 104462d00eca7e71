// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package permission gates orientation sensor access behind capability,
// secure-context and user-gesture checks.
package permission

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/arfusion/internal/events"
)

// Platform is the capability and permission surface of the host
// environment.
type Platform interface {
	HasOrientationAPI() bool
	IsSecureContext() bool
	HasPermissionAPI() bool
	// RequestPermission starts a platform permission prompt. A synchronous
	// error means the request could not be issued. The returned channel
	// delivers at most one Result; it may never deliver if the user does not
	// answer.
	RequestPermission(ctx context.Context) (<-chan Result, error)
}

// Result is the platform's answer to a permission request.
type Result struct {
	Status string // "granted", "denied", "default", ...
	Err    error
}

// PromptKind selects how the UI collaborator asks for the gesture.
type PromptKind int

const (
	PromptButton PromptKind = iota
	PromptConfirm
)

func (k PromptKind) String() string {
	if k == PromptConfirm {
		return "confirm"
	}
	return "button"
}

// Prompt is a request to render a single gesture.
type Prompt struct {
	Kind    PromptKind
	Message string
	Button  string
}

// Prompter renders prompts. onAccept must be invoked from the user's
// gesture and at most once.
type Prompter interface {
	Show(p Prompt, onAccept func())
}

const (
	promptMessage = "This experience uses your device's orientation sensors to place content around you."
	promptButton  = "Allow"
)

// ErrNoPermissionAPI is reported when the permission API disappears between
// the capability check and the request.
var ErrNoPermissionAPI = errors.New("permission: permission API not available")

// Outcome is the terminal result of a pending request.
type Outcome struct {
	State   State
	Code    events.ErrorCode
	Message string
}

// PendingRequest is an issued permission request. Done delivers exactly one
// Outcome once the platform answers. There is no cancel: an unanswered
// request stays pending.
type PendingRequest struct {
	ID      uuid.UUID
	Started time.Time
	done    chan Outcome
}

func (p *PendingRequest) Done() <-chan Outcome { return p.done }

// Options configure a Controller.
type Options struct {
	EnableDialog  bool
	PreferConfirm bool
	// OnState is called after every transition, outside the lock.
	OnState func(from, to State)
}

// Controller drives the permission state machine and reports terminal
// outcomes on the bus.
type Controller struct {
	platform Platform
	prompter Prompter
	bus      *events.Bus
	opts     Options

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	state   State
	pending *PendingRequest
}

// NewController creates a controller in Unchecked. prompter may be nil, in
// which case the host must call HandleGesture from its own UI.
func NewController(p Platform, prompter Prompter, bus *events.Bus, opts Options) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		platform: p,
		prompter: prompter,
		bus:      bus,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		state:    Unchecked,
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pending returns the in-flight request, if any.
func (c *Controller) Pending() *PendingRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Init runs the capability checks and moves to the first resting state.
// Outcomes are reported on the bus; the error is only for a repeated Init.
func (c *Controller) Init() error {
	switch {
	case !c.platform.HasOrientationAPI():
		if err := c.fire(trigNoAPI); err != nil {
			return err
		}
		c.emitError(events.CodeNotSupported, "device orientation is not supported on this device")
	case !c.platform.IsSecureContext():
		if err := c.fire(trigInsecure); err != nil {
			return err
		}
		c.emitError(events.CodeNoHTTPS, "device orientation requires a secure (HTTPS) context")
	case c.platform.HasPermissionAPI():
		if err := c.fire(trigNeedsGesture); err != nil {
			return err
		}
		if c.opts.EnableDialog && c.prompter != nil {
			kind := PromptButton
			if c.opts.PreferConfirm {
				kind = PromptConfirm
			}
			c.prompter.Show(Prompt{Kind: kind, Message: promptMessage, Button: promptButton}, func() {
				if _, err := c.HandleGesture(); err != nil {
					log.Printf("permission: gesture: %v", err)
				}
			})
		}
	default:
		if err := c.fire(trigNoPermissionModel); err != nil {
			return err
		}
		c.bus.Emit(events.Event{Name: events.Granted})
	}
	return nil
}

// HandleGesture issues the permission request. It must be called as the
// direct result of a user interaction and is only legal in AwaitingGesture.
func (c *Controller) HandleGesture() (*PendingRequest, error) {
	req := &PendingRequest{ID: uuid.New(), Started: time.Now(), done: make(chan Outcome, 1)}

	c.mu.Lock()
	from := c.state
	to, err := next(from, trigGesture)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.state = to
	c.pending = req
	c.mu.Unlock()
	c.notifyState(from, to)

	if !c.platform.HasPermissionAPI() {
		c.resolve(req, trigAPIMissing, events.CodeInternalError, ErrNoPermissionAPI.Error())
		return req, nil
	}

	ch, err := c.platform.RequestPermission(c.ctx)
	if errors.Is(err, ErrNoPermissionAPI) {
		// the API went away between the check and the request
		c.resolve(req, trigAPIMissing, events.CodeInternalError, ErrNoPermissionAPI.Error())
		return req, nil
	}
	if err != nil {
		c.resolve(req, trigRequestFailed, events.CodePermissionRequestFailed,
			fmt.Sprintf("permission request failed: %v", err))
		return req, nil
	}

	go c.await(req, ch)
	return req, nil
}

func (c *Controller) await(req *PendingRequest, ch <-chan Result) {
	select {
	case <-c.ctx.Done():
		// closed while the prompt was open; stay in Requesting
		return
	case res, ok := <-ch:
		switch {
		case !ok:
			c.resolve(req, trigRequestFailed, events.CodePermissionRequestFailed,
				"permission request ended without an answer")
		case res.Err != nil:
			c.resolve(req, trigRequestFailed, events.CodePermissionRequestFailed,
				fmt.Sprintf("permission request failed: %v", res.Err))
		case res.Status == "granted":
			c.resolve(req, trigResultGranted, "", "")
		default:
			c.resolve(req, trigResultDenied, events.CodePermissionDenied,
				fmt.Sprintf("permission %s by user", statusOrUnknown(res.Status)))
		}
	}
}

// resolve applies the terminal transition for req, emits the notification
// and completes the request.
func (c *Controller) resolve(req *PendingRequest, t trigger, code events.ErrorCode, msg string) {
	c.mu.Lock()
	if c.pending != req {
		c.mu.Unlock()
		return
	}
	from := c.state
	to, err := next(from, t)
	if err != nil {
		c.mu.Unlock()
		log.Printf("permission: %v", err)
		return
	}
	c.state = to
	c.pending = nil
	c.mu.Unlock()
	c.notifyState(from, to)

	if to == Granted {
		c.bus.Emit(events.Event{Name: events.Granted})
	} else {
		c.emitError(code, msg)
	}
	req.done <- Outcome{State: to, Code: code, Message: msg}
}

func (c *Controller) fire(t trigger) error {
	c.mu.Lock()
	from := c.state
	to, err := next(from, t)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.state = to
	c.mu.Unlock()
	c.notifyState(from, to)
	return nil
}

func (c *Controller) notifyState(from, to State) {
	log.Printf("permission: %s -> %s", from, to)
	if c.opts.OnState != nil {
		c.opts.OnState(from, to)
	}
}

func (c *Controller) emitError(code events.ErrorCode, msg string) {
	c.bus.Emit(events.Event{Name: events.Error, Code: code, Message: msg})
}

// Close stops waiting for an in-flight request. The state is left as is.
func (c *Controller) Close() {
	c.cancel()
}

func statusOrUnknown(s string) string {
	if s == "" {
		return "dismissed"
	}
	return s
}
