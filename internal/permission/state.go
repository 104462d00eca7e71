// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package permission

import (
	"errors"
	"fmt"
)

// State is a permission controller state.
type State string

const (
	Unchecked       State = "unchecked"
	AwaitingGesture State = "awaiting_gesture"
	Requesting      State = "requesting"
	Granted         State = "granted"
	Denied          State = "denied"
	Failed          State = "failed"
	Unsupported     State = "unsupported"
	Insecure        State = "insecure"
)

// Terminal reports whether no further transition leaves s.
func (s State) Terminal() bool {
	switch s {
	case Granted, Denied, Failed, Unsupported, Insecure:
		return true
	}
	return false
}

// trigger is an input to the state machine.
type trigger string

const (
	trigNoAPI             trigger = "no_api"
	trigInsecure          trigger = "insecure_context"
	trigNeedsGesture      trigger = "needs_gesture"
	trigNoPermissionModel trigger = "no_permission_model"
	trigGesture           trigger = "gesture"
	trigResultGranted     trigger = "result_granted"
	trigResultDenied      trigger = "result_denied"
	trigRequestFailed     trigger = "request_failed"
	trigAPIMissing        trigger = "api_missing"
)

// ErrIllegalTransition is returned when a trigger has no transition from
// the current state.
var ErrIllegalTransition = errors.New("permission: illegal transition")

var transitions = map[State]map[trigger]State{
	Unchecked: {
		trigNoAPI:             Unsupported,
		trigInsecure:          Insecure,
		trigNeedsGesture:      AwaitingGesture,
		trigNoPermissionModel: Granted,
	},
	AwaitingGesture: {
		trigGesture: Requesting,
	},
	Requesting: {
		trigResultGranted: Granted,
		trigResultDenied:  Denied,
		trigRequestFailed: Failed,
		trigAPIMissing:    Failed,
	},
}

// next returns the target state for t from s.
func next(s State, t trigger) (State, error) {
	to, ok := transitions[s][t]
	if !ok {
		return s, fmt.Errorf("%w: %s on %s", ErrIllegalTransition, s, t)
	}
	return to, nil
}
