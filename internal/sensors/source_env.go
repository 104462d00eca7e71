// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"

	"github.com/relabs-tech/arfusion/internal/orientation"
	"github.com/relabs-tech/arfusion/internal/permission"
)

// SourceEnvironment runs the fusion core in-process on top of an
// orientation.Source. The screen is fixed at 0 and no permission is needed.
type SourceEnvironment struct {
	src         orientation.Source
	orientation listeners[orientation.Sample]
}

func NewSourceEnvironment(src orientation.Source) *SourceEnvironment {
	return &SourceEnvironment{src: src}
}

// Poll reads the next sample from the source and delivers it to the
// registered listeners.
func (e *SourceEnvironment) Poll() (orientation.Sample, error) {
	s, err := e.src.Next()
	if err != nil {
		return s, err
	}
	e.orientation.emit(s)
	return s, nil
}

func (e *SourceEnvironment) HasOrientationAPI() bool { return true }
func (e *SourceEnvironment) IsSecureContext() bool   { return true }
func (e *SourceEnvironment) HasPermissionAPI() bool  { return false }

func (e *SourceEnvironment) RequestPermission(context.Context) (<-chan permission.Result, error) {
	return nil, permission.ErrNoPermissionAPI
}

func (e *SourceEnvironment) OnOrientation(fn func(orientation.Sample)) func() {
	return e.orientation.add(fn)
}

// OnScreenRotation never fires.
func (e *SourceEnvironment) OnScreenRotation(func(float64)) func() {
	return func() {}
}

func (e *SourceEnvironment) ScreenAngle() float64 { return 0 }
