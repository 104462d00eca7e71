// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"gonum.org/v1/gonum/num/quat"

	"github.com/relabs-tech/arfusion/internal/config"
	"github.com/relabs-tech/arfusion/internal/orientation"
	"github.com/relabs-tech/arfusion/internal/sensors"
)

// mockPipeline runs the fusion core in-process on a mock source.
type mockPipeline struct {
	env      *sensors.SourceEnvironment
	controls *orientation.Controls
	out      io.Writer
	rotation quat.Number
}

func newMockPipeline(src orientation.Source, cfg orientation.Config, out io.Writer) (*mockPipeline, error) {
	env := sensors.NewSourceEnvironment(src)
	controls := orientation.NewControls(env, cfg)
	if err := controls.Init(); err != nil {
		controls.Close()
		return nil, err
	}
	return &mockPipeline{env: env, controls: controls, out: out}, nil
}

// step pulls one sample, updates and prints the pose when it changed.
func (p *mockPipeline) step() error {
	if _, err := p.env.Poll(); err != nil {
		return err
	}
	if !p.controls.Update(&p.rotation) {
		return nil
	}
	pose := orientation.PoseFromQuaternion(p.rotation, p.controls.Heading())
	_, err := fmt.Fprintf(p.out,
		"ROLL=%6.2f  PITCH=%6.2f  YAW=%6.2f  HEADING=%6.2f\n",
		pose.Roll,
		pose.Pitch,
		pose.Yaw,
		pose.Heading,
	)
	return err
}

// RunMockConsole fuses a mock sample stream locally and prints the poses.
// It needs no broker. The fusion settings come from the global config when
// loaded.
func RunMockConsole(ctx context.Context) error {
	ocfg := orientation.Config{SmoothingFactor: 0.3, AppleMobile: true}
	if cfg := config.Get(); cfg != nil {
		ocfg = cfg.Controls(true)
	}

	p, err := newMockPipeline(orientation.NewMockSource(true), ocfg, os.Stdout)
	if err != nil {
		return err
	}
	defer p.controls.Close()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.step(); err != nil {
				return err
			}
		}
	}
}
