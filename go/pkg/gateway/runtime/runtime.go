// Copyright 2024 Anapaya Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package runtime coordinates the gateway's background goroutines and
// its signal-driven shutdown (spec §5), using golang.org/x/sync/errgroup
// the way the rest of the examples pack coordinates multiple background
// loops under one cancellation.
package runtime

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/scionproto/scion-ip-gateway/go/lib/log"
)

// Group runs a set of long-lived goroutines under one cancellation
// context, torn down together on SIGINT/SIGTERM or on the first
// member's error (spec §5 "Cancellation").
type Group struct {
	ctx      context.Context
	cancel   context.CancelFunc
	eg       *errgroup.Group
	teardown []func() error
}

// New returns a Group whose context is cancelled on SIGINT or SIGTERM.
func New(parent context.Context) *Group {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	eg, ctx := errgroup.WithContext(ctx)
	return &Group{ctx: ctx, cancel: stop, eg: eg}
}

// Context is cancelled when a shutdown signal arrives or any member
// returns a non-nil error.
func (g *Group) Context() context.Context {
	return g.ctx
}

// Go runs fn under the group. fn must return promptly once g.Context()
// is cancelled (spec §5: "the control loop's drain call has its own
// 100ms timeout so shutdown latency is bounded").
func (g *Group) Go(name string, fn func(ctx context.Context) error) {
	g.eg.Go(func() error {
		if err := fn(g.ctx); err != nil {
			log.Errorw("background task exited with error", "task", name, "err", err)
			return err
		}
		log.Infow("background task exited", "task", name)
		return nil
	})
}

// OnShutdown registers fn to run during Wait's teardown. Teardown funcs
// run in reverse order of registration, so a resource registered after
// another is released before it. Used for hook detachment, map
// destruction, and daemon connection close (spec §5 "Resources" —
// released on every exit path).
func (g *Group) OnShutdown(fn func() error) {
	g.teardown = append(g.teardown, fn)
}

// Wait blocks until every member exits (because of a shutdown signal or
// because one of them errored), runs the registered teardown funcs in
// reverse order of registration, and returns the first error encountered from either members or
// teardown.
func (g *Group) Wait() error {
	defer g.cancel()
	runErr := g.eg.Wait()

	var teardownErr error
	for i := len(g.teardown) - 1; i >= 0; i-- {
		if err := g.teardown[i](); err != nil && teardownErr == nil {
			teardownErr = err
		}
	}
	if runErr != nil {
		return runErr
	}
	return teardownErr
}
