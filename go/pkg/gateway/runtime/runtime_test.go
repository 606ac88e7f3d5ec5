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

package runtime_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scionproto/scion-ip-gateway/go/pkg/gateway/runtime"
)

func TestWaitRunsTeardownInReverseOrder(t *testing.T) {
	g := runtime.New(context.Background())

	var order []int
	g.OnShutdown(func() error { order = append(order, 1); return nil })
	g.OnShutdown(func() error { order = append(order, 2); return nil })

	g.Go("noop", func(ctx context.Context) error { return nil })

	require.NoError(t, g.Wait())
	assert.Equal(t, []int{2, 1}, order)
}

func TestWaitPropagatesMemberError(t *testing.T) {
	g := runtime.New(context.Background())
	boom := errors.New("boom")
	g.Go("failing", func(ctx context.Context) error { return boom })

	err := g.Wait()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestParentCancellationStopsMembers(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	g := runtime.New(parent)
	var stopped atomic.Bool
	g.Go("blocker", func(ctx context.Context) error {
		<-ctx.Done()
		stopped.Store(true)
		return nil
	})

	cancel()
	require.NoError(t, g.Wait())
	assert.True(t, stopped.Load())
}
