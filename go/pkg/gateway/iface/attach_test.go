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

package iface_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scionproto/scion-ip-gateway/go/pkg/gateway/iface"
)

// These tests exercise the parts of Attachment reachable without a real
// network namespace (no CAP_NET_ADMIN in CI): interface resolution
// failure and idempotent teardown. The attach-success path requires a
// live interface and loaded BPF object and is covered by the gateway's
// integration suite, not unit tests.

func TestAttachEgressUnknownInterface(t *testing.T) {
	a := iface.New()
	_, err := a.AttachEgress("no-such-iface-xyz", "egress.o")
	require.Error(t, err)
}

func TestAttachIngressUnknownInterface(t *testing.T) {
	a := iface.New()
	err := a.AttachIngress("no-such-iface-xyz", "ingress.o")
	require.Error(t, err)
}

func TestDetachIsNoopOnZeroValue(t *testing.T) {
	a := iface.New()
	assert.NoError(t, a.Detach())
}

func TestDetachIsIdempotent(t *testing.T) {
	a := iface.New()
	require.NoError(t, a.Detach())
	require.NoError(t, a.Detach())
}
