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

// Package xlat loads the compiled BPF translator objects that run the
// algorithms of pkg/gateway/dataplane in-kernel, using cilium/ebpf the
// way grimm-is-flywall's go.mod pulls it in for TC/XDP attachment.
// egress_bpfel.o / ingress_bpfel.o are the kernel-side twin of
// egress.go/ingress.go (same algorithm, same step numbering); building
// them is outside this package's scope, which only loads and attaches
// whatever object file the gateway is configured with. pathmap.go and
// its MapCache/RingMiss adapters define the wire contract those objects
// must honor for their path_cache and miss_ring maps.
package xlat

import (
	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/ringbuf"

	"github.com/scionproto/scion-ip-gateway/go/lib/serrors"
)

// Objects is the loaded form of one BPF object file: its maps and
// programs, keyed the way bpf2go-generated bindings are.
type Objects struct {
	Program  *ebpf.Program
	PathMap  *ebpf.Map // MapKey -> packed PathEntry, shared with pkg/gateway/pathcache's kernel twin
	MissRing *ebpf.Map // BPF_MAP_TYPE_RINGBUF backing pkg/gateway/missring's kernel twin
}

// LoadEgress loads the compiled TC egress object from path.
func LoadEgress(path string) (*Objects, error) {
	return load(path, "egress", "path_cache", "miss_ring")
}

// LoadIngress loads the compiled XDP ingress object from path.
func LoadIngress(path string) (*Objects, error) {
	return load(path, "ingress", "path_cache", "")
}

func load(path, progName, pathMapName, ringName string) (*Objects, error) {
	spec, err := ebpf.LoadCollectionSpec(path)
	if err != nil {
		return nil, serrors.Wrap("init error: failed to parse BPF object", err, "path", path)
	}
	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		return nil, serrors.Wrap("init error: failed to load BPF collection", err, "path", path)
	}
	prog, ok := coll.Programs[progName]
	if !ok {
		return nil, serrors.New("init error: BPF object missing program", "path", path, "program", progName)
	}
	pathMap, ok := coll.Maps[pathMapName]
	if !ok {
		return nil, serrors.New("init error: BPF object missing map", "path", path, "map", pathMapName)
	}
	obj := &Objects{Program: prog, PathMap: pathMap}
	if ringName != "" {
		ring, ok := coll.Maps[ringName]
		if !ok {
			return nil, serrors.New("init error: BPF object missing map", "path", path, "map", ringName)
		}
		obj.MissRing = ring
	}
	return obj, nil
}

// Close releases the kernel resources backing o. Safe to call on a
// partially-populated Objects.
func (o *Objects) Close() error {
	var errs serrors.List
	if o.Program != nil {
		if err := o.Program.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if o.PathMap != nil {
		if err := o.PathMap.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if o.MissRing != nil {
		if err := o.MissRing.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs.ToError()
}

// OpenMissReader opens a ring buffer reader over the miss ring map, the
// kernel-side counterpart pkg/gateway/missring.Ring drains in-process
// for the pure-Go dataplane path.
func (o *Objects) OpenMissReader() (*ringbuf.Reader, error) {
	if o.MissRing == nil {
		return nil, serrors.New("object has no miss ring map")
	}
	r, err := OpenMissReader(o.MissRing)
	if err != nil {
		return nil, serrors.Wrap("init error: failed to open ring buffer reader", err)
	}
	return r, nil
}
