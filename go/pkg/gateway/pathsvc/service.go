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

// Package pathsvc implements the path service (component G): it drains
// the miss ring, resolves each missed key through a SCION daemon, and
// upserts the resulting PathEntry into the path cache. Grounded on
// PathService.cxx's reqHandler/getPaths/insertPaths loop.
package pathsvc

import (
	"context"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/scionproto/scion-ip-gateway/go/lib/addr"
	"github.com/scionproto/scion-ip-gateway/go/lib/log"
	"github.com/scionproto/scion-ip-gateway/go/lib/serrors"
	"github.com/scionproto/scion-ip-gateway/go/lib/slayers"
	"github.com/scionproto/scion-ip-gateway/go/pkg/gateway/classify"
)

// QueryDeadline bounds a single queryPaths RPC, per spec §4.G step 2.
const QueryDeadline = 100 * time.Millisecond

// Path is the control-plane representation of a resolved SCION path:
// an opaque dataplane byte string plus the next hop to reach it,
// mirroring the original prototype's Path struct.
type Path struct {
	Dst           addr.IsdAsn
	Src           addr.IsdAsn
	DataplanePath []byte // empty for the intra-domain EMPTY-path case
	NextHop       net.IP
	NextHopPort   uint16
}

// PathQuerier is the SCION daemon RPC collaborator. Its real
// implementation is an out-of-scope external system per spec §1; the
// translator only depends on this narrow interface.
type PathQuerier interface {
	QueryPaths(ctx context.Context, dst addr.IsdAsn) ([]Path, error)
}

// CacheWriter is the write side of the path cache (component E) the
// service upserts resolved entries into. pathcache.Cache satisfies
// this for the in-process dataplane; xlat.MapCache satisfies it for a
// real kernel path-cache map, so the same resolve loop drives either
// one depending on what's attached.
type CacheWriter interface {
	Upsert(key classify.MapKey, entry *slayers.PathEntry)
}

// MissSource is the read side of the miss channel (component F) the
// service drains. missring.Ring satisfies this for the in-process
// dataplane; xlat.RingMiss satisfies it for a real kernel ring buffer.
type MissSource interface {
	Drain(handler func(classify.MapKey), timeout time.Duration)
}

// Metrics are the Prometheus counters the service updates. Wired per
// SPEC_FULL's ambient-metrics requirement; nil-safe (a zero Metrics
// value can be passed in tests).
type Metrics struct {
	Resolved        prometheus.Counter
	ResolveFailures prometheus.Counter
	Upserts         prometheus.Counter
}

// Service is single-threaded by design: Run must not be called
// concurrently with itself (spec §4.G "Back-pressure").
type Service struct {
	Cache   CacheWriter
	Miss    MissSource
	Querier PathQuerier
	Metrics Metrics

	drainTimeout time.Duration
}

// New builds a path service. drainTimeout bounds how long a single Run
// iteration blocks waiting on an empty miss channel (spec §5's "bounded
// drain timeouts"). cache and miss are typically a pathcache.Cache
// paired with a missring.Ring for the in-process dataplane, or an
// xlat.MapCache paired with an xlat.RingMiss when a real kernel hook
// is attached.
func New(cache CacheWriter, miss MissSource, querier PathQuerier, drainTimeout time.Duration) *Service {
	return &Service{Cache: cache, Miss: miss, Querier: querier, drainTimeout: drainTimeout}
}

// Run drains the miss ring and resolves each key until ctx is
// cancelled. It never returns an error: resolution failures are logged
// and skipped, per spec §4.G step 2.
func (s *Service) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.Miss.Drain(func(key classify.MapKey) {
			s.resolve(ctx, key)
		}, s.drainTimeout)
	}
}

func (s *Service) resolve(ctx context.Context, key classify.MapKey) {
	// 1. Re-expand the key into an IsdAsn.
	dst := addr.MustNewIsdAsn(key.ISD(), uint64(key.AS()))

	qctx, cancel := context.WithTimeout(ctx, QueryDeadline)
	defer cancel()

	// 2. queryPaths; any failure is logged and the key stays uncached.
	paths, err := s.Querier.QueryPaths(qctx, dst)
	if err != nil {
		s.countResolveFailure()
		log.Debugw("path resolution failed", "key", key, "dst", dst, "err", err)
		return
	}
	if len(paths) == 0 {
		s.countResolveFailure()
		log.Debugw("path resolution returned no paths", "key", key, "dst", dst)
		return
	}

	// 3. Select the first returned path.
	p := paths[0]

	// 4. Serialize to a PathEntry.
	entry, err := toPathEntry(p)
	if err != nil {
		s.countResolveFailure()
		log.Warnw("path serialization failed", "key", key, "dst", dst, "err", err)
		return
	}

	// 5. Upsert.
	s.Cache.Upsert(key, entry)
	s.countResolved()
	s.countUpsert()
}

// toPathEntry mirrors pathToMapEntry: builds a PathEntry from a resolved
// Path, choosing EMPTY vs SCION path type based on whether the
// dataplane path is empty.
func toPathEntry(p Path) (*slayers.PathEntry, error) {
	router := p.NextHop.To16()
	if router == nil {
		return nil, serrors.New("next hop is not a valid IPv6 address", "nextHop", p.NextHop)
	}
	if len(p.DataplanePath) == 0 {
		return slayers.NewEmptyPathEntry(p.Dst, p.Src, router, p.NextHopPort), nil
	}
	return slayers.NewPathEntry(p.Dst, p.Src, p.DataplanePath, router, p.NextHopPort)
}

func (s *Service) countResolved() {
	if s.Metrics.Resolved != nil {
		s.Metrics.Resolved.Inc()
	}
}

func (s *Service) countResolveFailure() {
	if s.Metrics.ResolveFailures != nil {
		s.Metrics.ResolveFailures.Inc()
	}
}

func (s *Service) countUpsert() {
	if s.Metrics.Upserts != nil {
		s.Metrics.Upserts.Inc()
	}
}
