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

package main

import (
	"context"
	"time"

	"github.com/scionproto/scion-ip-gateway/go/lib/gatewayconf"
	"github.com/scionproto/scion-ip-gateway/go/lib/log"
	"github.com/scionproto/scion-ip-gateway/go/lib/prom"
	"github.com/scionproto/scion-ip-gateway/go/pkg/gateway/dataplane/xlat"
	"github.com/scionproto/scion-ip-gateway/go/pkg/gateway/iface"
	"github.com/scionproto/scion-ip-gateway/go/pkg/gateway/pathsvc"
	"github.com/scionproto/scion-ip-gateway/go/pkg/gateway/runtime"
)

const (
	egressObjPath  = "egress_bpfel.o"
	ingressObjPath = "ingress_bpfel.o"
	drainTimeout   = 100 * time.Millisecond
	daemonDialTime = 2 * time.Second
)

// run wires components E through H together: load config, attach
// whichever hooks were requested, dial sciond and run the
// path-resolution loop when the egress hook is attached, wait until a
// shutdown signal arrives, then tear everything down (spec §4.H, §5).
func run(ctx context.Context, opts runOptions) error {
	cfg, err := gatewayconf.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	_ = log.Setup(cfg.Log.Level)

	group := runtime.New(ctx)
	attachment := iface.New()
	group.OnShutdown(attachment.Detach)

	var (
		cache pathsvc.CacheWriter
		miss  pathsvc.MissSource
	)

	if opts.Egress != "" {
		handles, err := attachment.AttachEgress(opts.Egress, egressObjPath)
		if err != nil {
			return err
		}

		reader, err := xlat.OpenMissReader(handles.MissRing)
		if err != nil {
			return err
		}
		group.OnShutdown(reader.Close)

		cache = xlat.NewMapCache(handles.PathMap)
		miss = xlat.NewRingMiss(reader)
	}

	if opts.Ingress != "" {
		if err := attachment.AttachIngress(opts.Ingress, ingressObjPath); err != nil {
			return err
		}
	}

	sciondTarget := cfg.Sciond.Address
	if opts.Sciond != "" {
		sciondTarget = opts.Sciond
	}

	if miss != nil {
		querier, err := pathsvc.DialSciond(ctx, sciondTarget, daemonDialTime)
		if err != nil {
			return err
		}
		group.OnShutdown(querier.Close)

		svc := pathsvc.New(cache, miss, querier, drainTimeout)
		svc.Metrics = pathsvc.Metrics{
			Resolved:        prom.NewCounter("gateway", "pathsvc", "resolved_total", "Paths resolved and upserted into the cache."),
			ResolveFailures: prom.NewCounter("gateway", "pathsvc", "resolve_failures_total", "Path resolution attempts that failed or returned no paths."),
			Upserts:         prom.NewCounter("gateway", "pathsvc", "upserts_total", "Entries upserted into the path cache."),
		}
		group.Go("path-service", func(ctx context.Context) error {
			svc.Run(ctx)
			return nil
		})
	}

	log.Infow("gateway running", "ingress", opts.Ingress, "egress", opts.Egress)
	return group.Wait()
}
