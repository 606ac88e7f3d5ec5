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

// Package iface is component H: attaching the compiled translator onto
// network interfaces and tearing it down again, grounded on how
// fin-ger-scion's posix-gateway sets up tunnel devices with
// vishvananda/netlink and on grimm-is-flywall's use of cilium/ebpf's
// qdisc/filter helpers for TC attachment.
package iface

import (
	"sync"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/vishvananda/netlink"

	"github.com/scionproto/scion-ip-gateway/go/lib/log"
	"github.com/scionproto/scion-ip-gateway/go/lib/serrors"
	"github.com/scionproto/scion-ip-gateway/go/pkg/gateway/dataplane/xlat"
)

// clsactHandle is the well-known handle under which the TC clsact qdisc
// (and therefore the egress filter) is installed.
const clsactHandle = netlink.HANDLE_CLSACT

// htonsEthAll is ETH_P_ALL (0x0003) in network byte order, so the
// egress filter classifies every ethertype crossing the interface;
// classify.go does the actual sorting once frames arrive.
const htonsEthAll = 0x0300

// Handles exposes the shared state an attached egress hook hands to the
// control plane (spec §4.H: "on the egress attach, returns handles to
// the shared map E and ring F").
type Handles struct {
	PathMap  *ebpf.Map
	MissRing *ebpf.Map
}

// Attachment owns every kernel resource acquired while hooks are live:
// the loaded BPF objects, the TC qdisc/filter or XDP link, and which
// interfaces are currently hooked. detach releases all of it exactly
// once, idempotently, on every exit path (spec §4.H, §5 "Resources").
type Attachment struct {
	mu sync.Mutex

	egressIface string
	egressObj   *xlat.Objects
	egressQdisc netlink.Qdisc
	egressFlt   netlink.Filter

	ingressIface string
	ingressObj   *xlat.Objects
	ingressLink  link.Link
}

// New returns an empty Attachment with nothing hooked yet.
func New() *Attachment {
	return &Attachment{}
}

// AttachEgress loads objPath as a TC clsact egress filter on iface and
// returns handles to its maps. Calling AttachEgress again with the same
// iface is a no-op (idempotent re-attach); calling it with a different
// iface while one is already attached is an error — Attachment manages
// exactly one egress hook at a time.
func (a *Attachment) AttachEgress(iface, objPath string) (Handles, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.egressObj != nil {
		if a.egressIface == iface {
			return Handles{PathMap: a.egressObj.PathMap, MissRing: a.egressObj.MissRing}, nil
		}
		return Handles{}, serrors.New("init error: egress hook already attached",
			"attached_to", a.egressIface, "requested", iface)
	}

	link, err := netlink.LinkByName(iface)
	if err != nil {
		return Handles{}, serrors.Wrap("init error: no such interface", err, "iface", iface)
	}

	obj, err := xlat.LoadEgress(objPath)
	if err != nil {
		return Handles{}, err
	}

	qdisc := &netlink.GenericQdisc{
		QdiscAttrs: netlink.QdiscAttrs{
			LinkIndex: link.Attrs().Index,
			Handle:    clsactHandle,
			Parent:    netlink.HANDLE_CLSACT,
		},
		QdiscType: "clsact",
	}
	if err := netlink.QdiscReplace(qdisc); err != nil {
		obj.Close()
		return Handles{}, serrors.Wrap("init error: failed to install clsact qdisc", err, "iface", iface)
	}

	filter := &netlink.BpfFilter{
		FilterAttrs: netlink.FilterAttrs{
			LinkIndex: link.Attrs().Index,
			Parent:    netlink.HANDLE_MIN_EGRESS,
			Handle:    1,
			Protocol:  htonsEthAll,
		},
		Fd:           obj.Program.FD(),
		Name:         "scion_egress",
		DirectAction: true,
	}
	if err := netlink.FilterReplace(filter); err != nil {
		obj.Close()
		return Handles{}, serrors.Wrap("init error: failed to attach egress filter", err, "iface", iface)
	}

	a.egressIface = iface
	a.egressObj = obj
	a.egressQdisc = qdisc
	a.egressFlt = filter

	log.Infow("egress hook attached", "iface", iface)
	return Handles{PathMap: obj.PathMap, MissRing: obj.MissRing}, nil
}

// AttachIngress loads objPath as an XDP program on iface. Idempotent
// under the same rules as AttachEgress.
func (a *Attachment) AttachIngress(iface, objPath string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ingressObj != nil {
		if a.ingressIface == iface {
			return nil
		}
		return serrors.New("init error: ingress hook already attached",
			"attached_to", a.ingressIface, "requested", iface)
	}

	nlLink, err := netlink.LinkByName(iface)
	if err != nil {
		return serrors.Wrap("init error: no such interface", err, "iface", iface)
	}

	obj, err := xlat.LoadIngress(objPath)
	if err != nil {
		return err
	}

	xdpLink, err := link.AttachXDP(link.XDPOptions{
		Program:   obj.Program,
		Interface: nlLink.Attrs().Index,
	})
	if err != nil {
		obj.Close()
		return serrors.Wrap("init error: failed to attach XDP program", err, "iface", iface)
	}

	a.ingressIface = iface
	a.ingressObj = obj
	a.ingressLink = xdpLink

	log.Infow("ingress hook attached", "iface", iface)
	return nil
}

// Detach releases every resource acquired by AttachEgress/AttachIngress.
// Safe to call multiple times and on a zero-value Attachment (spec §5:
// "released on all exit paths, including exception/error propagation").
func (a *Attachment) Detach() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs serrors.List

	if a.ingressLink != nil {
		if err := a.ingressLink.Close(); err != nil {
			errs = append(errs, err)
		}
		a.ingressLink = nil
	}
	if a.ingressObj != nil {
		if err := a.ingressObj.Close(); err != nil {
			errs = append(errs, err)
		}
		a.ingressObj = nil
		log.Infow("ingress hook detached", "iface", a.ingressIface)
		a.ingressIface = ""
	}

	if a.egressFlt != nil {
		if err := netlink.FilterDel(a.egressFlt); err != nil {
			errs = append(errs, err)
		}
		a.egressFlt = nil
	}
	if a.egressQdisc != nil {
		if err := netlink.QdiscDel(a.egressQdisc); err != nil {
			errs = append(errs, err)
		}
		a.egressQdisc = nil
	}
	if a.egressObj != nil {
		if err := a.egressObj.Close(); err != nil {
			errs = append(errs, err)
		}
		a.egressObj = nil
		log.Infow("egress hook detached", "iface", a.egressIface)
		a.egressIface = ""
	}

	return errs.ToError()
}
