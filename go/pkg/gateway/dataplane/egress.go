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

package dataplane

import (
	"encoding/binary"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/scionproto/scion-ip-gateway/go/lib/log"
	"github.com/scionproto/scion-ip-gateway/go/lib/slayers"
	"github.com/scionproto/scion-ip-gateway/go/pkg/gateway/classify"
	"github.com/scionproto/scion-ip-gateway/go/pkg/gateway/missring"
	"github.com/scionproto/scion-ip-gateway/go/pkg/gateway/pathcache"
)

// EgressMetrics are the Prometheus counters EgressTranslator updates.
// Nil-safe: a zero EgressMetrics value can be passed in tests.
type EgressMetrics struct {
	Hits  prometheus.Counter
	Miss  prometheus.Counter
	Drops *prometheus.CounterVec // labeled "reason": miss, mtu, serialize
}

func (m EgressMetrics) countHit() {
	if m.Hits != nil {
		m.Hits.Inc()
	}
}

func (m EgressMetrics) countMiss() {
	if m.Miss != nil {
		m.Miss.Inc()
	}
}

func (m EgressMetrics) countDrop(reason string) {
	if m.Drops != nil {
		m.Drops.WithLabelValues(reason).Inc()
	}
}

// EgressTranslator implements component C: per-packet IPv6->SCION
// rewrite, mirroring bpf/egress.bpf.c step-for-step.
type EgressTranslator struct {
	Cache   *pathcache.Cache
	Miss    *missring.Ring
	Metrics EgressMetrics
	// MTU bounds the rewritten frame size; exceeding it drops the
	// packet rather than fragmenting (spec §4.C step 9).
	MTU int

	debug func(msg string, kv ...interface{})
}

// NewEgressTranslator builds a translator reading from cache and
// publishing misses to miss.
func NewEgressTranslator(cache *pathcache.Cache, miss *missring.Ring, mtu int) *EgressTranslator {
	return &EgressTranslator{
		Cache: cache,
		Miss:  miss,
		MTU:   mtu,
		debug: log.RateLimited(time.Second),
	}
}

// Translate runs the egress algorithm over frame. On PASS, the returned
// slice is the (possibly rewritten, possibly identical) frame to
// forward. On DROP, the returned slice must not be transmitted.
func (t *EgressTranslator) Translate(frame []byte) (Verdict, []byte) {
	// 1. Bounds: ethernet header fits.
	if len(frame) < EthernetHeaderLen {
		return PASS, frame
	}
	// 2. Type: ethertype == IPv6.
	ethertype := binary.BigEndian.Uint16(frame[12:14])
	if ethertype != EtherTypeIPv6 {
		return PASS, frame
	}
	// 3. Bounds: IPv6 header fits.
	if len(frame) < EthernetHeaderLen+IPv6HeaderLen {
		return PASS, frame
	}
	ipv6Off := EthernetHeaderLen
	ipv6Hdr := frame[ipv6Off : ipv6Off+IPv6HeaderLen]
	fields := decodeIPv6(ipv6Hdr)

	// 4. Exclude ICMPv6.
	if fields.NextHeader == NextHeaderICMPv6 {
		return PASS, frame
	}
	// 5. Prefix.
	if !classify.IsScionPrefix(fields.DstAddr) {
		return PASS, frame
	}
	// 6. Derive keys; intra-AS passes unmolested.
	dstKey := classify.Key(fields.DstAddr)
	srcKey := classify.Key(fields.SrcAddr)
	if dstKey == srcKey {
		return PASS, frame
	}
	// 7. Bounds: UDP header fits.
	innerUDPOff := ipv6Off + IPv6HeaderLen
	if len(frame) < innerUDPOff+UDPHeaderLen {
		return PASS, frame
	}

	// 8. Lookup; miss publishes and drops.
	entry, ok := t.Cache.Lookup(dstKey)
	if !ok {
		t.Miss.Publish(dstKey)
		t.Metrics.countMiss()
		t.Metrics.countDrop("miss")
		return DROP, frame
	}
	t.Metrics.countHit()

	// 9. MTU check.
	insertSize := UDPHeaderLen + entry.Header.WireLen()
	if len(frame)+insertSize > t.MTU {
		t.debug("egress: mtu exceeded", "need", len(frame)+insertSize, "mtu", t.MTU, "key", dstKey)
		t.Metrics.countDrop("mtu")
		return DROP, frame
	}

	// Capture the original addresses and header fields before growth
	// moves/overwrites anything; decodeIPv6's slices alias frame so we
	// copy them out now.
	var origDst, origSrc [16]byte
	copy(origDst[:], fields.DstAddr)
	copy(origSrc[:], fields.SrcAddr)
	origInnerSrcPort := binary.BigEndian.Uint16(frame[innerUDPOff : innerUDPOff+2])
	origPayloadLen := fields.PayloadLen
	origNextHeader := fields.NextHeader
	origTrafficClass := fields.TrafficClass
	origFlowLabel := fields.FlowLabel
	origHopLimit := fields.HopLimit

	// 10. Grow the packet between the IPv6 header and the inner UDP
	// header by insertSize.
	grown := growAt(frame, innerUDPOff, insertSize)

	// 11. Write underlay UDP.
	underlayUDPOff := innerUDPOff
	binary.BigEndian.PutUint16(grown[underlayUDPOff:underlayUDPOff+2], origInnerSrcPort)
	binary.BigEndian.PutUint16(grown[underlayUDPOff+2:underlayUDPOff+4], entry.RouterPort)
	// length (set in step 15) and checksum (left zero) filled below.
	binary.BigEndian.PutUint16(grown[underlayUDPOff+6:underlayUDPOff+8], 0)

	// 12+13+14. Write the SCION common+address header and path from the
	// cached template, overriding the packet-derived fields.
	scionOff := underlayUDPOff + UDPHeaderLen
	scionHdr := entry.Header
	scionHdr.Version = 0
	scionHdr.TrafficClass = origTrafficClass
	scionHdr.FlowID = origFlowLabel
	scionHdr.NextHdr = slayers.L4ProtocolType(origNextHeader)
	scionHdr.PayloadLen = origPayloadLen
	scionHdr.DstHostAddr = origDst
	scionHdr.SrcHostAddr = origSrc
	if err := scionHdr.SerializeTo(grown[scionOff:scionOff+scionHdr.WireLen()]); err != nil {
		t.debug("egress: serialize failed", "err", err, "key", dstKey)
		t.Metrics.countDrop("serialize")
		return DROP, frame
	}

	// 15. Rewrite outer IPv6 for intra-AS forwarding to the border
	// router, and the new outer UDP length. Hop limit is left as the
	// sender set it; only daddr/nexthdr/payload_len change here.
	outerPayloadLen := uint16(UDPHeaderLen + scionHdr.WireLen() + int(origPayloadLen))
	encodeIPv6(grown[ipv6Off:ipv6Off+IPv6HeaderLen], ipv6Fields{
		TrafficClass: origTrafficClass,
		FlowLabel:    origFlowLabel,
		PayloadLen:   outerPayloadLen,
		NextHeader:   NextHeaderUDP,
		HopLimit:     origHopLimit,
		SrcAddr:      grown[ipv6Off+ipv6OffSrcAddr : ipv6Off+ipv6OffSrcAddr+16],
		DstAddr:      entry.RouterAddr.To16(),
	})
	binary.BigEndian.PutUint16(grown[underlayUDPOff+4:underlayUDPOff+6], outerPayloadLen)

	return PASS, grown
}

// growAt returns a new buffer equal to buf with insertSize zeroed bytes
// inserted at offset off; the tail (everything from off onward) is
// preserved after the inserted region. The caller fills the inserted
// region and may need to re-read fields it captured from buf before
// calling growAt, since buf's backing array is not reused.
func growAt(buf []byte, off, insertSize int) []byte {
	out := make([]byte, len(buf)+insertSize)
	copy(out[:off], buf[:off])
	copy(out[off+insertSize:], buf[off:])
	return out
}
