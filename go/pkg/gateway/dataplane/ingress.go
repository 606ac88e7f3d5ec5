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
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/scionproto/scion-ip-gateway/go/lib/log"
	"github.com/scionproto/scion-ip-gateway/go/lib/slayers"
	"github.com/scionproto/scion-ip-gateway/go/pkg/gateway/classify"
)

// IngressMetrics are the Prometheus counters IngressTranslator updates.
// Nil-safe: a zero IngressMetrics value can be passed in tests.
type IngressMetrics struct {
	Drops *prometheus.CounterVec // labeled "reason": headroom
}

func (m IngressMetrics) countDrop(reason string) {
	if m.Drops != nil {
		m.Drops.WithLabelValues(reason).Inc()
	}
}

// IngressTranslator implements component D: per-packet SCION->IPv6
// rewrite, mirroring bpf/ingress.bpf.c step-for-step.
type IngressTranslator struct {
	Metrics IngressMetrics

	debug func(msg string, kv ...interface{})
}

// NewIngressTranslator builds an ingress translator.
func NewIngressTranslator() *IngressTranslator {
	return &IngressTranslator{debug: log.RateLimited(time.Second)}
}

// Translate runs the ingress algorithm over frame, which must have at
// least Headroom bytes of unused space before frame[0] (the
// protocol-equivalent of bpf_xdp_adjust_head growing headroom).
// Translate returns the PASS buffer re-sliced to start at the recovered
// Ethernet frame, or the original frame unchanged on a PASS that does
// not translate. On DROP the returned frame has already been rewritten
// in place: steps 5 and 7 run before the headroom check.
func (t *IngressTranslator) Translate(buf []byte, headroom int) (Verdict, []byte) {
	frame := buf[headroom:]

	// 1. Bounds through ethernet/IPv6/UDP/SCION common header.
	if len(frame) < EthernetHeaderLen+IPv6HeaderLen+UDPHeaderLen+slayers.CommonHdrLen {
		return PASS, frame
	}
	ipv6Off := EthernetHeaderLen
	udpOff := ipv6Off + IPv6HeaderLen
	scionOff := udpOff + UDPHeaderLen

	ipv6Hdr := frame[ipv6Off : ipv6Off+IPv6HeaderLen]
	outer := decodeIPv6(ipv6Hdr)

	// 2. Skip ICMPv6 and TCP next-headers (handled by the host stack
	// directly, never translated).
	if outer.NextHeader == NextHeaderICMPv6 || outer.NextHeader == NextHeaderTCP {
		return PASS, frame
	}
	// 3. Prefix.
	if !classify.IsScionPrefix(outer.DstAddr) {
		return PASS, frame
	}

	scionHdr, err := slayers.DecodeFromBytes(frame[scionOff:])
	if err != nil {
		return PASS, frame
	}
	// 4. Check the embedded host addresses lie within the frame: already
	// implied by a successful DecodeFromBytes, which bounds-checks the
	// address header before returning.
	scionEnd := scionOff + scionHdr.WireLen()
	if scionEnd > len(frame) {
		return PASS, frame
	}

	// 5. Recover the inner IPv6 header in place at the position of the
	// original (outer) IPv6 header. This must complete before the
	// memmove in step 7, because the memmove's source and destination
	// regions overlap.
	encodeIPv6(ipv6Hdr, ipv6Fields{
		TrafficClass: scionHdr.TrafficClass,
		FlowLabel:    scionHdr.FlowID,
		PayloadLen:   scionHdr.PayloadLen,
		NextHeader:   uint8(scionHdr.NextHdr),
		HopLimit:     0xFF,
		SrcAddr:      scionHdr.SrcHostAddr[:],
		DstAddr:      scionHdr.DstHostAddr[:],
	})

	// 6. scion_end = start(scion) + 4*scion.len; new frame start is
	// scion_end - sizeof(ethernet) - sizeof(ipv6).
	newStart := scionEnd - EthernetHeaderLen - IPv6HeaderLen

	// 7. memmove the ethernet+IPv6 headers to newStart, then grow
	// headroom so data begins at newStart.
	copy(frame[newStart:newStart+EthernetHeaderLen+IPv6HeaderLen], frame[:EthernetHeaderLen+IPv6HeaderLen])
	if headroom+newStart < 0 {
		t.debug("ingress: headroom adjust underflow", "newStart", newStart, "headroom", headroom)
		t.Metrics.countDrop("headroom")
		return DROP, frame
	}

	// 8. Return PASS with the buffer re-sliced from the new start.
	return PASS, buf[headroom+newStart:]
}
