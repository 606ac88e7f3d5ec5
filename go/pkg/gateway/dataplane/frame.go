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

// Package dataplane implements the egress and ingress translators
// (components C and D) as pure, bounds-checked transforms over an
// Ethernet/IPv6 frame buffer. Grounded directly on the original
// bpf/egress.bpf.c and bpf/ingress.bpf.c: every step here mirrors one
// of their named steps, including the explicit per-step bounds checks
// the in-kernel verifier requires. The BPF objects in
// pkg/gateway/dataplane/xlat run the same algorithm in-kernel; this
// package exists so the algorithm is unit-testable without a kernel.
package dataplane

import "encoding/binary"

// Verdict is the outcome of translating one frame.
type Verdict int

const (
	PASS Verdict = iota
	DROP
)

func (v Verdict) String() string {
	if v == DROP {
		return "DROP"
	}
	return "PASS"
}

const (
	EthernetHeaderLen = 14
	IPv6HeaderLen     = 40
	UDPHeaderLen      = 8

	EtherTypeIPv6 = 0x86DD

	NextHeaderICMPv6 = 58
	NextHeaderTCP    = 6
	NextHeaderUDP    = 17

	ipv6OffVersionTCFlow = 0
	ipv6OffPayloadLen    = 4
	ipv6OffNextHeader    = 6
	ipv6OffHopLimit      = 7
	ipv6OffSrcAddr       = 8
	ipv6OffDstAddr       = 24

	flowLabelMask = (1 << 20) - 1
)

// ipv6Fields is a decoded view of an IPv6 header's fixed fields, used by
// both translators. It never owns a copy of the address bytes; SrcAddr
// and DstAddr slice directly into the frame buffer they were read from.
type ipv6Fields struct {
	TrafficClass uint8
	FlowLabel    uint32
	PayloadLen   uint16
	NextHeader   uint8
	HopLimit     uint8
	SrcAddr      []byte
	DstAddr      []byte
}

func decodeIPv6(hdr []byte) ipv6Fields {
	vtf := binary.BigEndian.Uint32(hdr[ipv6OffVersionTCFlow : ipv6OffVersionTCFlow+4])
	return ipv6Fields{
		TrafficClass: uint8(vtf >> 20),
		FlowLabel:    vtf & flowLabelMask,
		PayloadLen:   binary.BigEndian.Uint16(hdr[ipv6OffPayloadLen : ipv6OffPayloadLen+2]),
		NextHeader:   hdr[ipv6OffNextHeader],
		HopLimit:     hdr[ipv6OffHopLimit],
		SrcAddr:      hdr[ipv6OffSrcAddr : ipv6OffSrcAddr+16],
		DstAddr:      hdr[ipv6OffDstAddr : ipv6OffDstAddr+16],
	}
}

func encodeIPv6(hdr []byte, f ipv6Fields) {
	vtf := uint32(6)<<28 | uint32(f.TrafficClass)<<20 | (f.FlowLabel & flowLabelMask)
	binary.BigEndian.PutUint32(hdr[ipv6OffVersionTCFlow:ipv6OffVersionTCFlow+4], vtf)
	binary.BigEndian.PutUint16(hdr[ipv6OffPayloadLen:ipv6OffPayloadLen+2], f.PayloadLen)
	hdr[ipv6OffNextHeader] = f.NextHeader
	hdr[ipv6OffHopLimit] = f.HopLimit
	copy(hdr[ipv6OffSrcAddr:ipv6OffSrcAddr+16], f.SrcAddr)
	copy(hdr[ipv6OffDstAddr:ipv6OffDstAddr+16], f.DstAddr)
}
