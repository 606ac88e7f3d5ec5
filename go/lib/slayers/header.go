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

// Package slayers implements the packed bit layout of the SCION common
// and address headers used by the translator (spec §3, §6), following
// the decode/serialize style of scionproto/scion's go/lib/slayers
// package but trimmed to the translator's needs: the path itself is
// treated as an opaque, already-encoded byte string (the translator
// copies it verbatim and never interprets hop fields), so there is no
// per-path-type dispatch here.
package slayers

import (
	"encoding/binary"

	"github.com/google/gopacket"

	"github.com/scionproto/scion-ip-gateway/go/lib/addr"
	"github.com/scionproto/scion-ip-gateway/go/lib/serrors"
)

// LayerTypeSCION registers Header as a gopacket layer, the way
// marcmeiners-scion/go/lib/slayers/scion.go registers its own SCION
// layer, so tooling built on gopacket (packet dumpers, test fixture
// builders) can decode and pretty-print a translated frame.
var LayerTypeSCION = gopacket.RegisterLayerType(
	2021,
	gopacket.LayerTypeMetadata{Name: "SCION", Decoder: gopacket.DecodeFunc(decodeSCIONLayer)},
)

func decodeSCIONLayer(data []byte, pb gopacket.PacketBuilder) error {
	h, err := DecodeFromBytes(data)
	if err != nil {
		return err
	}
	pb.AddLayer(h)
	return pb.NextDecoder(gopacket.LayerTypePayload)
}

// L4ProtocolType identifies the next-header field of the common header.
// Values per spec §6's reserved SCION protocol numbers.
type L4ProtocolType uint8

const (
	L4UDP  L4ProtocolType = 17
	L4HBH  L4ProtocolType = 200
	L4E2E  L4ProtocolType = 201
	L4SCMP L4ProtocolType = 202
	L4BFD  L4ProtocolType = 203
	L4Exp1 L4ProtocolType = 253
	L4Exp2 L4ProtocolType = 254
)

// PathType identifies the dataplane path encoding carried after the
// address header.
type PathType uint8

const (
	PathTypeEmpty   PathType = 0
	PathTypeSCION   PathType = 1
	PathTypeOneHop  PathType = 2
	PathTypeEPIC    PathType = 3
	PathTypeCOLIBRI PathType = 4
)

// AddrType and AddrLen encode the 2-bit host address type/length nibbles
// packed into the haddr byte. The translator only ever emits IP/16B
// addresses (spec §4.G step 4), but decoding honors whatever is on the
// wire.
type AddrType uint8
type AddrLen uint8

const (
	AddrTypeIP AddrType = 0
	// AddrLen16 encodes a 16-byte (IPv6) host address: wire length byte
	// value 0x3, decoded length (0x3+1)*4 == 16.
	AddrLen16 AddrLen = 0x3
)

const (
	// CommonHdrLen is the size in bytes of the fixed common header
	// (version/qos/flow, next, len, payload, path type, haddr, reserved).
	CommonHdrLen = 12
	// IAHdrLen is the size in bytes of the destination+source IsdAsn pair.
	IAHdrLen = 2 * addr.IABytes
	// HostAddrLen is the size in bytes of a single packed host address
	// when AddrLen16 is used.
	HostAddrLen = 16
	// FixedHdrLen is CommonHdrLen + IAHdrLen + two HostAddrLen host
	// addresses: the portion of the header before the path, per spec
	// §3's "28 + 32" invariant (28 = CommonHdrLen + IAHdrLen, 32 = 2 *
	// HostAddrLen).
	FixedHdrLen = CommonHdrLen + IAHdrLen + 2*HostAddrLen
	// LineLen is the unit (in bytes) that HdrLen counts in.
	LineLen = 4

	flowMask = (1 << 20) - 1
)

// Header is the decoded form of the SCION common + address header
// described in spec §3. Path is the raw, already-encoded dataplane path
// bytes that follow the address header; the translator never interprets
// them beyond copying whole 4-byte words (spec §4.C step 14).
type Header struct {
	Version      uint8
	TrafficClass uint8 // QoS, copied from the IPv6 traffic class
	FlowID       uint32
	NextHdr      L4ProtocolType
	HdrLen       uint8 // in LineLen units
	PayloadLen   uint16
	PathType     PathType
	DstAddrType  AddrType
	DstAddrLen   AddrLen
	SrcAddrType  AddrType
	SrcAddrLen   AddrLen
	DstIA        addr.IsdAsn
	SrcIA        addr.IsdAsn
	DstHostAddr  [16]byte
	SrcHostAddr  [16]byte
	Path         []byte
}

// AddrHdrLen returns the length in bytes of dst+src IsdAsn and host
// addresses, honoring the wire-encoded address lengths.
func (h *Header) AddrHdrLen() int {
	return IAHdrLen + addrBytes(h.DstAddrLen) + addrBytes(h.SrcAddrLen)
}

func addrBytes(l AddrLen) int {
	return (int(l) + 1) * LineLen
}

// WireLen returns the total header length in bytes, i.e. 4*HdrLen.
func (h *Header) WireLen() int {
	return int(h.HdrLen) * LineLen
}

// LayerType implements gopacket.Layer.
func (h *Header) LayerType() gopacket.LayerType { return LayerTypeSCION }

// LayerContents implements gopacket.Layer by re-serializing the decoded
// header, since Header (unlike gopacket's own layers) does not retain a
// reference to its original wire bytes.
func (h *Header) LayerContents() []byte {
	buf := make([]byte, h.WireLen())
	_ = h.SerializeTo(buf)
	return buf
}

// LayerPayload implements gopacket.Layer. The translator treats whatever
// follows the header as opaque and owned by the caller, so this layer
// never carries a payload of its own.
func (h *Header) LayerPayload() []byte { return nil }

// SerializeTo writes the header (common + address header + path) into
// buf, which must be at least h.WireLen() bytes. It does not recompute
// HdrLen; callers are expected to have set it consistently (see the
// invariant checked by PathEntry.Validate).
func (h *Header) SerializeTo(buf []byte) error {
	need := CommonHdrLen + h.AddrHdrLen() + len(h.Path)
	if len(buf) < need {
		return serrors.New("buffer too small for SCION header", "need", need, "have", len(buf))
	}

	firstLine := uint32(h.Version&0xF)<<28 | uint32(h.TrafficClass)<<20 | (h.FlowID & flowMask)
	binary.BigEndian.PutUint32(buf[0:4], firstLine)
	buf[4] = uint8(h.NextHdr)
	buf[5] = h.HdrLen
	binary.BigEndian.PutUint16(buf[6:8], h.PayloadLen)
	buf[8] = uint8(h.PathType)
	buf[9] = uint8(h.DstAddrType&0x3)<<6 | uint8(h.DstAddrLen&0x3)<<4 |
		uint8(h.SrcAddrType&0x3)<<2 | uint8(h.SrcAddrLen&0x3)
	binary.BigEndian.PutUint16(buf[10:12], 0) // reserved

	off := CommonHdrLen
	h.DstIA.EmitTo(buf[off:])
	off += addr.IABytes
	h.SrcIA.EmitTo(buf[off:])
	off += addr.IABytes
	dstLen := addrBytes(h.DstAddrLen)
	srcLen := addrBytes(h.SrcAddrLen)
	copy(buf[off:off+dstLen], h.DstHostAddr[:])
	off += dstLen
	copy(buf[off:off+srcLen], h.SrcHostAddr[:])
	off += srcLen

	copy(buf[off:off+len(h.Path)], h.Path)
	return nil
}

// DecodeFromBytes decodes a Header from data. The Path field references
// data's backing array; callers that retain the Header beyond the
// lifetime of data must copy it first.
func DecodeFromBytes(data []byte) (*Header, error) {
	if len(data) < CommonHdrLen {
		return nil, serrors.New("packet shorter than common header",
			"min", CommonHdrLen, "actual", len(data))
	}
	h := &Header{}
	firstLine := binary.BigEndian.Uint32(data[0:4])
	h.Version = uint8(firstLine >> 28)
	h.TrafficClass = uint8((firstLine >> 20) & 0xFF)
	h.FlowID = firstLine & flowMask
	h.NextHdr = L4ProtocolType(data[4])
	h.HdrLen = data[5]
	h.PayloadLen = binary.BigEndian.Uint16(data[6:8])
	h.PathType = PathType(data[8])
	h.DstAddrType = AddrType(data[9] >> 6)
	h.DstAddrLen = AddrLen(data[9] >> 4 & 0x3)
	h.SrcAddrType = AddrType(data[9] >> 2 & 0x3)
	h.SrcAddrLen = AddrLen(data[9] & 0x3)

	addrOff := CommonHdrLen
	addrHdrLen := h.AddrHdrLen()
	if len(data) < addrOff+addrHdrLen {
		return nil, serrors.New("packet too short for address header",
			"need", addrOff+addrHdrLen, "have", len(data))
	}
	var err error
	h.DstIA, err = addr.ParseIsdAsn(data[addrOff:])
	if err != nil {
		return nil, err
	}
	off := addrOff + addr.IABytes
	h.SrcIA, err = addr.ParseIsdAsn(data[off:])
	if err != nil {
		return nil, err
	}
	off += addr.IABytes
	dstLen := addrBytes(h.DstAddrLen)
	srcLen := addrBytes(h.SrcAddrLen)
	if dstLen == HostAddrLen {
		copy(h.DstHostAddr[:], data[off:off+dstLen])
	}
	off += dstLen
	if srcLen == HostAddrLen {
		copy(h.SrcHostAddr[:], data[off:off+srcLen])
	}
	off += srcLen

	hdrBytes := int(h.HdrLen) * LineLen
	pathLen := hdrBytes - off
	if pathLen < 0 {
		return nil, serrors.New("invalid header: negative path length",
			"hdrBytes", hdrBytes, "fixedLen", off)
	}
	if len(data) < off+pathLen {
		return nil, serrors.New("packet too short for path", "need", off+pathLen, "have", len(data))
	}
	h.Path = data[off : off+pathLen]
	return h, nil
}
