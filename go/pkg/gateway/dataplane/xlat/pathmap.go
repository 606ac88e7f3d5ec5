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

package xlat

import (
	"encoding/binary"
	"time"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/ringbuf"

	"github.com/scionproto/scion-ip-gateway/go/lib/slayers"
	"github.com/scionproto/scion-ip-gateway/go/pkg/gateway/classify"
)

// scionHdrEntryLen is the size in bytes of bpf/scion.h's struct scionhdr:
// the 12-byte common header plus a dst/src IsdAsn pair, no host
// addresses (those are filled in from the packet at translate time).
const scionHdrEntryLen = 28

const maxPathWords = slayers.MaxPathWords

// pathMapEntryLen and the entryOff* offsets lay out bpf/scion.h's
// struct path_map_entry exactly as a C compiler would: the packed
// scionhdr, a fixed path[255] word array, a path_len byte, the
// router's address, one byte of compiler padding to bring router_port
// back onto a 2-byte boundary, and the port itself.
const (
	entryOffPath       = scionHdrEntryLen
	entryOffPathLen    = entryOffPath + maxPathWords*4
	entryOffRouterAddr = entryOffPathLen + 1
	entryOffRouterPort = entryOffRouterAddr + 16 + 1
	pathMapEntryLen    = entryOffRouterPort + 2
)

// MapCache adapts a kernel path-cache map (the PathMap handle
// iface.Attachment.AttachEgress returns) to pathsvc.CacheWriter,
// encoding every upsert into the byte layout struct path_map_entry
// uses so the in-kernel program reads the same entries the control
// plane writes.
type MapCache struct {
	m *ebpf.Map
}

// NewMapCache wraps m, a PathMap handle obtained from AttachEgress.
func NewMapCache(m *ebpf.Map) *MapCache {
	return &MapCache{m: m}
}

// Upsert implements pathsvc.CacheWriter.
func (c *MapCache) Upsert(key classify.MapKey, entry *slayers.PathEntry) {
	var k [4]byte
	binary.LittleEndian.PutUint32(k[:], uint32(key))

	v := make([]byte, pathMapEntryLen)
	encodeScionHdr(v[:scionHdrEntryLen], &entry.Header)

	words := len(entry.Header.Path) / 4
	if words > maxPathWords {
		words = maxPathWords
	}
	copy(v[entryOffPath:entryOffPath+words*4], entry.Header.Path[:words*4])
	v[entryOffPathLen] = uint8(words)

	copy(v[entryOffRouterAddr:entryOffRouterAddr+16], entry.RouterAddr.To16())
	binary.BigEndian.PutUint16(v[entryOffRouterPort:entryOffRouterPort+2], entry.RouterPort)

	// A write failure leaves the fast path simply missing on key again;
	// there is nothing else to do with it here.
	_ = c.m.Put(k[:], v)
}

// encodeScionHdr writes h's common header and IsdAsn pair into buf,
// matching struct scionhdr (bpf/scion_types.h), which carries no host
// address fields of its own.
func encodeScionHdr(buf []byte, h *slayers.Header) {
	firstLine := uint32(h.Version&0xF)<<28 | uint32(h.TrafficClass)<<20 | (h.FlowID & 0xFFFFF)
	binary.BigEndian.PutUint32(buf[0:4], firstLine)
	buf[4] = uint8(h.NextHdr)
	buf[5] = h.HdrLen
	binary.BigEndian.PutUint16(buf[6:8], h.PayloadLen)
	buf[8] = uint8(h.PathType)
	buf[9] = uint8(h.DstAddrType&0x3)<<6 | uint8(h.DstAddrLen&0x3)<<4 |
		uint8(h.SrcAddrType&0x3)<<2 | uint8(h.SrcAddrLen&0x3)
	binary.BigEndian.PutUint16(buf[10:12], 0)
	h.DstIA.EmitTo(buf[12:20])
	h.SrcIA.EmitTo(buf[20:28])
}

// RingMiss adapts a ring buffer reader opened over a kernel miss ring
// (see OpenMissReader) to pathsvc.MissSource.
type RingMiss struct {
	r *ringbuf.Reader
}

// NewRingMiss wraps r, typically obtained from OpenMissReader.
func NewRingMiss(r *ringbuf.Reader) *RingMiss {
	return &RingMiss{r: r}
}

// Drain implements pathsvc.MissSource. Each record the in-kernel
// program publishes is a single 4-byte little-endian MapKey; Drain
// reads whatever is already queued and then waits up to timeout for
// the next record before returning.
func (m *RingMiss) Drain(handler func(classify.MapKey), timeout time.Duration) {
	if err := m.r.SetDeadline(time.Now().Add(timeout)); err != nil {
		return
	}
	for {
		rec, err := m.r.Read()
		if err != nil {
			return
		}
		if len(rec.RawSample) < 4 {
			continue
		}
		handler(classify.MapKey(binary.LittleEndian.Uint32(rec.RawSample)))
	}
}

// Close releases the underlying ring buffer reader.
func (m *RingMiss) Close() error {
	return m.r.Close()
}

// OpenMissReader opens a ring buffer reader over m, a MissRing handle
// obtained from AttachEgress.
func OpenMissReader(m *ebpf.Map) (*ringbuf.Reader, error) {
	return ringbuf.NewReader(m)
}
