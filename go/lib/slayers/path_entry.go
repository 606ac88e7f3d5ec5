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

package slayers

import (
	"net"

	"github.com/scionproto/scion-ip-gateway/go/lib/addr"
	"github.com/scionproto/scion-ip-gateway/go/lib/serrors"
)

// MaxPathWords bounds the number of 4-byte path words a PathEntry may
// carry, matching the fixed-capacity path array the fast path indexes
// into (original ebpf-prototype's path_map_entry.path[255]).
const MaxPathWords = 255

// PathEntry is the unit stored in the path cache (component E) and
// produced by the path service (component G): a prefilled SCION header
// template plus the border router next hop the egress translator hands
// the rewritten packet to.
type PathEntry struct {
	Header     Header
	RouterAddr net.IP // always a 16-byte IPv6 address
	RouterPort uint16
}

// NewEmptyPathEntry builds a PathEntry for an intra-AS destination: an
// EMPTY path, matching pathToMapEntry's dp.empty() branch. The template
// header's host address fields are left zero: the original scionhdr
// carries only the IsdAsn pair, never host addresses (see scion_types.h);
// the egress translator fills DstHostAddr/SrcHostAddr from the packet
// being translated at rewrite time (spec §4.C step 13).
func NewEmptyPathEntry(dstIA, srcIA addr.IsdAsn, router net.IP, port uint16) *PathEntry {
	h := Header{
		PathType:    PathTypeEmpty,
		DstAddrType: AddrTypeIP,
		DstAddrLen:  AddrLen16,
		SrcAddrType: AddrTypeIP,
		SrcAddrLen:  AddrLen16,
		DstIA:       dstIA,
		SrcIA:       srcIA,
	}
	h.HdrLen = uint8(FixedHdrLen / LineLen)
	return &PathEntry{Header: h, RouterAddr: router, RouterPort: port}
}

// NewPathEntry builds a PathEntry carrying a non-empty dataplane path.
// rawPath must be a whole number of 4-byte words and at most
// MaxPathWords words long. As with NewEmptyPathEntry, the template's
// host address fields are left zero.
func NewPathEntry(
	dstIA, srcIA addr.IsdAsn, rawPath []byte, router net.IP, port uint16,
) (*PathEntry, error) {
	if len(rawPath)%LineLen != 0 {
		return nil, serrors.New("path length not a multiple of 4 bytes", "len", len(rawPath))
	}
	words := len(rawPath) / LineLen
	if words > MaxPathWords {
		return nil, serrors.New("path exceeds maximum word count", "words", words, "max", MaxPathWords)
	}
	h := Header{
		PathType:    PathTypeSCION,
		DstAddrType: AddrTypeIP,
		DstAddrLen:  AddrLen16,
		SrcAddrType: AddrTypeIP,
		SrcAddrLen:  AddrLen16,
		DstIA:       dstIA,
		SrcIA:       srcIA,
		Path:        rawPath,
	}
	h.HdrLen = uint8((FixedHdrLen + len(rawPath)) / LineLen)
	return &PathEntry{Header: h, RouterAddr: router, RouterPort: port}, nil
}

// Validate checks the header-length invariant: 4*HdrLen must equal
// FixedHdrLen + 4*len(Path)/4, i.e. the declared header length must
// exactly cover the fixed portion plus the path.
func (e *PathEntry) Validate() error {
	want := FixedHdrLen + len(e.Header.Path)
	got := e.Header.WireLen()
	if want != got {
		return serrors.New("header length invariant violated",
			"want_bytes", want, "hdrlen_bytes", got)
	}
	if e.RouterAddr == nil || len(e.RouterAddr) != net.IPv6len {
		return serrors.New("router address must be a 16-byte IPv6 address")
	}
	return nil
}
