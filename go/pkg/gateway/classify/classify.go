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

// Package classify implements the prefix classifier (component B): the
// pure, allocation-free predicate and key extraction the fast path runs
// on every packet's address before doing anything else. Grounded on
// scion_prefix_match/get_map_key in the original bpf/scion.h.
package classify

import "net"

// ULAPrefixByte is the first octet of the reserved SCION ULA overlay
// (fc00::/8).
const ULAPrefixByte = 0xFC

// MapKey is the 32-bit path-cache key: 12-bit ISD followed by 20-bit AS,
// derived from bytes 1..4 of an IPv6 address whose top byte is
// ULAPrefixByte. Widening this to the full 48-bit ASN is an open
// question the translator resolves at configuration time instead (see
// gatewayconf); the truncation itself is not silently patched here.
type MapKey uint32

// IsScionPrefix reports whether addr's top byte marks it as living in
// the SCION ULA overlay. addr must be a 16-byte IPv6 address.
func IsScionPrefix(addr []byte) bool {
	return len(addr) >= 1 && addr[0] == ULAPrefixByte
}

// IsScionPrefixIP is the net.IP-typed convenience form of IsScionPrefix.
func IsScionPrefixIP(addr net.IP) bool {
	v6 := addr.To16()
	return v6 != nil && IsScionPrefix(v6)
}

// Key extracts the MapKey from addr without checking the ULA prefix;
// callers must call IsScionPrefix first. addr must be at least 5 bytes.
// Mirrors get_scion_addr/get_map_key: (ntohl(word0)<<8) | (ntohl(word1)>>24),
// i.e. bytes 1..4 read big-endian.
func Key(addr []byte) MapKey {
	return MapKey(uint32(addr[1])<<24 | uint32(addr[2])<<16 | uint32(addr[3])<<8 | uint32(addr[4]))
}

// ISD returns the 12-bit ISD component of the key.
func (k MapKey) ISD() uint16 {
	return uint16(k>>20) & 0xFFF
}

// AS returns the 20-bit truncated AS component of the key.
func (k MapKey) AS() uint32 {
	return uint32(k) & 0xFFFFF
}

// NewMapKey packs an ISD and a (already truncated to 20 bits) AS number
// into a MapKey, mirroring SADDR_SET_ISD/SADDR_SET_AS.
func NewMapKey(isd uint16, as uint32) MapKey {
	return MapKey(uint32(isd&0xFFF)<<20 | (as & 0xFFFFF))
}

// Bytes renders k in network-order big-endian form.
func (k MapKey) Bytes() [4]byte {
	return [4]byte{byte(k >> 24), byte(k >> 16), byte(k >> 8), byte(k)}
}
