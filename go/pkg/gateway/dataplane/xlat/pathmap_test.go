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
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scionproto/scion-ip-gateway/go/lib/addr"
	"github.com/scionproto/scion-ip-gateway/go/lib/slayers"
)

func TestPathMapEntryLenMatchesStructLayout(t *testing.T) {
	// struct path_map_entry (bpf/scion.h): 28-byte scionhdr, path[255]
	// (4 bytes each), path_len (1 byte), router_addr[16], one byte of
	// compiler padding to realign router_port, router_port (2 bytes).
	assert.Equal(t, 28+255*4+1+16+1+2, pathMapEntryLen)
}

func TestEncodeScionHdrMatchesWireLayout(t *testing.T) {
	h := &slayers.Header{
		Version:      0,
		TrafficClass: 7,
		FlowID:       0xABCDE,
		NextHdr:      slayers.L4UDP,
		HdrLen:       15,
		PayloadLen:   64,
		PathType:     slayers.PathTypeSCION,
		DstAddrType:  slayers.AddrTypeIP,
		DstAddrLen:   slayers.AddrLen16,
		SrcAddrType:  slayers.AddrTypeIP,
		SrcAddrLen:   slayers.AddrLen16,
		DstIA:        addr.MustNewIsdAsn(1, 150),
		SrcIA:        addr.MustNewIsdAsn(2, 0xff00_0000_0110),
	}

	buf := make([]byte, scionHdrEntryLen)
	encodeScionHdr(buf, h)

	firstLine := binary.BigEndian.Uint32(buf[0:4])
	assert.Equal(t, uint8(firstLine>>28), h.Version)
	assert.Equal(t, uint8((firstLine>>20)&0xFF), h.TrafficClass)
	assert.Equal(t, firstLine&0xFFFFF, h.FlowID)
	assert.Equal(t, uint8(h.NextHdr), buf[4])
	assert.Equal(t, h.HdrLen, buf[5])
	assert.Equal(t, h.PayloadLen, binary.BigEndian.Uint16(buf[6:8]))
	assert.Equal(t, uint8(h.PathType), buf[8])

	gotDstIA, err := addr.ParseIsdAsn(buf[12:20])
	assert.NoError(t, err)
	assert.Equal(t, h.DstIA, gotDstIA)
	gotSrcIA, err := addr.ParseIsdAsn(buf[20:28])
	assert.NoError(t, err)
	assert.Equal(t, h.SrcIA, gotSrcIA)
}

func TestPathMapEntryOffsetsHoldPathAndRouter(t *testing.T) {
	rawPath := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	entry, err := slayers.NewPathEntry(
		addr.MustNewIsdAsn(1, 150), addr.MustNewIsdAsn(2, 32),
		rawPath, net.ParseIP("fc00::1"), 30041,
	)
	assert.NoError(t, err)

	v := make([]byte, pathMapEntryLen)
	encodeScionHdr(v[:scionHdrEntryLen], &entry.Header)
	words := len(entry.Header.Path) / 4
	copy(v[entryOffPath:entryOffPath+words*4], entry.Header.Path[:words*4])
	v[entryOffPathLen] = uint8(words)
	copy(v[entryOffRouterAddr:entryOffRouterAddr+16], entry.RouterAddr.To16())
	binary.BigEndian.PutUint16(v[entryOffRouterPort:entryOffRouterPort+2], entry.RouterPort)

	assert.Equal(t, uint8(len(rawPath)/4), v[entryOffPathLen])
	assert.Equal(t, rawPath, v[entryOffPath:entryOffPath+len(rawPath)])
	assert.Equal(t, []byte(entry.RouterAddr.To16()), []byte(v[entryOffRouterAddr:entryOffRouterAddr+16]))
	assert.Equal(t, entry.RouterPort, binary.BigEndian.Uint16(v[entryOffRouterPort:entryOffRouterPort+2]))
}
