package slayers_test

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scionproto/scion-ip-gateway/go/lib/addr"
	"github.com/scionproto/scion-ip-gateway/go/lib/slayers"
)

func TestNewEmptyPathEntryValidates(t *testing.T) {
	e := slayers.NewEmptyPathEntry(
		addr.MustNewIsdAsn(1, 150), addr.MustNewIsdAsn(1, 151), net.ParseIP("fc00::1"), 50000,
	)
	require.NoError(t, e.Validate())
	assert.Equal(t, slayers.PathTypeEmpty, e.Header.PathType)
	assert.Equal(t, [16]byte{}, e.Header.DstHostAddr, "template host addrs stay zero until translate time")
}

func TestNewPathEntryValidates(t *testing.T) {
	path := make([]byte, 32) // 8 words
	e, err := slayers.NewPathEntry(
		addr.MustNewIsdAsn(1, 150), addr.MustNewIsdAsn(2, 0xff00_0000_0110),
		path, net.ParseIP("fc00::1"), 50000,
	)
	require.NoError(t, err)
	require.NoError(t, e.Validate())
}

func TestNewPathEntryRejectsUnalignedPath(t *testing.T) {
	_, err := slayers.NewPathEntry(
		addr.MustNewIsdAsn(1, 150), addr.MustNewIsdAsn(1, 151),
		make([]byte, 7), net.ParseIP("fc00::1"), 50000,
	)
	require.Error(t, err)
}

func TestNewPathEntryRejectsOversizedPath(t *testing.T) {
	_, err := slayers.NewPathEntry(
		addr.MustNewIsdAsn(1, 150), addr.MustNewIsdAsn(1, 151),
		make([]byte, (slayers.MaxPathWords+1)*4), net.ParseIP("fc00::1"), 50000,
	)
	require.Error(t, err)
}

func TestValidateRejectsBadRouterAddr(t *testing.T) {
	e := slayers.NewEmptyPathEntry(
		addr.MustNewIsdAsn(1, 150), addr.MustNewIsdAsn(1, 151), net.ParseIP("10.0.0.1"), 50000,
	)
	require.Error(t, e.Validate())
}
