package gatewayconf_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scionproto/scion-ip-gateway/go/lib/addr"
	"github.com/scionproto/scion-ip-gateway/go/lib/gatewayconf"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "gw.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const validConfig = `
[log]
level = "info"

[translator]
isd_asn = "1-150"
gateway_addr = "fc00:0010::/64"
host_addr = "fc00:0020::/64"

[xdp]
interface = "eth0"
`

func TestLoadValidConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, validConfig)
	cfg, err := gatewayconf.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:30255", cfg.Sciond.Address)
	assert.Equal(t, "scion", cfg.Tap.Name)
	assert.Equal(t, 1, cfg.XDP.RxQueues)
	assert.Equal(t, addr.MustNewIsdAsn(1, 150), cfg.IsdAsn())
}

func TestLoadMissingRequiredFields(t *testing.T) {
	path := writeConfig(t, "[xdp]\ninterface = \"eth0\"\n")
	_, err := gatewayconf.Load(path)
	require.Error(t, err)
}

func TestLoadRejectsAsnOutside20Bits(t *testing.T) {
	body := `
[translator]
isd_asn = "1-ff00:0:110"
gateway_addr = "fc00:0010::/64"
host_addr = "fc00:0020::/64"

[xdp]
interface = "eth0"
`
	path := writeConfig(t, body)
	_, err := gatewayconf.Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMismatchedV4Addrs(t *testing.T) {
	body := `
[translator]
isd_asn = "1-150"
gateway_addr = "fc00:0010::/64"
host_addr = "fc00:0020::/64"
gateway_addr4 = "10.0.0.0/24"

[xdp]
interface = "eth0"
`
	path := writeConfig(t, body)
	_, err := gatewayconf.Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := gatewayconf.Load("/nonexistent/path.toml")
	require.Error(t, err)
}
