package addr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scionproto/scion-ip-gateway/go/lib/addr"
)

func TestParseIsdAsnString(t *testing.T) {
	testCases := map[string]struct {
		input   string
		want    addr.IsdAsn
		wantErr bool
	}{
		"decimal ASN": {
			input: "1-150",
			want:  addr.MustNewIsdAsn(1, 150),
		},
		"hex group ASN": {
			// S6: IsdAsn::parse("1-ff00:0:110") == (1<<48) | 0xff00_0000_0110
			input: "1-ff00:0:110",
			want:  addr.IsdAsn((uint64(1) << 48) | 0xff00_0000_0110),
		},
		"missing separator": {
			input:   "1150",
			wantErr: true,
		},
		"isd out of range": {
			input:   "99999999999-150",
			wantErr: true,
		},
		"asn too many groups": {
			input:   "1-ff00:0:110:1",
			wantErr: true,
		},
		"asn group overflow": {
			input:   "1-ffff1:0:0",
			wantErr: true,
		},
		"decimal asn overflow": {
			input:   "1-4294967296",
			wantErr: true,
		},
	}
	for name, tc := range testCases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			got, err := addr.ParseIsdAsnString(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEmitParseRoundTrip(t *testing.T) {
	values := []addr.IsdAsn{
		0,
		addr.MustNewIsdAsn(1, 1),
		addr.MustNewIsdAsn(addr.MaxIsd, addr.MaxAsn),
		addr.MustNewIsdAsn(64, 0xff0000000110),
	}
	for _, v := range values {
		wire := v.Emit()
		got, err := addr.ParseIsdAsn(wire[:])
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestIsUnspecified(t *testing.T) {
	assert.True(t, addr.IsdAsn(0).IsUnspecified())
	assert.True(t, addr.MustNewIsdAsn(1, 0).IsUnspecified())
	assert.True(t, addr.MustNewIsdAsn(0, 1).IsUnspecified())
	assert.False(t, addr.MustNewIsdAsn(1, 1).IsUnspecified())
}

func TestString(t *testing.T) {
	assert.Equal(t, "1-150", addr.MustNewIsdAsn(1, 150).String())
	assert.Equal(t, "1-ff00:0:110", addr.MustNewIsdAsn(1, 0xff00_0000_0110).String())
}
