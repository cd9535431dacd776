package discovery

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "multiaddr", input: "/ip4/1.2.3.4/tcp/18080", want: "/ip4/1.2.3.4/tcp/18080"},
		{name: "ipv4 host port", input: "1.2.3.4:18080", want: "/ip4/1.2.3.4/tcp/18080"},
		{name: "ipv6 host port", input: "[2001:db8::1]:18080", want: "/ip6/2001:db8::1/tcp/18080"},
		{name: "dns host port", input: "node.example.com:18080", want: "/dns/node.example.com/tcp/18080"},
		{name: "missing port", input: "1.2.3.4", wantErr: true},
		{name: "bad multiaddr", input: "/ip4/nope/tcp/1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := ParseAddress(tt.input)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, addr.String())
		})
	}
}

func TestAddrPortConversion(t *testing.T) {
	ap := netip.MustParseAddrPort("10.1.2.3:28080")

	addr, err := FromAddrPort(ap)
	require.NoError(t, err)
	assert.Equal(t, "/ip4/10.1.2.3/tcp/28080", addr.String())

	back, err := ToAddrPort(addr)
	require.NoError(t, err)
	assert.Equal(t, ap, back)

	dns, err := ParseAddress("node.example.com:18080")
	require.NoError(t, err)

	_, err = ToAddrPort(dns)
	require.Error(t, err)
}
