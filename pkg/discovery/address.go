package discovery

import (
	"fmt"
	"net"
	"net/netip"
	"strings"

	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
)

// ParseAddress accepts either a multiaddr ("/ip4/1.2.3.4/tcp/18080") or a
// host:port pair and returns it as a multiaddr.
func ParseAddress(s string) (ma.Multiaddr, error) {
	if strings.HasPrefix(s, "/") {
		addr, err := ma.NewMultiaddr(s)
		if err != nil {
			return nil, fmt.Errorf("failed to parse multiaddr %q: %w", s, err)
		}

		return addr, nil
	}

	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse address %q: %w", s, err)
	}

	proto := "dns"

	if ip, err := netip.ParseAddr(host); err == nil {
		proto = "ip4"
		if ip.Unmap().Is6() {
			proto = "ip6"
		}

		host = ip.Unmap().String()
	}

	return ma.NewMultiaddr(fmt.Sprintf("/%s/%s/tcp/%s", proto, host, port))
}

// FromAddrPort converts a TCP endpoint to a multiaddr.
func FromAddrPort(ap netip.AddrPort) (ma.Multiaddr, error) {
	return manet.FromNetAddr(net.TCPAddrFromAddrPort(ap))
}

// ToAddrPort converts a TCP multiaddr with a literal IP to an endpoint.
func ToAddrPort(addr ma.Multiaddr) (netip.AddrPort, error) {
	na, err := manet.ToNetAddr(addr)
	if err != nil {
		return netip.AddrPort{}, err
	}

	tcp, ok := na.(*net.TCPAddr)
	if !ok {
		return netip.AddrPort{}, fmt.Errorf("not a tcp address: %s", addr)
	}

	ap := tcp.AddrPort()

	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()), nil
}
