package discovery

import (
	"context"

	ma "github.com/multiformats/go-multiaddr"
)

const (
	topicPeer = "peer"
)

// NodeFinder produces candidate peer addresses.
type NodeFinder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	OnPeer(ctx context.Context, handler func(ctx context.Context, addr ma.Multiaddr) error)
}

var (
	_ NodeFinder = &Static{}
	_ NodeFinder = &Manual{}
)
