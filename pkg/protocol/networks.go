package protocol

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// NetworkID identifies the network a node belongs to. Peers with a different
// id are rejected during the handshake.
type NetworkID [16]byte

var (
	MainnetID = NetworkID{
		0x12, 0x30, 0xF1, 0x71, 0x61, 0x04, 0x41, 0x61,
		0x17, 0x31, 0x00, 0x82, 0x16, 0xA1, 0xA1, 0x10,
	}
	TestnetID = NetworkID{
		0x12, 0x30, 0xF1, 0x71, 0x61, 0x04, 0x41, 0x61,
		0x17, 0x31, 0x00, 0x82, 0x16, 0xA1, 0xA1, 0x11,
	}
	StagenetID = NetworkID{
		0x12, 0x30, 0xF1, 0x71, 0x61, 0x04, 0x41, 0x61,
		0x17, 0x31, 0x00, 0x82, 0x16, 0xA1, 0xA1, 0x12,
	}
)

// Network describes a known network.
type Network struct {
	Name string
	ID   NetworkID
	// DefaultPort is the default peer-to-peer port.
	DefaultPort uint16
}

var networks = []Network{
	{Name: "mainnet", ID: MainnetID, DefaultPort: 18080},
	{Name: "testnet", ID: TestnetID, DefaultPort: 28080},
	{Name: "stagenet", ID: StagenetID, DefaultPort: 38080},
}

// NetworkByName returns the known network called name.
func NetworkByName(name string) (Network, error) {
	for _, n := range networks {
		if strings.EqualFold(n.Name, name) {
			return n, nil
		}
	}

	return Network{}, fmt.Errorf("unknown network %q", name)
}

// Networks returns the known networks.
func Networks() []Network {
	out := make([]Network, len(networks))
	copy(out, networks)

	return out
}

func (id NetworkID) String() string {
	for _, n := range networks {
		if n.ID == id {
			return n.Name
		}
	}

	return hex.EncodeToString(id[:])
}
