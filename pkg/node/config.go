package node

import (
	"errors"
	"time"

	"github.com/ethpandaops/levin/pkg/cache"
	"github.com/ethpandaops/levin/pkg/discovery"
	"github.com/ethpandaops/levin/pkg/levin"
	"github.com/ethpandaops/levin/pkg/protocol"
	perrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the configuration for a Node.
type Config struct {
	// ListenAddr is the multiaddr inbound peers connect to. Empty disables
	// the listener.
	ListenAddr string `yaml:"listenAddr" default:"/ip4/0.0.0.0/tcp/18080"`
	// Network selects the network id: mainnet, testnet or stagenet.
	Network string `yaml:"network" default:"mainnet"`
	// PeerID identifies this node to peers. Zero picks a random id.
	PeerID uint64 `yaml:"peerId"`
	// MyPort is the port advertised to peers. Zero marks the node as not
	// reachable.
	MyPort uint32 `yaml:"myPort"`
	// Seeds are dialed on start, as multiaddrs or host:port pairs.
	Seeds            []string      `yaml:"seeds"`
	SeedInterval     time.Duration `yaml:"seedInterval" default:"5m"`
	MaxPeers         int           `yaml:"maxPeers" default:"32"`
	DialConcurrency  int           `yaml:"dialConcurrency" default:"4"`
	DialTimeout      time.Duration `yaml:"dialTimeout" default:"10s"`
	HandshakeTimeout time.Duration `yaml:"handshakeTimeout" default:"15s"`
	EnableRetry      bool          `yaml:"enableRetry" default:"true"`
	MaxRetryAttempts uint          `yaml:"maxRetryAttempts" default:"3"`
	RetryBackoff     time.Duration `yaml:"retryBackoff" default:"2s"`
	// TimedSyncInterval is how often chain state is exchanged with peers.
	TimedSyncInterval time.Duration `yaml:"timedSyncInterval" default:"60s"`
	// DialInterval is how often the address book is used to top up peers.
	DialInterval time.Duration `yaml:"dialInterval" default:"30s"`
	// AddressBookSize caps the number of known peer addresses.
	AddressBookSize int          `yaml:"addressBookSize" default:"1000"`
	Cooloff         cache.Config `yaml:"cooloff"`
	Levin           levin.Config `yaml:"levin"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:        "/ip4/0.0.0.0/tcp/18080",
		Network:           "mainnet",
		SeedInterval:      5 * time.Minute,
		MaxPeers:          32,
		DialConcurrency:   4,
		DialTimeout:       10 * time.Second,
		HandshakeTimeout:  15 * time.Second,
		EnableRetry:       true,
		MaxRetryAttempts:  3,
		RetryBackoff:      2 * time.Second,
		TimedSyncInterval: 60 * time.Second,
		DialInterval:      30 * time.Second,
		AddressBookSize:   1000,
		Cooloff:           cache.Config{TTL: 10 * time.Minute},
		Levin:             levin.DefaultConfig(),
	}
}

// ParseConfig decodes a YAML document over the defaults and validates it.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, perrors.Wrap(err, "failed to parse config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the Config.
func (c *Config) Validate() error {
	if _, err := protocol.NetworkByName(c.Network); err != nil {
		return perrors.Wrap(err, "network is invalid")
	}

	if c.ListenAddr != "" {
		if _, err := discovery.ParseAddress(c.ListenAddr); err != nil {
			return perrors.Wrap(err, "listen address is invalid")
		}
	}

	for _, seed := range c.Seeds {
		if _, err := discovery.ParseAddress(seed); err != nil {
			return perrors.Wrap(err, "seed is invalid")
		}
	}

	if c.MaxPeers <= 0 {
		return errors.New("max peers must be greater than 0")
	}

	if c.DialConcurrency <= 0 {
		return errors.New("dial concurrency must be greater than 0")
	}

	if c.DialTimeout <= 0 {
		return errors.New("dial timeout must be greater than 0")
	}

	if c.HandshakeTimeout <= 0 {
		return errors.New("handshake timeout must be greater than 0")
	}

	if c.TimedSyncInterval <= 0 {
		return errors.New("timed sync interval must be greater than 0")
	}

	if c.DialInterval <= 0 {
		return errors.New("dial interval must be greater than 0")
	}

	if c.AddressBookSize <= 0 {
		return errors.New("address book size must be greater than 0")
	}

	if c.Cooloff.TTL <= 0 {
		return errors.New("cooloff ttl must be greater than 0")
	}

	if c.EnableRetry && c.MaxRetryAttempts == 0 {
		return errors.New("max retry attempts must be greater than 0 when retries are enabled")
	}

	if err := c.Levin.Validate(); err != nil {
		return perrors.Wrap(err, "levin config is invalid")
	}

	return nil
}
