package levin

import (
	"errors"
	"time"

	"github.com/ethpandaops/levin/pkg/portable"
)

// Config holds per-connection limits and timeouts.
type Config struct {
	// MaxBodySize bounds the body length accepted in a bucket header.
	MaxBodySize uint64 `yaml:"maxBodySize" default:"100000000"`
	// MaxDepth bounds section nesting in bodies.
	MaxDepth int `yaml:"maxDepth" default:"100"`
	// ReadBufferSize is the size of the buffer handed to the transport.
	ReadBufferSize int `yaml:"readBufferSize" default:"65536"`
	// OutboundQueueSize is the number of frames that may wait to be written.
	OutboundQueueSize int `yaml:"outboundQueueSize" default:"256"`
	// WriteTimeout bounds a single write call. An expired deadline leaves
	// the frame pending and the write is retried.
	WriteTimeout time.Duration `yaml:"writeTimeout" default:"10s"`
	// InvokeTimeout is applied to invocations whose context has no deadline.
	InvokeTimeout time.Duration `yaml:"invokeTimeout" default:"30s"`
	// IdleTimeout closes the connection after this long without inbound
	// data. Zero disables it.
	IdleTimeout time.Duration `yaml:"idleTimeout" default:"5m"`
}

// DefaultConfig returns a Config with the protocol defaults.
func DefaultConfig() Config {
	return Config{
		MaxBodySize:       DefaultMaxBodySize,
		MaxDepth:          portable.DefaultMaxDepth,
		ReadBufferSize:    64 * 1024,
		OutboundQueueSize: 256,
		WriteTimeout:      10 * time.Second,
		InvokeTimeout:     30 * time.Second,
		IdleTimeout:       5 * time.Minute,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MaxBodySize == 0 {
		return errors.New("max body size must be greater than 0")
	}

	if c.MaxDepth <= 0 {
		return errors.New("max depth must be greater than 0")
	}

	if c.ReadBufferSize <= 0 {
		return errors.New("read buffer size must be greater than 0")
	}

	if c.OutboundQueueSize <= 0 {
		return errors.New("outbound queue size must be greater than 0")
	}

	if c.WriteTimeout <= 0 {
		return errors.New("write timeout must be greater than 0")
	}

	if c.InvokeTimeout <= 0 {
		return errors.New("invoke timeout must be greater than 0")
	}

	if c.IdleTimeout < 0 {
		return errors.New("idle timeout must not be negative")
	}

	return nil
}

func (c *Config) codec() *portable.Codec {
	opts := portable.DefaultOptions()
	opts.MaxDepth = c.MaxDepth

	return portable.NewCodec(opts)
}
