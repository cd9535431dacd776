package discovery

import (
	"context"
	"sync"
	"testing"
	"time"

	ma "github.com/multiformats/go-multiaddr"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu    sync.Mutex
	addrs []string
}

func (c *collector) handle(_ context.Context, addr ma.Multiaddr) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.addrs = append(c.addrs, addr.String())

	return nil
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.addrs)
}

func testSeeds(t *testing.T) []ma.Multiaddr {
	t.Helper()

	out := make([]ma.Multiaddr, 0, 2)

	for _, s := range []string{"/ip4/10.0.0.1/tcp/18080", "/ip4/10.0.0.2/tcp/18080"} {
		addr, err := ma.NewMultiaddr(s)
		require.NoError(t, err)

		out = append(out, addr)
	}

	return out
}

func TestStatic_AnnouncesOnce(t *testing.T) {
	ctx := context.Background()
	log := logrus.New()
	log.SetLevel(logrus.FatalLevel)

	s := NewStatic(testSeeds(t), 0, log)

	c := &collector{}
	s.OnPeer(ctx, c.handle)

	require.NoError(t, s.Start(ctx))
	// Starting twice is a no-op.
	require.NoError(t, s.Start(ctx))

	assert.Eventually(t, func() bool { return c.count() == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, s.Stop(ctx))

	c.mu.Lock()
	defer c.mu.Unlock()

	assert.ElementsMatch(t, []string{"/ip4/10.0.0.1/tcp/18080", "/ip4/10.0.0.2/tcp/18080"}, c.addrs)
}

func TestStatic_Reannounces(t *testing.T) {
	ctx := context.Background()

	s := NewStatic(testSeeds(t), 50*time.Millisecond, logrus.New())

	c := &collector{}
	s.OnPeer(ctx, c.handle)

	require.NoError(t, s.Start(ctx))
	defer func() {
		require.NoError(t, s.Stop(ctx))
	}()

	assert.Eventually(t, func() bool { return c.count() >= 4 }, 2*time.Second, 10*time.Millisecond)
}

func TestStatic_HandlerErrorIsLogged(t *testing.T) {
	ctx := context.Background()
	log := logrus.New()
	log.SetLevel(logrus.FatalLevel)

	s := NewStatic(testSeeds(t)[:1], 0, log)

	called := make(chan struct{}, 1)

	s.OnPeer(ctx, func(context.Context, ma.Multiaddr) error {
		called <- struct{}{}

		return assert.AnError
	})

	require.NoError(t, s.Start(ctx))

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}
}

func TestStatic_UpdateSeeds(t *testing.T) {
	ctx := context.Background()

	s := NewStatic(nil, 0, logrus.New())
	s.UpdateSeeds(testSeeds(t)[1:])

	c := &collector{}
	s.OnPeer(ctx, c.handle)

	require.NoError(t, s.Start(ctx))

	assert.Eventually(t, func() bool { return c.count() == 1 }, time.Second, 10*time.Millisecond)
}
