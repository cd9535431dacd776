package levin

import (
	"context"
	"testing"
	"time"

	"github.com/ethpandaops/levin/pkg/portable"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingRequest struct {
	Nonce uint64
}

func (p *pingRequest) ToSection() (*portable.Section, error) {
	return portable.NewSection().Set("nonce", portable.Uint64(p.Nonce)), nil
}

func (p *pingRequest) FromSection(s *portable.Section) error {
	nonce, err := s.Uint64("nonce")
	if err != nil {
		return err
	}

	p.Nonce = nonce

	return nil
}

type pingResponse struct {
	Status string
	Nonce  uint64
}

func (p *pingResponse) ToSection() (*portable.Section, error) {
	return portable.NewSection().
		Set("status", portable.String(p.Status)).
		Set("nonce", portable.Uint64(p.Nonce)), nil
}

func (p *pingResponse) FromSection(s *portable.Section) error {
	status, err := s.Blob("status")
	if err != nil {
		return err
	}

	nonce, err := s.Uint64("nonce")
	if err != nil {
		return err
	}

	p.Status = string(status)
	p.Nonce = nonce

	return nil
}

var (
	testPing   = Command[pingRequest, pingResponse]{ID: 1003, Name: "ping"}
	testSilent = Command[pingRequest, pingResponse]{ID: 1004, Name: "silent"}
	testGossip = Notification[pingRequest]{ID: 2001, Name: "gossip"}
)

func TestTypedCommands(t *testing.T) {
	r := NewRegistry(logrus.New())

	gossip := make(chan uint64, 1)

	require.NoError(t, HandleCommand(r, testPing, func(_ context.Context, _ *Conn, req *pingRequest) (*pingResponse, error) {
		return &pingResponse{Status: "OK", Nonce: req.Nonce + 1}, nil
	}))
	require.NoError(t, HandleCommand(r, testSilent, func(context.Context, *Conn, *pingRequest) (*pingResponse, error) {
		return nil, nil
	}))
	require.NoError(t, HandleNotification(r, testGossip, func(_ context.Context, _ *Conn, req *pingRequest) error {
		gossip <- req.Nonce

		return nil
	}))

	require.ErrorIs(t, HandleCommand(r, testPing, func(context.Context, *Conn, *pingRequest) (*pingResponse, error) {
		return nil, nil
	}), ErrHandlerExists)

	client, _ := newPair(t, r)

	ctx := context.Background()

	t.Run("invoke", func(t *testing.T) {
		resp, err := Invoke(ctx, client, testPing, &pingRequest{Nonce: 41})
		require.NoError(t, err)
		assert.Equal(t, &pingResponse{Status: "OK", Nonce: 42}, resp)
	})

	t.Run("notify", func(t *testing.T) {
		require.NoError(t, Notify(ctx, client, testGossip, &pingRequest{Nonce: 7}))

		select {
		case n := <-gossip:
			assert.Equal(t, uint64(7), n)
		case <-time.After(5 * time.Second):
			t.Fatal("notification not delivered")
		}
	})

	t.Run("request missing fields", func(t *testing.T) {
		_, err := client.Invoke(ctx, testPing.ID, portable.NewSection())

		var codeErr *ReturnCodeError
		require.ErrorAs(t, err, &codeErr)
		assert.Equal(t, ReturnErrFormat, codeErr.Code)
	})

	t.Run("suppressed", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()

		_, err := Invoke(ctx, client, testSilent, &pingRequest{})
		require.ErrorIs(t, err, ErrInvokeTimeout)
	})
}

func TestInvokeDecodesResponse(t *testing.T) {
	client, peer := newRawPair(t)

	errc := make(chan error, 1)

	go func() {
		_, err := Invoke(context.Background(), client, testPing, &pingRequest{Nonce: 1})
		errc <- err
	}()

	req := peer.read()

	nonce, err := req.Body.Uint64("nonce")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nonce)

	// A response without the expected fields.
	peer.respond(testPing.ID, portable.NewSection())

	err = <-errc

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, testPing.ID, decodeErr.Command)
	require.ErrorIs(t, err, portable.ErrFieldMissing)
}
