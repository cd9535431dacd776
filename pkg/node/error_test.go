package node

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPeerError(t *testing.T) {
	err := ErrPeerNetworkMismatch.WithDetails("1230f171610441611731008216a1a111")

	assert.Equal(t, "wrong network id: 1230f171610441611731008216a1a111", err.Error())
	assert.Equal(t, ErrPeerNetworkMismatchType, err.Type())
	assert.ErrorIs(t, err, ErrPeerNetworkMismatch)
	assert.NotErrorIs(t, err, ErrPeerSelf)

	wrapped := fmt.Errorf("connect: %w", err)
	assert.ErrorIs(t, wrapped, ErrPeerNetworkMismatch)
	assert.Equal(t, ErrPeerNetworkMismatchType, errorType(wrapped))

	assert.Equal(t, "unknown", errorType(fmt.Errorf("plain")))
}
