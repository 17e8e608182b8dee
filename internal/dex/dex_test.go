package dex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/soltrade/internal/types"
)

func TestRegistryCoversAllProtocols(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	for _, p := range types.Protocols() {
		d, err := r.Get(p)
		require.NoError(t, err, "protocol %s", p)
		assert.Equal(t, p, d.Protocol())
		assert.NotEmpty(t, d.Name())
	}
}

func TestRegistryUnknownProtocol(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	_, err := r.Get(types.ProtocolUnknown)
	assert.ErrorIs(t, err, types.ErrUnknownProtocol)

	_, err = r.Get(types.Protocol(250))
	assert.ErrorIs(t, err, types.ErrUnknownProtocol)
}

func TestRegistryListStableOrder(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	list := r.List()
	require.Len(t, list, len(types.Protocols()))
	for i, p := range types.Protocols() {
		assert.Equal(t, p, list[i].Protocol())
	}
}
