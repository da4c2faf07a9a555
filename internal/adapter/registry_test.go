package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRoutesBySource(t *testing.T) {
	slack := NewNullTransport("slack")
	telegram := NewNullTransport("telegram")
	r := NewRegistry(slack, telegram)

	got, ok := r.Lookup("telegram")
	require.True(t, ok)
	assert.Same(t, telegram, got.(*NullTransport))

	got, ok = r.Lookup("slack")
	require.True(t, ok)
	assert.Same(t, slack, got.(*NullTransport))
}

func TestRegistrySoleTransportServesAnySource(t *testing.T) {
	only := NewNullTransport("slack")
	r := NewRegistry(only)

	got, ok := r.Lookup("")
	require.True(t, ok)
	assert.Same(t, only, got.(*NullTransport))

	got, ok = r.Lookup("telegram")
	require.True(t, ok)
	assert.Same(t, only, got.(*NullTransport))
}

func TestRegistryUnknownSourceAmongSeveralFails(t *testing.T) {
	r := NewRegistry(NewNullTransport("slack"), NewNullTransport("telegram"))

	_, ok := r.Lookup("cli")
	assert.False(t, ok)
	_, ok = r.Lookup("")
	assert.False(t, ok)
}
