package otlp

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_UnreachableCollector(t *testing.T) {
	// Grab a free port and release it, so nothing is listening there
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	_, err = Init(t.Context(), &Config{Endpoint: addr, ServiceName: "test", TraceRatio: 1})
	assert.ErrorIs(t, err, ErrCollectorUnreachable)
}

func Test_ResourceAttributes(t *testing.T) {
	assert := assert.New(t)

	res, err := newResource(t.Context(), "shm-writer")
	require.NoError(t, err)

	found := false
	for _, attr := range res.Attributes() {
		if attr.Key == "service.name" {
			found = true
			assert.Equal("shm-writer", attr.Value.AsString())
		}
	}
	assert.True(found)
}
