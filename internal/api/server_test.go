package api_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruletree/ruletree/internal/api"
	"github.com/ruletree/ruletree/pkg/metrics"
)

func TestServerStartAndShutdown(t *testing.T) {
	h := newRouterHandler(t, metrics.NewRegistry(metrics.Config{}))
	router := api.NewRouter(h)
	server := api.NewServer(router, api.ServerConfig{Addr: ":0"})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Give the listener time to come up.
	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := server.Shutdown(ctx)
	require.NoError(t, err)

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}

func TestServerAccessors(t *testing.T) {
	h := newRouterHandler(t, metrics.NewRegistry(metrics.Config{}))
	router := api.NewRouter(h)
	server := api.NewServer(router, api.ServerConfig{Addr: "127.0.0.1:8941"})

	assert.Equal(t, "127.0.0.1:8941", server.Addr())
	assert.Equal(t, router, server.Router())
}
