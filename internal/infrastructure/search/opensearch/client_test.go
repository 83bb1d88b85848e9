package opensearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	opensearchgo "github.com/opensearch-project/opensearch-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/CureAnalytics/internal/config"
	"github.com/turtacn/CureAnalytics/internal/testutil"
	"github.com/turtacn/CureAnalytics/pkg/errors"
)

func newTestServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

// newRawClient skips the connect-time ping.
func newRawClient(t *testing.T, url string) *Client {
	t.Helper()
	raw, err := opensearchgo.NewClient(opensearchgo.Config{Addresses: []string{url}, MaxRetries: 0, DisableRetry: true})
	require.NoError(t, err)
	return NewClientFrom(raw, nil)
}

func TestNewClient_RequiresAddresses(t *testing.T) {
	_, err := NewClient(context.Background(), config.OpenSearchConfig{}, ClientOptions{}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestNewClient_PingsCluster(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	c, err := NewClient(context.Background(), config.OpenSearchConfig{Addresses: []string{srv.URL}}, ClientOptions{}, nil)
	require.NoError(t, err)
	defer c.Close()
	assert.True(t, c.IsHealthy())
}

func TestNewClient_PingFailure(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := NewClient(context.Background(),
		config.OpenSearchConfig{Addresses: []string{srv.URL}},
		ClientOptions{}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSearchFailed))
}

func TestPing_MarksUnhealthy(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	log := testutil.NewMockLogger()
	raw, err := opensearchgo.NewClient(opensearchgo.Config{Addresses: []string{srv.URL}, DisableRetry: true})
	require.NoError(t, err)
	c := NewClientFrom(raw, log)
	require.True(t, c.IsHealthy())

	assert.Error(t, c.Ping(context.Background()))
	assert.False(t, c.IsHealthy())
	assert.True(t, log.HasMessage("warn", "opensearch ping returned error status"))
}
