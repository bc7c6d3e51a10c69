package network

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"alphatrak-observer/src/logger"
	"alphatrak-observer/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(timeoutSeconds int) *AsyncNetworkManager {
	cfg := &models.MConfig{}
	cfg.API.RequestTimeout = timeoutSeconds
	return NewAsyncNetworkManager(cfg, logger.NewLogger(nil, "NetworkTest"))
}

func TestDo_SendsHeadersAndBody(t *testing.T) {
	var gotBody, gotAuth, gotAgent string
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	nm := newTestManager(5)
	status, body, err := nm.Do(context.Background(), http.MethodPost, srv.URL+"/x",
		map[string]string{"Authorization": "bearer abc"}, []byte(`{"a":1}`))

	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, status)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, `{"a":1}`, gotBody)
	assert.Equal(t, "bearer abc", gotAuth)
	assert.Contains(t, gotAgent, "AlphaTRAK")
}

func TestDo_HonoursCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, _, err := newTestManager(5).Do(ctx, http.MethodGet, srv.URL, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCreateClient_TLSVerification(t *testing.T) {
	tlsConfig := func(nm *AsyncNetworkManager) *tls.Config {
		transport, ok := nm.createClient().Transport.(*http.Transport)
		require.True(t, ok)
		return transport.TLSClientConfig
	}

	assert.True(t, tlsConfig(newTestManager(5)).InsecureSkipVerify, "unset means verification off")

	verify := false
	cfg := &models.MConfig{}
	cfg.API.InsecureSkipVerify = &verify
	nm := NewAsyncNetworkManager(cfg, logger.NewLogger(nil, "NetworkTest"))
	assert.False(t, tlsConfig(nm).InsecureSkipVerify)
}

func TestTimeout_Default(t *testing.T) {
	assert.Equal(t, DefaultRequestTimeout, newTestManager(0).Timeout())
	assert.Equal(t, 7*time.Second, newTestManager(7).Timeout())
}
