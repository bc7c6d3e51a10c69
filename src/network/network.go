package network

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"alphatrak-observer/src/helpers"
	"alphatrak-observer/src/logger"
	"alphatrak-observer/src/models"
)

// DefaultRequestTimeout applies when the config leaves api.timeout unset.
const DefaultRequestTimeout = 30 * time.Second

type AsyncNetworkManager struct {
	Config       *models.MConfig
	ProxyManager *helpers.ProxyManager
	Logger       *logger.Logger

	mu     sync.RWMutex
	client *http.Client
}

// -----------------------------------------------------------------------------

func NewAsyncNetworkManager(cfg *models.MConfig, log *logger.Logger) *AsyncNetworkManager {
	nm := &AsyncNetworkManager{
		Config:       cfg,
		ProxyManager: helpers.NewProxyManager(cfg.Network.Proxies, cfg.API.UserAgent),
		Logger:       log,
	}
	nm.client = nm.createClient()
	return nm
}

// -----------------------------------------------------------------------------

// Timeout is the fixed per-request timeout.
func (nm *AsyncNetworkManager) Timeout() time.Duration {
	if nm.Config.API.RequestTimeout > 0 {
		return time.Duration(nm.Config.API.RequestTimeout) * time.Second
	}
	return DefaultRequestTimeout
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) createClient() *http.Client {
	transport := &http.Transport{
		// The vendor endpoint is used with verification disabled.
		TLSClientConfig: &tls.Config{InsecureSkipVerify: nm.Config.API.SkipTLSVerify()},
	}

	if nm.ProxyManager.HasProxies() {
		proxyStr, err := nm.ProxyManager.GetCurrentProxy()
		if err == nil && proxyStr != "" {
			proxyURL, err := url.Parse(proxyStr)
			if err == nil {
				transport.Proxy = http.ProxyURL(proxyURL)
			}
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   nm.Timeout(),
	}
}

// -----------------------------------------------------------------------------

// RotateProxy switches to the next configured proxy for subsequent requests.
func (nm *AsyncNetworkManager) RotateProxy() {
	if !nm.ProxyManager.HasProxies() {
		return
	}

	nm.ProxyManager.RotateProxy()
	client := nm.createClient()
	nm.mu.Lock()
	nm.client = client
	nm.mu.Unlock()
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) GetUserAgent() string {
	return nm.ProxyManager.GetUserAgent()
}

// -----------------------------------------------------------------------------

// Do performs a single request. Transport failures rotate the proxy so the
// next scheduled attempt goes through a different one.
func (nm *AsyncNetworkManager) Do(ctx context.Context, method, urlStr string, headers map[string]string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, urlStr, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("building request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", nm.GetUserAgent())
	}

	nm.mu.RLock()
	client := nm.client
	nm.mu.RUnlock()

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		nm.Logger.Debug("%s %s failed after %v: %v", method, req.URL.Path, time.Since(start).Truncate(time.Millisecond), err)
		if ctx.Err() == nil {
			nm.RotateProxy()
		}
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response body: %w", err)
	}
	nm.Logger.Debug("%s %s -> %d (%d bytes, %v)", method, req.URL.Path, resp.StatusCode, len(data), time.Since(start).Truncate(time.Millisecond))
	return resp.StatusCode, data, nil
}
