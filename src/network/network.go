package network

import (
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/bsouthga/gop-primary-twitter-fun/src/helpers"
	"github.com/bsouthga/gop-primary-twitter-fun/src/interfaces"
	"github.com/bsouthga/gop-primary-twitter-fun/src/logger"
	"github.com/bsouthga/gop-primary-twitter-fun/src/models"
)

type AsyncNetworkManager struct {
	Config       *models.MConfig
	ProxyManager interfaces.IProxyManager
	Logger       *logger.Logger

	// Guards client: proxy rotation swaps it while concurrent Get calls
	// (poll and market refresh run in parallel) read it.
	mu     sync.RWMutex
	client *http.Client
}

// -----------------------------------------------------------------------------

func NewAsyncNetworkManager(cfg *models.MConfig, log *logger.Logger) *AsyncNetworkManager {
	var proxies []string
	if cfg.Network.Enabled {
		proxies = cfg.Network.Proxies
	}

	nm := &AsyncNetworkManager{
		Config:       cfg,
		ProxyManager: helpers.NewProxyManager(proxies),
		Logger:       log,
	}
	nm.client = nm.createClient()
	return nm
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) createClient() *http.Client {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
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
		Timeout:   time.Duration(nm.Config.Network.RequestTimeout) * time.Second,
	}
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) rotateProxy() {
	if !nm.ProxyManager.HasProxies() {
		return
	}

	nm.ProxyManager.RotateProxy()

	rebuilt := nm.createClient()
	nm.mu.Lock()
	nm.client = rebuilt
	nm.mu.Unlock()
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) httpClient() *http.Client {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	return nm.client
}

// -----------------------------------------------------------------------------

// Get performs a GET request with retries and proxy rotation.
func (nm *AsyncNetworkManager) Get(urlStr string, params map[string]string) ([]byte, error) {
	reqUrl, err := url.Parse(urlStr)
	if err != nil {
		return nil, err
	}

	q := reqUrl.Query()
	for k, v := range params {
		q.Add(k, v)
	}
	reqUrl.RawQuery = q.Encode()

	finalUrl := reqUrl.String()

	attempts := nm.Config.Network.MaxRetries + 1
	attempt := 0

	res, err := helpers.RetryWithBackoff("GET "+finalUrl, attempts, time.Second, func() (interface{}, error) {
		attempt++
		if attempt > 1 {
			nm.rotateProxy()
		}
		return nm.fetchOnce(finalUrl, attempt, attempts)
	})
	if err != nil {
		return nil, &helpers.NetworkError{TrackerError: helpers.TrackerError{
			Message: "max retries exceeded",
			Cause:   err,
		}}
	}

	return res.([]byte), nil
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) fetchOnce(finalUrl string, attempt, attempts int) ([]byte, error) {
	req, err := http.NewRequest("GET", finalUrl, nil)
	if err != nil {
		return nil, err
	}

	// Poll and market pages block default Go clients; rotate agents.
	req.Header.Set("User-Agent", nm.ProxyManager.GetUserAgent())

	resp, err := nm.httpClient().Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == 429 || resp.StatusCode == 403 {
		resp.Body.Close()
		nm.Logger.Info("Request blocked (%d). Rotating proxy.", resp.StatusCode)

		// If we are getting blocked repeatedly, try to scrape new proxies
		if attempt == attempts-1 && nm.Config.Network.Enabled {
			nm.Logger.Warning("Repeated blocks. Attempting to scrape new proxies...")
			count, refreshErr := nm.ProxyManager.RefreshProxies()
			if refreshErr == nil && count > 0 {
				nm.Logger.Info("Refreshed %d proxies. Retrying...", count)
				nm.rotateProxy()
			} else {
				nm.Logger.Error("Failed to refresh proxies: %v", refreshErr)
			}
		}
		return nil, fmt.Errorf("blocked (status %d)", resp.StatusCode)
	}

	if resp.StatusCode != 200 {
		resp.Body.Close()
		return nil, fmt.Errorf("bad status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	return body, err
}
