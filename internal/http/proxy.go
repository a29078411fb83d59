package http

import (
	"fmt"
	"log"
	nethttp "net/http"
	"net/url"
	"strings"

	"golang.org/x/net/http/httpproxy"

	"github.com/watertap-org/flowsheet-int/internal/config"
)

// buildProxyURL constructs a proxy URL from config
func buildProxyURL(cfg *config.Config) *url.URL {
	port := cfg.ProxyPort
	if port == 0 {
		port = 8080
	}

	proxyURL := &url.URL{
		Scheme: "http",
		Host:   fmt.Sprintf("%s:%d", cfg.ProxyHost, port),
	}

	// Only embed credentials if both user AND password are provided;
	// an empty password in the URL makes some proxies reject the request.
	if cfg.ProxyUser != "" && cfg.ProxyPassword != "" {
		proxyURL.User = url.UserPassword(cfg.ProxyUser, cfg.ProxyPassword)
	}

	return proxyURL
}

// proxyFuncWithBypass returns a proxy function that respects the NoProxy bypass list.
// If noProxy is empty, behaves identically to nethttp.ProxyURL.
// When noProxy is set, uses golang.org/x/net/http/httpproxy to match hosts/CIDRs.
func proxyFuncWithBypass(proxyURL *url.URL, noProxy string) func(*nethttp.Request) (*url.URL, error) {
	if noProxy == "" {
		return nethttp.ProxyURL(proxyURL)
	}
	cfg := httpproxy.Config{
		HTTPProxy:  proxyURL.String(),
		HTTPSProxy: proxyURL.String(),
		NoProxy:    noProxy,
	}
	proxyFunc := cfg.ProxyFunc()
	return func(req *nethttp.Request) (*url.URL, error) {
		result, err := proxyFunc(req.URL)
		if result == nil {
			log.Printf("[PROXY] Bypass: %s (direct connection)", req.URL.Host)
		} else {
			log.Printf("[PROXY] Proxied: %s → %s", req.URL.Host, result.Host)
		}
		return result, err
	}
}

// NeedsProxyPassword returns true if the proxy configuration requires a password
// but one has not been provided. Used by the CLI to decide whether to prompt.
func NeedsProxyPassword(cfg *config.Config) bool {
	mode := strings.ToLower(cfg.ProxyMode)
	if mode != "basic" && mode != "ntlm" {
		return false
	}
	return cfg.ProxyUser != "" && cfg.ProxyPassword == ""
}
