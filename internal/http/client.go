// Package http builds the HTTP client used to reach the flowsheet backend.
package http

import (
	"crypto/tls"
	"fmt"
	"net"
	nethttp "net/http"
	"strings"

	ntlmssp "github.com/Azure/go-ntlmssp"

	"github.com/watertap-org/flowsheet-int/internal/config"
	"github.com/watertap-org/flowsheet-int/internal/constants"
)

// ConfigureHTTPClient returns a client honouring cfg's proxy mode:
//   - no-proxy (or empty): direct connections
//   - system: HTTP_PROXY / HTTPS_PROXY / NO_PROXY from the environment
//   - basic: explicit proxy, credentials embedded in the proxy URL
//   - ntlm: explicit proxy wrapped in an NTLM negotiator
//
// The overall client timeout is cfg.Timeout; solves block for the whole
// backend computation so it should stay generous.
func ConfigureHTTPClient(cfg *config.Config) (*nethttp.Client, error) {
	transport := &nethttp.Transport{
		DialContext: (&net.Dialer{
			Timeout:   constants.HTTPDialTimeout,
			KeepAlive: constants.HTTPDialKeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout:   constants.HTTPTLSHandshakeTimeout,
		ExpectContinueTimeout: constants.HTTPExpectContinueTimeout,
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultRequestTimeout
	}

	switch strings.ToLower(cfg.ProxyMode) {
	case "no-proxy", "":
		transport.Proxy = nil

	case "system":
		transport.Proxy = nethttp.ProxyFromEnvironment

	case "basic", "ntlm":
		// Fall back to a direct connection if the host is missing so that
		// commands like "config init" can still run and fix the setting.
		if cfg.ProxyHost == "" {
			fmt.Printf("[WARN] Proxy mode is %s but host is missing - falling back to no-proxy mode\n", cfg.ProxyMode)
			transport.Proxy = nil
			break
		}
		if cfg.ProxyUser != "" && cfg.ProxyPassword == "" {
			fmt.Printf("[WARN] Proxy user configured but password missing - proxy auth disabled until password is set\n")
		}
		transport.Proxy = proxyFuncWithBypass(buildProxyURL(cfg), cfg.NoProxy)

		if strings.EqualFold(cfg.ProxyMode, "ntlm") {
			return &nethttp.Client{
				Transport: ntlmssp.Negotiator{RoundTripper: transport},
				Timeout:   timeout,
			}, nil
		}

	default:
		return nil, fmt.Errorf("unsupported proxy mode: %s", cfg.ProxyMode)
	}

	return &nethttp.Client{
		Transport: transport,
		Timeout:   timeout,
	}, nil
}
