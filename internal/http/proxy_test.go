package http

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	ntlmssp "github.com/Azure/go-ntlmssp"

	"github.com/watertap-org/flowsheet-int/internal/config"
)

// TestProxyFuncWithBypass_EmptyNoProxy verifies that an empty noProxy always routes through proxy.
func TestProxyFuncWithBypass_EmptyNoProxy(t *testing.T) {
	proxyURL, _ := url.Parse("http://proxy.corp:8080")
	proxyFunc := proxyFuncWithBypass(proxyURL, "")

	req, _ := http.NewRequest("GET", "https://flowsheets.example.com/flowsheets/ro/list_configs", nil)
	result, err := proxyFunc(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil {
		t.Fatal("expected proxy URL, got nil (direct)")
	}
	if result.Host != "proxy.corp:8080" {
		t.Errorf("expected proxy host proxy.corp:8080, got %s", result.Host)
	}
}

// TestProxyFuncWithBypass_Patterns verifies domain, wildcard and CIDR bypass entries.
func TestProxyFuncWithBypass_Patterns(t *testing.T) {
	proxyURL, _ := url.Parse("http://proxy.corp:8080")
	proxyFunc := proxyFuncWithBypass(proxyURL, "*.lab.example.com, 10.0.0.0/8, solver.corp")

	tests := []struct {
		name       string
		url        string
		wantBypass bool
	}{
		{"wildcard match", "https://hpc.lab.example.com/flowsheets/", true},
		{"cidr match", "http://10.1.2.3:8001/flowsheets/", true},
		{"exact domain match", "https://solver.corp/flowsheets/", true},
		{"subdomain of exact domain", "https://api.solver.corp/flowsheets/", true},
		{"non-match", "https://flowsheets.example.org/flowsheets/", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest("GET", tt.url, nil)
			result, err := proxyFunc(req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantBypass && result != nil {
				t.Errorf("expected bypass (nil) for %s, got %v", tt.url, result)
			}
			if !tt.wantBypass && result == nil {
				t.Errorf("expected proxy for %s, got nil (bypass)", tt.url)
			}
		})
	}
}

func TestBuildProxyURL(t *testing.T) {
	cfg := &config.Config{ProxyHost: "proxy.corp", ProxyUser: "alice"}
	u := buildProxyURL(cfg)
	if u.Host != "proxy.corp:8080" {
		t.Errorf("expected default port 8080, got %s", u.Host)
	}
	if u.User != nil {
		t.Error("credentials must not be embedded without a password")
	}

	cfg.ProxyPassword = "pw"
	cfg.ProxyPort = 3128
	u = buildProxyURL(cfg)
	if u.Host != "proxy.corp:3128" || u.User == nil || u.User.Username() != "alice" {
		t.Errorf("unexpected proxy URL %s", u)
	}
}

func TestNeedsProxyPassword(t *testing.T) {
	tests := []struct {
		cfg  config.Config
		want bool
	}{
		{config.Config{ProxyMode: "no-proxy", ProxyUser: "a"}, false},
		{config.Config{ProxyMode: "basic", ProxyUser: "a"}, true},
		{config.Config{ProxyMode: "NTLM", ProxyUser: "a"}, true},
		{config.Config{ProxyMode: "ntlm", ProxyUser: "a", ProxyPassword: "p"}, false},
		{config.Config{ProxyMode: "basic"}, false},
	}
	for _, tt := range tests {
		if got := NeedsProxyPassword(&tt.cfg); got != tt.want {
			t.Errorf("NeedsProxyPassword(%+v) = %v, want %v", tt.cfg, got, tt.want)
		}
	}
}

func TestConfigureHTTPClientModes(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Timeout = 7 * time.Second

	client, err := ConfigureHTTPClient(cfg)
	if err != nil {
		t.Fatalf("no-proxy: %v", err)
	}
	if client.Timeout != 7*time.Second {
		t.Errorf("timeout = %v, want 7s", client.Timeout)
	}
	if tr, ok := client.Transport.(*http.Transport); !ok || tr.Proxy != nil {
		t.Errorf("no-proxy transport should have no proxy func: %#v", client.Transport)
	}

	cfg.ProxyMode = "ntlm"
	cfg.ProxyHost = "proxy.corp"
	client, err = ConfigureHTTPClient(cfg)
	if err != nil {
		t.Fatalf("ntlm: %v", err)
	}
	if _, ok := client.Transport.(ntlmssp.Negotiator); !ok {
		t.Errorf("ntlm mode should wrap transport in a negotiator, got %T", client.Transport)
	}

	cfg.ProxyMode = "socks"
	if _, err := ConfigureHTTPClient(cfg); err == nil {
		t.Error("expected error for unsupported proxy mode")
	}
}
