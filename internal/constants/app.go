package constants

import (
	"time"
)

// Backend defaults
const (
	// DefaultBackendURL - the flowsheet UI backend listens here when started locally
	DefaultBackendURL = "http://127.0.0.1:8001"

	// DefaultRequestTimeout - overall timeout for one backend call (5 minutes)
	// Solves and sweeps block until the backend finishes, so this is generous.
	DefaultRequestTimeout = 300 * time.Second

	// DefaultMaxRetries - retries for 5xx and connection errors
	DefaultMaxRetries = 3

	// RetryWaitMin / RetryWaitMax - backoff bounds for retryable requests
	RetryWaitMin = 500 * time.Millisecond
	RetryWaitMax = 10 * time.Second
)

// Rate limiting
const (
	// BackendRatePerSec - sustained request rate towards one backend
	BackendRatePerSec = 10.0

	// BackendBurstCapacity - requests allowed back to back before throttling
	BackendBurstCapacity = 20.0
)

// Event System
const (
	// EventBusDefaultBuffer - default buffer size for event channels
	EventBusDefaultBuffer = 256

	// EventBusMaxBuffer - upper bound for requested buffer sizes
	EventBusMaxBuffer = 4096
)

// Layout
const (
	// DefaultTerminalWidth - used when stdout is not a terminal
	DefaultTerminalWidth = 120

	// MinColumnWidth - below this the two columns are stacked
	MinColumnWidth = 30
)

// Logging
const (
	// LogFileMaxSizeMB / LogFileMaxBackups / LogFileMaxAgeDays - log rotation
	LogFileMaxSizeMB  = 10
	LogFileMaxBackups = 5
	LogFileMaxAgeDays = 30
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (30 seconds)
	HTTPTLSHandshakeTimeout = 30 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second
)
