// Package notify sends desktop notifications when a solve or sweep finishes.
// It uses github.com/gen2brain/beeep for cross-platform notification support.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/watertap-org/flowsheet-int/internal/events"
	"github.com/watertap-org/flowsheet-int/internal/logging"
)

// Title prefixes every notification.
const Title = "Flowsheet"

// sendFunc and alertFunc are replaced in tests.
var (
	sendFunc  = func(title, message string) error { return beeep.Notify(title, message, "") }
	alertFunc = func(title, message string) error { return beeep.Alert(title, message, "") }
)

// Notifier handles desktop notifications.
type Notifier struct {
	logger  *logging.Logger
	enabled bool
	cfg     Config
	mu      sync.RWMutex
}

// Config holds notification configuration.
type Config struct {
	// Enabled determines if notifications are sent.
	Enabled bool

	// ShowRunFinished notifies when a run completes successfully.
	ShowRunFinished bool

	// ShowRunFailed notifies when a run fails.
	ShowRunFailed bool
}

// DefaultConfig returns the default notification configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		ShowRunFinished: true,
		ShowRunFailed:   true,
	}
}

// NewNotifier creates a new notifier with the given configuration.
func NewNotifier(cfg *Config, logger *logging.Logger) *Notifier {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Notifier{
		logger:  logger,
		enabled: cfg.Enabled,
		cfg:     *cfg,
	}
}

// SetEnabled enables or disables notifications.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// IsEnabled returns whether notifications are enabled.
func (n *Notifier) IsEnabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.enabled
}

// RunFinished sends a notification for a completed solve or sweep.
func (n *Notifier) RunFinished(flowsheetID, mode string, elapsed time.Duration) {
	if !n.IsEnabled() || !n.cfg.ShowRunFinished {
		return
	}

	message := fmt.Sprintf("%s of %s finished in %s", runLabel(mode), truncate(flowsheetID, 40), elapsed.Round(time.Second))
	if err := sendFunc(Title, message); err != nil {
		n.logger.Warn().Err(err).Str("flowsheet", flowsheetID).Msg("Failed to send run finished notification")
	}
}

// RunFailed sends an alert for a failed solve or sweep.
func (n *Notifier) RunFailed(flowsheetID, mode, errorMsg string) {
	if !n.IsEnabled() || !n.cfg.ShowRunFailed {
		return
	}

	title := Title + " Alert"
	message := fmt.Sprintf("%s of %s failed:\n%s", runLabel(mode), truncate(flowsheetID, 40), truncate(errorMsg, 100))

	// beeep.Alert is more prominent on some platforms; fall back to a plain notification
	if err := alertFunc(title, message); err != nil {
		if err := sendFunc(title, message); err != nil {
			n.logger.Error().Err(err).Str("flowsheet", flowsheetID).Msg("Failed to send run failed notification")
		}
	}
}

// Watch sends a notification for every EventRunFinished on bus until ctx is
// done or the bus is closed. The returned channel is closed when Watch stops.
func (n *Notifier) Watch(ctx context.Context, bus *events.EventBus) <-chan struct{} {
	ch := bus.Subscribe(events.EventRunFinished)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer bus.Unsubscribe(events.EventRunFinished, ch)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				pe, ok := ev.(*events.PanelEvent)
				if !ok {
					continue
				}
				if pe.Err != nil {
					n.RunFailed(pe.FlowsheetID, pe.Mode, pe.Err.Error())
				} else {
					n.RunFinished(pe.FlowsheetID, pe.Mode, pe.Duration)
				}
			}
		}
	}()
	return done
}

func runLabel(mode string) string {
	if mode == "sweep" {
		return "Parameter sweep"
	}
	return "Solve"
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
