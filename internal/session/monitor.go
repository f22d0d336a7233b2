package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ViolationKind identifies which secure-context signal was observed.
type ViolationKind string

const (
	ViolationVisibility ViolationKind = "visibility"
	ViolationFocus      ViolationKind = "focus"
	ViolationFullscreen ViolationKind = "fullscreen"
)

// Describe renders the violation for user-facing warning messages.
func (k ViolationKind) Describe() string {
	switch k {
	case ViolationFullscreen:
		return "exited Full Screen mode"
	default:
		return "switched tabs or lost focus"
	}
}

// Monitor debounces secure-context violation signals before forwarding them
// to the session controller. A single user action (alt-tab) fires several
// host events within milliseconds; only the first inside the debounce
// interval counts. The monitor produces only side effects and never blocks.
type Monitor struct {
	ctrl     *Controller
	debounce time.Duration
	now      func() time.Time
	log      zerolog.Logger

	mu           sync.Mutex
	lastAccepted time.Time
}

// NewMonitor creates a Monitor wired to the controller.
func NewMonitor(ctrl *Controller, debounce time.Duration, log zerolog.Logger) *Monitor {
	return &Monitor{
		ctrl:     ctrl,
		debounce: debounce,
		now:      time.Now,
		log:      log.With().Str("component", "monitor").Logger(),
	}
}

// Signal processes one observed violation signal. Signals arriving within
// the debounce interval of the previously accepted one are dropped. The
// debounce clock advances even while the session is inactive, so a burst
// straddling activation still collapses to one violation.
func (m *Monitor) Signal(kind ViolationKind) {
	m.mu.Lock()
	now := m.now()
	if now.Sub(m.lastAccepted) < m.debounce {
		m.mu.Unlock()
		m.log.Debug().Str("kind", string(kind)).Msg("Signal debounced")
		return
	}
	m.lastAccepted = now
	m.mu.Unlock()

	m.ctrl.recordViolation(kind)
}
