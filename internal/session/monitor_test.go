package session

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/miss-electronics/proctor-agent/internal/model"
)

// manualClock steps time explicitly for debounce tests.
type manualClock struct {
	t time.Time
}

func (c *manualClock) now() time.Time        { return c.t }
func (c *manualClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestMonitor(t *testing.T) (*Monitor, *Controller, *manualClock) {
	t.Helper()

	ctrl := newTestController(t, testConfig(), &fakeGateway{paper: testPaper(2)}, newFakeProgress())
	startSession(t, ctrl)

	clock := &manualClock{t: time.Unix(1_700_000_000, 0)}
	m := NewMonitor(ctrl, 500*time.Millisecond, zerolog.Nop())
	m.now = clock.now
	return m, ctrl, clock
}

func TestMonitorDebounce(t *testing.T) {
	tests := []struct {
		name         string
		gaps         []time.Duration // gap before each signal after the first
		wantWarnings int
	}{
		{"burst collapses to one", []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, 1},
		{"spaced signals all count", []time.Duration{2 * time.Second, 2 * time.Second}, 3},
		{"exactly at debounce interval counts", []time.Duration{500 * time.Millisecond}, 2},
		{"just under debounce interval dropped", []time.Duration{499 * time.Millisecond}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ctrl, clock := newTestMonitor(t)

			m.Signal(ViolationVisibility)
			for _, gap := range tt.gaps {
				clock.advance(gap)
				m.Signal(ViolationVisibility)
			}

			if got := ctrl.Snapshot().WarningCount; got != tt.wantWarnings {
				t.Errorf("WarningCount = %d, want %d", got, tt.wantWarnings)
			}
		})
	}
}

func TestMonitorWarningCountMonotone(t *testing.T) {
	m, ctrl, clock := newTestMonitor(t)

	prev := 0
	kinds := []ViolationKind{
		ViolationVisibility, ViolationFocus, ViolationFullscreen,
		ViolationVisibility, ViolationFocus, ViolationFullscreen,
		ViolationVisibility, ViolationFocus,
	}
	for _, kind := range kinds {
		clock.advance(time.Second)
		m.Signal(kind)
		got := ctrl.Snapshot().WarningCount
		if got < prev {
			t.Fatalf("warning count decreased: %d -> %d", prev, got)
		}
		prev = got
	}
	if prev != len(kinds) {
		t.Errorf("final warning count = %d, want %d", prev, len(kinds))
	}
}

func TestMonitorScenarioTwoTabHides(t *testing.T) {
	// 2-question exam, free budget 1. Q1 answered "A", user on Q2, two
	// tab-hide events 2 seconds apart.
	cfg := testConfig()
	cfg.MaxWarnings = 1

	gw := &fakeGateway{paper: testPaper(2)}
	ctrl := newTestController(t, cfg, gw, newFakeProgress())
	startSession(t, ctrl)

	clock := &manualClock{t: time.Unix(1_700_000_000, 0)}
	m := NewMonitor(ctrl, 500*time.Millisecond, zerolog.Nop())
	m.now = clock.now

	if err := ctrl.Answer("A"); err != nil {
		t.Fatalf("Answer(A) error = %v", err)
	}
	if err := ctrl.GoToQuestion(2); err != nil {
		t.Fatalf("GoToQuestion(2) error = %v", err)
	}

	m.Signal(ViolationVisibility)
	clock.advance(2 * time.Second)
	m.Signal(ViolationVisibility)

	snap := ctrl.Snapshot()
	if snap.WarningCount != 2 {
		t.Errorf("WarningCount = %d, want 2", snap.WarningCount)
	}
	if snap.Progress[1] != model.StatusPenalized {
		t.Errorf("Progress[1] = %v, want penalized", snap.Progress[1])
	}
	if !snap.CurrentQuestion.IsPenalized {
		t.Error("Q2 penalty flag not set")
	}
	// Q1 keeps its answered state untouched.
	if snap.Progress[0] != model.StatusAnswered {
		t.Errorf("Progress[0] = %v, want answered", snap.Progress[0])
	}
}

func TestMonitorDebounceAdvancesWhileInactive(t *testing.T) {
	ctrl := newTestController(t, testConfig(), &fakeGateway{paper: testPaper(2)}, newFakeProgress())

	clock := &manualClock{t: time.Unix(1_700_000_000, 0)}
	m := NewMonitor(ctrl, 500*time.Millisecond, zerolog.Nop())
	m.now = clock.now

	// Signal before start: dropped by the controller, but the debounce
	// clock advanced.
	m.Signal(ViolationVisibility)
	startSession(t, ctrl)

	clock.advance(100 * time.Millisecond)
	m.Signal(ViolationVisibility)

	if got := ctrl.Snapshot().WarningCount; got != 0 {
		t.Errorf("WarningCount = %d, want 0 (second half of burst debounced)", got)
	}
}
