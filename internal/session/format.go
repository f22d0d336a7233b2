package session

import (
	"fmt"
	"math"
)

// donutRadius matches the front end's circular timer geometry. The arc
// offset is precomputed here so the renderer stays stateless.
const donutRadius = 48.0

// formatClock renders seconds as h:mm:ss, or mm:ss under an hour.
func formatClock(sec int) string {
	if sec < 0 {
		sec = 0
	}
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// formatDuration renders seconds as a human-readable limit for the
// instruction panel, e.g. "1 Hour(s) 30 Minute(s)".
func formatDuration(sec int) string {
	h := sec / 3600
	m := (sec % 3600) / 60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%d Hour(s) %d Minute(s)", h, m)
	case h > 0:
		return fmt.Sprintf("%d Hour(s)", h)
	case m > 0:
		return fmt.Sprintf("%d Minute(s)", m)
	default:
		return "Less than a minute"
	}
}

// progressOffset computes the stroke-dash offset for the circular timer:
// a full circle at zero remaining, no offset when all time remains.
func progressOffset(remaining, total int) float64 {
	perimeter := 2 * math.Pi * donutRadius
	if total <= 0 {
		return perimeter
	}
	pct := float64(remaining) / float64(total)
	if pct < 0 {
		pct = 0
	}
	if pct > 1 {
		pct = 1
	}
	return perimeter * (1 - pct)
}
