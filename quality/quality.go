// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package quality assesses per-channel signal quality from a rolling
// window of raw samples. The verdicts are advisory only; they never
// halt acquisition.
package quality

import (
	"sync"

	"github.com/kortschak/neuroplay/internal/ring"
)

// Status is a channel quality verdict.
type Status uint8

const (
	NotValid Status = iota
	Warn
	Valid
)

func (s Status) String() string {
	switch s {
	case Valid:
		return "VALID"
	case Warn:
		return "WARN"
	case NotValid:
		return "NOT_VALID"
	default:
		return "NOT_VALID"
	}
}

// Amplitude thresholds in µV. A well-seated electrode stays inside
// validAmplitude; anything beyond railAmplitude is railed or picking
// up gross artifact.
const (
	validAmplitude = 250
	railAmplitude  = 1000
)

// varianceFloor is the window variance below which a channel is
// considered flat (open circuit or pinned at rail).
const varianceFloor = 1e-6 // µV²

// Monitor keeps a rolling window of raw samples per channel and
// classifies each channel on demand.
type Monitor struct {
	mu       sync.Mutex
	channels []string
	windows  []*ring.Buffer[float64]
}

// NewMonitor returns a Monitor for the named channels keeping window
// samples per channel. The window should cover about one second of
// data at the device sampling rate.
func NewMonitor(channels []string, window int) *Monitor {
	m := Monitor{
		channels: channels,
		windows:  make([]*ring.Buffer[float64], len(channels)),
	}
	for i := range m.windows {
		m.windows[i] = ring.NewBuffer[float64](window)
	}
	return &m
}

// Observe appends one raw multi-channel sample to the rolling
// windows. Values beyond the channel count are ignored.
func (m *Monitor) Observe(raw []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, w := range m.windows {
		if i >= len(raw) {
			break
		}
		w.Write(raw[i : i+1])
	}
}

// Statuses classifies every channel from its current window. The
// result is recomputed on each call and never retained.
func (m *Monitor) Statuses() map[string]Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	statuses := make(map[string]Status, len(m.channels))
	for i, name := range m.channels {
		statuses[name] = classify(m.windows[i].Values())
	}
	return statuses
}

// StatusFor classifies a single named channel. Unknown channels are
// NotValid.
func (m *Monitor) StatusFor(channel string) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, name := range m.channels {
		if name == channel {
			return classify(m.windows[i].Values())
		}
	}
	return NotValid
}

// Reset discards all windows. Used on reconnect so stale data never
// leaks into a new session.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.windows {
		w.Reset()
	}
}

func classify(window []float64) Status {
	if len(window) == 0 {
		return NotValid
	}
	var sum, peak float64
	for _, v := range window {
		sum += v
		if a := abs(v); a > peak {
			peak = a
		}
	}
	mean := sum / float64(len(window))
	var variance float64
	for _, v := range window {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(window))

	switch {
	case peak > railAmplitude:
		return NotValid
	case variance < varianceFloor:
		return NotValid
	case peak <= validAmplitude:
		return Valid
	default:
		return Warn
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
