// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package timeline reconstructs a gap-free, correctly-timed sample
// stream from a lossy packet transport.
//
// The headset tags every decoded sample batch with a device-side
// sequence number. The Synchronizer tracks the expected sequence and
// emits exactly one sample per sampling interval: lost intervals are
// covered by zero-filled synthetic samples so the wall-clock
// alignment of every subsequent sample is preserved, and duplicate
// or out-of-order batches are dropped. Emitted sample indices are
// strictly contiguous and monotonically increasing.
package timeline

import (
	"github.com/rs/zerolog"

	"github.com/kortschak/neuroplay/internal/telemetry"
)

// DefaultMaxFill is the largest gap, in samples, covered by a
// synthetic run. Larger gaps start a fresh synchronization epoch
// instead of emitting an unbounded run; at 125 Hz this is five
// seconds.
const DefaultMaxFill = 625

// Sample is one synchronized multi-channel sample. Synthetic samples
// are zero-valued placeholders for a detected transport gap and are
// otherwise indistinguishable from real samples to downstream
// consumers.
type Sample struct {
	Index     uint64
	Raw       []float64
	Filtered  []float64
	Synthetic bool
}

// Synchronizer turns a sequence-tagged batch stream into a strictly
// periodic sample stream. It is not safe for concurrent use; all
// batches for a session must be pushed from a single goroutine.
type Synchronizer struct {
	channels int
	modulus  uint32
	maxFill  uint32

	seeded   bool
	expected uint32
	index    uint64

	log     zerolog.Logger
	metrics *telemetry.Metrics
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger used for gap and ordering warnings.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Synchronizer) { s.log = log }
}

// WithMetrics sets the telemetry counters updated by the
// synchronizer.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Synchronizer) { s.metrics = m }
}

// WithMaxFill caps the length of a synthetic run. Gaps larger than n
// samples start a fresh epoch.
func WithMaxFill(n uint32) Option {
	return func(s *Synchronizer) { s.maxFill = n }
}

// New returns a Synchronizer for batches of channels values whose
// sequence numbers wrap at modulus.
func New(channels int, modulus uint32, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		channels: channels,
		modulus:  modulus,
		maxFill:  DefaultMaxFill,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = telemetry.New(nil)
	}
	return s
}

// Synchronize consumes one decoded batch and returns the samples it
// produces: nothing for a dropped duplicate, one real sample for an
// in-order batch, or a synthetic run followed by the real sample for
// a detected gap.
func (s *Synchronizer) Synchronize(seq uint32, raw, filtered []float64) []Sample {
	if !s.seeded {
		s.seeded = true
		s.expected = seq % s.modulus
	}
	seq %= s.modulus

	gap := (seq + s.modulus - s.expected) % s.modulus
	switch {
	case gap == 0:
		// In order; counter wraparound lands here too.
	case gap > s.modulus/2:
		// Modular distance in the other direction is shorter:
		// a duplicate or out-of-order arrival. Ordering is not
		// renegotiated.
		s.metrics.OutOfOrder.Inc()
		s.log.Warn().
			Uint32("seq", seq).
			Uint32("expected", s.expected).
			Msg("dropping out-of-order batch")
		return nil
	case gap > s.maxFill:
		s.log.Warn().
			Uint32("seq", seq).
			Uint32("expected", s.expected).
			Uint32("gap", gap).
			Msg("gap exceeds fill cap, starting fresh epoch")
		gap = 0
	}

	out := make([]Sample, 0, gap+1)
	for i := uint32(0); i < gap; i++ {
		out = append(out, Sample{
			Index:     s.index,
			Raw:       make([]float64, s.channels),
			Filtered:  make([]float64, s.channels),
			Synthetic: true,
		})
		s.index++
		s.metrics.Synthetic.Inc()
	}
	if gap != 0 {
		s.log.Warn().
			Uint32("lost", gap).
			Uint64("from", out[0].Index).
			Msg("filled transport gap with synthetic samples")
	}

	out = append(out, Sample{
		Index:    s.index,
		Raw:      append([]float64(nil), raw...),
		Filtered: append([]float64(nil), filtered...),
	})
	s.index++
	s.expected = (seq + 1) % s.modulus
	return out
}

// Reset discards the sequence epoch and restarts index numbering.
// A reconnected session must never resume stale counters.
func (s *Synchronizer) Reset() {
	s.seeded = false
	s.expected = 0
	s.index = 0
}
