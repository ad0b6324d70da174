// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package telemetry provides the driver's prometheus instrumentation.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the counter set shared by the acquisition pipeline.
type Metrics struct {
	Frames      prometheus.Counter
	FrameErrors prometheus.Counter
	Batches     prometheus.Counter
	OutOfOrder  prometheus.Counter
	Synthetic   prometheus.Counter
	RowsWritten prometheus.Counter
}

// New returns a Metrics registered with reg. A nil reg registers the
// counters with a private registry, giving no-op-equivalent counters
// that are still safe to increment.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		Frames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "neuroplay_frames_total",
			Help: "Raw notification frames received from the headset.",
		}),
		FrameErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "neuroplay_frame_errors_total",
			Help: "Malformed frames dropped by the decoder.",
		}),
		Batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "neuroplay_batches_total",
			Help: "Decoded per-channel sample batches.",
		}),
		OutOfOrder: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "neuroplay_batches_out_of_order_total",
			Help: "Duplicate or out-of-order batches dropped by the synchronizer.",
		}),
		Synthetic: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "neuroplay_synthetic_samples_total",
			Help: "Zero-filled samples emitted to cover transport gaps.",
		}),
		RowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "neuroplay_csv_rows_total",
			Help: "Synchronized sample rows appended to CSV recordings.",
		}),
	}
	reg.MustRegister(m.Frames, m.FrameErrors, m.Batches, m.OutOfOrder, m.Synthetic, m.RowsWritten)
	return m
}
