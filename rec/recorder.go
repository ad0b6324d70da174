// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rec

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kortschak/neuroplay/internal/telemetry"
	"github.com/kortschak/neuroplay/session"
	"github.com/kortschak/neuroplay/timeline"
)

// Companion files created beside the target EDF.
const (
	dataFileName        = "data.csv"
	annotationsFileName = "annotations.csv"
)

// Recorder orchestrates a recording: it streams synchronized samples
// to a CSV file and annotations to a side-file during a live
// session, and converts the completed CSV into an EDF+ file on stop.
type Recorder struct {
	channels   []string
	sampleRate int
	log        zerolog.Logger
	metrics    *telemetry.Metrics

	mu         sync.Mutex
	data       *SampleWriter
	ann        *AnnotationWriter
	recording  bool
	starting   bool
	start      time.Time
	edfPath    string
	csvPath    string
	annPath    string
	startHooks []func()
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRecorderLogger sets the recorder's logger.
func WithRecorderLogger(log zerolog.Logger) RecorderOption {
	return func(r *Recorder) { r.log = log }
}

// WithRecorderMetrics sets the telemetry counters updated by the
// recorder.
func WithRecorderMetrics(m *telemetry.Metrics) RecorderOption {
	return func(r *Recorder) { r.metrics = m }
}

// NewRecorder returns a Recorder for the named channels sampled at
// sampleRate Hz.
func NewRecorder(channels []string, sampleRate int, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		channels:   channels,
		sampleRate: sampleRate,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = telemetry.New(nil)
	}
	r.data = NewSampleWriter(channels, r.log)
	r.ann = &AnnotationWriter{}
	return r
}

// Bind attaches the recorder to a live session: synchronized samples
// flow into the recording while one is active, sample indexing
// restarts when a recording starts, and an active recording is
// stopped before the session releases its connection.
func (r *Recorder) Bind(s *session.Session) {
	r.mu.Lock()
	r.startHooks = append(r.startHooks, s.ResetTimeline)
	r.mu.Unlock()
	s.HandleSamples(func(smp timeline.Sample) {
		err := r.Write(smp)
		if err != nil {
			r.log.Error().Err(err).Msg("failed to record sample")
		}
	})
	s.OnDisconnect(func() {
		err := r.StopRecording()
		if err != nil {
			r.log.Error().Err(err).Msg("failed to stop recording on disconnect")
		}
	})
}

// StartRecording begins a recording targeting the given EDF path.
// The sample CSV and annotation side-file are created beside the
// target. It fails with an error wrapping ErrState if a recording is
// already active.
func (r *Recorder) StartRecording(edfPath string) error {
	r.mu.Lock()
	if r.recording || r.starting {
		r.mu.Unlock()
		return fmt.Errorf("%w: recording already started", ErrState)
	}
	r.starting = true
	hooks := append([]func(){}, r.startHooks...)
	r.mu.Unlock()

	// Start hooks call back into the session pipeline, which may be
	// mid-dispatch into Write; running them under r.mu would order
	// the locks against each other.
	for _, fn := range hooks {
		fn()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.starting = false

	dir := filepath.Dir(edfPath)
	r.edfPath = edfPath
	r.csvPath = filepath.Join(dir, dataFileName)
	r.annPath = filepath.Join(dir, annotationsFileName)
	r.start = time.Now()

	err := r.data.StartWriting(r.csvPath)
	if err != nil {
		return err
	}
	err = r.ann.StartWriting(r.annPath, r.start)
	if err != nil {
		r.data.StopWriting()
		return err
	}
	r.recording = true
	r.log.Info().Str("path", edfPath).Msg("started recording")
	return nil
}

// Write appends one synchronized sample to the active recording. It
// is a no-op when no recording is active, so the recorder can stay
// permanently attached to a session.
func (r *Recorder) Write(s timeline.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return nil
	}
	err := r.data.Append(s)
	if err == nil {
		r.metrics.RowsWritten.Inc()
	}
	return err
}

// WriteAnnotation records a free-text annotation at the current
// elapsed time. It fails with an error wrapping ErrState if no
// recording is active.
func (r *Recorder) WriteAnnotation(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return fmt.Errorf("%w: recording not started", ErrState)
	}
	return r.ann.Annotate(text)
}

// StopRecording stops the CSV writers and synchronously converts the
// completed recording into the target EDF file. Stopping when no
// recording is active is a no-op. It fails with an error wrapping
// ErrConversion if the recorded CSV is empty or malformed.
func (r *Recorder) StopRecording() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return nil
	}
	r.recording = false

	err := r.data.StopWriting()
	if aerr := r.ann.StopWriting(); err == nil {
		err = aerr
	}
	if err != nil {
		return err
	}

	r.log.Info().Str("csv", r.csvPath).Str("edf", r.edfPath).Msg("converting recording")
	return SaveCSVAsEDF(r.csvPath, r.edfPath, r.sampleRate,
		WithAnnotationsFile(r.annPath),
		WithStartTime(r.start),
	)
}

// IsRecording reports whether a recording is active.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}
