// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rec implements persistence of the synchronized sample
// stream: a row-oriented CSV intermediate, an annotation side-file,
// and conversion of a completed recording to the EDF+ binary format.
package rec

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kortschak/neuroplay/timeline"
)

var (
	// ErrState indicates a writer or recorder operation invoked in
	// the wrong lifecycle state.
	ErrState = errors.New("invalid recording state")
	// ErrConversion indicates a CSV→EDF conversion precondition
	// violation. It is fatal to that conversion call only.
	ErrConversion = errors.New("conversion failed")
)

// flushEvery bounds data loss on crash to about one second of
// samples.
const flushEvery = 125

// SampleWriter appends synchronized samples to a CSV file with the
// header "index,<channels...>,synthetic". It is independently
// start/stop-able.
type SampleWriter struct {
	channels []string
	log      zerolog.Logger

	mu      sync.Mutex
	f       *os.File
	w       *csv.Writer
	rows    int
	writing bool
}

// NewSampleWriter returns a SampleWriter for the named channels.
func NewSampleWriter(channels []string, log zerolog.Logger) *SampleWriter {
	return &SampleWriter{channels: channels, log: log}
}

// StartWriting creates the target file and writes the header row.
// It fails with an error wrapping ErrState if already writing, and
// leaves no open handle behind on I/O failure.
func (w *SampleWriter) StartWriting(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writing {
		return fmt.Errorf("%w: already writing", ErrState)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	cw := csv.NewWriter(f)
	header := make([]string, 0, len(w.channels)+2)
	header = append(header, "index")
	header = append(header, w.channels...)
	header = append(header, "synthetic")
	cw.Write(header)
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	w.f = f
	w.w = cw
	w.rows = 0
	w.writing = true
	w.log.Info().Str("path", path).Msg("started csv recording")
	return nil
}

// Append writes one synchronized sample row. Values are the filtered
// amplitudes; the synthetic flag is preserved as 0/1 for later
// inspection.
func (w *SampleWriter) Append(s timeline.Sample) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.writing {
		return fmt.Errorf("%w: not writing", ErrState)
	}
	row := make([]string, 0, len(s.Filtered)+2)
	row = append(row, strconv.FormatUint(s.Index, 10))
	for _, v := range s.Filtered {
		row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
	}
	if s.Synthetic {
		row = append(row, "1")
	} else {
		row = append(row, "0")
	}
	w.w.Write(row)
	w.rows++
	if w.rows%flushEvery == 0 {
		w.w.Flush()
	}
	if err := w.w.Error(); err != nil {
		return fmt.Errorf("failed to append csv row: %w", err)
	}
	return nil
}

// StopWriting flushes and closes the file. Stopping a writer that is
// not writing is a no-op.
func (w *SampleWriter) StopWriting() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.writing {
		return nil
	}
	w.writing = false
	w.w.Flush()
	err := w.w.Error()
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	w.f = nil
	w.w = nil
	w.log.Info().Int("rows", w.rows).Msg("stopped csv recording")
	if err != nil {
		return fmt.Errorf("failed to finalize csv file: %w", err)
	}
	return nil
}

// IsWriting reports whether the writer currently holds an open file.
func (w *SampleWriter) IsWriting() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writing
}
