// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rec

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// AnnotationWriter appends (elapsed seconds, text) pairs to a CSV
// side-file with the header "time,text".
type AnnotationWriter struct {
	mu      sync.Mutex
	f       *os.File
	w       *csv.Writer
	start   time.Time
	writing bool
}

// StartWriting creates the side-file. Elapsed offsets are measured
// from start. It fails with an error wrapping ErrState if already
// writing.
func (w *AnnotationWriter) StartWriting(path string, start time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writing {
		return fmt.Errorf("%w: already writing", ErrState)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create annotations file: %w", err)
	}
	cw := csv.NewWriter(f)
	cw.Write([]string{"time", "text"})
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write annotations header: %w", err)
	}
	w.f = f
	w.w = cw
	w.start = start
	w.writing = true
	return nil
}

// Annotate appends one annotation stamped with the elapsed time
// since recording start. Annotations are immutable once written and
// are flushed immediately.
func (w *AnnotationWriter) Annotate(text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.writing {
		return fmt.Errorf("%w: not writing", ErrState)
	}
	elapsed := time.Since(w.start).Seconds()
	w.w.Write([]string{strconv.FormatFloat(elapsed, 'f', 3, 64), text})
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return fmt.Errorf("failed to append annotation: %w", err)
	}
	return nil
}

// StopWriting flushes and closes the side-file. Stopping a writer
// that is not writing is a no-op.
func (w *AnnotationWriter) StopWriting() error {
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
	if err != nil {
		return fmt.Errorf("failed to finalize annotations file: %w", err)
	}
	return nil
}
