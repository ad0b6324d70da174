// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rec

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/OpenPSG/edf"
)

// annotationsLabel is the reserved EDF+ annotation signal label.
const annotationsLabel = "EDF Annotations"

// annotation is one (elapsed seconds, text) pair from the side-file.
type annotation struct {
	at   float64
	text string
}

type converter struct {
	annPath string
	start   time.Time
}

// ConvertOption configures SaveCSVAsEDF.
type ConvertOption func(*converter)

// WithAnnotationsFile embeds the annotations from the given
// side-file as an EDF+ annotation channel.
func WithAnnotationsFile(path string) ConvertOption {
	return func(c *converter) { c.annPath = path }
}

// WithStartTime sets the recording start timestamp written to the
// EDF header. The default is the time of conversion.
func WithStartTime(t time.Time) ConvertOption {
	return func(c *converter) { c.start = t }
}

// SaveCSVAsEDF converts a previously written sample CSV into an EDF+
// file without requiring a live device. Channel labels are taken
// from the CSV header and per-channel physical ranges are re-derived
// from the observed data, since the EDF header requires bounded
// physical ranges. It fails with an error wrapping ErrConversion if
// the CSV is empty or malformed.
func SaveCSVAsEDF(csvPath, edfPath string, sampleRate int, opts ...ConvertOption) error {
	c := converter{start: time.Now()}
	for _, opt := range opts {
		opt(&c)
	}

	channels, data, err := readSampleCSV(csvPath)
	if err != nil {
		return err
	}
	var annotations []annotation
	if c.annPath != "" {
		annotations, err = readAnnotationsCSV(c.annPath)
		if err != nil {
			return err
		}
	}

	records := (len(data[0]) + sampleRate - 1) / sampleRate
	signals := make([]edf.SignalHeader, len(channels), len(channels)+1)
	for i, label := range channels {
		pmin, pmax := physicalRange(data[i])
		signals[i] = edf.SignalHeader{
			Label:             label,
			TransducerType:    "AgAgCl electrode",
			PhysicalDimension: "uV",
			PhysicalMin:       pmin,
			PhysicalMax:       pmax,
			DigitalMin:        -32768,
			DigitalMax:        32767,
			SamplesPerRecord:  sampleRate,
		}
	}
	var tals [][]byte
	if c.annPath != "" {
		var width int
		tals, width = annotationRecords(annotations, records)
		// The identity physical/digital range makes the writer's
		// range conversion exact, so TAL bytes survive the trip
		// through the sample codec.
		signals = append(signals, edf.SignalHeader{
			Label:            annotationsLabel,
			PhysicalMin:      -32768,
			PhysicalMax:      32767,
			DigitalMin:       -32768,
			DigitalMax:       32767,
			SamplesPerRecord: width,
		})
	}

	f, err := os.Create(edfPath)
	if err != nil {
		return fmt.Errorf("failed to create edf file: %w", err)
	}
	defer f.Close()

	w, err := edf.Create(f, edf.Header{
		Version:            edf.Version0,
		RecordingID:        "Startdate " + c.start.Format("02-Jan-2006"),
		StartTime:          c.start,
		DataRecordDuration: time.Second,
		SignalCount:        len(signals),
		Signals:            signals,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConversion, err)
	}

	record := make([][]float64, len(signals))
	for r := 0; r < records; r++ {
		lo := r * sampleRate
		for i := range channels {
			record[i] = recordSlice(data[i], lo, sampleRate)
		}
		if tals != nil {
			record[len(channels)] = talSamples(tals[r], signals[len(channels)].SamplesPerRecord)
		}
		err = w.WriteRecord(record)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrConversion, err)
		}
	}
	err = w.Close()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConversion, err)
	}
	return f.Sync()
}

// readSampleCSV reads the sample CSV written by SampleWriter,
// returning the channel labels and the per-channel sample series.
func readSampleCSV(path string) ([]string, [][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrConversion, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrConversion, err)
	}
	if len(rows) < 2 {
		return nil, nil, fmt.Errorf("%w: no sample data in %s", ErrConversion, path)
	}
	header := rows[0]
	if len(header) < 3 || header[0] != "index" || header[len(header)-1] != "synthetic" {
		return nil, nil, fmt.Errorf("%w: unexpected csv header %q", ErrConversion, header)
	}
	channels := header[1 : len(header)-1]

	data := make([][]float64, len(channels))
	for i := range data {
		data[i] = make([]float64, 0, len(rows)-1)
	}
	for _, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, nil, fmt.Errorf("%w: ragged csv row", ErrConversion)
		}
		for i := range channels {
			v, err := strconv.ParseFloat(row[i+1], 64)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %v", ErrConversion, err)
			}
			data[i] = append(data[i], v)
		}
	}
	return channels, data, nil
}

// readAnnotationsCSV reads the annotation side-file written by
// AnnotationWriter.
func readAnnotationsCSV(path string) ([]annotation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversion, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 2
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversion, err)
	}
	var annotations []annotation
	for i, row := range rows {
		if i == 0 && row[0] == "time" {
			continue
		}
		at, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid annotation time %q", ErrConversion, row[0])
		}
		annotations = append(annotations, annotation{at: at, text: row[1]})
	}
	return annotations, nil
}

// physicalRange returns the observed range of a channel, widened
// when degenerate so the header conversion never divides by zero.
func physicalRange(data []float64) (pmin, pmax float64) {
	pmin, pmax = math.Inf(1), math.Inf(-1)
	for _, v := range data {
		pmin = math.Min(pmin, v)
		pmax = math.Max(pmax, v)
	}
	// Padded samples in a short final record are zero valued.
	pmin = math.Min(pmin, 0)
	pmax = math.Max(pmax, 0)
	if pmin == pmax {
		pmin--
		pmax++
	}
	return pmin, pmax
}

func recordSlice(data []float64, lo, n int) []float64 {
	out := make([]float64, n)
	if lo < len(data) {
		copy(out, data[lo:])
	}
	return out
}

// annotationRecords builds the TAL byte payload for each data
// record and returns the payloads with the signal width, in two-byte
// samples, needed to hold the largest of them.
func annotationRecords(annotations []annotation, records int) (tals [][]byte, width int) {
	tals = make([][]byte, records)
	var maxLen int
	for r := range tals {
		// Every record leads with the timekeeping annotation for
		// its own onset.
		tal := appendTAL(nil, float64(r), "")
		for _, a := range annotations {
			if int(a.at) == r || (r == records-1 && int(a.at) >= records) {
				tal = appendTAL(tal, a.at, a.text)
			}
		}
		tals[r] = tal
		if len(tal) > maxLen {
			maxLen = len(tal)
		}
	}
	width = (maxLen + 2) / 2 // room for a terminating NUL
	if width < 8 {
		width = 8
	}
	return tals, width
}

// appendTAL appends one time-stamped annotation list in the EDF+
// wire form "+<onset>\x14<text>\x14\x00".
func appendTAL(tal []byte, onset float64, text string) []byte {
	tal = append(tal, '+')
	tal = strconv.AppendFloat(tal, onset, 'f', -1, 64)
	tal = append(tal, 0x14)
	tal = append(tal, text...)
	tal = append(tal, 0x14, 0x00)
	return tal
}

// talSamples packs TAL bytes into width little-endian int16 samples
// expressed as exact physical values for the identity-range
// annotation signal.
func talSamples(tal []byte, width int) []float64 {
	out := make([]float64, width)
	for i := 0; i < len(tal); i += 2 {
		var hi byte
		if i+1 < len(tal) {
			hi = tal[i+1]
		}
		out[i/2] = float64(int16(uint16(tal[i]) | uint16(hi)<<8))
	}
	return out
}
