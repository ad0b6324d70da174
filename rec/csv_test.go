// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rec

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kortschak/neuroplay/timeline"
)

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestSampleWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	channels := []string{"O1", "T3", "Fp1", "Fp2", "T4", "O2"}
	w := NewSampleWriter(channels, zerolog.Nop())

	require.NoError(t, w.StartWriting(path))
	assert.True(t, w.IsWriting())

	// Values chosen to catch any loss of float precision on the
	// round trip through the text encoding.
	values := [][]float64{
		{math.Pi, -0.1, 1e-17, 47.66384, -4768.384, 0},
		{math.Nextafter(1, 2), math.MaxFloat64, -math.SmallestNonzeroFloat64, 2, 3, 4},
	}
	for i, v := range values {
		require.NoError(t, w.Append(timeline.Sample{
			Index:     uint64(i),
			Filtered:  v,
			Synthetic: i == 1,
		}))
	}
	require.NoError(t, w.StopWriting())
	assert.False(t, w.IsWriting())

	rows := readAll(t, path)
	require.Len(t, rows, len(values)+1)
	assert.Equal(t, append(append([]string{"index"}, channels...), "synthetic"), rows[0])
	for i, row := range rows[1:] {
		assert.Equal(t, strconv.Itoa(i), row[0])
		for j, want := range values[i] {
			got, err := strconv.ParseFloat(row[j+1], 64)
			require.NoError(t, err)
			assert.Equal(t, want, got, "row %d column %d", i, j)
		}
	}
	assert.Equal(t, "0", rows[1][len(rows[1])-1])
	assert.Equal(t, "1", rows[2][len(rows[2])-1])
}

func TestSampleWriterState(t *testing.T) {
	dir := t.TempDir()
	w := NewSampleWriter([]string{"O1"}, zerolog.Nop())

	err := w.Append(timeline.Sample{Filtered: []float64{1}})
	assert.ErrorIs(t, err, ErrState)
	require.NoError(t, w.StopWriting(), "stopping an idle writer is a no-op")

	require.NoError(t, w.StartWriting(filepath.Join(dir, "a.csv")))
	err = w.StartWriting(filepath.Join(dir, "b.csv"))
	assert.ErrorIs(t, err, ErrState)

	require.NoError(t, w.StopWriting())
	require.NoError(t, w.StartWriting(filepath.Join(dir, "c.csv")), "writer must be reusable")
	require.NoError(t, w.StopWriting())
}

func TestSampleWriterCreateFailure(t *testing.T) {
	w := NewSampleWriter([]string{"O1"}, zerolog.Nop())
	err := w.StartWriting(filepath.Join(t.TempDir(), "no", "such", "dir", "data.csv"))
	require.Error(t, err)
	assert.False(t, w.IsWriting())
}

func TestAnnotationWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotations.csv")
	var w AnnotationWriter

	assert.ErrorIs(t, w.Annotate("too early"), ErrState)

	require.NoError(t, w.StartWriting(path, time.Now().Add(-1500*time.Millisecond)))
	require.NoError(t, w.Annotate("eyes closed"))
	require.NoError(t, w.StopWriting())
	require.NoError(t, w.StopWriting(), "stopping an idle writer is a no-op")

	rows := readAll(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"time", "text"}, rows[0])
	assert.Equal(t, "eyes closed", rows[1][1])
	at, err := strconv.ParseFloat(rows[1][0], 64)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, at, 0.5)
}
