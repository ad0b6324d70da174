// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modulus = 49152

// push runs the sequence numbers through s, using the sequence
// number as the single channel value so provenance is visible in the
// output.
func push(s *Synchronizer, seqs ...uint32) []Sample {
	var out []Sample
	for _, seq := range seqs {
		v := float64(seq)
		out = append(out, s.Synchronize(seq, []float64{v}, []float64{v * 2})...)
	}
	return out
}

func TestGapFill(t *testing.T) {
	s := New(1, modulus)
	out := push(s, 0, 1, 4, 5)

	require.Len(t, out, 6)
	for i, smp := range out {
		assert.Equal(t, uint64(i), smp.Index, "indices must be contiguous")
	}
	for _, i := range []int{2, 3} {
		assert.True(t, out[i].Synthetic, "sample %d should be synthetic", i)
		assert.Equal(t, []float64{0}, out[i].Raw)
		assert.Equal(t, []float64{0}, out[i].Filtered)
	}
	for _, i := range []int{0, 1, 4, 5} {
		assert.False(t, out[i].Synthetic, "sample %d should be real", i)
	}
	assert.Equal(t, []float64{4}, out[4].Raw)
	assert.Equal(t, []float64{8}, out[4].Filtered)
}

func TestDuplicateDropped(t *testing.T) {
	s := New(1, modulus)
	out := push(s, 0, 1, 1, 2)

	require.Len(t, out, 3)
	for i, smp := range out {
		assert.Equal(t, uint64(i), smp.Index)
		assert.False(t, smp.Synthetic)
	}
}

func TestOutOfOrderDropped(t *testing.T) {
	s := New(1, modulus)
	out := push(s, 5, 6, 3, 7)
	require.Len(t, out, 3)
	assert.Equal(t, []float64{7}, out[2].Raw)
}

func TestSeededByFirstBatch(t *testing.T) {
	s := New(1, modulus)
	out := push(s, 40000)
	require.Len(t, out, 1)
	assert.Equal(t, uint64(0), out[0].Index)
	assert.False(t, out[0].Synthetic)
}

func TestWraparound(t *testing.T) {
	s := New(1, modulus)
	out := push(s, modulus-2, modulus-1, 0, 1)

	require.Len(t, out, 4)
	for i, smp := range out {
		assert.Equal(t, uint64(i), smp.Index)
		assert.False(t, smp.Synthetic, "wraparound must not be treated as a gap")
	}
}

func TestWraparoundGap(t *testing.T) {
	// Two samples lost across the wrap boundary.
	s := New(1, modulus)
	out := push(s, modulus-2, 1)

	require.Len(t, out, 4)
	assert.True(t, out[1].Synthetic)
	assert.True(t, out[2].Synthetic)
	assert.False(t, out[3].Synthetic)
	assert.Equal(t, []float64{1}, out[3].Raw)
}

func TestLargeGapStartsFreshEpoch(t *testing.T) {
	s := New(1, modulus, WithMaxFill(100))
	out := push(s, 0, 1, 5000)

	// No synthetic run for a gap beyond the cap, but indices stay
	// contiguous.
	require.Len(t, out, 3)
	assert.False(t, out[2].Synthetic)
	assert.Equal(t, uint64(2), out[2].Index)
	assert.Equal(t, []float64{5000}, out[2].Raw)

	// The new epoch continues normally.
	out = push(s, 5001, 5003)
	require.Len(t, out, 3)
	assert.True(t, out[1].Synthetic)
}

func TestValuesAreCopied(t *testing.T) {
	s := New(2, modulus)
	raw := []float64{1, 2}
	filtered := []float64{3, 4}
	out := s.Synchronize(0, raw, filtered)
	raw[0] = 99
	filtered[0] = 99
	require.Len(t, out, 1)
	assert.Equal(t, []float64{1, 2}, out[0].Raw)
	assert.Equal(t, []float64{3, 4}, out[0].Filtered)
}

func TestReset(t *testing.T) {
	s := New(1, modulus)
	push(s, 0, 1, 2)
	s.Reset()

	out := push(s, 700)
	require.Len(t, out, 1)
	assert.Equal(t, uint64(0), out[0].Index, "reset must restart indexing")
	assert.False(t, out[0].Synthetic)
}
