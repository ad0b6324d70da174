// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package filter implements the per-channel digital filter cascade
// applied to raw EEG samples: a band-pass to the physiologically
// relevant band and a notch at the mains frequency.
//
// Filters are second-order IIR sections with coefficients derived
// once from the fixed sampling rate using the closed forms in the
// RBJ Audio EQ Cookbook. Stage state is a direct-form-II transposed
// delay line that persists across samples for the lifetime of a
// session and is zeroed on Reset.
package filter

import "math"

// Cascade corner frequencies for EEG acquisition.
const (
	HighPassCutoff = 2  // Hz
	LowPassCutoff  = 40 // Hz
	NotchFreq      = 50 // Hz
	NotchQ         = 30
)

// Biquad is a single second-order IIR filter section.
type Biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
	z1, z2     float64
}

// Apply filters one sample and updates the delay line.
func (f *Biquad) Apply(x float64) float64 {
	y := f.b0*x + f.z1
	f.z1 = f.b1*x - f.a1*y + f.z2
	f.z2 = f.b2*x - f.a2*y
	return y
}

// Reset zeroes the delay line.
func (f *Biquad) Reset() {
	f.z1 = 0
	f.z2 = 0
}

// HighPass returns a Butterworth high-pass section with the given
// cutoff frequency for signals sampled at rate Hz.
func HighPass(cutoff, rate float64) *Biquad {
	w0 := 2 * math.Pi * cutoff / rate
	cosw, sinw := math.Cos(w0), math.Sin(w0)
	alpha := sinw / math.Sqrt2 // Q = 1/√2
	return normalize(
		(1+cosw)/2, -(1 + cosw), (1+cosw)/2,
		1+alpha, -2*cosw, 1-alpha,
	)
}

// LowPass returns a Butterworth low-pass section with the given
// cutoff frequency for signals sampled at rate Hz.
func LowPass(cutoff, rate float64) *Biquad {
	w0 := 2 * math.Pi * cutoff / rate
	cosw, sinw := math.Cos(w0), math.Sin(w0)
	alpha := sinw / math.Sqrt2
	return normalize(
		(1-cosw)/2, 1-cosw, (1-cosw)/2,
		1+alpha, -2*cosw, 1-alpha,
	)
}

// Notch returns a notch section rejecting the given frequency for
// signals sampled at rate Hz.
func Notch(freq, q, rate float64) *Biquad {
	w0 := 2 * math.Pi * freq / rate
	cosw, sinw := math.Cos(w0), math.Sin(w0)
	alpha := sinw / (2 * q)
	return normalize(
		1, -2*cosw, 1,
		1+alpha, -2*cosw, 1-alpha,
	)
}

func normalize(b0, b1, b2, a0, a1, a2 float64) *Biquad {
	return &Biquad{
		b0: b0 / a0, b1: b1 / a0, b2: b2 / a0,
		a1: a1 / a0, a2: a2 / a0,
	}
}

// Chain is an ordered cascade of filter sections owned by a single
// channel.
type Chain struct {
	stages []*Biquad
}

// NewChain returns the standard EEG acquisition cascade for the
// given sampling rate: 2 Hz high-pass, 40 Hz low-pass, 50 Hz notch.
func NewChain(rate float64) *Chain {
	return &Chain{stages: []*Biquad{
		HighPass(HighPassCutoff, rate),
		LowPass(LowPassCutoff, rate),
		Notch(NotchFreq, NotchQ, rate),
	}}
}

// Apply passes one sample through every stage in order.
func (c *Chain) Apply(x float64) float64 {
	for _, s := range c.stages {
		x = s.Apply(x)
	}
	return x
}

// Reset zeroes the state of every stage.
func (c *Chain) Reset() {
	for _, s := range c.stages {
		s.Reset()
	}
}

// Bank holds one independent Chain per channel. Chain state is never
// shared across channels or sessions.
type Bank struct {
	chains []*Chain
}

// NewBank returns a Bank of n channel chains for the given sampling
// rate.
func NewBank(n int, rate float64) *Bank {
	b := Bank{chains: make([]*Chain, n)}
	for i := range b.chains {
		b.chains[i] = NewChain(rate)
	}
	return &b
}

// Apply filters one multi-channel sample, returning the filtered
// values in a new slice. The input is not modified.
func (b *Bank) Apply(raw []float64) []float64 {
	filtered := make([]float64, len(raw))
	for i, v := range raw {
		filtered[i] = b.chains[i].Apply(v)
	}
	return filtered
}

// Channels returns the number of channel chains in the bank.
func (b *Bank) Channels() int { return len(b.chains) }

// Reset zeroes the state of every channel chain.
func (b *Bank) Reset() {
	for _, c := range b.chains {
		c.Reset()
	}
}
