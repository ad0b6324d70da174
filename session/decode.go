// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package session

import (
	"fmt"

	"github.com/kortschak/neuroplay/device"
)

// Wire format of the EEG data characteristic.
//
// Each notification carries one 20-byte packet: a two-byte header
// followed by six samples of three bytes each. Header bit layout:
//
//	byte 0: ccccccii   i: packet index within the group (0-3)
//	byte 1: cccccccc   c: 14-bit group counter, low bits in byte 0
//
// Four consecutive packets form a group of 24 samples, which is
// three full rows across the eight physical ADC channels. Sample
// values are 24-bit big-endian two's complement, left-aligned in a
// 32-bit word, scaled by the conversion factor to microvolts.
const (
	packetSize      = 20
	packetsPerGroup = 4
	samplesPerPkt   = 6
	rowsPerGroup    = 3
	adcChannels     = 8

	packetIndexMask = 0x03
	counterBits     = 14

	microvoltsPerBit = 0.000186265
)

// SeqModulus is the wrap modulus of batch sequence numbers: three
// sample rows per group counter value.
const SeqModulus = rowsPerGroup << counterBits

// decodeGroup decodes one aligned group of packets into its three
// sample batches, pruning the ADC channels the model does not wire.
func decodeGroup(group [][]byte, typ device.Type) ([]Batch, error) {
	counter := uint32(group[0][0])>>2 | uint32(group[0][1])<<6

	var values [packetsPerGroup * samplesPerPkt]float64
	for i, pkt := range group {
		if len(pkt) != packetSize {
			return nil, fmt.Errorf("bad packet length: %d", len(pkt))
		}
		if i != 0 && pkt[0]&packetIndexMask != byte(i) {
			return nil, fmt.Errorf("packet out of group order: %d != %d", pkt[0]&packetIndexMask, i)
		}
		for j := 0; j < samplesPerPkt; j++ {
			off := 2 + j*3
			values[i*samplesPerPkt+j] = float64(beInt24(pkt[off:off+3])) * microvoltsPerBit
		}
	}

	batches := make([]Batch, 0, rowsPerGroup)
	for row := 0; row < rowsPerGroup; row++ {
		all := values[row*adcChannels : (row+1)*adcChannels]
		batches = append(batches, Batch{
			Seq:    (counter*rowsPerGroup + uint32(row)) % SeqModulus,
			Values: pruneChannels(all, typ),
		})
	}
	return batches, nil
}

// pruneChannels maps the eight ADC channel values to the electrodes
// the model wires. The 6C leaves ADC channels 1 and 6 unconnected.
func pruneChannels(all []float64, typ device.Type) []float64 {
	switch typ {
	case device.Model6C:
		return []float64{all[0], all[2], all[3], all[4], all[5], all[7]}
	default:
		return append([]float64(nil), all...)
	}
}

// beInt24 returns the signed 24-bit big-endian sample left-aligned
// in a 32-bit word; see golang.org/issue/14808 for the bounds check
// hint.
func beInt24(b []byte) int32 {
	_ = b[2]
	return int32(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8)
}
