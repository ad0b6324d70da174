// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package device describes the NeuroPlay headset family: the closed
// set of known device types, their electrode montages and the fixed
// acquisition parameters shared by all models.
package device

import (
	"fmt"
	"regexp"
	"strconv"
)

// SampleRate is the acquisition rate of all NeuroPlay models. It is
// fixed by the device firmware and never varies during a session.
const SampleRate = 125 // Hz

// Type identifies a NeuroPlay headset model.
type Type uint8

const (
	// All matches any NeuroPlay device during discovery.
	All Type = iota
	// Model6C is the six-channel NeuroPlay-6C headband.
	Model6C
	// Model8Cap is the eight-channel NeuroPlay-8Cap cap.
	Model8Cap
	// Undefined is the fallback for names that are not in the
	// catalog.
	Undefined
)

// Advertised model names.
const (
	nameAll   = "NeuroPlay"
	name6C    = "NeuroPlay-6C"
	name8Cap  = "NeuroPlay-8Cap"
	undefined = "<undefined>"
)

func (t Type) String() string {
	switch t {
	case All:
		return nameAll
	case Model6C:
		return name6C
	case Model8Cap:
		return name8Cap
	default:
		return undefined
	}
}

// TypeForName returns the device type advertised as name. The lookup
// is total; names not in the catalog return Undefined.
func TypeForName(name string) Type {
	switch name {
	case nameAll:
		return All
	case name6C:
		return Model6C
	case name8Cap:
		return Model8Cap
	default:
		return Undefined
	}
}

// Matches reports whether a device of type o is acceptable for a
// discovery filter of type t. All matches every concrete model.
func (t Type) Matches(o Type) bool {
	if o == Undefined || o == All {
		return false
	}
	return t == All || t == o
}

// Channels returns the electrode labels for the model in the order
// samples appear in decoded batches. It returns nil for types that
// do not name a concrete model.
func (t Type) Channels() []string {
	switch t {
	case Model6C:
		return []string{"O1", "T3", "Fp1", "Fp2", "T4", "O2"}
	case Model8Cap:
		return []string{"O1", "P3", "C3", "F3", "F4", "C4", "P4", "O2"}
	default:
		return nil
	}
}

// Descriptor identifies a discovered headset. It is immutable once
// created.
type Descriptor struct {
	Type Type
	ID   int
	Addr string

	// FullName is the complete advertised name,
	// for example "NeuroPlay-6C (1232)".
	FullName string
}

// Headsets advertise as "<model> (<serial>)".
var namePattern = regexp.MustCompile(`^(.+)\s\((\d+)\)$`)

// ParseName returns the descriptor for an advertisement with the
// given name and address. An error is returned if the name does not
// follow the "<model> (<serial>)" convention or the model is not a
// concrete catalog entry.
func ParseName(name, addr string) (Descriptor, error) {
	m := namePattern.FindStringSubmatch(name)
	if m == nil {
		return Descriptor{}, fmt.Errorf("invalid device name: %q", name)
	}
	typ := TypeForName(m[1])
	if typ == Undefined || typ == All {
		return Descriptor{}, fmt.Errorf("unknown device model: %q", m[1])
	}
	id, err := strconv.Atoi(m[2])
	if err != nil {
		return Descriptor{}, fmt.Errorf("invalid device id: %q", m[2])
	}
	return Descriptor{Type: typ, ID: id, Addr: addr, FullName: name}, nil
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s (%s)", d.FullName, d.Addr)
}
