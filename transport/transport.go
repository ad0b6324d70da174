// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package transport defines the wireless transport surface consumed
// by the scanner and session packages, and provides the Bluetooth LE
// implementation backed by tinygo.org/x/bluetooth.
//
// The interfaces exist so the acquisition pipeline can be exercised
// against fakes; production use always goes through NewBLE.
package transport

import "context"

// Advertisement is a single device discovery event.
type Advertisement struct {
	Name string
	Addr string
	RSSI int16
}

// Radio exposes discovery and connection establishment from the
// platform Bluetooth stack.
type Radio interface {
	// Scan calls fn for every received advertisement. It blocks
	// until StopScan is called or the scan fails.
	Scan(fn func(Advertisement)) error

	// StopScan terminates a running Scan.
	StopScan() error

	// Connect establishes a connection to the device at the given
	// transport address.
	Connect(ctx context.Context, addr string) (Conn, error)
}

// Conn is an established device connection. Characteristics are
// identified by their UUID string.
type Conn interface {
	// Write writes a command to a device characteristic.
	Write(characteristic string, data []byte) error

	// Notify subscribes fn to value notifications from a device
	// characteristic. A nil fn disables notifications.
	Notify(characteristic string, fn func([]byte)) error

	// Disconnect releases the connection.
	Disconnect() error
}
