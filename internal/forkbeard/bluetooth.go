// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package forkbeard provides helper functions for interacting with
// Bluetooth devices.
package forkbeard

import (
	"fmt"

	"tinygo.org/x/bluetooth"
)

// ServiceCharacteristics returns the requested characteristics of a
// Bluetooth service, keyed by their UUID string.
func ServiceCharacteristics(dev *bluetooth.Device, srvID bluetooth.UUID, charIDs []bluetooth.UUID) (map[string]bluetooth.DeviceCharacteristic, error) {
	srv, err := dev.DiscoverServices([]bluetooth.UUID{srvID})
	if err != nil {
		return nil, fmt.Errorf("failed to discover service %s: %w", srvID, err)
	}
	for _, s := range srv {
		chars, err := s.DiscoverCharacteristics(charIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to discover characteristics of %s: %w", srvID, err)
		}
		if len(chars) == 0 {
			break
		}
		byID := make(map[string]bluetooth.DeviceCharacteristic, len(chars))
		for _, c := range chars {
			byID[c.UUID().String()] = c
		}
		return byID, nil
	}
	return nil, fmt.Errorf("service characteristics not found")
}
