// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/kortschak/neuroplay/internal/forkbeard"
)

// BLE is the Radio implementation backed by the platform Bluetooth
// adapter. Addresses seen while scanning are remembered so Connect
// can resolve the platform address form from its string.
type BLE struct {
	adapter *bluetooth.Adapter

	mu    sync.Mutex
	addrs map[string]bluetooth.Address
}

// NewBLE enables and returns the default platform Bluetooth adapter.
func NewBLE() (*BLE, error) {
	adapter := bluetooth.DefaultAdapter
	err := adapter.Enable()
	if err != nil {
		return nil, fmt.Errorf("failed to enable bluetooth: %w", err)
	}
	return &BLE{adapter: adapter, addrs: make(map[string]bluetooth.Address)}, nil
}

// Scan implements Radio. It blocks until StopScan is called.
func (b *BLE) Scan(fn func(Advertisement)) error {
	return b.adapter.Scan(func(_ *bluetooth.Adapter, found bluetooth.ScanResult) {
		addr := found.Address.String()
		b.mu.Lock()
		b.addrs[addr] = found.Address
		b.mu.Unlock()
		fn(Advertisement{
			Name: found.LocalName(),
			Addr: addr,
			RSSI: found.RSSI,
		})
	})
}

// StopScan implements Radio.
func (b *BLE) StopScan() error {
	return b.adapter.StopScan()
}

// Connect implements Radio. The device must have been seen by a scan
// on this radio. A context deadline bounds the connection attempt.
func (b *BLE) Connect(ctx context.Context, addr string) (Conn, error) {
	b.mu.Lock()
	mac, ok := b.addrs[addr]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown device address %q: not discovered by this radio", addr)
	}
	var params bluetooth.ConnectionParams
	if deadline, ok := ctx.Deadline(); ok {
		params.ConnectionTimeout = bluetooth.NewDuration(time.Until(deadline))
	}
	dev, err := b.adapter.Connect(mac, params)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return &bleConn{dev: dev}, nil
}

// bleConn resolves characteristics lazily and caches them for the
// lifetime of the connection.
type bleConn struct {
	dev bluetooth.Device

	mu    sync.Mutex
	chars map[string]bluetooth.DeviceCharacteristic
}

func (c *bleConn) characteristic(id string) (bluetooth.DeviceCharacteristic, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if char, ok := c.chars[id]; ok {
		return char, nil
	}
	uuid, err := bluetooth.ParseUUID(id)
	if err != nil {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("invalid characteristic %q: %w", id, err)
	}
	srvs, err := c.dev.DiscoverServices(nil)
	if err != nil {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("failed to discover services: %w", err)
	}
	for _, s := range srvs {
		chars, err := forkbeard.ServiceCharacteristics(&c.dev, s.UUID(), []bluetooth.UUID{uuid})
		if err != nil {
			continue
		}
		if char, ok := chars[uuid.String()]; ok {
			if c.chars == nil {
				c.chars = make(map[string]bluetooth.DeviceCharacteristic)
			}
			c.chars[id] = char
			return char, nil
		}
	}
	return bluetooth.DeviceCharacteristic{}, fmt.Errorf("characteristic %s not found", id)
}

// Write implements Conn.
func (c *bleConn) Write(characteristic string, data []byte) error {
	char, err := c.characteristic(characteristic)
	if err != nil {
		return err
	}
	_, err = char.WriteWithoutResponse(data)
	if err != nil {
		return fmt.Errorf("failed to write characteristic %s: %w", characteristic, err)
	}
	return nil
}

// Notify implements Conn.
func (c *bleConn) Notify(characteristic string, fn func([]byte)) error {
	char, err := c.characteristic(characteristic)
	if err != nil {
		return err
	}
	return char.EnableNotifications(fn)
}

// Disconnect implements Conn.
func (c *bleConn) Disconnect() error {
	return c.dev.Disconnect()
}
