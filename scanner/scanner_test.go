// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scanner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kortschak/neuroplay/device"
	"github.com/kortschak/neuroplay/transport"
)

// fakeRadio replays a scripted advertisement sequence when scanning
// starts and then keeps the scan open for late advertisements until
// StopScan.
type fakeRadio struct {
	script []transport.Advertisement

	mu   sync.Mutex
	fn   func(transport.Advertisement)
	done chan struct{}
}

func (r *fakeRadio) Scan(fn func(transport.Advertisement)) error {
	r.mu.Lock()
	r.fn = fn
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()
	for _, adv := range r.script {
		fn(adv)
	}
	<-done
	return nil
}

func (r *fakeRadio) StopScan() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done != nil {
		close(r.done)
		r.done = nil
	}
	r.fn = nil
	return nil
}

func (r *fakeRadio) advertise(t *testing.T, adv transport.Advertisement) {
	t.Helper()
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.fn != nil
	}, time.Second, time.Millisecond, "scan not started")
	r.mu.Lock()
	fn := r.fn
	r.mu.Unlock()
	fn(adv)
}

func (r *fakeRadio) Connect(_ context.Context, addr string) (transport.Conn, error) {
	return nil, errors.New("not connectable")
}

func adv(name, addr string) transport.Advertisement {
	return transport.Advertisement{Name: name, Addr: addr, RSSI: -60}
}

func TestDiscoverNext(t *testing.T) {
	radio := &fakeRadio{script: []transport.Advertisement{
		adv("NeuroPlay-6C (1232)", "aa:01"),
		adv("Polar H10 A1B2C3", "aa:02"),
		adv("NeuroPlay-8Cap (77)", "aa:03"),
	}}
	s := New(radio, WithTimeout(100*time.Millisecond))
	require.NoError(t, s.Start())
	defer s.Close()

	got, err := s.DiscoverNext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, device.Model6C, got.Type)
	assert.Equal(t, 1232, got.ID)

	got, err = s.DiscoverNext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, device.Model8Cap, got.Type)

	_, err = s.DiscoverNext(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestDiscoverNextNotStarted(t *testing.T) {
	s := New(&fakeRadio{})
	_, err := s.DiscoverNext(context.Background())
	assert.Error(t, err)
}

func TestDiscoverNextCancellation(t *testing.T) {
	radio := &fakeRadio{}
	s := New(radio)
	require.NoError(t, s.Start())
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.DiscoverNext(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTypeFilter(t *testing.T) {
	radio := &fakeRadio{script: []transport.Advertisement{
		adv("NeuroPlay-8Cap (77)", "aa:03"),
		adv("NeuroPlay-6C (1232)", "aa:01"),
	}}
	s := New(radio, WithType(device.Model6C), WithTimeout(100*time.Millisecond))
	require.NoError(t, s.Start())
	defer s.Close()

	got, err := s.DiscoverNext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, device.Model6C, got.Type)
	assert.Len(t, s.Discovered(), 1)
}

func TestDiscoveredAccumulation(t *testing.T) {
	radio := &fakeRadio{script: []transport.Advertisement{
		adv("NeuroPlay-6C (1232)", "aa:01"),
		adv("NeuroPlay-6C (1232)", "aa:01"), // duplicate advertisement
		adv("NeuroPlay-8Cap (77)", "aa:03"),
	}}
	s := New(radio)
	require.NoError(t, s.Start())
	defer s.Close()

	require.Eventually(t, func() bool {
		return len(s.Discovered()) == 2
	}, time.Second, time.Millisecond)

	s.ClearDiscovered()
	assert.Empty(t, s.Discovered())

	// A previously seen device is discovered anew after a clear.
	radio.advertise(t, adv("NeuroPlay-6C (1232)", "aa:01"))
	require.Eventually(t, func() bool {
		return len(s.Discovered()) == 1
	}, time.Second, time.Millisecond)
}

func TestStartStop(t *testing.T) {
	radio := &fakeRadio{}
	s := New(radio)

	require.NoError(t, s.Stop(), "stopping a stopped scanner is a no-op")
	require.NoError(t, s.Start())
	assert.Error(t, s.Start(), "double start must fail")
	require.NoError(t, s.Stop())
	require.NoError(t, s.Start(), "scanner must be restartable")
	require.NoError(t, s.Close())
}

func TestSearchFor(t *testing.T) {
	radio := &fakeRadio{script: []transport.Advertisement{
		adv("NeuroPlay-6C (1)", "aa:01"),
		adv("NeuroPlay-6C (1232)", "aa:02"),
	}}
	got, err := SearchFor(context.Background(), radio, device.Model6C, 1232, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1232, got.ID)
	assert.Equal(t, "aa:02", got.Addr)
}

func TestSearchForTimeout(t *testing.T) {
	radio := &fakeRadio{script: []transport.Advertisement{
		adv("NeuroPlay-6C (1)", "aa:01"),
	}}
	_, err := SearchFor(context.Background(), radio, device.Model6C, 1232, 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}
