// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scanner implements discovery of NeuroPlay headsets.
//
// A Scanner brackets a discovery session: Start begins listening for
// advertisements, DiscoverNext yields devices as they are found, and
// Stop releases the radio. Discovered devices accumulate until
// ClearDiscovered is called; reusing a scanner without clearing
// replays nothing but also discovers nothing already seen.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kortschak/neuroplay/device"
	"github.com/kortschak/neuroplay/transport"
)

// ErrTimeout is returned by DiscoverNext and SearchFor when no
// matching device arrives within the discovery window. The scanner
// remains valid for retry.
var ErrTimeout = errors.New("discovery timed out")

// DefaultTimeout is the discovery window applied when the caller
// provides no deadline.
const DefaultTimeout = 5 * time.Second

// Scanner is a restartable device discovery session. A Scanner owns
// its discovered-device set exclusively; no two scanners share
// state.
type Scanner struct {
	radio   transport.Radio
	typ     device.Type
	timeout time.Duration
	log     zerolog.Logger

	mu         sync.Mutex
	running    bool
	seen       map[string]bool
	discovered []device.Descriptor
	found      chan device.Descriptor
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithType restricts discovery to the given device type. The default
// is device.All.
func WithType(t device.Type) Option {
	return func(s *Scanner) { s.typ = t }
}

// WithTimeout sets the default discovery window for DiscoverNext
// calls whose context carries no deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *Scanner) { s.timeout = d }
}

// WithLogger sets the scanner's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Scanner) { s.log = log }
}

// New returns a Scanner using the given radio.
func New(radio transport.Radio, opts ...Option) *Scanner {
	s := &Scanner{
		radio:   radio,
		typ:     device.All,
		timeout: DefaultTimeout,
		log:     zerolog.Nop(),
		seen:    make(map[string]bool),
		found:   make(chan device.Descriptor, 16),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins listening for advertisements. It returns an error if
// the scanner is already running.
func (s *Scanner) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scanner already started")
	}
	s.running = true
	go func() {
		err := s.radio.Scan(s.onAdvertisement)
		if err != nil {
			s.log.Warn().Err(err).Msg("scan terminated")
		}
	}()
	return nil
}

// Stop terminates a running discovery session. Stopping a scanner
// that is not running is a no-op. The discovered-device set is
// retained.
func (s *Scanner) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	return s.radio.StopScan()
}

// Close stops the scanner and clears the discovered-device set. It
// makes Scanner usable with defer as a scoped resource.
func (s *Scanner) Close() error {
	err := s.Stop()
	s.ClearDiscovered()
	return err
}

func (s *Scanner) onAdvertisement(adv transport.Advertisement) {
	if adv.Name == "" || !strings.Contains(adv.Name, s.typ.String()) {
		return
	}
	desc, err := device.ParseName(adv.Name, adv.Addr)
	if err != nil {
		s.log.Debug().Err(err).Str("name", adv.Name).Msg("ignoring advertisement")
		return
	}
	if !s.typ.Matches(desc.Type) {
		return
	}
	s.mu.Lock()
	if s.seen[desc.Addr] {
		s.mu.Unlock()
		return
	}
	s.seen[desc.Addr] = true
	s.discovered = append(s.discovered, desc)
	s.mu.Unlock()

	s.log.Info().Stringer("device", desc).Msg("found device")
	select {
	case s.found <- desc:
	default:
		// DiscoverNext is not keeping up; the device is still
		// recorded in the discovered set.
		s.log.Warn().Stringer("device", desc).Msg("discovery queue full")
	}
}

// DiscoverNext returns the next newly discovered device. When ctx
// carries no deadline the scanner's default timeout bounds the wait.
// It fails with ErrTimeout if no new device arrives in the window;
// the scanner remains valid for retry.
func (s *Scanner) DiscoverNext(ctx context.Context) (device.Descriptor, error) {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return device.Descriptor{}, errors.New("scanner not started")
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	select {
	case desc := <-s.found:
		return desc, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return device.Descriptor{}, ErrTimeout
		}
		return device.Descriptor{}, ctx.Err()
	}
}

// Discovered returns the devices found since the last
// ClearDiscovered call, in discovery order. Devices are deduplicated
// by transport address; a device re-advertising under a new name is
// not reported again.
func (s *Scanner) Discovered() []device.Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]device.Descriptor(nil), s.discovered...)
}

// ClearDiscovered empties the discovered-device set. Without a clear
// the set accumulates across discovery sessions and addresses already
// seen are not reported again.
func (s *Scanner) ClearDiscovered() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = make(map[string]bool)
	s.discovered = s.discovered[:0]
	for {
		select {
		case <-s.found:
		default:
			return
		}
	}
}

// SearchFor scans for a device of the given type with the given
// numeric id, returning its descriptor. It fails with ErrTimeout if
// no matching device is found within timeout.
func SearchFor(ctx context.Context, radio transport.Radio, typ device.Type, id int, timeout time.Duration) (device.Descriptor, error) {
	s := New(radio, WithType(typ), WithTimeout(timeout))
	err := s.Start()
	if err != nil {
		return device.Descriptor{}, err
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for {
		desc, err := s.DiscoverNext(ctx)
		if err != nil {
			return device.Descriptor{}, fmt.Errorf("no %s (%d) found: %w", typ, id, err)
		}
		if desc.ID == id {
			return desc, nil
		}
	}
}
