// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package session implements the live connection to a NeuroPlay
// headset.
//
// A Session owns the connection lifecycle and the acquisition
// pipeline: every notification frame from the transport is decoded
// into per-channel sample batches which flow, in strict arrival
// order, through the channel quality monitor, the per-channel filter
// cascade, any registered raw and filtered batch handlers, and
// finally the timeline synchronizer whose gap-free output feeds the
// registered sample handlers.
//
// Filter, quality and synchronizer state belong exclusively to one
// session and are created fresh on every connect; a reconnect never
// resumes stale counters.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kortschak/neuroplay/device"
	"github.com/kortschak/neuroplay/filter"
	"github.com/kortschak/neuroplay/internal/telemetry"
	"github.com/kortschak/neuroplay/quality"
	"github.com/kortschak/neuroplay/timeline"
	"github.com/kortschak/neuroplay/transport"
)

// EEG GATT service and characteristic identifiers.
const (
	eegServiceID = "f0001298-0451-4000-b000-000000000000"
	eegDataID    = "f0001299-0451-4000-b000-000000000000"
	eegControlID = "f000129a-0451-4000-b000-000000000000"
)

// Device control commands.
var (
	startStream      = []byte{0x01, 0x00} // written to the data characteristic
	stopStream       = []byte{0x00, 0x00} // written to the data characteristic
	useEightChannels = []byte{0x01, 0x01} // written to the control characteristic
)

var (
	// ErrConnection indicates a transport handshake failure. The
	// caller may retry connecting.
	ErrConnection = errors.New("connection failed")
	// ErrState indicates an operation invoked in the wrong
	// lifecycle state.
	ErrState = errors.New("invalid session state")
)

// State is the connection lifecycle state of a Session.
type State uint8

const (
	Disconnected State = iota
	Connecting
	Connected
	Disconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnecting:
		return "disconnecting"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Batch is one decoded multi-channel sample tagged with its
// device-side sequence number. Batches are ephemeral; handlers must
// not retain the Values slice beyond the call.
type Batch struct {
	Seq    uint32
	Values []float64 // µV, one per channel
}

// BatchHandler receives raw or filtered sample batches.
type BatchHandler func(Batch)

// SampleHandler receives gap-free synchronized samples.
type SampleHandler func(timeline.Sample)

// Session is a connection to a single headset. Lifecycle transitions
// are serialized; decode and dispatch honor single-writer
// discipline over the filter, quality and synchronizer state.
type Session struct {
	desc  device.Descriptor
	radio transport.Radio

	log     zerolog.Logger
	metrics *telemetry.Metrics
	maxFill uint32

	mu    sync.Mutex // serializes lifecycle transitions
	state State
	conn  transport.Conn

	dispatchMu       sync.Mutex // guards everything below
	group            [][]byte
	filters          *filter.Bank
	monitor          *quality.Monitor
	synchro          *timeline.Synchronizer
	rawHandlers      []BatchHandler
	filteredHandlers []BatchHandler
	sampleHandlers   []SampleHandler
	disconnectHooks  []func()
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithMetrics sets the telemetry counters updated by the pipeline.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithMaxFill caps the synthetic run length used by the session's
// synchronizer. See timeline.WithMaxFill.
func WithMaxFill(n uint32) Option {
	return func(s *Session) { s.maxFill = n }
}

// New returns a Session for the described headset using the given
// radio. The session starts Disconnected.
func New(radio transport.Radio, desc device.Descriptor, opts ...Option) *Session {
	s := &Session{
		desc:    desc,
		radio:   radio,
		log:     zerolog.Nop(),
		maxFill: timeline.DefaultMaxFill,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = telemetry.New(nil)
	}
	s.monitor = quality.NewMonitor(desc.Type.Channels(), device.SampleRate)
	return s
}

// Descriptor returns the descriptor of the session's headset.
func (s *Session) Descriptor() device.Descriptor { return s.desc }

// Channels returns the electrode labels of the session's headset.
func (s *Session) Channels() []string { return s.desc.Type.Channels() }

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// HandleRaw registers fn to receive every decoded raw batch.
func (s *Session) HandleRaw(fn BatchHandler) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	s.rawHandlers = append(s.rawHandlers, fn)
}

// HandleFiltered registers fn to receive every filtered batch.
func (s *Session) HandleFiltered(fn BatchHandler) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	s.filteredHandlers = append(s.filteredHandlers, fn)
}

// HandleSamples registers fn to receive the synchronized, gap-free
// sample stream.
func (s *Session) HandleSamples(fn SampleHandler) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	s.sampleHandlers = append(s.sampleHandlers, fn)
}

// OnDisconnect registers fn to be called during Disconnect, before
// the transport connection is released. Recording sinks register
// their shutdown here so no file handle outlives the connection.
func (s *Session) OnDisconnect(fn func()) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	s.disconnectHooks = append(s.disconnectHooks, fn)
}

// Connect establishes the device connection and starts the sample
// stream. It is an idempotent no-op if the session is already
// Connected, and fails with an error wrapping ErrConnection if the
// transport handshake fails.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Connected:
		return nil
	case Disconnected:
	default:
		return fmt.Errorf("%w: connect while %s", ErrState, s.state)
	}
	s.state = Connecting

	conn, err := s.radio.Connect(ctx, s.desc.Addr)
	if err != nil {
		s.state = Disconnected
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	s.resetPipeline()

	// Start the sample stream and select the full electrode set,
	// then subscribe to data notifications.
	for _, w := range []struct {
		char string
		cmd  []byte
	}{
		{eegDataID, startStream},
		{eegControlID, useEightChannels},
	} {
		err = conn.Write(w.char, w.cmd)
		if err != nil {
			conn.Disconnect()
			s.state = Disconnected
			return fmt.Errorf("%w: %v", ErrConnection, err)
		}
	}
	err = conn.Notify(eegDataID, s.handleFrame)
	if err != nil {
		conn.Disconnect()
		s.state = Disconnected
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	s.conn = conn
	s.state = Connected
	s.log.Info().Stringer("device", s.desc).Msg("connected")
	return nil
}

// resetPipeline discards all per-connection acquisition state.
func (s *Session) resetPipeline() {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	n := len(s.Channels())
	s.group = s.group[:0]
	s.filters = filter.NewBank(n, device.SampleRate)
	s.monitor.Reset()
	s.synchro = timeline.New(n, SeqModulus,
		timeline.WithLogger(s.log),
		timeline.WithMetrics(s.metrics),
		timeline.WithMaxFill(s.maxFill),
	)
}

// ResetTimeline restarts synchronized sample indexing and sequence
// tracking. Recording sinks call this when a new recording starts so
// sample indices begin at zero.
func (s *Session) ResetTimeline() {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	if s.synchro != nil {
		s.synchro.Reset()
	}
}

// Disconnect stops the sample stream and releases the connection.
// Disconnect hooks run before the transport is released. It is a
// no-op if the session is not Connected.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Connected {
		return nil
	}
	s.state = Disconnecting
	s.log.Info().Stringer("device", s.desc).Msg("disconnecting")

	s.dispatchMu.Lock()
	hooks := append([]func(){}, s.disconnectHooks...)
	s.dispatchMu.Unlock()
	for _, fn := range hooks {
		fn()
	}

	err := s.conn.Write(eegDataID, stopStream)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to stop stream")
	}
	err = s.conn.Notify(eegDataID, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to disable notifications")
	}

	err = s.conn.Disconnect()
	s.conn = nil
	s.state = Disconnected
	s.log.Info().Stringer("device", s.desc).Msg("disconnected")
	return err
}

// Close implements io.Closer, releasing the connection
// unconditionally.
func (s *Session) Close() error { return s.Disconnect() }

// ValidateChannels returns the current per-channel quality verdicts
// from the rolling raw-sample window. The filter and window state
// need a short settling period after Connect; callers should wait at
// least one second before the first validation. It fails with an
// error wrapping ErrState if the session is not Connected.
func (s *Session) ValidateChannels() (map[string]quality.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Connected {
		return nil, fmt.Errorf("%w: validate while %s", ErrState, s.state)
	}
	return s.monitor.Statuses(), nil
}

// handleFrame is the notification callback. Malformed frames are
// counted, logged and dropped; they never alter the connection
// state.
func (s *Session) handleFrame(buf []byte) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.metrics.Frames.Inc()
	if len(buf) != packetSize {
		s.metrics.FrameErrors.Inc()
		s.log.Warn().Int("len", len(buf)).Msg("dropping malformed frame")
		return
	}
	// The notification buffer may be reused by the transport.
	s.group = append(s.group, bytes.Clone(buf))
	if len(s.group) < packetsPerGroup {
		return
	}
	if s.group[0][0]&packetIndexMask != 0 {
		// Group is not aligned on its head packet; drop the head
		// and wait for realignment.
		s.metrics.FrameErrors.Inc()
		s.log.Debug().Msg("resynchronizing packet group")
		s.group = append(s.group[:0], s.group[1:]...)
		return
	}

	batches, err := decodeGroup(s.group, s.desc.Type)
	s.group = s.group[:0]
	if err != nil {
		s.metrics.FrameErrors.Inc()
		s.log.Warn().Err(err).Msg("dropping undecodable packet group")
		return
	}

	for _, b := range batches {
		s.metrics.Batches.Inc()
		s.monitor.Observe(b.Values)
		filtered := Batch{Seq: b.Seq, Values: s.filters.Apply(b.Values)}
		for _, h := range s.rawHandlers {
			h(b)
		}
		for _, h := range s.filteredHandlers {
			h(filtered)
		}
		for _, smp := range s.synchro.Synchronize(b.Seq, b.Values, filtered.Values) {
			for _, h := range s.sampleHandlers {
				h(smp)
			}
		}
	}
}
