// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The neurorec command is a demonstration of the neuroplay driver:
// it finds a headset, checks electrode contact quality and records
// a timed session to an EDF+ file.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/kortschak/neuroplay/device"
	"github.com/kortschak/neuroplay/internal/telemetry"
	"github.com/kortschak/neuroplay/rec"
	"github.com/kortschak/neuroplay/scanner"
	"github.com/kortschak/neuroplay/session"
	"github.com/kortschak/neuroplay/transport"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfgPath := flag.String("config", "neurorec.yaml", "path to the configuration file")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger().Level(zerolog.InfoLevel)

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return 1
	}
	if cfg.Debug {
		log = log.Level(zerolog.DebugLevel)
	}

	reg := prometheus.NewRegistry()
	metrics := telemetry.New(reg)
	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			err := http.ListenAndServe(cfg.MetricsAddr, mux)
			if err != nil {
				log.Warn().Err(err).Msg("metrics listener failed")
			}
		}()
	}

	radio, err := transport.NewBLE()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialise bluetooth")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.Info().Str("model", cfg.Device.Model).Int("id", cfg.Device.ID).Msg("scanning")
	desc, err := scanner.SearchFor(ctx, radio,
		device.TypeForName(cfg.Device.Model), cfg.Device.ID, cfg.ScanTimeout)
	if err != nil {
		log.Error().Err(err).Msg("device not found")
		return 1
	}

	sess := session.New(radio, desc,
		session.WithLogger(log),
		session.WithMetrics(metrics),
	)
	recorder := rec.NewRecorder(sess.Channels(), device.SampleRate,
		rec.WithRecorderLogger(log),
		rec.WithRecorderMetrics(metrics),
	)
	recorder.Bind(sess)

	err = sess.Connect(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to connect")
		return 1
	}
	defer sess.Close()

	// Let the filters converge before judging electrode contact.
	select {
	case <-ctx.Done():
		return 0
	case <-time.After(cfg.Settle):
	}
	statuses, err := sess.ValidateChannels()
	if err != nil {
		log.Error().Err(err).Msg("failed to validate channels")
		return 1
	}
	for channel, status := range statuses {
		log.Info().Str("channel", channel).Stringer("status", status).Msg("electrode contact")
	}

	err = recorder.StartRecording(cfg.Output)
	if err != nil {
		log.Error().Err(err).Msg("failed to start recording")
		return 1
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("interrupted")
		err = recorder.WriteAnnotation("recording interrupted")
		if err != nil {
			log.Warn().Err(err).Msg("failed to annotate interruption")
		}
	case <-time.After(cfg.Duration):
	}

	// Session close stops the recording before the connection is
	// released, but stopping explicitly surfaces conversion errors.
	err = recorder.StopRecording()
	if err != nil {
		log.Error().Err(err).Msg("failed to finalise recording")
		return 1
	}
	log.Info().Str("path", cfg.Output).Msg("recording complete")
	return 0
}
