// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kortschak/neuroplay/device"
)

type config struct {
	Device      deviceConfig  `yaml:"device"`
	ScanTimeout time.Duration `yaml:"scan_timeout"`
	Settle      time.Duration `yaml:"settle"`
	Duration    time.Duration `yaml:"duration"`
	Output      string        `yaml:"output"`
	MetricsAddr string        `yaml:"metrics_addr"`
	Debug       bool          `yaml:"debug"`
}

type deviceConfig struct {
	Model string `yaml:"model"`
	ID    int    `yaml:"id"`
}

func loadConfig(path string) (*config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	err = yaml.Unmarshal(raw, &cfg)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	err = cfg.validate()
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *config) applyDefaults() {
	if c.Device.Model == "" {
		c.Device.Model = device.All.String()
	}
	if c.ScanTimeout == 0 {
		c.ScanTimeout = 30 * time.Second
	}
	if c.Settle == 0 {
		c.Settle = 2 * time.Second
	}
	if c.Duration == 0 {
		c.Duration = time.Minute
	}
	if c.Output == "" {
		c.Output = "recording.edf"
	}
}

func (c *config) validate() error {
	if device.TypeForName(c.Device.Model) == device.Undefined {
		return fmt.Errorf("unknown device model: %q", c.Device.Model)
	}
	if c.Device.ID == 0 {
		return fmt.Errorf("device id is required")
	}
	return nil
}
