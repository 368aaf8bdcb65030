// Copyright 2024 The MAAP Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads maapd's daemon configuration, the way
// plugins/ipam/host-local/backend/allocator loads IPAMConfig: a
// JSON-tagged struct decoded with encoding/json, validated field by
// field, with defaults filled in after decode.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/maap-project/maapd/internal/engine"
	"github.com/maap-project/maapd/pkg/errors"
)

const (
	defaultSocketPath = "/run/maapd/maapd.sock"
	defaultPoolBase   = engine.DynamicPoolBase
	defaultPoolLen    = engine.DynamicPoolSize
)

// Config is the daemon's full configuration, assembled from an
// optional JSON file (-config) and overridden by CLI flags.
type Config struct {
	// Interface is the network interface maapd binds its raw socket
	// to. Required.
	Interface string `json:"interface"`

	// SocketPath is the control channel's Unix domain socket path.
	SocketPath string `json:"socketPath"`

	// PidFile is an optional path to write the daemon's PID to.
	PidFile string `json:"pidFile"`

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `json:"logLevel"`

	// PoolBase and PoolLength describe the 48-bit MAC range maapd
	// allocates out of. They default to the IEEE 1722 dynamic pool.
	PoolBase   uint64 `json:"poolBase"`
	PoolLength uint32 `json:"poolLength"`

	// FakeInterface runs maapd against an in-process simulated bus
	// instead of a real raw socket, for environments without
	// CAP_NET_RAW.
	FakeInterface bool `json:"fakeInterface"`
}

// Load reads a JSON config file, if path is non-empty, and returns a
// Config with defaults applied. An empty path yields an all-defaults
// Config ready for flag overrides.
func Load(path string) (*Config, error) {
	c := &Config{
		SocketPath: defaultSocketPath,
		LogLevel:   "info",
		PoolBase:   defaultPoolBase,
		PoolLength: defaultPoolLen,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Annotatef(err, "config: read %q", path)
		}
		if err := json.Unmarshal(data, c); err != nil {
			return nil, errors.Annotatef(err, "config: parse %q", path)
		}
	}

	c.applyDefaults()
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.SocketPath == "" {
		c.SocketPath = defaultSocketPath
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.PoolBase == 0 {
		c.PoolBase = defaultPoolBase
	}
	if c.PoolLength == 0 {
		c.PoolLength = defaultPoolLen
	}
}

// Validate checks that the configuration is complete enough to start
// the daemon.
func (c *Config) Validate() error {
	if c.Interface == "" && !c.FakeInterface {
		return fmt.Errorf("config: interface is required (or set fakeInterface)")
	}
	if c.SocketPath == "" {
		return fmt.Errorf("config: socketPath must not be empty")
	}
	if c.PoolLength == 0 {
		return fmt.Errorf("config: poolLength must be non-zero")
	}
	if c.PoolBase+uint64(c.PoolLength) > 1<<48 {
		return fmt.Errorf("config: pool [0x%012x, +0x%x) overflows the 48-bit MAC space", c.PoolBase, c.PoolLength)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown logLevel %q", c.LogLevel)
	}
	return nil
}
