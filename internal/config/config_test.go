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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/maap-project/maapd/internal/engine"
)

func TestLoadNoPathAppliesDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.SocketPath != defaultSocketPath {
		t.Errorf("SocketPath = %q, want %q", c.SocketPath, defaultSocketPath)
	}
	if c.PoolBase != engine.DynamicPoolBase || c.PoolLength != engine.DynamicPoolSize {
		t.Errorf("pool = [0x%x, +0x%x), want IEEE dynamic pool", c.PoolBase, c.PoolLength)
	}
	if c.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", c.LogLevel)
	}
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "maapd.json")
	const body = `{"interface":"eth0","logLevel":"debug","poolBase":4096,"poolLength":256}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Interface != "eth0" {
		t.Errorf("Interface = %q, want eth0", c.Interface)
	}
	if c.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", c.LogLevel)
	}
	if c.PoolBase != 4096 || c.PoolLength != 256 {
		t.Errorf("pool = [%d, +%d), want [4096, +256)", c.PoolBase, c.PoolLength)
	}
	// socketPath was absent from the file, so the default still applies.
	if c.SocketPath != defaultSocketPath {
		t.Errorf("SocketPath = %q, want default", c.SocketPath)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load("/no/such/maapd.json"); err == nil {
		t.Fatal("Load: want error for missing file")
	}
}

func TestValidateRequiresInterfaceUnlessFake(t *testing.T) {
	c, _ := Load("")
	if err := c.Validate(); err == nil {
		t.Fatal("Validate: want error, no interface set")
	}

	c.FakeInterface = true
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v, want nil with fakeInterface", err)
	}

	c.FakeInterface = false
	c.Interface = "eth0"
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v, want nil with interface set", err)
	}
}

func TestValidateRejectsPoolOverflow(t *testing.T) {
	c, _ := Load("")
	c.Interface = "eth0"
	c.PoolBase = (1 << 48) - 10
	c.PoolLength = 20
	if err := c.Validate(); err == nil {
		t.Fatal("Validate: want error, pool overflows 48-bit space")
	}
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	c, _ := Load("")
	c.Interface = "eth0"
	c.LogLevel = "verbose"
	if err := c.Validate(); err == nil {
		t.Fatal("Validate: want error, unknown log level")
	}
}
