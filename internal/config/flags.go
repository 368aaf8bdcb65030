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

import "flag"

// FlagSet describes the daemon's command-line flags, mirroring
// plugins/ipam/dhcp/main.go's "daemon" flag handling. Bind registers
// them against fs; the caller parses fs and then calls Override.
type FlagSet struct {
	configPath string
	iface      string
	socketPath string
	pidFile    string
	logLevel   string
	fakeIface  bool
}

// Bind registers maapd's flags on fs.
func Bind(fs *flag.FlagSet) *FlagSet {
	f := &FlagSet{}
	fs.StringVar(&f.configPath, "config", "", "optional path to a JSON config file")
	fs.StringVar(&f.iface, "iface", "", "network interface to bind the MAAP raw socket to")
	fs.StringVar(&f.socketPath, "socketpath", "", "control channel Unix domain socket path")
	fs.StringVar(&f.pidFile, "pidfile", "", "optional path to write the daemon PID to")
	fs.StringVar(&f.logLevel, "loglevel", "", "log level: debug, info, warn, error")
	fs.BoolVar(&f.fakeIface, "fake-iface", false, "use an in-process simulated interface instead of a raw socket")
	return f
}

// ConfigPath returns the -config flag's value, for the caller to pass
// to Load before applying Override.
func (f *FlagSet) ConfigPath() string {
	return f.configPath
}

// Override applies any flags the user explicitly set on top of c,
// which should already have been produced by Load(f.ConfigPath()).
func (f *FlagSet) Override(c *Config) {
	if f.iface != "" {
		c.Interface = f.iface
	}
	if f.socketPath != "" {
		c.SocketPath = f.socketPath
	}
	if f.pidFile != "" {
		c.PidFile = f.pidFile
	}
	if f.logLevel != "" {
		c.LogLevel = f.logLevel
	}
	if f.fakeIface {
		c.FakeInterface = true
	}
}
