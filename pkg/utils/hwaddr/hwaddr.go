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

// Package hwaddr generates synthetic source MAC addresses for running
// the engine without a real network interface (tests, --fake-iface).
package hwaddr

import (
	"crypto/rand"
	"net"
)

// The first byte of a MAC has two special bits:
// 1. The least-significant bit: 0 for unicast, 1 for multicast.
// 2. The second-least-significant bit: 0 for globally unique, 1 for
// locally administered.
// Fixing the two LSb of the first byte to 10 keeps generated addresses
// unicast and locally administered, avoiding collisions with real OUIs.
var localOUI = []byte{0x02, 0x00, 0x00}

// GenerateMAC returns a locally-administered unicast MAC with a fixed
// OUI prefix and a random host part. Used as the engine's source MAC
// when no real interface is bound.
func GenerateMAC() net.HardwareAddr {
	hw := make(net.HardwareAddr, 6)
	copy(hw[:3], localOUI)
	_, _ = rand.Read(hw[3:])
	return hw
}
