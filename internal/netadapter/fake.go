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

package netadapter

import (
	"errors"
	"net"
)

// Fake is an in-process stand-in for Adapter, used by --fake-iface
// runs (no CAP_NET_RAW available). Frames
// sent on it are delivered to every other Fake in the same Bus.
type Fake struct {
	hwAddr net.HardwareAddr
	bus    *Bus
	inbox  chan []byte
	closed chan struct{}
}

// Bus fans out frames sent by any attached Fake to every other Fake
// attached to it, approximating a shared layer-2 segment.
type Bus struct {
	members []*Fake
}

// NewBus returns an empty shared segment.
func NewBus() *Bus {
	return &Bus{}
}

// NewFake attaches a new simulated adapter with the given source MAC to
// the bus.
func (b *Bus) NewFake(hwAddr net.HardwareAddr) *Fake {
	f := &Fake{
		hwAddr: hwAddr,
		bus:    b,
		inbox:  make(chan []byte, 64),
		closed: make(chan struct{}),
	}
	b.members = append(b.members, f)
	return f
}

// HardwareAddr returns the simulated adapter's source MAC.
func (f *Fake) HardwareAddr() net.HardwareAddr {
	return f.hwAddr
}

// Send delivers frame to every other member of the bus.
func (f *Fake) Send(frame []byte) error {
	cp := append([]byte(nil), frame...)
	for _, m := range f.bus.members {
		if m == f {
			continue
		}
		select {
		case m.inbox <- cp:
		case <-m.closed:
		}
	}
	return nil
}

// Recv blocks until a frame arrives or the adapter is closed.
func (f *Fake) Recv(buf []byte) (int, error) {
	select {
	case frame := <-f.inbox:
		n := copy(buf, frame)
		return n, nil
	case <-f.closed:
		return 0, errors.New("netadapter: fake adapter closed")
	}
}

// Close stops delivery to this adapter.
func (f *Fake) Close() error {
	close(f.closed)
	return nil
}
