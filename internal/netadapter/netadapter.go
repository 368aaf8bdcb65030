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

// Package netadapter is the engine's network collaborator: a raw
// AF_PACKET socket bound to the MAAP ethertype on one interface. It
// implements engine.NetSender and hands received frames to the caller
// through a blocking Recv; the protocol core never touches a socket
// directly.
package netadapter

import (
	"net"

	"github.com/vishvananda/netlink"

	"github.com/maap-project/maapd/pkg/errors"
)

// Adapter binds the MAAP protocol to one network interface.
type Adapter struct {
	ifaceName string
	hwAddr    net.HardwareAddr
	conn      rawConn
}

// rawConn is the OS-specific raw-socket half; see netadapter_linux.go.
type rawConn interface {
	Send(frame []byte) error
	Recv(buf []byte) (int, error)
	Close() error
}

// Open resolves ifaceName, ensures the link is up (mirroring
// plugins/ipam/dhcp/lease.go's acquire()), and binds a raw socket
// filtered to the MAAP ethertype.
func Open(ifaceName string) (*Adapter, error) {
	link, err := netlink.LinkByName(ifaceName)
	if err != nil {
		return nil, errors.Annotatef(err, "netadapter: lookup %q", ifaceName)
	}
	if link.Attrs().Flags&net.FlagUp == 0 {
		if err := netlink.LinkSetUp(link); err != nil {
			return nil, errors.Annotatef(err, "netadapter: bring up %q", ifaceName)
		}
	}

	conn, err := openRawConn(link.Attrs().Index)
	if err != nil {
		return nil, errors.Annotatef(err, "netadapter: open raw socket on %q", ifaceName)
	}

	return &Adapter{
		ifaceName: ifaceName,
		hwAddr:    link.Attrs().HardwareAddr,
		conn:      conn,
	}, nil
}

// HardwareAddr is the interface's MAC address, used as the engine's
// source MAC and stream ID.
func (a *Adapter) HardwareAddr() net.HardwareAddr {
	return a.hwAddr
}

// Send transmits a fully-encoded MAAP frame. Implements engine.NetSender.
func (a *Adapter) Send(frame []byte) error {
	return a.conn.Send(frame)
}

// Recv blocks until a frame arrives or the adapter is closed, then
// copies it into buf and returns its length.
func (a *Adapter) Recv(buf []byte) (int, error) {
	return a.conn.Recv(buf)
}

// Close releases the underlying socket.
func (a *Adapter) Close() error {
	return a.conn.Close()
}
