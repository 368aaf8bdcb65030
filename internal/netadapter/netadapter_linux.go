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

//go:build linux

package netadapter

import (
	"encoding/binary"

	"golang.org/x/sys/unix"

	"github.com/maap-project/maapd/internal/pdu"
)

// htons converts a host-order uint16 to network byte order, the same
// constant j-keck/arping hand-computes for ETH_P_ARP.
func htons(v uint16) uint16 {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, v)
	return uint16(buf[0]) | uint16(buf[1])<<8
}

type linuxConn struct {
	fd      int
	ifindex int
}

func openRawConn(ifindex int) (rawConn, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(pdu.EtherType)))
	if err != nil {
		return nil, err
	}
	sa := &unix.SockaddrLinklayer{
		Protocol: htons(pdu.EtherType),
		Ifindex:  ifindex,
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &linuxConn{fd: fd, ifindex: ifindex}, nil
}

func (c *linuxConn) Send(frame []byte) error {
	sa := &unix.SockaddrLinklayer{
		Protocol: htons(pdu.EtherType),
		Ifindex:  c.ifindex,
	}
	return unix.Sendto(c.fd, frame, 0, sa)
}

func (c *linuxConn) Recv(buf []byte) (int, error) {
	n, _, err := unix.Recvfrom(c.fd, buf, 0)
	return n, err
}

func (c *linuxConn) Close() error {
	return unix.Close(c.fd)
}
