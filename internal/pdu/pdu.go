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

// Package pdu encodes and decodes the 42-byte MAAP Ethernet frame
// defined by IEEE 1722-2016 Annex B.
package pdu

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Size is the fixed length of a MAAP Ethernet frame in bytes.
const Size = 42

// EtherType is the AVTP ethertype carried by every MAAP frame
// (IEEE 1722-2016 Table 5).
const EtherType = 0x22F0

// Subtype identifies the AVTP subtype for MAAP (IEEE 1722-2016 Table 6).
const Subtype = 0xFE

// Version is the only MAAP protocol version this codec understands.
const Version = 0

// mVersion is the maap_version field value (IEEE 1722-2016 Annex B).
const mVersion = 0

// dataLength is the fixed maap_data_length field value: everything
// after the common AVTP header, in bytes.
const dataLength = 16

// DestMAC is the well-known MAAP multicast destination address
// (IEEE 1722-2016 Table B.10).
var DestMAC = [6]byte{0x91, 0xE0, 0xF0, 0x00, 0xFF, 0x00}

// MessageType identifies the MAAP message kind.
type MessageType uint8

const (
	Probe    MessageType = 1
	Defend   MessageType = 2
	Announce MessageType = 3
)

func (m MessageType) String() string {
	switch m {
	case Probe:
		return "Probe"
	case Defend:
		return "Defend"
	case Announce:
		return "Announce"
	default:
		return fmt.Sprintf("MessageType(%d)", uint8(m))
	}
}

// Errors returned by Decode.
var (
	// ErrNotMAAP is returned when the frame's ethertype or destination MAC
	// identifies it as belonging to a different protocol; the caller
	// should dispatch it elsewhere rather than treating it as an error.
	ErrNotMAAP = errors.New("pdu: not a MAAP frame")

	// ErrMalformed wraps every other decode failure: short buffer, wrong
	// subtype, unsupported version, or a length field mismatch.
	ErrMalformed = errors.New("pdu: malformed MAAP frame")
)

// PDU is the decoded form of a MAAP Ethernet frame.
type PDU struct {
	DestMAC  [6]byte
	SrcMAC   [6]byte
	Message  MessageType
	StreamID uint64 // sender identity; the source MAC zero-extended

	RequestStart uint64
	RequestCount uint16

	ConflictStart uint64
	ConflictCount uint16
}

// Encode serializes pdu into buf, which must be at least Size bytes.
// It returns the number of bytes written (always Size).
func Encode(p *PDU, buf []byte) (int, error) {
	if len(buf) < Size {
		return 0, fmt.Errorf("pdu: buffer too small: need %d, got %d", Size, len(buf))
	}

	copy(buf[0:6], p.DestMAC[:])
	copy(buf[6:12], p.SrcMAC[:])
	binary.BigEndian.PutUint16(buf[12:14], EtherType)

	buf[14] = Subtype

	// SV(1) | version(3) | message_type(4)
	buf[15] = (Version << 4) | (uint8(p.Message) & 0x0F)

	// maap_version(5) | maap_data_length(11)
	binary.BigEndian.PutUint16(buf[16:18], (uint16(mVersion)<<11)|dataLength)

	binary.BigEndian.PutUint64(buf[18:26], p.StreamID)

	putMAC48(buf[26:32], p.RequestStart)
	binary.BigEndian.PutUint16(buf[32:34], p.RequestCount)

	putMAC48(buf[34:40], p.ConflictStart)
	binary.BigEndian.PutUint16(buf[40:42], p.ConflictCount)

	return Size, nil
}

// Decode parses buf into a PDU. It returns ErrNotMAAP if the frame's
// ethertype or destination MAC mark it as foreign (so the host can fast
// reject), or ErrMalformed wrapping a more specific reason for any other
// decode failure.
func Decode(buf []byte) (*PDU, error) {
	if len(buf) < 14 {
		return nil, fmt.Errorf("%w: %d bytes, need at least 14", ErrMalformed, len(buf))
	}

	ethertype := binary.BigEndian.Uint16(buf[12:14])
	if ethertype != EtherType {
		return nil, ErrNotMAAP
	}

	var destMAC [6]byte
	copy(destMAC[:], buf[0:6])
	if destMAC != DestMAC {
		return nil, ErrNotMAAP
	}

	if len(buf) < Size {
		return nil, fmt.Errorf("%w: %d bytes, need %d", ErrMalformed, len(buf), Size)
	}

	if buf[14] != Subtype {
		return nil, fmt.Errorf("%w: subtype %#x, want %#x", ErrMalformed, buf[14], Subtype)
	}

	version := (buf[15] >> 4) & 0x07
	if version != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformed, version)
	}

	word := binary.BigEndian.Uint16(buf[16:18])
	length := word & 0x07FF
	if length != dataLength {
		return nil, fmt.Errorf("%w: maap_data_length %d, want %d", ErrMalformed, length, dataLength)
	}

	p := &PDU{
		DestMAC: destMAC,
		Message: MessageType(buf[15] & 0x0F),
	}
	copy(p.SrcMAC[:], buf[6:12])
	p.StreamID = binary.BigEndian.Uint64(buf[18:26])
	p.RequestStart = mac48(buf[26:32])
	p.RequestCount = binary.BigEndian.Uint16(buf[32:34])
	p.ConflictStart = mac48(buf[34:40])
	p.ConflictCount = binary.BigEndian.Uint16(buf[40:42])

	return p, nil
}

// putMAC48 writes the low 48 bits of v as a 6-byte big-endian MAC-style
// address field.
func putMAC48(buf []byte, v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	copy(buf, tmp[2:8])
}

// mac48 reads a 6-byte big-endian MAC-style address field into a uint64.
func mac48(buf []byte) uint64 {
	var tmp [8]byte
	copy(tmp[2:8], buf)
	return binary.BigEndian.Uint64(tmp[:])
}
