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

// Package engine implements the MAAP protocol engine: the interval
// allocator, the per-range probing/defending state machine, conflict
// arbitration on incoming packets, and the timer-driven retransmit and
// announce schedule described in IEEE 1722-2016 Annex B.
package engine

import (
	"errors"
	"time"

	"github.com/maap-project/maapd/internal/interval"
)

// Protocol constants from IEEE 1722-2016 Table B.8.
const (
	ProbeRetransmits        = 3
	ProbeIntervalBase       = 500 * time.Millisecond
	ProbeIntervalVariation  = 100 * time.Millisecond
	AnnounceIntervalBase    = 30000 * time.Millisecond
	AnnounceIntervalVariation = 2000 * time.Millisecond
)

// DynamicPoolBase and DynamicPoolSize are the well-known MAAP dynamic
// allocation pool bounds (IEEE 1722-2016 Table B.9).
const (
	DynamicPoolBase uint64 = 0x91E0F0000000
	DynamicPoolSize uint32 = 0xFE00
)

// State is a Range's place in the probe/defend/release lifecycle.
type State int

const (
	// StateInvalid is a sentinel never observed outside the package.
	StateInvalid State = iota
	StateProbing
	StateDefending
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateProbing:
		return "Probing"
	case StateDefending:
		return "Defending"
	case StateReleased:
		return "Released"
	default:
		return "Invalid"
	}
}

// Sender is an opaque token identifying the entity that requested a
// command; the engine round-trips it unchanged into every notification
// it produces for that command. It is never interpreted by the engine.
type Sender = interface{}

// Range is the local representation of a reservation or in-progress
// probe. Its interval is derived from Start and Length by toInterval;
// the tree stores that interval with the Range as its Owner
// back-pointer, and Range never holds a tree node.
type Range struct {
	ID      int
	State   State
	Counter int

	NextActTime time.Time

	Start  uint64
	Length uint32

	Sender Sender
}

// Key implements timerqueue.Item.
func (r *Range) Key() time.Time { return r.NextActTime }

func (r *Range) high() uint64 { return r.Start + uint64(r.Length) - 1 }

func (r *Range) toInterval() interval.Interval {
	return interval.Interval{Low: r.Start, High: r.high(), Owner: r}
}

// Errors surfaced to callers or folded into notifications, per spec.md §7.
var (
	ErrMalformedPDU       = errors.New("engine: malformed MAAP pdu")
	ErrNotMAAP            = errors.New("engine: not a MAAP frame")
	ErrNoFreeRange        = errors.New("engine: no free address range available")
	ErrUnknownID          = errors.New("engine: unknown range id")
	ErrNotInitialized     = errors.New("engine: client not initialized")
	ErrAlreadyInitialized = errors.New("engine: client already initialized")
	ErrSendFailed         = errors.New("engine: send failed")
)
