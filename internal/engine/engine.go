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

package engine

import (
	"encoding/binary"
	"io"
	"log"
	"math"
	"time"

	"github.com/maap-project/maapd/internal/interval"
	"github.com/maap-project/maapd/internal/pdu"
	"github.com/maap-project/maapd/internal/timerqueue"
)

// NetSender is the engine's only outbound collaborator: transmitting a
// fully-encoded MAAP Ethernet frame. Implementations live in
// internal/netadapter; tests supply a recording fake.
type NetSender interface {
	Send(frame []byte) error
}

// Engine is one bound-to-one-interface MAAP client, equivalent to the
// original Maap_Client. It is single-threaded cooperative: none of its
// entry points block, and callers must serialize access.
type Engine struct {
	initialized bool

	destMAC  [6]byte
	srcMAC   [6]byte
	streamID uint64

	poolBase uint64
	poolLen  uint32

	tree   *interval.Tree
	timers *timerqueue.Queue
	ranges map[int]*Range
	maxID  int

	notifies notifyQueue

	rng  Source
	send NetSender
	now  func() time.Time

	logger *log.Logger
}

// New constructs an Engine. send transmits outbound frames; rng and now
// may be nil to use real randomness/real time, or supplied by tests for
// determinism. logger may be nil to discard log output.
func New(send NetSender, rng Source, now func() time.Time, logger *log.Logger) *Engine {
	if rng == nil {
		rng = newDefaultSource()
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Engine{send: send, rng: rng, now: now, logger: logger}
}

func macToStreamID(mac [6]byte) uint64 {
	var tmp [8]byte
	copy(tmp[2:], mac[:])
	return binary.BigEndian.Uint64(tmp[:])
}

// Init sets up the engine's configuration, in response to a MAAP_CMD_INIT
// command. Re-initializing an already-initialized engine fails with
// ErrAlreadyInitialized unless Deinit was called first.
func (e *Engine) Init(sender Sender, destMAC, srcMAC [6]byte, poolBase uint64, poolLen uint32) error {
	if e.initialized {
		e.notifies.push(sender, Notify{Kind: NotifyInitFailed})
		return ErrAlreadyInitialized
	}

	e.destMAC = destMAC
	e.srcMAC = srcMAC
	e.streamID = macToStreamID(srcMAC)
	e.poolBase = poolBase
	e.poolLen = poolLen
	e.tree = interval.New()
	e.timers = timerqueue.New()
	e.ranges = make(map[int]*Range)
	e.maxID = 0
	e.initialized = true

	e.notifies.push(sender, Notify{Kind: NotifyInitialized})
	return nil
}

// Deinit releases every owned range (each emitting RELEASED) and resets
// the engine so a subsequent Init is accepted. Supplements spec.md with
// the original maap_deinit_client entry point (see SPEC_FULL.md).
func (e *Engine) Deinit() {
	if !e.initialized {
		return
	}
	for id, r := range e.ranges {
		e.removeRange(r)
		e.notifies.push(r.Sender, Notify{Kind: NotifyReleased, ID: id, Start: r.Start, Count: r.Length})
	}
	e.tree = nil
	e.timers = nil
	e.ranges = nil
	e.initialized = false
}

// ReserveRange begins claiming length addresses within the configured
// pool, in response to a MAAP_CMD_RESERVE command. It returns the new
// range's id, or -1 with ErrNoFreeRange if no disjoint sub-range could
// be found within the bounded search.
func (e *Engine) ReserveRange(sender Sender, length uint32) (int, error) {
	if !e.initialized {
		return -1, ErrNotInitialized
	}
	if length == 0 || length > 0xFFFF {
		e.notifies.push(sender, Notify{Kind: NotifyReserveFailed})
		return -1, ErrNoFreeRange
	}

	poolEnd := e.poolBase + uint64(e.poolLen) - 1
	low, _, ok := e.tree.FindFree(e.poolBase, poolEnd, uint64(length), e.rng)
	if !ok {
		e.notifies.push(sender, Notify{Kind: NotifyReserveFailed})
		return -1, ErrNoFreeRange
	}

	e.maxID++
	r := &Range{
		ID:      e.maxID,
		State:   StateProbing,
		Counter: ProbeRetransmits,
		Start:   low,
		Length:  length,
		Sender:  sender,
	}
	if err := e.tree.Insert(r.toInterval()); err != nil {
		// FindFree just proved this range is free; an insert failure here
		// would mean the tree is corrupt, not a normal runtime condition.
		e.logger.Printf("range %d: insert of just-found-free interval failed: %v", r.ID, err)
		e.notifies.push(sender, Notify{Kind: NotifyReserveFailed})
		return -1, ErrNoFreeRange
	}
	e.ranges[r.ID] = r

	r.NextActTime = e.now().Add(jitter(e.rng, 0, ProbeIntervalVariation))
	e.timers.Push(r)

	e.sendMessage(pdu.Probe, r, nil)

	return r.ID, nil
}

// ReleaseRange transitions a Probing or Defending range owned by sender
// to Released, in response to a MAAP_CMD_RELEASE command. Any in-flight
// probe is abandoned immediately; ACQUIRED is suppressed if the range
// had not yet been acquired.
func (e *Engine) ReleaseRange(sender Sender, id int) error {
	if !e.initialized {
		return ErrNotInitialized
	}
	r, ok := e.ranges[id]
	if !ok || r.Sender != sender || (r.State != StateProbing && r.State != StateDefending) {
		e.notifies.push(sender, Notify{Kind: NotifyReleaseFailed, ID: id})
		return ErrUnknownID
	}

	e.removeRange(r)
	e.notifies.push(sender, Notify{Kind: NotifyReleased, ID: id, Start: r.Start, Count: r.Length})
	return nil
}

// RangeStatus always emits exactly one STATUS notification, naming
// success (current start/length/state) or not-found.
func (e *Engine) RangeStatus(sender Sender, id int) {
	if !e.initialized {
		e.notifies.push(sender, Notify{Kind: NotifyStatus, ID: id, Found: false})
		return
	}
	r, ok := e.ranges[id]
	if !ok {
		e.notifies.push(sender, Notify{Kind: NotifyStatus, ID: id, Found: false})
		return
	}
	e.notifies.push(sender, Notify{
		Kind: NotifyStatus, ID: id, Start: r.Start, Count: r.Length, State: r.State, Found: true,
	})
}

// HandlePacket decodes a raw incoming Ethernet frame and applies the
// §4.4 transition table to every local range it conflicts with. It
// returns 0 if buf decoded as a MAAP frame, -1 otherwise (malformed or
// foreign frames are both rejected the same way a caller can fast-skip
// on).
func (e *Engine) HandlePacket(buf []byte) int {
	if !e.initialized {
		return -1
	}
	p, err := pdu.Decode(buf)
	if err != nil {
		return -1
	}
	if p.SrcMAC == e.srcMAC {
		return 0
	}

	low, high := overlapWindow(p)
	for _, iv := range e.tree.OverlapsAll(low, high) {
		r, ok := iv.Owner.(*Range)
		if !ok {
			continue
		}
		e.reactToPacket(r, p)
	}

	return 0
}

// overlapWindow returns the address window a packet should be matched
// against: the conflict-range fields for a Defend carrying one, the
// requested-range fields otherwise.
func overlapWindow(p *pdu.PDU) (low, high uint64) {
	if p.Message == pdu.Defend && p.ConflictCount > 0 {
		return p.ConflictStart, p.ConflictStart + uint64(p.ConflictCount) - 1
	}
	return p.RequestStart, p.RequestStart + uint64(p.RequestCount) - 1
}

func (e *Engine) reactToPacket(r *Range, p *pdu.PDU) {
	switch r.State {
	case StateProbing:
		// Any conflicting Probe, Announce, or Defend during Probing loses
		// arbitration outright: we have not yet established a claim, so
		// there is nothing to defend.
		e.yield(r, p)

	case StateDefending:
		switch p.Message {
		case pdu.Probe:
			e.sendDefend(r, p)
		case pdu.Announce:
			if p.StreamID < e.streamID {
				e.yield(r, p)
			} else {
				e.sendDefend(r, p)
			}
		case pdu.Defend:
			e.yield(r, p)
		}
	}
}

func conflictWindow(r *Range, low, high uint64) (cLow, cHigh uint64) {
	cLow = max64(r.Start, low)
	cHigh = min64(r.high(), high)
	if cLow > cHigh {
		return low, high
	}
	return cLow, cHigh
}

func (e *Engine) yield(r *Range, p *pdu.PDU) {
	low, high := overlapWindow(p)
	cLow, cHigh := conflictWindow(r, low, high)

	e.removeRange(r)
	e.notifies.push(r.Sender, Notify{
		Kind:          NotifyYielded,
		ID:            r.ID,
		Start:         r.Start,
		Count:         r.Length,
		ConflictStart: cLow,
		ConflictCount: uint32(cHigh - cLow + 1),
	})
}

func (e *Engine) sendDefend(r *Range, p *pdu.PDU) {
	low, high := overlapWindow(p)
	cLow, cHigh := conflictWindow(r, low, high)
	e.sendMessage(pdu.Defend, r, &conflict{low: cLow, high: cHigh})
}

type conflict struct {
	low, high uint64
}

func (e *Engine) sendMessage(msg pdu.MessageType, r *Range, c *conflict) {
	out := &pdu.PDU{
		DestMAC:      e.destMAC,
		SrcMAC:       e.srcMAC,
		Message:      msg,
		StreamID:     e.streamID,
		RequestStart: r.Start,
		RequestCount: uint16(r.Length),
	}
	if c != nil {
		out.ConflictStart = c.low
		out.ConflictCount = uint16(c.high - c.low + 1)
	}

	buf := make([]byte, pdu.Size)
	if _, err := pdu.Encode(out, buf); err != nil {
		e.logger.Printf("range %d: encode %s failed: %v", r.ID, msg, err)
		return
	}
	if e.send == nil {
		return
	}
	if err := e.send.Send(buf); err != nil {
		// SendFailed is logged only; the next scheduled retransmit or
		// announce restores correctness.
		e.logger.Printf("range %d: send %s failed: %v (%v)", r.ID, msg, err, ErrSendFailed)
	}
}

// HandleTimer pops every range whose next_act_time has elapsed and
// applies its scheduled action, re-enqueuing ranges that remain active.
func (e *Engine) HandleTimer() {
	if !e.initialized {
		return
	}
	now := e.now()
	for {
		item := e.timers.PopIfExpired(now)
		if item == nil {
			return
		}
		r := item.(*Range)
		e.fireTimer(r, now)
	}
}

func (e *Engine) fireTimer(r *Range, now time.Time) {
	switch r.State {
	case StateProbing:
		if r.Counter > 0 {
			e.sendMessage(pdu.Probe, r, nil)
			r.Counter--
			r.NextActTime = now.Add(jitter(e.rng, ProbeIntervalBase, ProbeIntervalVariation))
			e.timers.Push(r)
			return
		}
		e.sendMessage(pdu.Announce, r, nil)
		r.Counter = 0
		r.NextActTime = now.Add(jitter(e.rng, AnnounceIntervalBase, AnnounceIntervalVariation))
		r.State = StateDefending
		e.timers.Push(r)
		e.notifies.push(r.Sender, Notify{Kind: NotifyAcquired, ID: r.ID, Start: r.Start, Count: r.Length})

	case StateDefending:
		e.sendMessage(pdu.Announce, r, nil)
		r.NextActTime = now.Add(jitter(e.rng, AnnounceIntervalBase, AnnounceIntervalVariation))
		e.timers.Push(r)
	}
}

// DelayToNextTimer returns the duration until the next scheduled
// action, or a very large sentinel if no timer is pending.
func (e *Engine) DelayToNextTimer() time.Duration {
	if e.timers == nil || e.timers.Len() == 0 {
		return time.Duration(math.MaxInt64)
	}
	return e.timers.DelayToHead(e.now())
}

// NextNotify returns and removes the oldest pending notification. ok is
// false if the queue is empty.
func (e *Engine) NextNotify() (sender Sender, n Notify, ok bool) {
	return e.notifies.pop()
}

func (e *Engine) removeRange(r *Range) {
	r.State = StateReleased
	e.tree.Remove(r.toInterval())
	e.timers.Remove(r)
	delete(e.ranges, r.ID)
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
