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

import "fmt"

// NotifyKind identifies what a Notify describes.
type NotifyKind int

const (
	NotifyAcquired NotifyKind = iota
	NotifyAcquiring
	NotifyReleased
	NotifyStatus
	NotifyYielded
	NotifyReserveFailed
	NotifyReleaseFailed
	NotifyInitialized
	NotifyInitFailed
)

func (k NotifyKind) String() string {
	switch k {
	case NotifyAcquired:
		return "ACQUIRED"
	case NotifyAcquiring:
		return "ACQUIRING"
	case NotifyReleased:
		return "RELEASED"
	case NotifyStatus:
		return "STATUS"
	case NotifyYielded:
		return "YIELDED"
	case NotifyReserveFailed:
		return "RESERVE_FAILED"
	case NotifyReleaseFailed:
		return "RELEASE_FAILED"
	case NotifyInitialized:
		return "INITIALIZED"
	case NotifyInitFailed:
		return "INIT_FAILED"
	default:
		return fmt.Sprintf("NotifyKind(%d)", int(k))
	}
}

// Notify is a single queued notification. Conflict fields are only
// meaningful for NotifyYielded.
type Notify struct {
	Kind  NotifyKind
	ID    int
	Start uint64
	Count uint32
	State State

	ConflictStart uint64
	ConflictCount uint32

	Found bool // for NotifyStatus: whether ID was known
}

// String renders a human-readable line, grounded on the original MAAP
// daemon's print_notify.
func (n Notify) String() string {
	switch n.Kind {
	case NotifyYielded:
		return fmt.Sprintf("%s id=%d start=%#x count=%d conflict=[%#x,+%d]",
			n.Kind, n.ID, n.Start, n.Count, n.ConflictStart, n.ConflictCount)
	case NotifyStatus:
		if !n.Found {
			return fmt.Sprintf("%s id=%d not-found", n.Kind, n.ID)
		}
		return fmt.Sprintf("%s id=%d start=%#x count=%d state=%s", n.Kind, n.ID, n.Start, n.Count, n.State)
	default:
		return fmt.Sprintf("%s id=%d start=%#x count=%d", n.Kind, n.ID, n.Start, n.Count)
	}
}

type notifyEntry struct {
	sender Sender
	notify Notify
	next   *notifyEntry
}

// notifyQueue is a FIFO of pending notifications paired with the
// sender that triggered them.
type notifyQueue struct {
	head, tail *notifyEntry
}

func (q *notifyQueue) push(sender Sender, n Notify) {
	e := &notifyEntry{sender: sender, notify: n}
	if q.tail == nil {
		q.head, q.tail = e, e
		return
	}
	q.tail.next = e
	q.tail = e
}

// pop returns the next (sender, Notify) pair and true, or the zero
// value and false if the queue is empty.
func (q *notifyQueue) pop() (Sender, Notify, bool) {
	if q.head == nil {
		return nil, Notify{}, false
	}
	e := q.head
	q.head = e.next
	if q.head == nil {
		q.tail = nil
	}
	return e.sender, e.notify, true
}
