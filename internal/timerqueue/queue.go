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

// Package timerqueue is a singly-linked list of scheduled items ordered
// ascending by expiry time, ties broken by insertion order. It backs the
// MAAP engine's per-range retransmit/announce scheduling.
package timerqueue

import "time"

// Item is anything that can be scheduled. The queue reads Key only to
// order items and to compare them against the current time.
type Item interface {
	Key() time.Time
}

type entry struct {
	item Item
	next *entry
}

// Queue is an ascending-ordered singly-linked list of scheduled items.
type Queue struct {
	head *entry
	len  int
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{}
}

// Len reports the number of scheduled items.
func (q *Queue) Len() int {
	return q.len
}

// Push inserts item in its sorted position. Among items with equal keys,
// item is placed after all previously-inserted items with that same key,
// preserving insertion order for ties.
func (q *Queue) Push(item Item) {
	e := &entry{item: item}
	if q.head == nil || item.Key().Before(q.head.item.Key()) {
		e.next = q.head
		q.head = e
		q.len++
		return
	}
	prev := q.head
	for prev.next != nil && !item.Key().Before(prev.next.item.Key()) {
		prev = prev.next
	}
	e.next = prev.next
	prev.next = e
	q.len++
}

// Remove deletes the first entry holding item (compared by identity via
// ==, which requires Item to be a pointer or other comparable type). It
// is a no-op if item is not present.
func (q *Queue) Remove(item Item) {
	if q.head == nil {
		return
	}
	if q.head.item == item {
		q.head = q.head.next
		q.len--
		return
	}
	prev := q.head
	for prev.next != nil {
		if prev.next.item == item {
			prev.next = prev.next.next
			q.len--
			return
		}
		prev = prev.next
	}
}

// Peek returns the item with the earliest key without removing it, or
// nil if the queue is empty.
func (q *Queue) Peek() Item {
	if q.head == nil {
		return nil
	}
	return q.head.item
}

// PopIfExpired removes and returns the head item if its key is <= now,
// or returns nil without modifying the queue otherwise.
func (q *Queue) PopIfExpired(now time.Time) Item {
	if q.head == nil || q.head.item.Key().After(now) {
		return nil
	}
	item := q.head.item
	q.head = q.head.next
	q.len--
	return item
}

// DelayToHead returns the duration until the head item's key, clamped to
// zero if it has already passed. It returns a very large sentinel
// duration if the queue is empty.
func (q *Queue) DelayToHead(now time.Time) time.Duration {
	if q.head == nil {
		return 1<<62 - 1 // effectively "no timer pending"
	}
	d := q.head.item.Key().Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
