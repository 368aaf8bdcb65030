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

package timerqueue

import (
	"testing"
	"time"
)

type fakeItem struct {
	id  int
	key time.Time
}

func (f *fakeItem) Key() time.Time { return f.key }

func TestPushOrdersAscending(t *testing.T) {
	q := New()
	base := time.Unix(1000, 0)
	a := &fakeItem{1, base.Add(3 * time.Second)}
	b := &fakeItem{2, base.Add(1 * time.Second)}
	c := &fakeItem{3, base.Add(2 * time.Second)}
	q.Push(a)
	q.Push(b)
	q.Push(c)

	var order []int
	for q.Len() > 0 {
		it := q.PopIfExpired(base.Add(10 * time.Second)).(*fakeItem)
		order = append(order, it.id)
	}
	want := []int{2, 3, 1}
	for i, id := range want {
		if order[i] != id {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestTiesKeepInsertionOrder(t *testing.T) {
	q := New()
	k := time.Unix(2000, 0)
	a := &fakeItem{1, k}
	b := &fakeItem{2, k}
	c := &fakeItem{3, k}
	q.Push(a)
	q.Push(b)
	q.Push(c)

	first := q.PopIfExpired(k).(*fakeItem)
	second := q.PopIfExpired(k).(*fakeItem)
	third := q.PopIfExpired(k).(*fakeItem)
	if first.id != 1 || second.id != 2 || third.id != 3 {
		t.Fatalf("got order %d,%d,%d, want 1,2,3", first.id, second.id, third.id)
	}
}

func TestRemove(t *testing.T) {
	q := New()
	base := time.Unix(3000, 0)
	a := &fakeItem{1, base}
	b := &fakeItem{2, base.Add(time.Second)}
	q.Push(a)
	q.Push(b)
	q.Remove(a)
	if q.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", q.Len())
	}
	if q.Peek().(*fakeItem).id != 2 {
		t.Fatalf("Peek() = %v, want item 2", q.Peek())
	}
	// Removing an absent item is a no-op.
	q.Remove(a)
	if q.Len() != 1 {
		t.Fatalf("Len() = %d after no-op remove, want 1", q.Len())
	}
}

func TestPopIfExpiredOnlyReturnsDueItems(t *testing.T) {
	q := New()
	base := time.Unix(4000, 0)
	a := &fakeItem{1, base.Add(5 * time.Second)}
	q.Push(a)

	if q.PopIfExpired(base) != nil {
		t.Fatal("expected nil, timer not yet due")
	}
	if q.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (not popped)", q.Len())
	}
	got := q.PopIfExpired(base.Add(5 * time.Second))
	if got == nil {
		t.Fatal("expected item to pop once due")
	}
}

func TestDelayToHeadEmptyIsSentinel(t *testing.T) {
	q := New()
	d := q.DelayToHead(time.Unix(0, 0))
	if d < time.Hour {
		t.Fatalf("DelayToHead() on empty queue = %v, want a large sentinel", d)
	}
}

func TestDelayToHeadClampsToZero(t *testing.T) {
	q := New()
	base := time.Unix(5000, 0)
	q.Push(&fakeItem{1, base.Add(-time.Second)})
	if d := q.DelayToHead(base); d != 0 {
		t.Fatalf("DelayToHead() = %v, want 0 for past-due item", d)
	}
}
