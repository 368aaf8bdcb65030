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

package interval

import (
	"math/rand"
	"testing"
)

func TestInsertRejectsOverlap(t *testing.T) {
	tr := New()
	if err := tr.Insert(Interval{Low: 10, High: 20}); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	for _, iv := range []Interval{{Low: 5, High: 10}, {Low: 20, High: 30}, {Low: 12, High: 15}} {
		if err := tr.Insert(iv); err != ErrOverlap {
			t.Errorf("Insert(%v) = %v, want ErrOverlap", iv, err)
		}
	}
	if err := tr.Insert(Interval{Low: 21, High: 25}); err != nil {
		t.Errorf("adjacent non-overlapping insert failed: %v", err)
	}
	if tr.Len() != 2 {
		t.Errorf("Len() = %d, want 2", tr.Len())
	}
}

func TestOverlapsAndRemove(t *testing.T) {
	tr := New()
	ivs := []Interval{{Low: 0, High: 9}, {Low: 20, High: 29}, {Low: 40, High: 49}}
	for _, iv := range ivs {
		if err := tr.Insert(iv); err != nil {
			t.Fatalf("Insert(%v): %v", iv, err)
		}
	}
	if !tr.Overlaps(25, 26) {
		t.Error("expected overlap with [20,29]")
	}
	if tr.Overlaps(10, 19) {
		t.Error("unexpected overlap in gap")
	}
	tr.Remove(Interval{Low: 20, High: 29})
	if tr.Overlaps(20, 29) {
		t.Error("interval still present after Remove")
	}
	if tr.Len() != 2 {
		t.Errorf("Len() = %d, want 2 after remove", tr.Len())
	}
}

func TestFindFreeDisjointFromExisting(t *testing.T) {
	tr := New()
	if err := tr.Insert(Interval{Low: 0, High: 99}); err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(1))
	low, high, ok := tr.FindFree(0, 199, 50, rng)
	if !ok {
		t.Fatal("expected to find a free range")
	}
	if tr.Overlaps(low, high) {
		t.Errorf("FindFree returned overlapping range [%d,%d]", low, high)
	}
	if high-low+1 != 50 {
		t.Errorf("length = %d, want 50", high-low+1)
	}
}

func TestFindFreeExhaustedPool(t *testing.T) {
	tr := New()
	if err := tr.Insert(Interval{Low: 0, High: 9}); err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(2))
	if _, _, ok := tr.FindFree(0, 9, 1, rng); ok {
		t.Error("expected no free range in a fully-occupied pool")
	}
}

func TestFindFreeRejectsOversizeRequest(t *testing.T) {
	tr := New()
	rng := rand.New(rand.NewSource(3))
	if _, _, ok := tr.FindFree(0, 9, 11, rng); ok {
		t.Error("expected failure when length exceeds the bounded region")
	}
}

func TestManyDisjointInsertsStayDisjoint(t *testing.T) {
	tr := New()
	rng := rand.New(rand.NewSource(42))
	var placed []Interval
	for i := 0; i < 200; i++ {
		low, high, ok := tr.FindFree(0, 1<<20, 10, rng)
		if !ok {
			continue
		}
		if err := tr.Insert(Interval{Low: low, High: high}); err != nil {
			t.Fatalf("insert of just-found-free range failed: %v", err)
		}
		placed = append(placed, Interval{Low: low, High: high})
	}
	for i := range placed {
		for j := range placed {
			if i == j {
				continue
			}
			a, b := placed[i], placed[j]
			if a.Low <= b.High && b.Low <= a.High {
				t.Fatalf("found overlapping placed ranges %v and %v", a, b)
			}
		}
	}
}
