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
	"math/rand"
	"time"
)

// Source is the engine's random-number collaborator: uniform(n) draws
// from [0, n). Tests inject a deterministic Source instead of the
// default math/rand-backed one.
type Source interface {
	Int63n(n int64) int64
}

// defaultSource wraps math/rand the way the teacher's DHCP lease client
// wraps it for jitter (see jitter() in plugins/ipam/dhcp/lease.go).
type defaultSource struct {
	r *rand.Rand
}

func newDefaultSource() *defaultSource {
	return &defaultSource{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (d *defaultSource) Int63n(n int64) int64 {
	return d.r.Int63n(n)
}

// jitter returns a uniform draw in [base, base+variation).
func jitter(src Source, base, variation time.Duration) time.Duration {
	if variation <= 0 {
		return base
	}
	return base + time.Duration(src.Int63n(int64(variation)))
}
