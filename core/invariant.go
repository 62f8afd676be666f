// Copyright 2025 Google LLC
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

package core

import "sync"

// invariantMutex is a sync.Mutex that runs a checkInvariants function
// immediately before releasing the lock. A panic in check surfaces a broken
// invariant at the point it was introduced rather than at some unrelated
// later Lock call, which is the whole value of checking eagerly instead of
// only in tests.
//
// check may be nil, in which case invariantMutex behaves like a plain
// sync.Mutex; Core sets check to non-nil only when built with
// WithInvariantChecking (tests and debug builds), since walking the node
// table on every unlock is not free.
type invariantMutex struct {
	mu    sync.Mutex
	check func()
}

func (m *invariantMutex) Lock() {
	m.mu.Lock()
}

func (m *invariantMutex) Unlock() {
	if m.check != nil {
		m.check()
	}
	m.mu.Unlock()
}

// invariantRWMutex is the read-write counterpart, used for the registries
// that are read far more often than written (branch and snapshot
// registries, process bindings).
type invariantRWMutex struct {
	mu    sync.RWMutex
	check func()
}

func (m *invariantRWMutex) Lock() {
	m.mu.Lock()
}

func (m *invariantRWMutex) Unlock() {
	if m.check != nil {
		m.check()
	}
	m.mu.Unlock()
}

func (m *invariantRWMutex) RLock() {
	m.mu.RLock()
}

func (m *invariantRWMutex) RUnlock() {
	m.mu.RUnlock()
}
