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

import (
	"sync"

	"github.com/agentfs/agentfs-core/common"
)

// recentOpsCapacity bounds how many operation names opLog retains, the same
// sliding-window shape the teacher's bufferedread prefetcher keeps over
// in-flight read requests, applied here to completed operations instead.
const recentOpsCapacity = 64

// opLog is a small ring of the most recently completed operation names,
// surfaced for operator debugging (agentfsctl and similar harnesses can
// print it alongside Stats when something looks wrong); it has no effect
// on VFS semantics.
type opLog struct {
	mu    sync.Mutex
	queue common.Queue[string]
}

func newOpLog() *opLog {
	return &opLog{queue: common.NewLinkedListQueue[string]()}
}

func (l *opLog) record(op string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queue.Push(op)
	for l.queue.Len() > recentOpsCapacity {
		l.queue.Pop()
	}
}

// snapshot returns the recorded operation names, oldest first.
func (l *opLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, l.queue.Len())
	// Queue only exposes ends and Pop, so draining and refilling is the
	// only way to iterate; the lock is held for the whole walk so no
	// concurrent record() can observe a partially drained queue.
	tmp := common.NewLinkedListQueue[string]()
	for !l.queue.IsEmpty() {
		v := l.queue.Pop()
		out = append(out, v)
		tmp.Push(v)
	}
	l.queue = tmp
	return out
}
