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

import "github.com/agentfs/agentfs-core/core/events"

// eventsSubscription re-exports core/events.Subscription so callers of
// Core.Subscribe don't need to import core/events themselves.
type eventsSubscription struct {
	*events.Subscription
}

// Stats is a point-in-time snapshot of the core's resource usage, returned
// by Core.Stats. HandlesByBranch and OpsServed are not in the distilled
// spec's prose but are present in the original implementation's stats()
// (see SPEC_FULL.md's "Supplemented from original_source").
type Stats struct {
	Nodes           int
	Branches        int
	Snapshots       int
	OpenHandles     int
	ContentBytes    int64
	HandlesByBranch map[BranchId]int
	OpsServed       uint64
}

// Stats reports current resource usage across every bucket in the lock
// order, acquired and released in order.
func (fs *Core) Stats() Stats {
	fs.branchMu.RLock()
	branches := len(fs.branches)
	fs.branchMu.RUnlock()

	fs.snapshotMu.RLock()
	snapshots := len(fs.snapshots)
	fs.snapshotMu.RUnlock()

	fs.nodeMu.Lock()
	nodes := len(fs.nodes)
	fs.nodeMu.Unlock()

	fs.handleMu.Lock()
	handles := len(fs.handles)
	byBranch := make(map[BranchId]int)
	for _, h := range fs.handles {
		byBranch[h.Branch]++
	}
	fs.handleMu.Unlock()

	return Stats{
		Nodes:           nodes,
		Branches:        branches,
		Snapshots:       snapshots,
		OpenHandles:     handles,
		ContentBytes:    fs.content.TotalBytes(),
		HandlesByBranch: byBranch,
		OpsServed:       fs.opsServed.load(),
	}
}

// Subscribe registers for lifecycle events; see core/events.Bus.Subscribe.
func (fs *Core) Subscribe() (SubscriptionId, *eventsSubscription) {
	id := newSubscriptionId()
	sub := fs.bus.Subscribe(id.String())
	return id, &eventsSubscription{sub}
}

// Unsubscribe cancels a subscription created by Subscribe.
func (fs *Core) Unsubscribe(id SubscriptionId) {
	fs.bus.Unsubscribe(id.String())
}
