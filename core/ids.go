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
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/agentfs/agentfs-core/core/content"
	"github.com/agentfs/agentfs-core/core/inode"
)

// NodeId identifies a node in the node table. It is an arena index, not a
// durable handle: ids are never reused while a Core is alive but carry no
// meaning across process restarts (there is no on-disk persistence).
type NodeId = inode.Id

// ContentId identifies a buffer in the content store. See core/content.
type ContentId = content.Id

// HandleId identifies an open handle in the handle table.
type HandleId uint64

// ProcessToken identifies a registered process. Callers must treat it as
// opaque; internally it is the pid passed to RegisterProcess.
type ProcessToken uint64

// SnapshotId and BranchId are externally-visible, durable-looking
// identifiers, so unlike NodeId/HandleId they are UUIDs rather than arena
// indices: a caller may hold onto one across many operations and compare it
// for equality without knowing anything about the node table's internal
// churn.
type SnapshotId uuid.UUID

func (s SnapshotId) String() string { return uuid.UUID(s).String() }

// BranchId identifies a writable branch.
type BranchId uuid.UUID

func (b BranchId) String() string { return uuid.UUID(b).String() }

// SubscriptionId identifies a live event subscription.
type SubscriptionId uuid.UUID

func (s SubscriptionId) String() string { return uuid.UUID(s).String() }

func newSnapshotId() SnapshotId         { return SnapshotId(uuid.New()) }
func newBranchId() BranchId             { return BranchId(uuid.New()) }
func newSubscriptionId() SubscriptionId { return SubscriptionId(uuid.New()) }

// arenaAllocator hands out monotonically increasing ids for NodeId and
// HandleId. The zero value of an arena id is never issued, so callers can
// use 0 as a "no id" sentinel.
type arenaAllocator struct {
	next atomic.Uint64
}

func (a *arenaAllocator) alloc() uint64 {
	return a.next.Add(1)
}
