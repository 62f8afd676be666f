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
	"github.com/agentfs/agentfs-core/core/events"
	"github.com/agentfs/agentfs-core/core/inode"
)

// CreateBranch creates a new writable branch. If parent is the zero
// SnapshotId, the branch starts from a fresh empty root directory;
// otherwise it starts from parent's root, sharing structure with it until
// the branch's first write diverges (spec.md §2's copy-on-write model).
func (fs *Core) CreateBranch(parent SnapshotId, name string) (BranchId, error) {
	const op = "create_branch"

	var rootID NodeId
	var zero SnapshotId

	if parent == zero {
		fs.nodeMu.Lock()
		now := fs.clock.Now()
		rootID = NodeId(fs.nodeIds.alloc())
		root := inode.NewDirectory(rootID, 0o755, fs.cfg.Security.DefaultUid, fs.cfg.Security.DefaultGid, now)
		fs.insertNodeLocked(root)
		fs.nodeMu.Unlock()
	} else {
		fs.snapshotMu.RLock()
		snap, ok := fs.snapshots[parent]
		fs.snapshotMu.RUnlock()
		if !ok {
			return BranchId{}, newErr(op, KindNotFound, "snapshot not found")
		}
		rootID = snap.Root
		fs.nodeMu.Lock()
		if n, ok := fs.nodes[rootID]; ok {
			n.IncRef()
		}
		fs.nodeMu.Unlock()
	}

	fs.branchMu.Lock()
	if fs.cfg.Limits.MaxBranches > 0 && len(fs.branches) >= fs.cfg.Limits.MaxBranches {
		fs.branchMu.Unlock()
		return BranchId{}, newErr(op, KindBusy, "branch limit reached")
	}
	id := newBranchId()
	fs.branches[id] = &Branch{
		Id:             id,
		Name:           name,
		Root:           rootID,
		ParentSnapshot: parent,
		CreatedAt:      fs.clock.Now(),
	}
	fs.metrics.Branches.Set(float64(len(fs.branches)))
	fs.branchMu.Unlock()

	fs.bus.Publish(events.Event{Kind: events.KindBranchCreated, Subject: id.String(), Name: name})
	return id, nil
}

// DeleteBranch removes a branch and releases its root's structural
// reference. Fails Busy if any process is currently bound to it.
func (fs *Core) DeleteBranch(id BranchId) error {
	const op = "delete_branch"

	fs.processMu.RLock()
	for _, p := range fs.processes {
		if p.HasBinding && p.BoundTo == id {
			fs.processMu.RUnlock()
			return newErr(op, KindBusy, "process still bound to branch")
		}
	}
	fs.processMu.RUnlock()

	fs.branchMu.Lock()
	b, ok := fs.branches[id]
	if !ok {
		fs.branchMu.Unlock()
		return newErr(op, KindNotFound, "branch not found")
	}
	delete(fs.branches, id)
	fs.metrics.Branches.Set(float64(len(fs.branches)))
	fs.branchMu.Unlock()

	fs.nodeMu.Lock()
	fs.releaseRefLocked(b.Root)
	fs.nodeMu.Unlock()

	fs.bus.Publish(events.Event{Kind: events.KindBranchDeleted, Subject: id.String()})
	return nil
}

// GetBranch returns a copy of a branch's registry entry.
func (fs *Core) GetBranch(id BranchId) (Branch, error) {
	fs.branchMu.RLock()
	defer fs.branchMu.RUnlock()
	b, ok := fs.branches[id]
	if !ok {
		return Branch{}, newErr("get_branch", KindNotFound, "branch not found")
	}
	return *b, nil
}

// ListBranches returns a snapshot copy of every registered branch.
func (fs *Core) ListBranches() []Branch {
	fs.branchMu.RLock()
	defer fs.branchMu.RUnlock()
	out := make([]Branch, 0, len(fs.branches))
	for _, b := range fs.branches {
		out = append(out, *b)
	}
	return out
}

// CreateSnapshot captures branch's current root as an immutable snapshot.
// The branch keeps running; its subsequent writes copy-on-write away from
// the now-frozen root.
func (fs *Core) CreateSnapshot(branch BranchId, name string) (SnapshotId, error) {
	const op = "create_snapshot"

	fs.branchMu.RLock()
	b, ok := fs.branches[branch]
	fs.branchMu.RUnlock()
	if !ok {
		return SnapshotId{}, newErr(op, KindNotFound, "branch not found")
	}

	fs.snapshotMu.Lock()
	if fs.cfg.Limits.MaxSnapshots > 0 && len(fs.snapshots) >= fs.cfg.Limits.MaxSnapshots {
		fs.snapshotMu.Unlock()
		return SnapshotId{}, newErr(op, KindBusy, "snapshot limit reached")
	}
	id := newSnapshotId()
	fs.snapshots[id] = &Snapshot{
		Id:           id,
		Name:         name,
		Root:         b.Root,
		SourceBranch: branch,
		CreatedAt:    fs.clock.Now(),
	}
	fs.metrics.Snapshots.Set(float64(len(fs.snapshots)))
	fs.snapshotMu.Unlock()

	fs.nodeMu.Lock()
	if n, ok := fs.nodes[b.Root]; ok {
		n.IncRef()
	}
	fs.nodeMu.Unlock()

	fs.bus.Publish(events.Event{Kind: events.KindSnapshotCreated, Subject: id.String(), Name: name})
	return id, nil
}

// DeleteSnapshot removes a snapshot and releases its root's structural
// reference. It fails Busy while any branch created from the snapshot still
// exists.
func (fs *Core) DeleteSnapshot(id SnapshotId) error {
	const op = "delete_snapshot"

	fs.branchMu.RLock()
	for _, b := range fs.branches {
		if b.ParentSnapshot == id {
			fs.branchMu.RUnlock()
			return newErr(op, KindBusy, "branch still parented to snapshot")
		}
	}
	fs.branchMu.RUnlock()

	fs.snapshotMu.Lock()
	s, ok := fs.snapshots[id]
	if !ok {
		fs.snapshotMu.Unlock()
		return newErr(op, KindNotFound, "snapshot not found")
	}
	delete(fs.snapshots, id)
	fs.metrics.Snapshots.Set(float64(len(fs.snapshots)))
	fs.snapshotMu.Unlock()

	fs.nodeMu.Lock()
	fs.releaseRefLocked(s.Root)
	fs.nodeMu.Unlock()

	fs.bus.Publish(events.Event{Kind: events.KindSnapshotDeleted, Subject: id.String()})
	return nil
}

// GetSnapshot returns a copy of a snapshot's registry entry.
func (fs *Core) GetSnapshot(id SnapshotId) (Snapshot, error) {
	fs.snapshotMu.RLock()
	defer fs.snapshotMu.RUnlock()
	s, ok := fs.snapshots[id]
	if !ok {
		return Snapshot{}, newErr("get_snapshot", KindNotFound, "snapshot not found")
	}
	return *s, nil
}

// ListSnapshots returns a snapshot copy of every registered snapshot.
func (fs *Core) ListSnapshots() []Snapshot {
	fs.snapshotMu.RLock()
	defer fs.snapshotMu.RUnlock()
	out := make([]Snapshot, 0, len(fs.snapshots))
	for _, s := range fs.snapshots {
		out = append(out, *s)
	}
	return out
}

func (fs *Core) branchRoot(op string, id BranchId) (NodeId, error) {
	fs.branchMu.RLock()
	defer fs.branchMu.RUnlock()
	b, ok := fs.branches[id]
	if !ok {
		return 0, newErr(op, KindNotFound, "branch not found")
	}
	return b.Root, nil
}

// setBranchRoot updates a branch's root pointer, used when path resolution
// clones the root directory itself (writing directly into "/").
func (fs *Core) setBranchRoot(id BranchId, root NodeId) {
	fs.branchMu.Lock()
	defer fs.branchMu.Unlock()
	if b, ok := fs.branches[id]; ok {
		b.Root = root
	}
}
