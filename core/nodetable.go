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
	"fmt"

	"github.com/agentfs/agentfs-core/core/inode"
)

// The functions in this file all assume fs.nodeMu is held by the caller
// (bucket 4 of the lock order); none of them acquire it themselves.

func (fs *Core) getNodeLocked(op string, id NodeId) (*inode.Node, error) {
	n, ok := fs.nodes[id]
	if !ok {
		return nil, newErr(op, KindNotFound, "node does not exist")
	}
	return n, nil
}

// insertNodeLocked inserts n.Id -> n into the node table. n.Id must already be set
// by the caller via fs.nodeIds.alloc().
func (fs *Core) insertNodeLocked(n *inode.Node) {
	fs.nodes[n.Id] = n
}

// cloneForWrite returns a Node the caller may mutate freely: if n is
// shared (refCount > 1, i.e. reachable from more than just the single edge
// the caller is about to mutate through), a private clone is allocated,
// inserted into the table, and returned; n's own refcount is decremented by
// one (the edge is being redirected to the clone). If n is not shared it is
// returned as-is. Either way the caller is responsible for pointing the
// edge it is updating (a directory entry, a branch root) at the returned
// node's Id.
//
// Node.Clone copies Children/ContentId/Streams/Xattrs by value: the clone
// and the original now both reference the same child nodes and the same
// content buffers. Every one of those references is a structural reference
// that must be counted, or a later write through one copy can free bytes
// (or a whole subtree) the other copy still needs to serve a snapshot —
// so this retains all of them on the clone's behalf before handing it back.
func (fs *Core) cloneForWriteLocked(n *inode.Node) *inode.Node {
	if !n.Shared() {
		return n
	}
	n.DecRef()
	clone := n.Clone(NodeId(fs.nodeIds.alloc()))
	fs.nodes[clone.Id] = clone

	for _, childID := range clone.Children {
		if child, ok := fs.nodes[childID]; ok {
			child.IncRef()
		}
	}
	if clone.Kind == inode.KindFile {
		fs.content.Retain(clone.ContentId)
		for _, s := range clone.Streams {
			fs.content.Retain(s.ContentId)
		}
	}
	for _, xid := range clone.Xattrs {
		fs.content.Retain(xid)
	}
	return clone
}

// releaseRefLocked drops one structural reference from id. If the count
// reaches zero the node is removed from the table, its content (and, for
// directories, every child's reference) is released recursively, and its
// xattr buffers are freed from the content store.
func (fs *Core) releaseRefLocked(id NodeId) {
	n, ok := fs.nodes[id]
	if !ok {
		return
	}
	if n.DecRef() > 0 {
		return
	}

	delete(fs.nodes, id)

	switch n.Kind {
	case inode.KindFile:
		fs.content.Free(n.ContentId)
		for _, s := range n.Streams {
			fs.content.Free(s.ContentId)
		}
	case inode.KindDirectory:
		for _, childID := range n.Children {
			fs.releaseRefLocked(childID)
		}
	case inode.KindSymlink:
		// Target is stored inline on the Node, nothing in the content
		// store to free.
	}
	for _, xid := range n.Xattrs {
		fs.content.Free(xid)
	}
	fs.metrics.Nodes.Set(float64(len(fs.nodes)))
}

// checkNodeInvariantsLocked enforces spec.md §3's global invariants 1 and 2
// against the node table: every directory child references an existing
// node, and every file node references an existing content entry. Called by
// invariantMutex.Unlock while fs.nodeMu is still held, only when the Core
// was built with WithInvariantChecking.
func (fs *Core) checkNodeInvariantsLocked() {
	for id, n := range fs.nodes {
		if n.Id != id {
			panic(fmt.Sprintf("core: node table key %d does not match node.Id %d", id, n.Id))
		}
		if n.RefCount() < 1 {
			panic(fmt.Sprintf("core: node %d has non-positive refcount %d while still in the table", id, n.RefCount()))
		}
		switch n.Kind {
		case inode.KindDirectory:
			for name, childID := range n.Children {
				if _, ok := fs.nodes[childID]; !ok {
					panic(fmt.Sprintf("core: directory %d entry %q references missing node %d", id, name, childID))
				}
			}
		case inode.KindFile:
			if !fs.content.Exists(n.ContentId) {
				panic(fmt.Sprintf("core: file node %d references missing content %d", id, n.ContentId))
			}
		}
	}
}
