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
	"sync"

	"github.com/agentfs/agentfs-core/core/events"
	"github.com/agentfs/agentfs-core/core/inode"
)

// openHandle is one entry in the handle table. A handle holds its own
// structural reference to the node it points at (acquired in
// openNodeAtLocked, released in Close): this is what makes
// delete-on-last-close fall out of the ordinary refcounting scheme rather
// than needing a separate pending-delete list. unlink drops the directory
// entry's reference; if handles are still open the node's refcount stays
// above zero until the last one closes.
type openHandle struct {
	Id      HandleId
	Branch  BranchId
	NodeId  NodeId
	Path    string // path the handle was opened against, for event Subjects
	Stream  string // "" selects the file's primary data, else an ADS name
	Kind    inode.Kind
	Append  bool
	Offset  int64
	offsetMu sync.Mutex
}

// OpenFlags mirrors the subset of POSIX open(2) flags this core cares
// about; adapters translate their own flag representation onto this one.
type OpenFlags struct {
	Read    bool
	Write   bool
	Create  bool
	Excl    bool
	Trunc   bool
	Append  bool
}

// openNode allocates a handle over an already-resolved node, incrementing
// its structural refcount. Callers must hold fs.nodeMu when calling this
// and must not release the node again themselves.
func (fs *Core) openNodeLocked(branch BranchId, n *inode.Node, stream string, flags OpenFlags) (HandleId, error) {
	return fs.openNodeAtLocked(branch, n, "", stream, flags)
}

// openNodeAtLocked is openNodeLocked plus the path the handle was resolved
// against, retained only so Write/SetLen can label their Modified events
// with a path instead of a bare node id.
func (fs *Core) openNodeAtLocked(branch BranchId, n *inode.Node, path, stream string, flags OpenFlags) (HandleId, error) {
	n.IncRef()

	fs.handleMu.Lock()
	defer fs.handleMu.Unlock()

	if fs.cfg.Limits.MaxOpenHandles > 0 && len(fs.handles) >= fs.cfg.Limits.MaxOpenHandles {
		n.DecRef()
		return 0, newErr("open", KindTooManyOpenFiles, "handle limit reached")
	}

	id := HandleId(fs.handleIds.alloc())
	fs.handles[id] = &openHandle{
		Id:     id,
		Branch: branch,
		NodeId: n.Id,
		Path:   path,
		Stream: stream,
		Kind:   n.Kind,
		Append: flags.Append,
	}
	fs.metrics.OpenHandles.Set(float64(len(fs.handles)))
	return id, nil
}

func (fs *Core) getHandle(op string, id HandleId) (*openHandle, error) {
	fs.handleMu.Lock()
	defer fs.handleMu.Unlock()
	h, ok := fs.handles[id]
	if !ok {
		return nil, newErr(op, KindNotFound, "handle does not exist")
	}
	return h, nil
}

// Close releases a handle, dropping its structural reference to the node
// it points at. If that was the node's last reference (it was unlinked
// while this handle was open), the node and its content are freed here:
// this is delete-on-last-close.
func (fs *Core) Close(id HandleId) error {
	const op = "close"

	fs.handleMu.Lock()
	h, ok := fs.handles[id]
	if !ok {
		fs.handleMu.Unlock()
		return newErr(op, KindNotFound, "handle does not exist")
	}
	delete(fs.handles, id)
	fs.metrics.OpenHandles.Set(float64(len(fs.handles)))
	fs.handleMu.Unlock()

	fs.nodeMu.Lock()
	fs.releaseRefLocked(h.NodeId)
	fs.nodeMu.Unlock()

	fs.lockMu.Lock()
	fs.releaseLocksForHandleLocked(h.NodeId, id)
	fs.lockMu.Unlock()

	fs.bus.Publish(events.Event{Kind: events.KindHandleClosed, Subject: fmt.Sprintf("%d", h.NodeId)})
	return nil
}
