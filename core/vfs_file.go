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
	"github.com/agentfs/agentfs-core/core/content"
	"github.com/agentfs/agentfs-core/core/events"
	"github.com/agentfs/agentfs-core/core/inode"
)

// Open resolves path against token's bound branch and returns a handle.
// When flags.Write is set and the resolved file is still shared with a
// snapshot, the file node (and its content) is cloned immediately so that
// subsequent writes through this handle never touch bytes a snapshot can
// still observe; spec.md describes this as lazy content CoW triggered by
// "the first writer through any branch handle" and this core implements
// that at open time rather than at the first Write call, which is
// observationally identical (see DESIGN.md).
func (fs *Core) Open(token ProcessToken, path string, flags OpenFlags) (HandleId, error) {
	const op = "open"

	proc, err := fs.processFor(op, token)
	if err != nil {
		return 0, err
	}
	branch, err := fs.boundBranch(op, token)
	if err != nil {
		return 0, err
	}

	fs.nodeMu.Lock()
	defer fs.nodeMu.Unlock()

	res, err := fs.resolve(op, branch, path, proc.Uid, proc.Gid, flags.Write || flags.Create)
	if err != nil {
		fs.recordOp(op, err)
		return 0, err
	}
	if res.Child == nil {
		if !flags.Create {
			err := newErr(op, KindNotFound, path)
			fs.recordOp(op, err)
			return 0, err
		}
		return fs.createFileLocked(branch, path, res, proc, flags)
	}
	if flags.Excl {
		err := newErr(op, KindAlreadyExists, path)
		fs.recordOp(op, err)
		return 0, err
	}
	if res.Child.Kind == inode.KindDirectory {
		err := newErr(op, KindIsADirectory, path)
		fs.recordOp(op, err)
		return 0, err
	}

	want := uint32(0)
	if flags.Read {
		want |= permRead
	}
	if flags.Write {
		want |= permWrite
	}
	if !fs.checkPerm(res.Child, proc.Uid, proc.Gid, want) {
		err := newErr(op, KindAccessDenied, path)
		fs.recordOp(op, err)
		return 0, err
	}

	n := res.Child
	// Open handles hold structural references of their own; only the
	// references beyond those (a snapshot, another branch) make n shared.
	handleRefs := int32(0)
	fs.handleMu.Lock()
	for _, oh := range fs.handles {
		if oh.NodeId == n.Id {
			handleRefs++
		}
	}
	fs.handleMu.Unlock()
	if flags.Write && n.RefCount()-handleRefs > 1 {
		clone := fs.cloneForWriteLocked(n)
		// cloneForWriteLocked already retained clone.ContentId (== the
		// original's) on the clone's behalf; this immediately replaces it
		// with a genuinely private copy, so the retain must be released
		// back or the original content buffer's refcount stays inflated
		// forever (a leak, not a corruption, but still wrong).
		clonedContent, cErr := fs.content.Clone(clone.ContentId)
		if cErr != nil {
			err := newErrf(op, KindIo, "clone content: %v", cErr)
			fs.recordOp(op, err)
			return 0, err
		}
		fs.content.Free(clone.ContentId)
		clone.ContentId = clonedContent
		res.Parent.Children[res.StoreKey] = clone.Id
		n = clone
	}
	if flags.Trunc {
		if tErr := fs.content.Truncate(n.ContentId, 0); tErr != nil {
			err := translateContentErr(op, tErr)
			fs.recordOp(op, err)
			return 0, err
		}
		n.Size = 0
		n.Times.Mtime = fs.clock.Now()
	}

	id, err := fs.openNodeAtLocked(branch, n, path, "", flags)
	fs.recordOp(op, err)
	return id, err
}

func (fs *Core) createFileLocked(branch BranchId, path string, res *resolution, proc *processBinding, flags OpenFlags) (HandleId, error) {
	const op = "open"
	if !fs.checkPerm(res.Parent, proc.Uid, proc.Gid, permWrite) {
		return 0, newErr(op, KindAccessDenied, "write permission denied on parent directory")
	}

	now := fs.clock.Now()
	contentID := fs.content.Allocate()
	nodeID := NodeId(fs.nodeIds.alloc())
	mode := inode.Mode(0o644) &^ inode.Mode(proc.Umask)
	n := inode.NewFile(nodeID, contentID, mode, proc.Uid, proc.Gid, now)
	fs.insertNodeLocked(n)
	res.Parent.Children[res.StoreKey] = nodeID
	res.Parent.Times.Mtime = now

	id, err := fs.openNodeAtLocked(branch, n, path, "", flags)
	if err == nil {
		fs.bus.Publish(events.Event{Kind: events.KindCreated, Subject: path})
	}
	return id, err
}

// Read copies up to len(buf) bytes starting at offset from the node handle
// points at into buf, returning the number of bytes read. atime is updated
// in place even if the node is shared with a snapshot: per spec.md §9,
// atime is excluded from snapshot-equality comparisons, so touching it
// never forces a clone.
func (fs *Core) Read(handle HandleId, buf []byte, offset int64) (int, error) {
	const op = "read"

	h, err := fs.getHandle(op, handle)
	if err != nil {
		return 0, err
	}

	fs.nodeMu.Lock()
	n, err := fs.getNodeLocked(op, h.NodeId)
	if err != nil {
		fs.nodeMu.Unlock()
		return 0, err
	}
	if n.Kind != inode.KindFile {
		fs.nodeMu.Unlock()
		return 0, newErr(op, KindIsADirectory, "not a regular file")
	}
	contentID := n.ContentId
	if h.Stream != "" {
		s, ok := n.Streams[h.Stream]
		if !ok {
			fs.nodeMu.Unlock()
			return 0, newErr(op, KindNotFound, "stream does not exist")
		}
		contentID = s.ContentId
	}
	n.Times.Atime = fs.clock.Now()
	fs.nodeMu.Unlock()

	nRead, err := fs.content.ReadAt(contentID, buf, offset)
	if err != nil {
		err = translateContentErr(op, err)
	}
	fs.recordOp(op, err)
	return nRead, err
}

// Write writes buf at offset into the node handle points at. The caller is
// responsible for having opened the handle with flags.Write. Open already
// clones main file content when the node itself was shared at open time,
// but a node can also become content-shared later through an attribute-only
// clone (SetMode/SetOwner/SetTimes cloning a Node whose ContentId is still
// reachable from a snapshot) without ever going through Open again, so
// Write still checks and clones lazily here before mutating in place —
// this is the lazy half of spec.md §5's "file content CoW is lazy".
func (fs *Core) Write(handle HandleId, buf []byte, offset int64) (int, error) {
	const op = "write"

	h, err := fs.getHandle(op, handle)
	if err != nil {
		return 0, err
	}

	fs.nodeMu.Lock()
	n, err := fs.getNodeLocked(op, h.NodeId)
	if err != nil {
		fs.nodeMu.Unlock()
		return 0, err
	}
	if n.Kind != inode.KindFile {
		fs.nodeMu.Unlock()
		return 0, newErr(op, KindIsADirectory, "not a regular file")
	}
	isMain := h.Stream == ""
	var stream *inode.Stream
	contentID := n.ContentId
	if !isMain {
		s, ok := n.Streams[h.Stream]
		if !ok {
			fs.nodeMu.Unlock()
			return 0, newErr(op, KindNotFound, "stream does not exist")
		}
		contentID = s.ContentId
		stream = s
	}
	if fs.content.Shared(contentID) {
		cloned, cErr := fs.content.Clone(contentID)
		if cErr != nil {
			fs.nodeMu.Unlock()
			err := newErrf(op, KindIo, "clone content: %v", cErr)
			fs.recordOp(op, err)
			return 0, err
		}
		fs.content.Free(contentID)
		if isMain {
			n.ContentId = cloned
		} else {
			stream.ContentId = cloned
		}
		contentID = cloned
	}
	fs.nodeMu.Unlock()

	if h.Append {
		if l, lErr := fs.content.Len(contentID); lErr == nil {
			offset = l
		}
	}

	nWritten, err := fs.content.WriteAt(contentID, buf, offset)
	if err != nil {
		fs.recordOp(op, err)
		return 0, translateContentErr(op, err)
	}

	fs.nodeMu.Lock()
	now := fs.clock.Now()
	if isMain {
		if sz, lErr := fs.content.Len(contentID); lErr == nil {
			n.Size = sz
		}
		n.Times.Mtime = now
	} else {
		if sz, lErr := fs.content.Len(contentID); lErr == nil {
			stream.Size = sz
		}
	}
	fs.nodeMu.Unlock()

	if h.Path != "" {
		fs.bus.Publish(events.Event{Kind: events.KindModified, Subject: h.Path})
	}
	fs.recordOp(op, nil)
	return nWritten, nil
}

func translateContentErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if content.NoSpace(err) {
		return newErrf(op, KindNoSpace, "%v", err)
	}
	return newErrf(op, KindIo, "%v", err)
}

// SetLen truncates or extends the file handle points at to size bytes.
func (fs *Core) SetLen(handle HandleId, size int64) error {
	const op = "set_len"

	h, err := fs.getHandle(op, handle)
	if err != nil {
		return err
	}

	fs.nodeMu.Lock()
	n, err := fs.getNodeLocked(op, h.NodeId)
	if err != nil {
		fs.nodeMu.Unlock()
		return err
	}
	if n.Kind != inode.KindFile {
		fs.nodeMu.Unlock()
		return newErr(op, KindIsADirectory, "not a regular file")
	}
	contentID := n.ContentId
	if fs.content.Shared(contentID) {
		cloned, cErr := fs.content.Clone(contentID)
		if cErr != nil {
			fs.nodeMu.Unlock()
			err := newErrf(op, KindIo, "clone content: %v", cErr)
			fs.recordOp(op, err)
			return err
		}
		fs.content.Free(contentID)
		n.ContentId = cloned
		contentID = cloned
	}
	fs.nodeMu.Unlock()

	if err := fs.content.Truncate(contentID, size); err != nil {
		fs.recordOp(op, err)
		return translateContentErr(op, err)
	}

	fs.nodeMu.Lock()
	n.Size = size
	n.Times.Mtime = fs.clock.Now()
	fs.nodeMu.Unlock()

	if h.Path != "" {
		fs.bus.Publish(events.Event{Kind: events.KindModified, Subject: h.Path})
	}
	fs.recordOp(op, nil)
	return nil
}
