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
	"github.com/agentfs/agentfs-core/core/inode"
)

// resolveForAttrWrite resolves path for mutation and, if the leaf itself is
// shared with a snapshot, clones it and relinks the (already private)
// parent to the clone, returning the node callers should mutate in place.
// Callers must hold fs.nodeMu.
func (fs *Core) resolveForAttrWrite(op string, branch BranchId, path string, uid, gid uint32) (*resolution, error) {
	res, err := fs.resolve(op, branch, path, uid, gid, true)
	if err != nil {
		return nil, err
	}
	if res.Child == nil {
		return nil, newErr(op, KindNotFound, path)
	}
	// References held by open handles do not count as sharing.
	handleRefs := int32(0)
	fs.handleMu.Lock()
	for _, h := range fs.handles {
		if h.NodeId == res.Child.Id {
			handleRefs++
		}
	}
	fs.handleMu.Unlock()
	if res.Child.RefCount()-handleRefs > 1 {
		clone := fs.cloneForWriteLocked(res.Child)
		res.Parent.Children[res.StoreKey] = clone.Id
		res.ChildId = clone.Id
		res.Child = clone
	}
	return res, nil
}

// SetMode changes a node's permission bits (the low 9 bits plus
// setuid/setgid/sticky). It does not clear setid bits itself; only
// SetOwner does, per POSIX.
func (fs *Core) SetMode(token ProcessToken, path string, mode inode.Mode) error {
	const op = "set_mode"

	proc, err := fs.processFor(op, token)
	if err != nil {
		return err
	}
	branch, err := fs.boundBranch(op, token)
	if err != nil {
		return err
	}

	fs.nodeMu.Lock()
	defer fs.nodeMu.Unlock()

	res, err := fs.resolveForAttrWrite(op, branch, path, proc.Uid, proc.Gid)
	if err != nil {
		fs.recordOp(op, err)
		return err
	}
	if proc.Uid != 0 && proc.Uid != res.Child.Uid {
		err := newErr(op, KindAccessDenied, "only owner or root may change mode")
		fs.recordOp(op, err)
		return err
	}

	keep := res.Child.Mode & ^inode.Mode(0o7777)
	res.Child.Mode = keep | (mode & 0o7777)
	res.Child.Times.Ctime = fs.clock.Now()

	fs.recordOp(op, nil)
	return nil
}

// SetOwner changes a node's uid/gid. Either may be left unchanged by
// passing the node's current value; setuid/setgid bits are cleared
// unconditionally on a successful call, per spec.md §4.1 / POSIX chown(2).
// Changing uid requires root; changing gid additionally allows an owner who
// is a member of the target gid, matching chown(2)'s traditional "an owner
// may give a file to a group it belongs to" carve-out. Root's chown
// authority here is independent of root_bypass_permissions, which governs
// the general rwx permission checks in checkPerm, not this capability.
func (fs *Core) SetOwner(token ProcessToken, path string, uid, gid uint32) error {
	const op = "set_owner"

	proc, err := fs.processFor(op, token)
	if err != nil {
		return err
	}
	branch, err := fs.boundBranch(op, token)
	if err != nil {
		return err
	}

	fs.nodeMu.Lock()
	defer fs.nodeMu.Unlock()

	res, err := fs.resolveForAttrWrite(op, branch, path, proc.Uid, proc.Gid)
	if err != nil {
		fs.recordOp(op, err)
		return err
	}

	isRoot := proc.Uid == 0
	ownerMemberOfGid := proc.Uid == res.Child.Uid && proc.Gid == gid

	if uid != res.Child.Uid && !isRoot {
		err := newErr(op, KindAccessDenied, "only root may change uid")
		fs.recordOp(op, err)
		return err
	}
	if gid != res.Child.Gid && !(isRoot || ownerMemberOfGid) {
		err := newErr(op, KindAccessDenied, "gid change requires ownership and target gid membership, or root")
		fs.recordOp(op, err)
		return err
	}

	res.Child.Uid = uid
	res.Child.Gid = gid
	res.Child.ClearSetid()
	res.Child.Times.Ctime = fs.clock.Now()

	fs.recordOp(op, nil)
	return nil
}

// SetTimes updates atime/mtime. A timestamp whose flag (setAtime or
// setMtime) is false is left unchanged, so callers can update just one of
// the two.
func (fs *Core) SetTimes(token ProcessToken, path string, atime, mtime int64, setAtime, setMtime bool) error {
	const op = "set_times"

	proc, err := fs.processFor(op, token)
	if err != nil {
		return err
	}
	branch, err := fs.boundBranch(op, token)
	if err != nil {
		return err
	}

	fs.nodeMu.Lock()
	defer fs.nodeMu.Unlock()

	res, err := fs.resolveForAttrWrite(op, branch, path, proc.Uid, proc.Gid)
	if err != nil {
		fs.recordOp(op, err)
		return err
	}
	if proc.Uid != 0 && proc.Uid != res.Child.Uid {
		err := newErr(op, KindAccessDenied, "only owner or root may change times")
		fs.recordOp(op, err)
		return err
	}

	if setAtime {
		res.Child.Times.Atime = unixNanoTime(atime)
	}
	if setMtime {
		res.Child.Times.Mtime = unixNanoTime(mtime)
	}
	res.Child.Times.Ctime = fs.clock.Now()

	fs.recordOp(op, nil)
	return nil
}
