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
	"sort"

	"github.com/agentfs/agentfs-core/core/events"
	"github.com/agentfs/agentfs-core/core/inode"
)

// DirEntry is one row of a Readdir result.
type DirEntry struct {
	Name string
	Id   NodeId
	Kind inode.Kind
}

// Attr is the attribute view returned by Getattr and ReaddirPlus.
type Attr struct {
	Id        NodeId
	Kind      inode.Kind
	Mode      inode.Mode
	Uid       uint32
	Gid       uint32
	Size      int64
	Atime     int64
	Mtime     int64
	Ctime     int64
	Birthtime int64
	Nlink     uint32
}

func attrOf(n *inode.Node) Attr {
	return Attr{
		Id:        n.Id,
		Kind:      n.Kind,
		Mode:      n.Mode,
		Uid:       n.Uid,
		Gid:       n.Gid,
		Size:      n.Size,
		Atime:     n.Times.Atime.UnixNano(),
		Mtime:     n.Times.Mtime.UnixNano(),
		Ctime:     n.Times.Ctime.UnixNano(),
		Birthtime: n.Times.Birthtime.UnixNano(),
		Nlink:     1,
	}
}

// Mkdir creates an empty directory at path.
func (fs *Core) Mkdir(token ProcessToken, path string, mode inode.Mode) (NodeId, error) {
	const op = "mkdir"

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

	res, err := fs.resolve(op, branch, path, proc.Uid, proc.Gid, true)
	if err != nil {
		fs.recordOp(op, err)
		return 0, err
	}
	if res.Child != nil {
		err := newErr(op, KindAlreadyExists, path)
		fs.recordOp(op, err)
		return 0, err
	}
	if !fs.checkPerm(res.Parent, proc.Uid, proc.Gid, permWrite) {
		err := newErr(op, KindAccessDenied, "write permission denied on parent directory")
		fs.recordOp(op, err)
		return 0, err
	}

	now := fs.clock.Now()
	id := NodeId(fs.nodeIds.alloc())
	effMode := mode &^ inode.Mode(proc.Umask) & (inode.ModePerm | inode.ModeSticky | inode.ModeSetgid)
	n := inode.NewDirectory(id, effMode, proc.Uid, proc.Gid, now)
	fs.insertNodeLocked(n)
	res.Parent.Children[res.StoreKey] = id
	res.Parent.Times.Mtime = now

	fs.bus.Publish(events.Event{Kind: events.KindCreated, Subject: path})
	fs.recordOp(op, nil)
	return id, nil
}

// Rmdir removes an empty directory at path.
func (fs *Core) Rmdir(token ProcessToken, path string) error {
	const op = "rmdir"

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

	res, err := fs.resolve(op, branch, path, proc.Uid, proc.Gid, true)
	if err != nil {
		fs.recordOp(op, err)
		return err
	}
	if res.Child == nil {
		err := newErr(op, KindNotFound, path)
		fs.recordOp(op, err)
		return err
	}
	if res.Child.Kind != inode.KindDirectory {
		err := newErr(op, KindNotADirectory, path)
		fs.recordOp(op, err)
		return err
	}
	if len(res.Child.Children) > 0 {
		err := newErr(op, KindInvalidArgument, "directory not empty")
		fs.recordOp(op, err)
		return err
	}
	if !fs.checkPerm(res.Parent, proc.Uid, proc.Gid, permWrite) {
		err := newErr(op, KindAccessDenied, "write permission denied on parent directory")
		fs.recordOp(op, err)
		return err
	}
	// Sticky directories (spec.md §4.1) only allow removing an entry the
	// caller owns, unless the caller owns the parent directory itself.
	if res.Parent.Mode&inode.ModeSticky != 0 && proc.Uid != 0 &&
		proc.Uid != res.Child.Uid && proc.Uid != res.Parent.Uid {
		err := newErr(op, KindAccessDenied, "sticky directory: not owner")
		fs.recordOp(op, err)
		return err
	}

	delete(res.Parent.Children, res.StoreKey)
	res.Parent.Times.Mtime = fs.clock.Now()
	fs.releaseRefLocked(res.ChildId)

	fs.bus.Publish(events.Event{Kind: events.KindRemoved, Subject: path})
	fs.recordOp(op, nil)
	return nil
}

// Unlink removes a file or symlink directory entry. If handles are still
// open on it, the node survives until the last one closes (delete on last
// close), implemented entirely by the node's ordinary structural refcount.
func (fs *Core) Unlink(token ProcessToken, path string) error {
	const op = "unlink"

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

	res, err := fs.resolve(op, branch, path, proc.Uid, proc.Gid, true)
	if err != nil {
		fs.recordOp(op, err)
		return err
	}
	if res.Child == nil {
		err := newErr(op, KindNotFound, path)
		fs.recordOp(op, err)
		return err
	}
	if res.Child.Kind == inode.KindDirectory {
		err := newErr(op, KindIsADirectory, path)
		fs.recordOp(op, err)
		return err
	}
	if !fs.checkPerm(res.Parent, proc.Uid, proc.Gid, permWrite) {
		err := newErr(op, KindAccessDenied, "write permission denied on parent directory")
		fs.recordOp(op, err)
		return err
	}
	if res.Parent.Mode&inode.ModeSticky != 0 && proc.Uid != 0 &&
		proc.Uid != res.Child.Uid && proc.Uid != res.Parent.Uid {
		err := newErr(op, KindAccessDenied, "sticky directory: not owner")
		fs.recordOp(op, err)
		return err
	}

	delete(res.Parent.Children, res.StoreKey)
	res.Parent.Times.Mtime = fs.clock.Now()
	fs.releaseRefLocked(res.ChildId)

	fs.bus.Publish(events.Event{Kind: events.KindRemoved, Subject: path})
	fs.recordOp(op, nil)
	return nil
}

// Rename moves the entry at oldPath to newPath, both resolved against the
// same branch. If newPath already exists and is not a non-empty directory,
// it is replaced.
func (fs *Core) Rename(token ProcessToken, oldPath, newPath string) error {
	const op = "rename"

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

	srcRes, err := fs.resolve(op, branch, oldPath, proc.Uid, proc.Gid, true)
	if err != nil {
		fs.recordOp(op, err)
		return err
	}
	if srcRes.Child == nil {
		err := newErr(op, KindNotFound, oldPath)
		fs.recordOp(op, err)
		return err
	}
	if !fs.checkPerm(srcRes.Parent, proc.Uid, proc.Gid, permWrite) {
		err := newErr(op, KindAccessDenied, "write permission denied on source parent directory")
		fs.recordOp(op, err)
		return err
	}

	dstRes, err := fs.resolve(op, branch, newPath, proc.Uid, proc.Gid, true)
	if err != nil {
		fs.recordOp(op, err)
		return err
	}
	if !fs.checkPerm(dstRes.Parent, proc.Uid, proc.Gid, permWrite) {
		err := newErr(op, KindAccessDenied, "write permission denied on destination parent directory")
		fs.recordOp(op, err)
		return err
	}

	// Re-resolve the source: the dest-path resolve may have cloned
	// ancestor directories shared with the source path (e.g. moving
	// within the same directory), invalidating srcRes.Parent's identity.
	srcRes, err = fs.resolve(op, branch, oldPath, proc.Uid, proc.Gid, true)
	if err != nil {
		fs.recordOp(op, err)
		return err
	}

	if dstRes.Child != nil {
		if dstRes.Child.Kind == inode.KindDirectory && len(dstRes.Child.Children) > 0 {
			err := newErr(op, KindInvalidArgument, "destination directory not empty")
			fs.recordOp(op, err)
			return err
		}
		fs.releaseRefLocked(dstRes.ChildId)
	}

	movedID := srcRes.ChildId
	dstRes.Parent.Children[dstRes.StoreKey] = movedID
	if n, ok := fs.nodes[movedID]; ok {
		n.IncRef()
	}
	delete(srcRes.Parent.Children, srcRes.StoreKey)
	fs.releaseRefLocked(movedID)

	now := fs.clock.Now()
	srcRes.Parent.Times.Mtime = now
	dstRes.Parent.Times.Mtime = now

	fs.bus.Publish(events.Event{Kind: events.KindRenamed, From: oldPath, To: newPath})
	fs.recordOp(op, nil)
	return nil
}

// Symlink creates a symlink at path pointing at target.
func (fs *Core) Symlink(token ProcessToken, path, target string) (NodeId, error) {
	const op = "symlink"

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

	res, err := fs.resolve(op, branch, path, proc.Uid, proc.Gid, true)
	if err != nil {
		fs.recordOp(op, err)
		return 0, err
	}
	if res.Child != nil {
		err := newErr(op, KindAlreadyExists, path)
		fs.recordOp(op, err)
		return 0, err
	}
	if !fs.checkPerm(res.Parent, proc.Uid, proc.Gid, permWrite) {
		err := newErr(op, KindAccessDenied, "write permission denied on parent directory")
		fs.recordOp(op, err)
		return 0, err
	}

	id := NodeId(fs.nodeIds.alloc())
	n := inode.NewSymlink(id, []byte(target), proc.Uid, proc.Gid, fs.clock.Now())
	fs.insertNodeLocked(n)
	res.Parent.Children[res.StoreKey] = id
	res.Parent.Times.Mtime = fs.clock.Now()

	fs.bus.Publish(events.Event{Kind: events.KindCreated, Subject: path})
	fs.recordOp(op, nil)
	return id, nil
}

// Readlink returns a symlink's target.
func (fs *Core) Readlink(token ProcessToken, path string) (string, error) {
	const op = "readlink"

	proc, err := fs.processFor(op, token)
	if err != nil {
		return "", err
	}
	branch, err := fs.boundBranch(op, token)
	if err != nil {
		return "", err
	}

	fs.nodeMu.Lock()
	defer fs.nodeMu.Unlock()

	res, err := fs.resolve(op, branch, path, proc.Uid, proc.Gid, false)
	if err != nil {
		fs.recordOp(op, err)
		return "", err
	}
	if res.Child == nil {
		err := newErr(op, KindNotFound, path)
		fs.recordOp(op, err)
		return "", err
	}
	if res.Child.Kind != inode.KindSymlink {
		err := newErr(op, KindInvalidArgument, "not a symlink")
		fs.recordOp(op, err)
		return "", err
	}
	fs.recordOp(op, nil)
	return string(res.Child.Target), nil
}

// Readdir lists the entries of the directory at path in stable,
// lexicographic order by stored name.
func (fs *Core) Readdir(token ProcessToken, path string) ([]DirEntry, error) {
	const op = "readdir"

	proc, err := fs.processFor(op, token)
	if err != nil {
		return nil, err
	}
	branch, err := fs.boundBranch(op, token)
	if err != nil {
		return nil, err
	}

	fs.nodeMu.Lock()
	defer fs.nodeMu.Unlock()

	res, err := fs.resolveDir(op, branch, path, proc.Uid, proc.Gid)
	if err != nil {
		fs.recordOp(op, err)
		return nil, err
	}
	if !fs.checkPerm(res, proc.Uid, proc.Gid, permRead) {
		err := newErr(op, KindAccessDenied, path)
		fs.recordOp(op, err)
		return nil, err
	}

	names := make([]string, 0, len(res.Children))
	for name := range res.Children {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]DirEntry, 0, len(names))
	for _, name := range names {
		childID := res.Children[name]
		child, err := fs.getNodeLocked(op, childID)
		if err != nil {
			continue
		}
		out = append(out, DirEntry{Name: name, Id: childID, Kind: child.Kind})
	}

	fs.recordOp(op, nil)
	return out, nil
}

// ReaddirPlus lists the entries of the directory at path along with each
// entry's full attributes, avoiding a separate Getattr round trip per
// entry (spec.md §6's cache.enable_readdir_plus hint exists for exactly
// this).
func (fs *Core) ReaddirPlus(token ProcessToken, path string) ([]Attr, []string, error) {
	const op = "readdir_plus"

	proc, err := fs.processFor(op, token)
	if err != nil {
		return nil, nil, err
	}
	branch, err := fs.boundBranch(op, token)
	if err != nil {
		return nil, nil, err
	}

	fs.nodeMu.Lock()
	defer fs.nodeMu.Unlock()

	res, err := fs.resolveDir(op, branch, path, proc.Uid, proc.Gid)
	if err != nil {
		fs.recordOp(op, err)
		return nil, nil, err
	}
	if !fs.checkPerm(res, proc.Uid, proc.Gid, permRead) {
		err := newErr(op, KindAccessDenied, path)
		fs.recordOp(op, err)
		return nil, nil, err
	}

	names := make([]string, 0, len(res.Children))
	for name := range res.Children {
		names = append(names, name)
	}
	sort.Strings(names)

	attrs := make([]Attr, 0, len(names))
	for _, name := range names {
		child, err := fs.getNodeLocked(op, res.Children[name])
		if err != nil {
			continue
		}
		attrs = append(attrs, attrOf(child))
	}

	fs.recordOp(op, nil)
	return attrs, names, nil
}

// ReaddirPlusRaw is ReaddirPlus with names returned as raw byte slices
// rather than strings, preserving entries whose stored name is not valid
// UTF-8 (spec.md §4.3's "_raw variant preserves non-UTF-8 names as byte
// sequences"). Names in this core are already stored as Go strings used
// purely as byte containers (never interpreted as text), so this is a
// trivial reinterpretation of ReaddirPlus's result rather than a separate
// resolution path.
func (fs *Core) ReaddirPlusRaw(token ProcessToken, path string) ([]Attr, [][]byte, error) {
	attrs, names, err := fs.ReaddirPlus(token, path)
	if err != nil {
		return nil, nil, err
	}
	raw := make([][]byte, len(names))
	for i, n := range names {
		raw[i] = []byte(n)
	}
	return attrs, raw, nil
}

// resolveDir resolves path read-only and requires the result be a
// directory, returning that directory's Node directly (used by readdir,
// which operates on the directory itself rather than a parent+leaf pair).
func (fs *Core) resolveDir(op string, branch BranchId, path string, uid, gid uint32) (*inode.Node, error) {
	if path == "/" {
		rootID, err := fs.branchRoot(op, branch)
		if err != nil {
			return nil, err
		}
		return fs.getNodeLocked(op, rootID)
	}
	res, err := fs.resolve(op, branch, path, uid, gid, false)
	if err != nil {
		return nil, err
	}
	if res.Child == nil {
		return nil, newErr(op, KindNotFound, path)
	}
	if res.Child.Kind != inode.KindDirectory {
		return nil, newErr(op, KindNotADirectory, path)
	}
	return res.Child, nil
}

// Getattr returns the attributes of the node at path.
func (fs *Core) Getattr(token ProcessToken, path string) (Attr, error) {
	const op = "getattr"

	proc, err := fs.processFor(op, token)
	if err != nil {
		return Attr{}, err
	}
	branch, err := fs.boundBranch(op, token)
	if err != nil {
		return Attr{}, err
	}

	fs.nodeMu.Lock()
	defer fs.nodeMu.Unlock()

	if path == "/" {
		rootID, err := fs.branchRoot(op, branch)
		if err != nil {
			return Attr{}, err
		}
		n, err := fs.getNodeLocked(op, rootID)
		if err != nil {
			return Attr{}, err
		}
		fs.recordOp(op, nil)
		return attrOf(n), nil
	}

	res, err := fs.resolve(op, branch, path, proc.Uid, proc.Gid, false)
	if err != nil {
		fs.recordOp(op, err)
		return Attr{}, err
	}
	if res.Child == nil {
		err := newErr(op, KindNotFound, path)
		fs.recordOp(op, err)
		return Attr{}, err
	}
	fs.recordOp(op, nil)
	return attrOf(res.Child), nil
}
