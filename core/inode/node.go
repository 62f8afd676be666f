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

// Package inode holds the Node record and its mutable fields. Node replaces
// the teacher's fs/inode package (DirInode, FileInode, SymlinkInode each
// wrapping a *fuseops.InodeAttributes plus kind-specific state): this
// module collapses all three kinds into one struct selected by Kind,
// because unlike gcsfuse's inodes a Node here never talks to a backing
// store of its own — all kind-specific data (children, file content id,
// symlink target) is a plain field, and the surrounding Core owns locking
// (see core/invariant.go) rather than each Node carrying its own mutex the
// way fs/inode/dir.go's DirInode.mu does.
package inode

import (
	"time"

	"github.com/agentfs/agentfs-core/core/content"
)

// Kind is the type of filesystem object a Node represents.
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
	KindSymlink
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// Mode is a POSIX permission word: the low 9 bits are rwxrwxrwx, plus the
// setuid/setgid/sticky bits above them. Mirrors os.FileMode's low bits so
// conversions at an adapter boundary are a direct cast.
type Mode uint32

const (
	ModeSetuid Mode = 1 << 11
	ModeSetgid Mode = 1 << 10
	ModeSticky Mode = 1 << 9
	ModePerm   Mode = 0o777
)

// Times holds the four POSIX-ish timestamps spec.md's data model names.
type Times struct {
	Atime     time.Time
	Mtime     time.Time
	Ctime     time.Time
	Birthtime time.Time
}

// Stream is one named alternate data stream attached to a file Node.
type Stream struct {
	ContentId content.Id
	Size      int64
}

// Id is the node table's key type, declared here (rather than imported
// from core, which would be a cycle) as a plain uint64; core.NodeId is an
// alias of this type.
type Id uint64

// Node is one entry in the node table. Which of the kind-specific fields
// are meaningful depends on Kind.
type Node struct {
	Id   Id
	Kind Kind

	Mode  Mode
	Uid   uint32
	Gid   uint32
	Times Times

	// refCount is the number of structural references to this node: one
	// per (branch root slot | snapshot root slot | parent directory
	// entry | pending-delete retention). A node with refCount > 1 is
	// shared and must be cloned, not mutated in place, the next time it
	// is reached through any one of those references for a write.
	//
	// GUARDED_BY: Core.nodeMu
	refCount int32

	// File
	ContentId content.Id
	Size      int64
	Streams   map[string]*Stream // alternate data streams, file-only

	// Directory
	Children map[string]Id

	// Symlink
	Target []byte

	// Xattrs is shared by all three kinds (spec.md §4.1 allows xattrs on
	// any node type).
	Xattrs map[string]content.Id
}

// NewFile constructs a file Node with a freshly allocated, empty content
// buffer referenced by contentID.
func NewFile(id Id, contentID content.Id, mode Mode, uid, gid uint32, now time.Time) *Node {
	return &Node{
		Id:        id,
		Kind:      KindFile,
		Mode:      mode,
		Uid:       uid,
		Gid:       gid,
		Times:     Times{Atime: now, Mtime: now, Ctime: now, Birthtime: now},
		refCount:  1,
		ContentId: contentID,
	}
}

// NewDirectory constructs an empty directory Node.
func NewDirectory(id Id, mode Mode, uid, gid uint32, now time.Time) *Node {
	return &Node{
		Id:       id,
		Kind:     KindDirectory,
		Mode:     mode,
		Uid:      uid,
		Gid:      gid,
		Times:    Times{Atime: now, Mtime: now, Ctime: now, Birthtime: now},
		refCount: 1,
		Children: make(map[string]Id),
	}
}

// NewSymlink constructs a symlink Node pointing at target.
func NewSymlink(id Id, target []byte, uid, gid uint32, now time.Time) *Node {
	return &Node{
		Id:       id,
		Kind:     KindSymlink,
		Mode:     0o777,
		Uid:      uid,
		Gid:      gid,
		Times:    Times{Atime: now, Mtime: now, Ctime: now, Birthtime: now},
		refCount: 1,
		Target:   target,
	}
}

// RefCount returns the current structural reference count.
func (n *Node) RefCount() int32 { return n.refCount }

// Shared reports whether this node has more than one structural reference
// and therefore must be cloned before being mutated through any single one
// of them (spec.md §5's copy-on-write invariant).
func (n *Node) Shared() bool { return n.refCount > 1 }

// IncRef adds one structural reference, called whenever a new edge (a
// directory entry, a branch root slot, a snapshot root slot) starts
// pointing at this node.
func (n *Node) IncRef() { n.refCount++ }

// DecRef removes one structural reference, returning the count remaining.
// Callers drop the node from the table and free its content once this
// reaches zero.
func (n *Node) DecRef() int32 {
	n.refCount--
	return n.refCount
}

// Clone returns a deep-enough copy of n for CoW: a new Node with its own
// Children/Xattrs/Streams maps (so mutating the clone never affects the
// original) but sharing the original's ContentId (content cloning, when
// needed, is a separate, lazier step driven by the write path). The clone
// starts with refCount 1: exactly the one new edge that is about to start
// pointing at it.
func (n *Node) Clone(newID Id) *Node {
	clone := &Node{
		Id:        newID,
		Kind:      n.Kind,
		Mode:      n.Mode,
		Uid:       n.Uid,
		Gid:       n.Gid,
		Times:     n.Times,
		refCount:  1,
		ContentId: n.ContentId,
		Size:      n.Size,
	}
	if n.Children != nil {
		clone.Children = make(map[string]Id, len(n.Children))
		for name, id := range n.Children {
			clone.Children[name] = id
		}
	}
	if n.Xattrs != nil {
		clone.Xattrs = make(map[string]content.Id, len(n.Xattrs))
		for k, v := range n.Xattrs {
			clone.Xattrs[k] = v
		}
	}
	if n.Streams != nil {
		clone.Streams = make(map[string]*Stream, len(n.Streams))
		for k, v := range n.Streams {
			s := *v
			clone.Streams[k] = &s
		}
	}
	if n.Target != nil {
		clone.Target = append([]byte(nil), n.Target...)
	}
	return clone
}

// ClearSetid clears the setuid/setgid bits, called on every successful
// set_owner per POSIX (and per spec.md §4.1's "setid cleared on chown").
func (n *Node) ClearSetid() {
	n.Mode &^= ModeSetuid | ModeSetgid
}
