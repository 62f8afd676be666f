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
	"strings"

	"github.com/agentfs/agentfs-core/cfg"
	"github.com/agentfs/agentfs-core/core/inode"
)

// MaxNameBytes and MaxPathDepth guard against unbounded recursion during
// CoW path rebuild; carried over from the original implementation's
// bounds (see SPEC_FULL.md's "Supplemented from original_source").
const (
	MaxNameBytes = 255
	MaxPathDepth = 4096
)

const (
	permRead  = 0o4
	permWrite = 0o2
	permExec  = 0o1
)

func validateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return newErr("resolve", KindInvalidName, "reserved or empty name")
	}
	if len(name) > MaxNameBytes {
		return newErr("resolve", KindInvalidName, "name exceeds max length")
	}
	if strings.ContainsRune(name, '/') {
		return newErr("resolve", KindInvalidName, "name contains separator")
	}
	return nil
}

// splitPath validates and splits an absolute, '/'-separated path into its
// components. The root path "/" splits to an empty slice.
func splitPath(path string) ([]string, error) {
	if path == "" || path[0] != '/' {
		return nil, newErr("resolve", KindInvalidArgument, "path must be absolute")
	}
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return []string{}, nil
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) > MaxPathDepth {
		return nil, newErr("resolve", KindInvalidArgument, "path exceeds max depth")
	}
	for _, p := range parts {
		if err := validateName(p); err != nil {
			return nil, err
		}
	}
	return parts, nil
}

// foldName applies the branch's case-sensitivity policy to a single
// path component for comparison/storage purposes.
func foldName(cs cfg.CaseSensitivity, name string) string {
	if cs == cfg.Sensitive {
		return name
	}
	return strings.ToLower(name)
}

// storageKey is the key a name is actually stored under in a directory's
// Children map: InsensitiveFolding folds at storage time (so readdir's
// byte-order sort reflects the folded form); Sensitive and
// InsensitivePreserving keep the original bytes.
func storageKey(cs cfg.CaseSensitivity, name string) string {
	if cs == cfg.InsensitiveFolding {
		return strings.ToLower(name)
	}
	return name
}

// dirLookup finds name among dir's children under cs's comparison rules,
// returning the stored key (which may differ from name) and the child id.
func dirLookup(cs cfg.CaseSensitivity, dir *inode.Node, name string) (key string, id NodeId, ok bool) {
	if cs == cfg.Sensitive || cs == cfg.InsensitiveFolding {
		k := storageKey(cs, name)
		id, ok := dir.Children[k]
		return k, id, ok
	}
	// InsensitivePreserving: keys retain original case, so a linear scan
	// comparing folded forms is required.
	folded := foldName(cs, name)
	for k, id := range dir.Children {
		if foldName(cs, k) == folded {
			return k, id, true
		}
	}
	return "", 0, false
}

// checkPerm reports whether a process with the given uid/gid has want
// (some combination of permRead/permWrite/permExec) on n, per spec.md
// §4.1's POSIX class selection (owner/group/other) and the
// root_bypass_permissions / enforce_posix_permissions config flags.
func (fs *Core) checkPerm(n *inode.Node, uid, gid uint32, want uint32) bool {
	if !fs.cfg.Security.EnforcePosixPermissions {
		return true
	}
	if uid == 0 && fs.cfg.Security.RootBypassPermissions {
		return true
	}
	var shift uint
	switch {
	case uid == n.Uid:
		shift = 6
	case gid == n.Gid:
		shift = 3
	default:
		shift = 0
	}
	bits := (uint32(n.Mode) >> shift) & 0o7
	return bits&want == want
}

// resolution is the result of walking a path. Child/ChildId are the zero
// value when the leaf does not exist (used by create-style operations).
type resolution struct {
	ParentId NodeId
	Parent   *inode.Node
	Name     string // leaf component as given by the caller
	StoreKey string // key the leaf is/would be stored under
	ChildId  NodeId
	Child    *inode.Node
}

// resolve walks path from branch's current root. Callers must already hold
// fs.nodeMu. When mutate is true, every directory along the path (but not
// the leaf itself) is cloned-for-write if shared, and the branch root or
// the parent's child-map entry is updated in place to point at the clone,
// implementing spec.md §5's eager directory CoW. The leaf node itself is
// never cloned here: write-style operations that need a private leaf call
// fs.cloneForWriteLocked on the returned Child themselves and re-link it
// into Parent.Children.
func (fs *Core) resolve(op string, branch BranchId, path string, uid, gid uint32, mutate bool) (*resolution, error) {
	parts, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, newErr(op, KindInvalidArgument, "path has no final component")
	}

	rootID, err := fs.branchRoot(op, branch)
	if err != nil {
		return nil, err
	}

	curID := rootID
	cur, err := fs.getNodeLocked(op, curID)
	if err != nil {
		return nil, err
	}
	var parentOfCur *inode.Node // nil until we descend past root
	var parentOfCurID NodeId
	var keyInParent string

	for _, part := range parts[:len(parts)-1] {
		if cur.Kind != inode.KindDirectory {
			return nil, newErr(op, KindNotADirectory, part)
		}
		if !fs.checkPerm(cur, uid, gid, permExec) {
			return nil, newErr(op, KindAccessDenied, "search permission denied")
		}
		key, childID, ok := dirLookup(fs.cfg.CaseSensitivity, cur, part)
		if !ok {
			return nil, newErr(op, KindNotFound, part)
		}
		child, err := fs.getNodeLocked(op, childID)
		if err != nil {
			return nil, err
		}

		if mutate {
			clone := fs.cloneForWriteLocked(cur)
			if clone != cur {
				fs.relinkLocked(branch, parentOfCurID, parentOfCur, keyInParent, curID, clone.Id)
				cur = clone
				curID = clone.Id
			}
		}

		parentOfCur = cur
		parentOfCurID = curID
		keyInParent = key
		cur = child
		curID = childID
	}

	if cur.Kind != inode.KindDirectory {
		return nil, newErr(op, KindNotADirectory, "parent is not a directory")
	}
	if !fs.checkPerm(cur, uid, gid, permExec) {
		return nil, newErr(op, KindAccessDenied, "search permission denied")
	}

	if mutate {
		clone := fs.cloneForWriteLocked(cur)
		if clone != cur {
			fs.relinkLocked(branch, parentOfCurID, parentOfCur, keyInParent, curID, clone.Id)
			cur = clone
			curID = clone.Id
		}
	}

	leaf := parts[len(parts)-1]
	key, childID, ok := dirLookup(fs.cfg.CaseSensitivity, cur, leaf)
	res := &resolution{
		ParentId: curID,
		Parent:   cur,
		Name:     leaf,
		StoreKey: storageKey(fs.cfg.CaseSensitivity, leaf),
	}
	if ok {
		res.StoreKey = key
		child, err := fs.getNodeLocked(op, childID)
		if err != nil {
			return nil, err
		}
		res.ChildId = childID
		res.Child = child
	}
	return res, nil
}

// relinkLocked points whatever currently references oldID at newID: either
// the branch's root pointer (when parent is nil, meaning oldID was the
// root itself) or parent's child-map entry under key.
func (fs *Core) relinkLocked(branch BranchId, parentID NodeId, parent *inode.Node, key string, oldID, newID NodeId) {
	if parent == nil {
		fs.setBranchRoot(branch, newID)
		return
	}
	parent.Children[key] = newID
}
