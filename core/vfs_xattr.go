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

import "sort"

// MaxXattrValueBytes and MaxXattrTotalBytes cap a single xattr value and
// the sum of all of a node's xattr values, carried over from the original
// implementation (see SPEC_FULL.md's "Supplemented from original_source").
const (
	MaxXattrValueBytes = 64 * 1024
	MaxXattrTotalBytes = 1024 * 1024
)

// GetXattr returns the value stored under name on the node at path.
func (fs *Core) GetXattr(token ProcessToken, path, name string) ([]byte, error) {
	const op = "get_xattr"

	if !fs.cfg.EnableXattrs {
		return nil, newErr(op, KindUnsupported, "xattrs disabled")
	}

	proc, err := fs.processFor(op, token)
	if err != nil {
		return nil, err
	}
	branch, err := fs.boundBranch(op, token)
	if err != nil {
		return nil, err
	}

	fs.nodeMu.Lock()
	res, err := fs.resolve(op, branch, path, proc.Uid, proc.Gid, false)
	if err != nil {
		fs.nodeMu.Unlock()
		fs.recordOp(op, err)
		return nil, err
	}
	if res.Child == nil {
		fs.nodeMu.Unlock()
		err := newErr(op, KindNotFound, path)
		fs.recordOp(op, err)
		return nil, err
	}
	id, ok := res.Child.Xattrs[name]
	fs.nodeMu.Unlock()
	if !ok {
		err := newErr(op, KindNotFound, name)
		fs.recordOp(op, err)
		return nil, err
	}

	v, err := fs.content.Bytes(id)
	if err != nil {
		err = translateContentErr(op, err)
	}
	fs.recordOp(op, err)
	return v, err
}

// SetXattr stores value under name on the node at path, creating or
// replacing it. An empty value removes the attribute entirely (spec.md
// §4.3: "set with empty bytes removes the attribute"), mirroring the
// roundtrip law tested in spec.md §8.
func (fs *Core) SetXattr(token ProcessToken, path, name string, value []byte) error {
	const op = "set_xattr"

	if !fs.cfg.EnableXattrs {
		return newErr(op, KindUnsupported, "xattrs disabled")
	}
	if len(value) > MaxXattrValueBytes {
		return newErr(op, KindNoSpace, "xattr value exceeds max size")
	}

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
	if !fs.checkPerm(res.Child, proc.Uid, proc.Gid, permWrite) {
		err := newErr(op, KindAccessDenied, path)
		fs.recordOp(op, err)
		return err
	}

	if len(value) == 0 {
		if id, ok := res.Child.Xattrs[name]; ok {
			fs.content.Free(id)
			delete(res.Child.Xattrs, name)
			res.Child.Times.Ctime = fs.clock.Now()
		}
		fs.recordOp(op, nil)
		return nil
	}

	if res.Child.Xattrs == nil {
		res.Child.Xattrs = make(map[string]ContentId)
	}

	total := int64(len(value))
	for n, id := range res.Child.Xattrs {
		if n == name {
			continue
		}
		if l, lErr := fs.content.Len(id); lErr == nil {
			total += l
		}
	}
	if total > MaxXattrTotalBytes {
		err := newErr(op, KindNoSpace, "xattr total size exceeds max")
		fs.recordOp(op, err)
		return err
	}

	if existing, ok := res.Child.Xattrs[name]; ok {
		target := existing
		// resolveForAttrWrite may have cloned res.Child from a node that is
		// still reachable through a snapshot; Node.Clone copies Xattrs by
		// value, so `existing` can still be referenced by that older node.
		// Mutating it in place would corrupt what the snapshot observes, so
		// clone the buffer first whenever it is shared.
		if fs.content.Shared(existing) {
			cloned, cErr := fs.content.Clone(existing)
			if cErr != nil {
				err := newErrf(op, KindIo, "clone xattr content: %v", cErr)
				fs.recordOp(op, err)
				return err
			}
			fs.content.Free(existing)
			res.Child.Xattrs[name] = cloned
			target = cloned
		}
		if sErr := fs.content.SetBytes(target, value); sErr != nil {
			fs.recordOp(op, sErr)
			return translateContentErr(op, sErr)
		}
	} else {
		id := fs.content.Allocate()
		if sErr := fs.content.SetBytes(id, value); sErr != nil {
			fs.content.Free(id)
			fs.recordOp(op, sErr)
			return translateContentErr(op, sErr)
		}
		res.Child.Xattrs[name] = id
	}
	res.Child.Times.Ctime = fs.clock.Now()

	fs.recordOp(op, nil)
	return nil
}

// RemoveXattr deletes name from the node at path.
func (fs *Core) RemoveXattr(token ProcessToken, path, name string) error {
	const op = "remove_xattr"

	if !fs.cfg.EnableXattrs {
		return newErr(op, KindUnsupported, "xattrs disabled")
	}

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
	id, ok := res.Child.Xattrs[name]
	if !ok {
		err := newErr(op, KindNotFound, name)
		fs.recordOp(op, err)
		return err
	}
	fs.content.Free(id)
	delete(res.Child.Xattrs, name)
	res.Child.Times.Ctime = fs.clock.Now()

	fs.recordOp(op, nil)
	return nil
}

// ListXattr returns the sorted names of every xattr set on the node at
// path.
func (fs *Core) ListXattr(token ProcessToken, path string) ([]string, error) {
	const op = "list_xattr"

	if !fs.cfg.EnableXattrs {
		return nil, newErr(op, KindUnsupported, "xattrs disabled")
	}

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

	res, err := fs.resolve(op, branch, path, proc.Uid, proc.Gid, false)
	if err != nil {
		fs.recordOp(op, err)
		return nil, err
	}
	if res.Child == nil {
		err := newErr(op, KindNotFound, path)
		fs.recordOp(op, err)
		return nil, err
	}

	names := make([]string, 0, len(res.Child.Xattrs))
	for name := range res.Child.Xattrs {
		names = append(names, name)
	}
	sort.Strings(names)

	fs.recordOp(op, nil)
	return names, nil
}
