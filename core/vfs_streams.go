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

	"github.com/agentfs/agentfs-core/core/inode"
)

// OpenStream opens (creating if flags.Create) a named alternate data
// stream on the file at path, returning a handle whose Read/Write operate
// on that stream's own, independently sized byte buffer rather than the
// file's primary content (spec.md §4.5).
func (fs *Core) OpenStream(token ProcessToken, path, stream string, flags OpenFlags) (HandleId, error) {
	const op = "open_stream"

	if !fs.cfg.EnableAds {
		return 0, newErr(op, KindUnsupported, "alternate data streams disabled")
	}
	if stream == "" {
		return 0, newErr(op, KindInvalidArgument, "stream name must not be empty")
	}

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
		err := newErr(op, KindNotFound, path)
		fs.recordOp(op, err)
		return 0, err
	}
	if res.Child.Kind != inode.KindFile {
		err := newErr(op, KindInvalidArgument, "streams are only supported on regular files")
		fs.recordOp(op, err)
		return 0, err
	}

	n := res.Child
	if (flags.Write || flags.Create) && n.Shared() {
		clone := fs.cloneForWriteLocked(n)
		res.Parent.Children[res.StoreKey] = clone.Id
		n = clone
	}

	if n.Streams == nil {
		n.Streams = make(map[string]*inode.Stream)
	}
	if _, ok := n.Streams[stream]; !ok {
		if !flags.Create {
			err := newErr(op, KindNotFound, stream)
			fs.recordOp(op, err)
			return 0, err
		}
		n.Streams[stream] = &inode.Stream{ContentId: fs.content.Allocate()}
	}

	id, err := fs.openNodeLocked(branch, n, stream, flags)
	fs.recordOp(op, err)
	return id, err
}

// ListStreams returns the sorted names of every alternate data stream on
// the file at path.
func (fs *Core) ListStreams(token ProcessToken, path string) ([]string, error) {
	const op = "list_streams"

	if !fs.cfg.EnableAds {
		return nil, newErr(op, KindUnsupported, "alternate data streams disabled")
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

	names := make([]string, 0, len(res.Child.Streams))
	for name := range res.Child.Streams {
		names = append(names, name)
	}
	sort.Strings(names)

	fs.recordOp(op, nil)
	return names, nil
}

// RemoveStream deletes a named alternate data stream from the file at
// path.
func (fs *Core) RemoveStream(token ProcessToken, path, stream string) error {
	const op = "remove_stream"

	if !fs.cfg.EnableAds {
		return newErr(op, KindUnsupported, "alternate data streams disabled")
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
	s, ok := res.Child.Streams[stream]
	if !ok {
		err := newErr(op, KindNotFound, stream)
		fs.recordOp(op, err)
		return err
	}
	fs.content.Free(s.ContentId)
	delete(res.Child.Streams, stream)
	res.Child.Times.Ctime = fs.clock.Now()

	fs.recordOp(op, nil)
	return nil
}
