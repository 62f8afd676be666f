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

import "github.com/agentfs/agentfs-core/core/events"

// byteRangeLock is one advisory lock held by a handle over [Start, End) of
// a file's bytes. End == -1 means "to end of file, and beyond", matching
// POSIX fcntl(2)'s len=0 convention.
type byteRangeLock struct {
	Handle    HandleId
	Start     int64
	End       int64
	Exclusive bool
}

func (l byteRangeLock) overlaps(start, end int64) bool {
	if end == -1 && l.End == -1 {
		return true
	}
	if end == -1 {
		return l.End == -1 || l.End > start
	}
	if l.End == -1 {
		return end > l.Start
	}
	return start < l.End && l.Start < end
}

// LockRange acquires a byte-range advisory lock for handle over [start,
// end). end == -1 means to the end of the file and beyond. Acquisition is
// non-blocking: if any other handle holds a conflicting lock (two
// exclusive, or a shared against an exclusive) this returns Busy
// immediately rather than waiting, per spec.md §4.4.
func (fs *Core) LockRange(handle HandleId, start, end int64, exclusive bool) error {
	const op = "lock_range"

	h, err := fs.getHandle(op, handle)
	if err != nil {
		return err
	}

	fs.lockMu.Lock()
	defer fs.lockMu.Unlock()

	for _, l := range fs.fileLocks[h.NodeId] {
		if !l.overlaps(start, end) {
			continue
		}
		if l.Handle == handle {
			// No upgrade/downgrade in v1: a handle re-locking a range it
			// already holds under a different kind is a conflict, not a
			// merge.
			if l.Exclusive != exclusive {
				fs.metrics.LockConflicts.Inc()
				fs.bus.Publish(events.Event{Kind: events.KindLockConflict})
				return newErr(op, KindBusy, "handle already holds a conflicting lock on this range")
			}
			continue
		}
		if l.Exclusive || exclusive {
			fs.metrics.LockConflicts.Inc()
			fs.bus.Publish(events.Event{Kind: events.KindLockConflict})
			return newErr(op, KindBusy, "conflicting byte-range lock held")
		}
	}

	fs.fileLocks[h.NodeId] = append(fs.fileLocks[h.NodeId], byteRangeLock{
		Handle:    handle,
		Start:     start,
		End:       end,
		Exclusive: exclusive,
	})
	return nil
}

// UnlockRange releases the lock(s) handle holds over exactly [start, end).
// This core does not split or merge partial ranges; it expects callers to
// unlock the same range they locked, which is how every real caller in
// this corpus's domain (advisory file locking) actually behaves.
func (fs *Core) UnlockRange(handle HandleId, start, end int64) error {
	const op = "unlock_range"

	h, err := fs.getHandle(op, handle)
	if err != nil {
		return err
	}

	fs.lockMu.Lock()
	defer fs.lockMu.Unlock()

	locks := fs.fileLocks[h.NodeId]
	out := locks[:0]
	for _, l := range locks {
		if l.Handle == handle && l.Start == start && l.End == end {
			continue
		}
		out = append(out, l)
	}
	fs.fileLocks[h.NodeId] = out
	return nil
}

// releaseLocksForHandleLocked drops every lock handle holds, called when
// the handle is closed. Caller must hold fs.lockMu.
func (fs *Core) releaseLocksForHandleLocked(node NodeId, handle HandleId) {
	locks := fs.fileLocks[node]
	out := locks[:0]
	for _, l := range locks {
		if l.Handle != handle {
			out = append(out, l)
		}
	}
	if len(out) == 0 {
		delete(fs.fileLocks, node)
		return
	}
	fs.fileLocks[node] = out
}
