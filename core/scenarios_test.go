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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentfs/agentfs-core/core/inode"
)

// S1: read/write round-trip.
func TestScenarioReadWriteRoundTrip(t *testing.T) {
	fs := newTestCore()
	tok := fs.RegisterProcess(1000, 1, 1000, 1000, 0o022)

	_, err := fs.Mkdir(tok, "/dir", 0o755)
	require.NoError(t, err)

	h, err := fs.Open(tok, "/dir/a.txt", rwCreate())
	require.NoError(t, err)

	n, err := fs.Write(h, []byte("hello"), 0)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.NoError(t, fs.Close(h))

	h2, err := fs.Open(tok, "/dir/a.txt", ro())
	require.NoError(t, err)

	buf := make([]byte, 5)
	n, err = fs.Read(h2, buf, 0)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(buf))
	require.NoError(t, fs.Close(h2))
}

// S2: delete-on-close.
func TestScenarioDeleteOnClose(t *testing.T) {
	fs := newTestCore()
	tok := fs.RegisterProcess(2000, 1, 0, 0, 0)

	h, err := fs.Open(tok, "/x", rwCreate())
	require.NoError(t, err)

	_, err = fs.Write(h, []byte("test content"), 0)
	require.NoError(t, err)

	require.NoError(t, fs.Unlink(tok, "/x"))

	buf := make([]byte, 12)
	n, err := fs.Read(h, buf, 0)
	require.NoError(t, err)
	require.Equal(t, "test content", string(buf[:n]))

	statsBefore := fs.Stats()
	require.Equal(t, 1, statsBefore.OpenHandles)

	require.NoError(t, fs.Close(h))

	_, err = fs.Open(tok, "/x", ro())
	require.ErrorIs(t, err, ErrNotFound)
}

// S3: snapshot isolation across two processes bound to different branches.
func TestScenarioSnapshotIsolation(t *testing.T) {
	fs := newTestCore()
	pid1 := fs.RegisterProcess(1, 0, 0, 0, 0)
	pid2 := fs.RegisterProcess(2, 0, 0, 0, 0)

	h, err := fs.Open(pid1, "/shared.txt", rwCreate())
	require.NoError(t, err)
	_, err = fs.Write(h, []byte("original"), 0)
	require.NoError(t, err)
	require.NoError(t, fs.Close(h))

	defaultBranch := fs.DefaultBranch()
	snap, err := fs.CreateSnapshot(defaultBranch, "base")
	require.NoError(t, err)

	branch, err := fs.CreateBranch(snap, "offshoot")
	require.NoError(t, err)
	require.NoError(t, fs.BindProcessToBranch(pid2, branch))

	h2, err := fs.Open(pid2, "/shared.txt", rw())
	require.NoError(t, err)
	_, err = fs.Write(h2, []byte("modified"), 0)
	require.NoError(t, err)
	require.NoError(t, fs.Close(h2))

	h1, err := fs.Open(pid1, "/shared.txt", ro())
	require.NoError(t, err)
	buf := make([]byte, 8)
	n, err := fs.Read(h1, buf, 0)
	require.NoError(t, err)
	require.Equal(t, "original", string(buf[:n]))
	require.NoError(t, fs.Close(h1))

	h2b, err := fs.Open(pid2, "/shared.txt", ro())
	require.NoError(t, err)
	buf2 := make([]byte, 8)
	n2, err := fs.Read(h2b, buf2, 0)
	require.NoError(t, err)
	require.Equal(t, "modified", string(buf2[:n2]))
	require.NoError(t, fs.Close(h2b))
}

// S4: sticky directory restricts unlink to the owner (or root, or the
// directory's own owner).
func TestScenarioStickyDirectory(t *testing.T) {
	fs := newTestCore()
	root := fs.RegisterProcess(100, 0, 0, 0, 0)
	alice := fs.RegisterProcess(101, 0, 1000, 1000, 0)
	bob := fs.RegisterProcess(102, 0, 1001, 1001, 0)

	_, err := fs.Mkdir(root, "/tmp", 0o1777)
	require.NoError(t, err)

	h, err := fs.Open(alice, "/tmp/a.txt", rwCreate())
	require.NoError(t, err)
	require.NoError(t, fs.Close(h))

	err = fs.Unlink(bob, "/tmp/a.txt")
	require.ErrorIs(t, err, ErrAccessDenied)

	require.NoError(t, fs.Unlink(alice, "/tmp/a.txt"))
}

// S5: setuid/setgid are cleared on chown; sticky is untouched.
func TestScenarioSetidClearedOnChown(t *testing.T) {
	fs := newTestCore()
	root := fs.RegisterProcess(200, 0, 0, 0, 0)

	h, err := fs.Open(root, "/suidfile", rwCreate())
	require.NoError(t, err)
	require.NoError(t, fs.Close(h))

	require.NoError(t, fs.SetMode(root, "/suidfile", inode.Mode(0o6777)))
	require.NoError(t, fs.SetOwner(root, "/suidfile", 1000, 1000))

	attr, err := fs.Getattr(root, "/suidfile")
	require.NoError(t, err)
	require.Zero(t, attr.Mode&inode.ModeSetuid)
	require.Zero(t, attr.Mode&inode.ModeSetgid)
}

// S6: byte-range advisory locking.
func TestScenarioByteRangeLocks(t *testing.T) {
	fs := newTestCore()
	tok := fs.RegisterProcess(300, 0, 0, 0, 0)

	h1, err := fs.Open(tok, "/locked", rwCreate())
	require.NoError(t, err)
	h2, err := fs.Open(tok, "/locked", rw())
	require.NoError(t, err)

	require.NoError(t, fs.LockRange(h1, 0, 10, true))

	err = fs.LockRange(h2, 5, 15, true)
	require.ErrorIs(t, err, ErrBusy)

	require.NoError(t, fs.UnlockRange(h1, 0, 10))
	require.NoError(t, fs.LockRange(h2, 5, 15, true))
	require.NoError(t, fs.UnlockRange(h2, 5, 15))
	require.NoError(t, fs.Close(h1))
	require.NoError(t, fs.Close(h2))

	h3, err := fs.Open(tok, "/shared-ranges", rwCreate())
	require.NoError(t, err)
	h4, err := fs.Open(tok, "/shared-ranges", rw())
	require.NoError(t, err)
	h5, err := fs.Open(tok, "/shared-ranges", rw())
	require.NoError(t, err)

	require.NoError(t, fs.LockRange(h3, 20, 30, false))
	require.NoError(t, fs.LockRange(h4, 25, 35, false))

	err = fs.LockRange(h5, 22, 27, true)
	require.ErrorIs(t, err, ErrBusy)
}
