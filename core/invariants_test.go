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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Invariant 1: mutating a node via a branch never changes what a snapshot
// taken before the mutation observes.
func TestInvariantSnapshotUnaffectedByLaterMutation(t *testing.T) {
	fs := newTestCore()
	tok := fs.RegisterProcess(1, 0, 0, 0, 0)

	h, err := fs.Open(tok, "/f", rwCreate())
	require.NoError(t, err)
	_, err = fs.Write(h, []byte("v1"), 0)
	require.NoError(t, err)
	require.NoError(t, fs.Close(h))

	branch := fs.DefaultBranch()
	snap, err := fs.CreateSnapshot(branch, "s1")
	require.NoError(t, err)

	h2, err := fs.Open(tok, "/f", rw())
	require.NoError(t, err)
	_, err = fs.Write(h2, []byte("v2-longer"), 0)
	require.NoError(t, err)
	require.NoError(t, fs.Close(h2))

	fromSnapBranch, err := fs.CreateBranch(snap, "fromsnap")
	require.NoError(t, err)
	tok2 := fs.RegisterProcess(2, 0, 0, 0, 0)
	require.NoError(t, fs.BindProcessToBranch(tok2, fromSnapBranch))

	h3, err := fs.Open(tok2, "/f", ro())
	require.NoError(t, err)
	buf := make([]byte, 2)
	n, err := fs.Read(h3, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(buf[:n]))
	require.NoError(t, fs.Close(h3))
}

// Invariant 2: writes through one branch never alter what a sibling branch
// observes after the two diverge.
func TestInvariantSiblingBranchesDiverge(t *testing.T) {
	fs := newTestCore()
	tok := fs.RegisterProcess(1, 0, 0, 0, 0)

	h, err := fs.Open(tok, "/f", rwCreate())
	require.NoError(t, err)
	_, err = fs.Write(h, []byte("base"), 0)
	require.NoError(t, err)
	require.NoError(t, fs.Close(h))

	branch := fs.DefaultBranch()
	snap, err := fs.CreateSnapshot(branch, "s")
	require.NoError(t, err)

	b1, err := fs.CreateBranch(snap, "b1")
	require.NoError(t, err)
	b2, err := fs.CreateBranch(snap, "b2")
	require.NoError(t, err)

	p1 := fs.RegisterProcess(10, 0, 0, 0, 0)
	p2 := fs.RegisterProcess(11, 0, 0, 0, 0)
	require.NoError(t, fs.BindProcessToBranch(p1, b1))
	require.NoError(t, fs.BindProcessToBranch(p2, b2))

	h1, err := fs.Open(p1, "/f", rw())
	require.NoError(t, err)
	_, err = fs.Write(h1, []byte("from-b1"), 0)
	require.NoError(t, err)
	require.NoError(t, fs.Close(h1))

	h2, err := fs.Open(p2, "/f", ro())
	require.NoError(t, err)
	buf := make([]byte, 4)
	n, err := fs.Read(h2, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "base", string(buf[:n]))
	require.NoError(t, fs.Close(h2))
}

// Invariant 3: getattr().len after close reflects the high-water mark of
// writes, or an explicit truncate, whichever happened last.
func TestInvariantLengthAfterWrites(t *testing.T) {
	fs := newTestCore()
	tok := fs.RegisterProcess(1, 0, 0, 0, 0)

	h, err := fs.Open(tok, "/f", rwCreate())
	require.NoError(t, err)
	_, err = fs.Write(h, []byte("0123456789"), 0)
	require.NoError(t, err)
	_, err = fs.Write(h, []byte("ab"), 20)
	require.NoError(t, err)
	require.NoError(t, fs.Close(h))

	attr, err := fs.Getattr(tok, "/f")
	require.NoError(t, err)
	assert.EqualValues(t, 22, attr.Size)

	h2, err := fs.Open(tok, "/f", rw())
	require.NoError(t, err)
	require.NoError(t, fs.SetLen(h2, 5))
	require.NoError(t, fs.Close(h2))

	attr, err = fs.Getattr(tok, "/f")
	require.NoError(t, err)
	assert.EqualValues(t, 5, attr.Size)
}

// Invariant 4: byte-range lock acquisition succeeds iff no other handle
// holds a conflicting range.
func TestInvariantLockConflictRules(t *testing.T) {
	fs := newTestCore()
	tok := fs.RegisterProcess(1, 0, 0, 0, 0)

	h1, err := fs.Open(tok, "/f", rwCreate())
	require.NoError(t, err)
	h2, err := fs.Open(tok, "/f", rw())
	require.NoError(t, err)
	h3, err := fs.Open(tok, "/f", rw())
	require.NoError(t, err)

	require.NoError(t, fs.LockRange(h1, 0, 10, false))
	require.NoError(t, fs.LockRange(h2, 5, 8, false), "two shared locks from different handles over an overlapping range must both succeed")

	require.ErrorIs(t, fs.LockRange(h3, 5, 8, true), ErrBusy, "a third handle's exclusive request against existing shared locks must fail")

	require.NoError(t, fs.UnlockRange(h1, 0, 10))
	require.NoError(t, fs.UnlockRange(h2, 5, 8))
	require.NoError(t, fs.LockRange(h3, 5, 8, true), "exclusive succeeds once no other handle's shared lock remains")
}

// Invariant 5: register_process is idempotent per pid.
func TestInvariantRegisterProcessIdempotent(t *testing.T) {
	fs := newTestCore()

	tok1 := fs.RegisterProcess(42, 1, 1000, 1000, 0o022)
	tok2 := fs.RegisterProcess(42, 1, 2000, 2000, 0o077)

	assert.Equal(t, tok1, tok2)

	fs.processMu.RLock()
	p := fs.processes[tok1]
	fs.processMu.RUnlock()
	assert.EqualValues(t, 1000, p.Uid, "second registration for the same pid must not overwrite the original identity")
	assert.EqualValues(t, 1000, p.Gid)
}

// Invariant 6: delete-on-last-close keeps the node reachable through open
// handles and out of stats only once every handle has closed.
func TestInvariantDeleteOnLastClose(t *testing.T) {
	fs := newTestCore()
	tok := fs.RegisterProcess(1, 0, 0, 0, 0)

	h1, err := fs.Open(tok, "/f", rwCreate())
	require.NoError(t, err)
	h2, err := fs.Open(tok, "/f", ro())
	require.NoError(t, err)

	require.NoError(t, fs.Unlink(tok, "/f"))

	_, err = fs.Open(tok, "/f", ro())
	require.ErrorIs(t, err, ErrNotFound)

	nodesBeforeClose := fs.Stats().Nodes
	require.NoError(t, fs.Close(h1))
	assert.Equal(t, nodesBeforeClose, fs.Stats().Nodes, "node must survive while a second handle is still open")

	require.NoError(t, fs.Close(h2))
	assert.Equal(t, nodesBeforeClose-1, fs.Stats().Nodes, "node must be released once the last handle closes")
}

// Invariant 7 / S4 / S5 are covered by TestScenarioStickyDirectory and
// TestScenarioSetidClearedOnChown in scenarios_test.go.

func TestRoundTripReadAfterWrite(t *testing.T) {
	fs := newTestCore()
	tok := fs.RegisterProcess(1, 0, 0, 0, 0)

	h, err := fs.Open(tok, "/f", rwCreate())
	require.NoError(t, err)
	data := []byte("round trip payload")
	_, err = fs.Write(h, data, 3)
	require.NoError(t, err)

	buf := make([]byte, len(data))
	n, err := fs.Read(h, buf, 3)
	require.NoError(t, err)
	assert.Equal(t, data, buf[:n])
	require.NoError(t, fs.Close(h))
}

func TestRoundTripSnapshotThenBranchWritesDontPerturbOriginal(t *testing.T) {
	fs := newTestCore()
	tok := fs.RegisterProcess(1, 0, 0, 0, 0)

	h, err := fs.Open(tok, "/f", rwCreate())
	require.NoError(t, err)
	_, err = fs.Write(h, []byte("stable"), 0)
	require.NoError(t, err)
	require.NoError(t, fs.Close(h))

	branch := fs.DefaultBranch()
	snap, err := fs.CreateSnapshot(branch, "")
	require.NoError(t, err)
	newBranch, err := fs.CreateBranch(snap, "")
	require.NoError(t, err)

	tok2 := fs.RegisterProcess(2, 0, 0, 0, 0)
	require.NoError(t, fs.BindProcessToBranch(tok2, newBranch))
	h2, err := fs.Open(tok2, "/f", rw())
	require.NoError(t, err)
	_, err = fs.Write(h2, []byte("perturbed"), 0)
	require.NoError(t, err)
	require.NoError(t, fs.Close(h2))

	h3, err := fs.Open(tok, "/f", ro())
	require.NoError(t, err)
	buf := make([]byte, 6)
	n, err := fs.Read(h3, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "stable", string(buf[:n]))
	require.NoError(t, fs.Close(h3))
}

func TestRoundTripXattrSetGetRemove(t *testing.T) {
	fs := newTestCore()
	tok := fs.RegisterProcess(1, 0, 0, 0, 0)

	h, err := fs.Open(tok, "/f", rwCreate())
	require.NoError(t, err)
	require.NoError(t, fs.Close(h))

	require.NoError(t, fs.SetXattr(tok, "/f", "user.tag", []byte("v1")))
	v, err := fs.GetXattr(tok, "/f", "user.tag")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(v))

	require.NoError(t, fs.SetXattr(tok, "/f", "user.tag", nil))
	_, err = fs.GetXattr(tok, "/f", "user.tag")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRoundTripSymlink(t *testing.T) {
	fs := newTestCore()
	tok := fs.RegisterProcess(1, 0, 0, 0, 0)

	long := make([]byte, 4096)
	for j := range long {
		long[j] = byte('a' + j%26)
	}
	targets := [][]byte{
		[]byte(""),
		[]byte("/a/relative/../target"),
		long,
	}
	for i, target := range targets {
		path := "/link" + string(rune('0'+i))
		_, err := fs.Symlink(tok, path, string(target))
		require.NoError(t, err)

		got, err := fs.Readlink(tok, path)
		require.NoError(t, err)
		assert.Equal(t, string(target), got)
	}
}
