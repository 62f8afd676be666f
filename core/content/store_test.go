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

package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAtGrowsAndReadsBack(t *testing.T) {
	s := New(0)
	id := s.Allocate()

	n, err := s.WriteAt(id, []byte("hello"), 2)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 7)
	n, err = s.ReadAt(id, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 'h', 'e', 'l', 'l', 'o'}, buf[:n])
}

func TestCloneIsIndependentOfSource(t *testing.T) {
	s := New(0)
	src := s.Allocate()
	_, err := s.WriteAt(src, []byte("original"), 0)
	require.NoError(t, err)

	dst, err := s.Clone(src)
	require.NoError(t, err)
	_, err = s.WriteAt(dst, []byte("X"), 0)
	require.NoError(t, err)

	buf := make([]byte, 8)
	n, _ := s.ReadAt(src, buf, 0)
	assert.Equal(t, "original", string(buf[:n]))

	n, _ = s.ReadAt(dst, buf, 0)
	assert.Equal(t, "Xriginal", string(buf[:n]))
}

func TestRetainFreeRefcounting(t *testing.T) {
	s := New(0)
	id := s.Allocate()
	s.Retain(id)
	assert.True(t, s.Shared(id))

	s.Free(id)
	assert.True(t, s.Exists(id), "buffer must survive while a reference remains")

	s.Free(id)
	assert.False(t, s.Exists(id), "buffer must be released once the last reference is freed")
}

func TestReserveEnforcesByteCap(t *testing.T) {
	s := New(4)
	id := s.Allocate()

	_, err := s.WriteAt(id, []byte("ab"), 0)
	require.NoError(t, err)

	_, err = s.WriteAt(id, []byte("abc"), 2)
	require.Error(t, err)
	assert.True(t, NoSpace(err))
}

func TestTruncateGrowAndShrink(t *testing.T) {
	s := New(0)
	id := s.Allocate()
	require.NoError(t, s.Truncate(id, 4))

	l, err := s.Len(id)
	require.NoError(t, err)
	assert.EqualValues(t, 4, l)

	require.NoError(t, s.Truncate(id, 1))
	l, err = s.Len(id)
	require.NoError(t, err)
	assert.EqualValues(t, 1, l)
}
