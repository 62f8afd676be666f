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

// Package content is the bucket-7 content store: an in-memory, reference
// counted byte-buffer arena shared by file data and xattr values. It is the
// innermost lock in the core's seven-bucket lock order, grounded on the
// teacher's gcsproxy mutable-content staging: a MutableContent there clones
// a GCS object's bytes into a local temp file on first write and serves
// reads against whichever copy is current. This store does the in-memory
// equivalent: Clone() duplicates bytes for a writer that does not yet own a
// private copy, and the original buffer keeps serving anyone still holding
// the old ContentId.
//
// Every buffer carries its own structural refcount, mirroring inode.Node's:
// a Node.Clone() that copies a ContentId/Xattr/Stream reference verbatim
// (rather than allocating fresh bytes) must Retain() it, because the
// original node may still be reachable from a snapshot and must keep
// serving the unmodified bytes. Free() only actually releases a buffer once
// its count reaches zero.
package content

import (
	"sync"
)

// Id identifies a buffer held by a Store.
type Id uint64

// Store is an arena of byte buffers with copy-on-write cloning and a total
// byte budget. The zero value is not usable; construct with New.
type Store struct {
	mu       sync.Mutex
	bufs     map[Id]*buffer
	nextID   uint64
	maxBytes int64 // 0 = unlimited, enforced across all buffers combined
	used     int64
}

type buffer struct {
	mu       sync.RWMutex
	data     []byte
	refCount int32 // GUARDED_BY: Store.mu
}

// New constructs a Store with an optional total byte cap (0 = unlimited),
// mirroring cfg.MemoryConfig.MaxBytesInMemory.
func New(maxBytes int64) *Store {
	return &Store{
		bufs:     make(map[Id]*buffer),
		maxBytes: maxBytes,
	}
}

// Allocate creates a new, empty buffer with refcount 1 and returns its id.
func (s *Store) Allocate() Id {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := Id(s.nextID)
	s.bufs[id] = &buffer{refCount: 1}
	return id
}

// Retain adds one structural reference to id, called whenever a Node.Clone
// copies a ContentId (or an xattr/stream entry) onto a new Node without
// allocating fresh bytes for it, so the original node's bytes stay valid
// until every referencing node has been released.
func (s *Store) Retain(id Id) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bufs[id]; ok {
		b.refCount++
	}
}

// Shared reports whether id has more than one structural reference, i.e.
// whether a caller about to mutate its bytes in place must clone first.
func (s *Store) Shared(id Id) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bufs[id]
	return ok && b.refCount > 1
}

// Free drops one structural reference from id. The buffer is only actually
// deleted (and its bytes released from the byte budget) once the count
// reaches zero.
func (s *Store) Free(id Id) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bufs[id]
	if !ok {
		return
	}
	b.refCount--
	if b.refCount > 0 {
		return
	}
	s.used -= int64(len(b.data))
	delete(s.bufs, id)
}

// Clone duplicates the bytes of src into a freshly allocated buffer and
// returns its id, used when a writer needs a private copy of content it
// currently shares with a snapshot.
func (s *Store) Clone(src Id) (Id, error) {
	s.mu.Lock()
	b, ok := s.bufs[src]
	if !ok {
		s.mu.Unlock()
		return 0, errIo("clone: unknown content id")
	}
	s.nextID++
	dst := Id(s.nextID)
	s.mu.Unlock()

	b.mu.RLock()
	data := make([]byte, len(b.data))
	copy(data, b.data)
	b.mu.RUnlock()

	if err := s.reserve(int64(len(data))); err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.bufs[dst] = &buffer{data: data, refCount: 1}
	s.mu.Unlock()
	return dst, nil
}

// ReadAt copies into p starting at off, returning the number of bytes
// copied. Reading past the end of the buffer is not an error; it returns 0.
func (s *Store) ReadAt(id Id, p []byte, off int64) (int, error) {
	b, err := s.get(id)
	if err != nil {
		return 0, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if off >= int64(len(b.data)) {
		return 0, nil
	}
	return copy(p, b.data[off:]), nil
}

// WriteAt writes p at off, growing the buffer (zero-filling any gap) if
// needed. Returns the number of bytes written.
func (s *Store) WriteAt(id Id, p []byte, off int64) (int, error) {
	b, err := s.get(id)
	if err != nil {
		return 0, err
	}
	end := off + int64(len(p))

	b.mu.Lock()
	defer b.mu.Unlock()
	grow := end - int64(len(b.data))
	if grow > 0 {
		if err := s.reserve(grow); err != nil {
			return 0, err
		}
		b.data = append(b.data, make([]byte, grow)...)
	}
	return copy(b.data[off:end], p), nil
}

// Truncate sets the buffer's length to size, zero-filling on grow.
func (s *Store) Truncate(id Id, size int64) error {
	b, err := s.get(id)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delta := size - int64(len(b.data))
	if delta > 0 {
		if rErr := s.reserve(delta); rErr != nil {
			return rErr
		}
		b.data = append(b.data, make([]byte, delta)...)
		return nil
	}
	if delta < 0 {
		s.mu.Lock()
		s.used += delta
		s.mu.Unlock()
	}
	b.data = b.data[:size]
	return nil
}

// Len returns the current size of the buffer.
func (s *Store) Len(id Id) (int64, error) {
	b, err := s.get(id)
	if err != nil {
		return 0, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return int64(len(b.data)), nil
}

// Bytes returns a copy of the full contents, used for xattr value retrieval
// where callers need the whole buffer at once.
func (s *Store) Bytes(id Id) ([]byte, error) {
	b, err := s.get(id)
	if err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out, nil
}

// SetBytes replaces the buffer's entire contents, used when writing an
// xattr value as a single unit.
func (s *Store) SetBytes(id Id, data []byte) error {
	b, err := s.get(id)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delta := int64(len(data)) - int64(len(b.data))
	if delta > 0 {
		if rErr := s.reserve(delta); rErr != nil {
			return rErr
		}
	} else if delta < 0 {
		s.mu.Lock()
		s.used += delta
		s.mu.Unlock()
	}
	b.data = append([]byte(nil), data...)
	return nil
}

// Exists reports whether id currently names a live buffer, used by the
// core's optional invariant checker to verify every file node's ContentId
// still resolves to something.
func (s *Store) Exists(id Id) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.bufs[id]
	return ok
}

// TotalBytes reports the store's current total resident size, surfaced via
// Core.Stats and the metrics.Handle.ContentBytes gauge.
func (s *Store) TotalBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}

func (s *Store) get(id Id) (*buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bufs[id]
	if !ok {
		return nil, errIo("unknown content id")
	}
	return b, nil
}

// reserve accounts for n additional bytes against maxBytes, failing with
// NoSpace if the store is bounded and the cap would be exceeded. Caller
// must not be holding a buffer lock when reserve acquires s.mu, except
// through the paths above which take s.mu only for the bookkeeping, not for
// the buffer copy itself.
func (s *Store) reserve(n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxBytes > 0 && s.used+n > s.maxBytes {
		return errNoSpace("content store byte cap exceeded")
	}
	s.used += n
	return nil
}

// storeError lets this package signal NoSpace/Io without importing core
// (which imports content), translated back to *core.Error at the call site
// in core/vfs_*.go.
type storeError struct {
	noSpace bool
	msg     string
}

func (e *storeError) Error() string { return e.msg }

// NoSpace reports whether err represents the store's byte cap being
// exceeded, as opposed to a generic I/O-shaped error.
func NoSpace(err error) bool {
	se, ok := err.(*storeError)
	return ok && se.noSpace
}

func errNoSpace(msg string) error { return &storeError{noSpace: true, msg: msg} }
func errIo(msg string) error      { return &storeError{msg: msg} }
