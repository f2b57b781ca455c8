/*
 *   Copyright 2023 Martin Proffitt <mproffitt@choclab.net>
 *
 *  Licensed under the Apache License, Version 2.0 (the "License");
 *  you may not use this file except in compliance with the License.
 *  You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 *  Unless required by applicable law or agreed to in writing, software
 *  distributed under the License is distributed on an "AS IS" BASIS,
 *  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *  See the License for the specific language governing permissions and
 *  limitations under the License.
 */
package memory

import (
	"fmt"
	"sync"

	"github.com/awnumar/memguard"

	"github.com/notapipeline/truefa/pkg/types"
)

const (
	// DefaultSize is the region size used when Allocate is given a size of
	// zero.
	DefaultSize = 4096

	// wipePasses is the number of zeroing passes performed over the region
	// before it is freed.
	wipePasses = 3
)

// SecureBuffer owns a fixed size region of anonymous memory. The region is
// page-locked and guard-paged where the platform allows it; when locking is
// unavailable an explicitly requested fallback keeps the buffer functional
// on the ordinary heap. Either way the full extent is zeroed multiple times
// on release.
type SecureBuffer struct {
	mu       sync.Mutex
	buf      *memguard.LockedBuffer
	plain    []byte
	size     int
	released bool
}

// newLockedBuffer is referenced as a variable so tests can simulate
// allocation failure. memguard panics rather than returning an error when
// the underlying mmap or mlock calls fail, so the panic is converted here.
var newLockedBuffer func(size int) (*memguard.LockedBuffer, error) = func(size int) (b *memguard.LockedBuffer, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("memguard: %v", r)
		}
	}()
	b = memguard.NewBuffer(size)
	return
}

// Allocate reserves size bytes of page-locked anonymous memory. A size of
// zero reserves DefaultSize bytes. Allocation failure is propagated; use
// AllocateUnprotected if a degraded buffer is acceptable.
func Allocate(size int) (*SecureBuffer, error) {
	return allocate(size, false)
}

// AllocateUnprotected behaves like Allocate but degrades to an ordinary
// heap buffer when page-locked allocation fails. Locked reports which path
// was taken; zeroing on release applies regardless.
func AllocateUnprotected(size int) (*SecureBuffer, error) {
	return allocate(size, true)
}

func allocate(size int, allowUnprotected bool) (*SecureBuffer, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: invalid size %d", types.ErrAllocation, size)
	}
	if size == 0 {
		size = DefaultSize
	}

	var b *SecureBuffer = &SecureBuffer{size: size}

	lb, err := newLockedBuffer(size)
	if err == nil {
		b.buf = lb
		return b, nil
	}
	if !allowUnprotected {
		return nil, fmt.Errorf("%w: %v", types.ErrAllocation, err)
	}
	b.plain = make([]byte, size)
	return b, nil
}

// Size returns the size of the region in bytes.
func (b *SecureBuffer) Size() int {
	return b.size
}

// Locked reports whether the region is backed by page-locked memory. A
// false value is a missing guarantee, not an error.
func (b *SecureBuffer) Locked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf != nil && !b.released
}

// Released reports whether the region has been wiped and freed.
func (b *SecureBuffer) Released() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released
}

// Write copies p into the region at offset. Out of bounds writes fail
// without touching the region.
func (b *SecureBuffer) Write(offset int, p []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return types.ErrAllocation
	}
	if offset < 0 || offset+len(p) > b.size {
		return types.BoundsError{Offset: offset, Length: len(p), Size: b.size}
	}
	copy(b.region()[offset:], p)
	return nil
}

// Read returns a copy of n bytes of the region starting at offset. The
// caller owns the returned slice and should wipe it after use.
func (b *SecureBuffer) Read(offset, n int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return nil, types.ErrAllocation
	}
	if offset < 0 || n < 0 || offset+n > b.size {
		return nil, types.BoundsError{Offset: offset, Length: n, Size: b.size}
	}
	var out []byte = make([]byte, n)
	copy(out, b.region()[offset:offset+n])
	return out, nil
}

// Bytes exposes the live region. It returns nil once released. References
// must not be held across Release.
func (b *SecureBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return nil
	}
	return b.region()
}

// Release zeroes the full extent of the region wipePasses times, then
// unlocks and frees it. Safe to call more than once; subsequent calls are
// no-ops. Callers are expected to `defer Release()` at acquisition so the
// wipe is deterministic rather than left to the garbage collector.
func (b *SecureBuffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return
	}

	var region []byte = b.region()
	for pass := 0; pass < wipePasses; pass++ {
		for i := range region {
			region[i] = 0
		}
	}

	if b.buf != nil {
		// memguard wipes again before unmapping; errors during cleanup are
		// swallowed so the shutdown path cannot fail.
		b.buf.Destroy()
		b.buf = nil
	}
	b.plain = nil
	b.released = true
}

// region returns the backing slice for whichever allocation path is in
// use. Callers must hold b.mu.
func (b *SecureBuffer) region() []byte {
	if b.buf != nil {
		return b.buf.Bytes()
	}
	return b.plain
}
