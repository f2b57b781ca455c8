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
	"math"
	"sync"
	"time"

	"github.com/awnumar/memguard"
)

// Infinite is the age reported by a cleared handle. Any age based expiry
// threshold therefore treats a cleared handle as expired.
const Infinite time.Duration = time.Duration(math.MaxInt64)

// SecretHandle binds one secret's plaintext to a SecureBuffer sized to
// exactly the secret's byte length and tracks its creation time for
// expiry. After Clear the plaintext is unrecoverable; Get never returns
// stale or partially wiped data.
type SecretHandle struct {
	mu      sync.Mutex
	buf     *SecureBuffer
	size    int
	created time.Time
	cleared bool
}

// Wrap copies plaintext into a freshly allocated SecureBuffer and wipes
// the source slice; the caller must discard its own copy. Allocation
// failure is fail-soft: the returned handle reports no secret available
// rather than crashing the caller. The fallback heap path is permitted
// here because a functional-but-unlocked handle is preferred over losing
// the secret outright.
func Wrap(plaintext []byte) *SecretHandle {
	var h *SecretHandle = &SecretHandle{
		size:    len(plaintext),
		created: time.Now(),
	}

	if len(plaintext) == 0 {
		h.cleared = true
		return h
	}

	buf, err := AllocateUnprotected(len(plaintext))
	if err == nil {
		if err = buf.Write(0, plaintext); err != nil {
			buf.Release()
			buf = nil
		}
	}
	h.buf = buf
	memguard.WipeBytes(plaintext)
	return h
}

// With runs fn with a temporary handle wrapping plaintext and guarantees
// the handle is cleared on every exit path, including error returns and
// panics. Use this whenever plaintext crosses a component boundary.
func With(plaintext []byte, fn func(h *SecretHandle) error) error {
	var h *SecretHandle = Wrap(plaintext)
	defer h.Clear()
	return fn(h)
}

// Get returns a copy of the original plaintext while the handle is live,
// or nil once cleared or if the underlying buffer failed to allocate.
// Callers must treat nil as "no secret available".
func (h *SecretHandle) Get() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cleared || h.buf == nil {
		return nil
	}
	p, err := h.buf.Read(0, h.size)
	if err != nil {
		return nil
	}
	return p
}

// Live reports whether the handle still holds a secret.
func (h *SecretHandle) Live() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.cleared && h.buf != nil
}

// Len returns the secret's byte length.
func (h *SecretHandle) Len() int {
	return h.size
}

// Age returns the elapsed time since Wrap, or Infinite once cleared.
func (h *SecretHandle) Age() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cleared || h.buf == nil {
		return Infinite
	}
	return time.Since(h.created)
}

// Clear wipes and releases the underlying buffer. Idempotent; concurrent
// clears (manual against expiry driven) are safe.
func (h *SecretHandle) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cleared {
		return
	}
	if h.buf != nil {
		h.buf.Release()
	}
	h.cleared = true
}
