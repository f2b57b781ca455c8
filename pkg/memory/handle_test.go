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
	"bytes"
	"fmt"
	"testing"

	"github.com/awnumar/memguard"
)

func TestWrapGetClear(t *testing.T) {
	var plaintext []byte = []byte("JBSWY3DPEHPK3PXP")
	h := Wrap(append([]byte(nil), plaintext...))

	if !h.Live() {
		t.Fatal("Expected live handle")
	}
	if h.Len() != len(plaintext) {
		t.Errorf("Expected length %d but got %d", len(plaintext), h.Len())
	}

	out := h.Get()
	if !bytes.Equal(out, plaintext) {
		t.Errorf("Expected %q but got %q", plaintext, out)
	}

	h.Clear()
	if h.Live() {
		t.Error("Expected cleared handle to report not live")
	}
	if h.Get() != nil {
		t.Error("Expected nil from Get after Clear")
	}
}

func TestWrapWipesSource(t *testing.T) {
	var source []byte = []byte("wipe-me-after-use")
	h := Wrap(source)
	defer h.Clear()

	if !bytes.Equal(source, make([]byte, len(source))) {
		t.Errorf("Expected wiped source slice but got %v", source)
	}
}

func TestClearIsIdempotent(t *testing.T) {
	h := Wrap([]byte("secret"))
	h.Clear()
	h.Clear()
	if h.Get() != nil {
		t.Error("Expected nil from Get after Clear")
	}
}

func TestAgeInfiniteOnceCleared(t *testing.T) {
	h := Wrap([]byte("secret"))
	if h.Age() >= Infinite {
		t.Error("Expected finite age on a live handle")
	}
	h.Clear()
	if h.Age() != Infinite {
		t.Errorf("Expected Infinite age but got %v", h.Age())
	}
}

func TestWrapEmptyPlaintext(t *testing.T) {
	h := Wrap(nil)
	if h.Live() {
		t.Error("Expected empty wrap to report not live")
	}
	if h.Get() != nil {
		t.Error("Expected nil from Get on empty wrap")
	}
	if h.Age() != Infinite {
		t.Errorf("Expected Infinite age but got %v", h.Age())
	}
}

func TestWrapAllocationFailureIsFailSoft(t *testing.T) {
	teardownSuite := setupSuite(t)
	defer teardownSuite(t)

	newLockedBuffer = func(size int) (*memguard.LockedBuffer, error) {
		return nil, fmt.Errorf("mlock refused")
	}

	// AllocateUnprotected degrades to the heap, so the handle stays
	// functional with the Locked guarantee dropped.
	h := Wrap([]byte("still-works"))
	defer h.Clear()
	if !h.Live() {
		t.Fatal("Expected live handle on the fallback path")
	}
	if out := h.Get(); string(out) != "still-works" {
		t.Errorf("Expected %q but got %q", "still-works", out)
	}
}

func TestWithClearsOnEveryPath(t *testing.T) {
	var captured *SecretHandle
	err := With([]byte("scoped"), func(h *SecretHandle) error {
		captured = h
		if out := h.Get(); string(out) != "scoped" {
			t.Errorf("Expected %q but got %q", "scoped", out)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected nil error but got %v", err)
	}
	if captured.Live() {
		t.Error("Expected handle cleared after With returned")
	}

	expected := fmt.Errorf("boom")
	err = With([]byte("scoped"), func(h *SecretHandle) error {
		captured = h
		return expected
	})
	if err != expected {
		t.Errorf("Expected %v but got %v", expected, err)
	}
	if captured.Live() {
		t.Error("Expected handle cleared on the error path")
	}
}
