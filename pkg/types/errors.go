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
package types

import (
	"errors"
	"fmt"
)

var (
	// ErrNotUnlocked is returned by any operation requiring the working key
	// while the vault is locked or uninitialized.
	ErrNotUnlocked = errors.New("vault is not unlocked")

	// ErrAuthentication covers every decryption failure. The message is
	// deliberately generic so callers cannot distinguish a wrong password
	// from tampered or renamed ciphertext.
	ErrAuthentication = errors.New("decryption failed")

	// ErrNotFound is returned when a named secret or the master credential
	// record is absent from storage.
	ErrNotFound = errors.New("not found")

	// ErrAllocation is returned when a secure buffer could not be created.
	ErrAllocation = errors.New("secure buffer allocation failed")
)

// PathEscapeError is returned when a resolved path leaves the permitted
// directory. This is treated as a security violation and is never silently
// corrected.
type PathEscapeError struct {
	Name string
}

func (e PathEscapeError) Error() string {
	return fmt.Sprintf("refusing path outside storage directory: %q", e.Name)
}

// BoundsError is returned by secure buffer reads and writes that fall
// outside the allocated region.
type BoundsError struct {
	Offset, Length, Size int
}

func (e BoundsError) Error() string {
	return fmt.Sprintf("access of %d bytes at offset %d exceeds buffer size %d",
		e.Length, e.Offset, e.Size)
}
