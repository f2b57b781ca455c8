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

// Package vault implements the master-password gate and the encryption
// engine for individual named secrets.
//
// The vault moves through three states: Uninitialized until the first
// master password is set, then Locked and Unlocked for the rest of the
// process lifetime. The working encryption key exists if and only if the
// vault is unlocked; it is held in page-locked memory and wiped on Lock.
package vault

import (
	"errors"
	"fmt"
	"sync"

	"github.com/awnumar/memguard"

	"github.com/notapipeline/truefa/pkg/crypto"
	"github.com/notapipeline/truefa/pkg/memory"
	"github.com/notapipeline/truefa/pkg/types"
)

// State is the vault's position in its lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateLocked
	StateUnlocked
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLocked:
		return "locked"
	case StateUnlocked:
		return "unlocked"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// CredentialStore persists the master credential record. Implemented by
// the secret store; narrowed here so the vault carries no filesystem
// knowledge.
type CredentialStore interface {
	SaveMasterCredential(salt, hash []byte) error
	LoadMasterCredential() (salt, hash []byte, err error)
}

// Vault derives keys from the master password and performs authenticated
// encryption of named secrets. The record name is bound as associated data
// at encryption time: a ciphertext stored under one name is never accepted
// under another, so renaming a secret requires re-encryption.
type Vault struct {
	mu    sync.Mutex
	creds CredentialStore

	salt []byte
	hash []byte
	key  *memory.SecretHandle
}

// New builds a vault over the given credential store. An existing master
// record puts the vault in the locked state; absence means first use.
func New(creds CredentialStore) (*Vault, error) {
	var v *Vault = &Vault{creds: creds}

	salt, hash, err := creds.LoadMasterCredential()
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return v, nil
		}
		return nil, fmt.Errorf("load master credential: %w", err)
	}
	v.salt, v.hash = salt, hash
	return v, nil
}

// State returns the current lifecycle state.
func (v *Vault) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stateLocked()
}

func (v *Vault) stateLocked() State {
	if v.hash == nil {
		return StateUninitialized
	}
	if v.key != nil && v.key.Live() {
		return StateUnlocked
	}
	return StateLocked
}

// Initialized reports whether a master password has ever been set.
func (v *Vault) Initialized() bool {
	return v.State() != StateUninitialized
}

// SetMasterPassword establishes the master credential. Valid only in the
// uninitialized state. A fresh random salt is generated, the verification
// hash is derived and persisted, the working key is derived, and the vault
// transitions to unlocked.
func (v *Vault) SetMasterPassword(password []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.stateLocked() != StateUninitialized {
		return fmt.Errorf("master password is already set")
	}

	salt, err := crypto.NewSalt()
	if err != nil {
		return err
	}
	hash, err := crypto.DeriveVerifier(password, salt)
	if err != nil {
		return fmt.Errorf("derive verification hash: %w", err)
	}
	if err = v.creds.SaveMasterCredential(salt, hash); err != nil {
		return fmt.Errorf("save master credential: %w", err)
	}

	v.salt, v.hash = salt, hash
	return v.installKey(password)
}

// Unlock verifies password against the stored hash in constant time and,
// on a match, derives the working key and transitions to unlocked. On a
// mismatch the vault stays locked and ErrAuthentication is returned; the
// caller owns the bounded retry budget.
func (v *Vault) Unlock(password []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch v.stateLocked() {
	case StateUninitialized:
		return types.ErrNotFound
	case StateUnlocked:
		return nil
	}

	if !crypto.VerifyHash(password, v.salt, v.hash) {
		return types.ErrAuthentication
	}
	return v.installKey(password)
}

// Lock wipes the working key and returns to the locked state. A no-op
// while not unlocked.
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dropKey()
}

// Encrypt produces the opaque blob for one named secret:
// salt(16) || nonce(12) || ciphertext+tag. The vault's current salt is
// prefixed so the record can be decrypted standalone given only the blob
// and the password. Requires the unlocked state.
func (v *Vault) Encrypt(secret *memory.SecretHandle, name string) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.stateLocked() != StateUnlocked {
		return nil, types.ErrNotUnlocked
	}

	var plaintext []byte = secret.Get()
	if plaintext == nil {
		return nil, fmt.Errorf("no secret available")
	}
	defer memguard.WipeBytes(plaintext)

	var key []byte = v.key.Get()
	if key == nil {
		return nil, types.ErrNotUnlocked
	}
	defer memguard.WipeBytes(key)

	nonce, ciphertext, err := crypto.Seal(key, plaintext, []byte(name))
	if err != nil {
		return nil, fmt.Errorf("encrypt %q: %w", name, err)
	}

	var blob []byte = make([]byte, 0, len(v.salt)+len(nonce)+len(ciphertext))
	blob = append(blob, v.salt...)
	blob = append(blob, nonce...)
	blob = append(blob, ciphertext...)
	return blob, nil
}

// Decrypt reconstitutes a secret handle from a stored blob. It requires
// the unlocked state and fails closed: any malformed blob, wrong name or
// failed authentication tag surfaces as the same generic
// ErrAuthentication with no detail about the cause.
func (v *Vault) Decrypt(blob []byte, name string) (*memory.SecretHandle, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.stateLocked() != StateUnlocked {
		return nil, types.ErrNotUnlocked
	}
	if len(blob) <= crypto.SaltSize+crypto.NonceSize {
		return nil, types.ErrAuthentication
	}

	var (
		nonce      []byte = blob[crypto.SaltSize : crypto.SaltSize+crypto.NonceSize]
		ciphertext []byte = blob[crypto.SaltSize+crypto.NonceSize:]
	)

	var key []byte = v.key.Get()
	if key == nil {
		return nil, types.ErrNotUnlocked
	}
	defer memguard.WipeBytes(key)

	plaintext, err := crypto.Open(key, nonce, ciphertext, []byte(name))
	if err != nil {
		return nil, types.ErrAuthentication
	}
	return memory.Wrap(plaintext), nil
}

// installKey derives the working key and stores it in locked memory.
// Callers must hold v.mu.
func (v *Vault) installKey(password []byte) error {
	key, err := crypto.DeriveKey(password, v.salt)
	if err != nil {
		return fmt.Errorf("derive working key: %w", err)
	}
	v.dropKey()
	// Wrap wipes the derived key slice after copying it into locked
	// memory.
	v.key = memory.Wrap(key)
	if !v.key.Live() {
		v.key = nil
		return types.ErrAllocation
	}
	return nil
}

// dropKey clears the working key if present. Callers must hold v.mu.
func (v *Vault) dropKey() {
	if v.key != nil {
		v.key.Clear()
		v.key = nil
	}
}
