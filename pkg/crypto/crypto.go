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
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	cryptorand "crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/scrypt"
)

const (
	// SaltSize is the length of the random salt stored with the master
	// credential and prefixed to every encrypted record.
	SaltSize = 16

	// NonceSize is the AES-GCM nonce length.
	NonceSize = 12

	// KeySize is the length of both the verification hash and the working
	// encryption key.
	KeySize = 32

	// scrypt cost parameters. N=2^14, r=8, p=1 keeps derivation
	// memory-hard while remaining interactive on commodity hardware.
	scryptN = 1 << 14
	scryptR = 8
	scryptP = 1
)

// DeriveVerifier derives the 32-byte password verification hash from
// (password, salt) using scrypt. This value is persisted alongside the
// salt in the master credential record.
func DeriveVerifier(password, salt []byte) ([]byte, error) {
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("salt must be %d bytes, got %d", SaltSize, len(salt))
	}
	return scrypt.Key(password, salt, scryptN, scryptR, scryptP, KeySize)
}

// DeriveKey derives the working AEAD key from (password, salt). The scrypt
// output is expanded through HKDF with an "enc" label so the stored
// verification hash and the in-memory encryption key are cryptographically
// distinct even though both stem from the same derivation.
func DeriveKey(password, salt []byte) ([]byte, error) {
	prk, err := DeriveVerifier(password, salt)
	if err != nil {
		return nil, err
	}
	defer wipe(prk)

	var key []byte = make([]byte, KeySize)
	var r io.Reader = hkdf.Expand(sha256.New, prk, []byte("enc"))
	if _, err = io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// VerifyHash recomputes the verifier for (password, salt) and compares it
// against hash in constant time.
func VerifyHash(password, salt, hash []byte) bool {
	derived, err := DeriveVerifier(password, salt)
	if err != nil {
		return false
	}
	defer wipe(derived)
	return subtle.ConstantTimeCompare(derived, hash) == 1
}

// Seal encrypts plaintext under key with AES-256-GCM, binding aad as
// associated data, and returns a fresh random nonce alongside the
// ciphertext (which includes the authentication tag). The nonce is never
// reused for a given key.
func Seal(key, plaintext, aad []byte) (nonce, ciphertext []byte, err error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, NonceSize)
	if _, err = io.ReadFull(cryptorand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext = gcm.Seal(nil, nonce, plaintext, aad)
	return nonce, ciphertext, nil
}

// Open decrypts ciphertext under key with AES-256-GCM. The same aad
// supplied at Seal time must be presented or authentication fails.
func Open(key, nonce, ciphertext, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("invalid nonce size %d", len(nonce))
	}
	return gcm.Open(nil, nonce, ciphertext, aad)
}

// NewSalt returns a fresh random salt.
func NewSalt() ([]byte, error) {
	var salt []byte = make([]byte, SaltSize)
	if _, err := io.ReadFull(cryptorand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("aes-gcm requires a %d-byte key", KeySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
