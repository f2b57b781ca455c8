/*
Package crypto provides the key derivation and authenticated encryption
primitives used to protect stored secrets.

Two values are derived from the master password and a random salt:

  - the verification hash, a raw scrypt derivation that is persisted
    alongside the salt and compared in constant time at unlock
  - the working encryption key, the same scrypt derivation expanded
    through HKDF with an "enc" label so the stored hash can never be
    used as the encryption key

Records are sealed with AES-256-GCM. The record name is bound as
associated data, so a ciphertext sealed under one name will not open
under another. A fresh random nonce is drawn for every Seal call.

Callers own the lifetime of every key slice passed in or returned.
Intermediate derivations are wiped inside this package, but the caller
must wipe its own copies, preferably by holding them in a
memory.SecretHandle and copying out only for the duration of one call:

	package main

	import (
		"github.com/notapipeline/truefa/pkg/crypto"
		"github.com/notapipeline/truefa/pkg/memory"
	)

	func seal(keyHandle *memory.SecretHandle, seed []byte, name string) ([]byte, error) {
		var key []byte = keyHandle.Get()
		defer memguard.WipeBytes(key)

		nonce, ciphertext, err := crypto.Seal(key, seed, []byte(name))
		if err != nil {
			return nil, err
		}
		return append(nonce, ciphertext...), nil
	}
*/
package crypto
