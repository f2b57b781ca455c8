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
package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/awnumar/memguard"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/notapipeline/truefa/pkg/config"
	"github.com/notapipeline/truefa/pkg/memory"
	"github.com/notapipeline/truefa/pkg/otp"
	"github.com/notapipeline/truefa/pkg/store"
	"github.com/notapipeline/truefa/pkg/tools"
	"github.com/notapipeline/truefa/pkg/vault"
)

var (
	cfg *config.Config
	st  *store.Store
	vlt *vault.Vault

	// External collaborators behind their narrow interfaces; swapped in
	// tests.
	decoder   otp.Decoder   = otp.QRDecoder{}
	generator otp.Generator = otp.TOTPGenerator{}

	session *secretSession = &secretSession{}

	// generating is set while the live code loop runs; the first
	// interrupt stops the loop, a second one exits.
	generating atomic.Bool

	setupOnce sync.Once
)

// secretSession holds at most one live decrypted secret. Installing a new
// handle always clears the previous one first, so two live plaintext
// secrets never coexist outside the scoped save/load handoff.
type secretSession struct {
	mu     sync.Mutex
	secret *memory.SecretHandle
}

func (s *secretSession) install(h *memory.SecretHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.secret != nil {
		s.secret.Clear()
	}
	s.secret = h
}

func (s *secretSession) get() *memory.SecretHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.secret
}

func (s *secretSession) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.secret != nil {
		s.secret.Clear()
		s.secret = nil
	}
}

// expire clears the live secret once its age passes threshold. A cleared
// handle reports an infinite age, so the check is monotonic: once
// expired, always expired until replaced.
func (s *secretSession) expire(threshold time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.secret == nil {
		return false
	}
	if s.secret.Age() > threshold {
		s.secret.Clear()
		s.secret = nil
		return true
	}
	return false
}

// setup wires config, store and vault, registers the shutdown hook and
// starts the expiry sweeper. Runs once regardless of which command
// triggered it.
func setup() (err error) {
	setupOnce.Do(func() {
		cfg = config.New()
		if err = cfg.Load(); err != nil {
			err = fmt.Errorf("load config: %w", err)
			return
		}
		cfg.MergeFlags(flags)
		logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		if st, err = store.New(cfg.StorageDir, logger); err != nil {
			return
		}
		if vlt, err = vault.New(st); err != nil {
			return
		}

		go watchSignals()
		go sweep()
	})
	return
}

// watchSignals is the single registered shutdown hook. An interrupt
// during the live code loop only stops the loop; a second interrupt, or
// a terminate request at any time, wipes secrets through the same clear
// path used by normal flows and exits.
func watchSignals() {
	var sigc chan os.Signal = make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	for sig := range sigc {
		if sig == os.Interrupt && generating.CompareAndSwap(true, false) {
			continue
		}
		shutdown(0)
	}
}

func shutdown(code int) {
	session.clear()
	if vlt != nil {
		vlt.Lock()
	}
	fmt.Fprintln(os.Stderr, "\nExiting securely...")
	osExit(code)
}

// osExit is referenced as a variable to enable it to be mocked in tests.
var osExit func(code int) = os.Exit

// readLine and readPassword wrap the prompt helpers so a cancelled
// prompt runs the same wipe path as a termination signal. liner holds
// the terminal in raw mode, so a Ctrl+C at a prompt never reaches
// watchSignals.
func readLine(prompt string) ([]byte, error) {
	b, err := tools.ReadLine(prompt)
	if errors.Is(err, tools.ErrAborted) {
		shutdown(0)
	}
	return b, err
}

func readPassword(prompt string) ([]byte, error) {
	b, err := tools.ReadPassword(prompt)
	if errors.Is(err, tools.ErrAborted) {
		shutdown(0)
	}
	return b, err
}

func sweep() {
	for range time.Tick(15 * time.Second) {
		if session.expire(cfg.ExpireAfter) {
			fmt.Fprintln(os.Stderr, "\nAuto-clearing old secret for security...")
		}
	}
}

// ensureUnlocked brings the vault to the unlocked state, walking the
// first-use password setup when no master credential exists and otherwise
// prompting with a bounded attempt budget.
func ensureUnlocked(purpose string) error {
	switch vlt.State() {
	case vault.StateUnlocked:
		return nil
	case vault.StateUninitialized:
		return setMasterPassword(purpose)
	}

	// Non-interactive sources first: environment, then desktop stores.
	if pw := tools.MasterPassword(); pw != nil {
		err := vlt.Unlock(pw)
		memguard.WipeBytes(pw)
		if err == nil {
			return nil
		}
	}

	var remaining int = cfg.UnlockAttempts
	var op backoff.Operation = func() error {
		pw, err := tools.GetPassword("truefa",
			fmt.Sprintf("Storage is locked. Enter your master password to %s", purpose),
			"Password: ")
		if err != nil {
			if errors.Is(err, tools.ErrAborted) {
				shutdown(0)
			}
			return backoff.Permanent(err)
		}
		err = vlt.Unlock(pw)
		memguard.WipeBytes(pw)
		if err != nil {
			remaining--
			if remaining > 0 {
				fmt.Printf("Incorrect password. %d attempts remaining.\n", remaining)
			}
			return err
		}
		return nil
	}

	var retries uint64
	if cfg.UnlockAttempts > 1 {
		retries = uint64(cfg.UnlockAttempts - 1)
	}
	if err := backoff.Retry(op, backoff.WithMaxRetries(&backoff.ZeroBackOff{}, retries)); err != nil {
		return fmt.Errorf("unlock failed")
	}
	return nil
}

// setMasterPassword runs the first-use flow: prompt, confirm, derive and
// persist.
func setMasterPassword(purpose string) error {
	fmt.Printf("You need to set up a master password to %s\n", purpose)
	for {
		pw, err := tools.GetPassword("truefa", "Enter new master password", "Password: ")
		if err != nil {
			if errors.Is(err, tools.ErrAborted) {
				shutdown(0)
			}
			return err
		}
		confirm, err := tools.GetPassword("truefa", "Confirm master password", "Confirm: ")
		if err != nil {
			memguard.WipeBytes(pw)
			if errors.Is(err, tools.ErrAborted) {
				shutdown(0)
			}
			return err
		}

		var match bool = bytes.Equal(pw, confirm)
		memguard.WipeBytes(confirm)
		if match {
			err = vlt.SetMasterPassword(pw)
			memguard.WipeBytes(pw)
			return err
		}
		memguard.WipeBytes(pw)
		fmt.Println("Passwords don't match. Try again.")
	}
}

// installSeed wraps validated seed material as the session's live secret.
func installSeed(seed string) {
	session.install(memory.Wrap([]byte(otp.NormalizeSeed(seed))))
}

// showCodes prints the current one-time code. With watch set it refreshes
// every second until the loop is interrupted or the secret expires.
func showCodes(watch bool) error {
	var h *memory.SecretHandle = session.get()
	if h == nil || !h.Live() {
		return fmt.Errorf("no secret currently set")
	}

	if watch {
		generating.Store(true)
		defer generating.Store(false)
		fmt.Println("\nGenerating codes. Press Ctrl+C to stop.")
	}

	for {
		var seed []byte = h.Get()
		if seed == nil {
			// Expired or cleared underneath us; let the auto-clear
			// policy win.
			fmt.Println()
			return nil
		}
		code, remaining, err := generator.Code(string(seed), time.Now())
		memguard.WipeBytes(seed)
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}

		fmt.Printf("\rCurrent code: %s (refreshes in %ds)", code, remaining)
		if !watch || !generating.Load() {
			fmt.Println()
			return nil
		}
		time.Sleep(time.Second)
	}
}
