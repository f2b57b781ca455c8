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

// Package tools provides the interactive plumbing shared by the command
// surfaces: password and line prompts, and master password lookup from
// the environment or the desktop secret stores.
package tools

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/peterh/liner"
	"github.com/twpayne/go-pinentry"
)

// masterPasswordEnv names the environment variable consulted before any
// interactive prompt or desktop store lookup.
const masterPasswordEnv = "TRUEFA_PASSWORD"

// ErrAborted is returned when the user cancels a prompt. liner runs the
// terminal in raw mode, so Ctrl+C surfaces here rather than as a signal;
// callers must route this through the same wipe path a signal takes.
var ErrAborted = errors.New("prompt aborted")

// ReadPassword reads a password from the user via STDIN without echo.
//
// This is a mockable entry point for testing.
var ReadPassword func(prompt string) ([]byte, error) = func(prompt string) ([]byte, error) {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	defer line.Close()
	var (
		password string
		err      error
	)
	if password, err = line.PasswordPrompt(prompt); err != nil {
		if err == liner.ErrPromptAborted {
			return nil, ErrAborted
		}
		return nil, err
	}
	return []byte(password), nil
}

// ReadLine reads a line of text from the user via STDIN.
//
// This is a mockable entry point for testing.
var ReadLine func(prompt string) ([]byte, error) = func(prompt string) ([]byte, error) {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	defer line.Close()
	var (
		text string
		err  error
	)
	if text, err = line.Prompt(prompt); err != nil {
		if err == liner.ErrPromptAborted {
			return nil, ErrAborted
		}
		return nil, err
	}
	return []byte(text), nil
}

// MasterPassword retrieves the master password without prompting.
//
// Order is:
// 1. Environment
// 2. KWallet
// 3. Secrets service
//
// An empty result means the caller must fall back to an interactive
// prompt.
func MasterPassword() []byte {
	if value, ok := os.LookupEnv(masterPasswordEnv); ok {
		return []byte(value)
	}
	if value, err := getSecretFromKWallet(masterPasswordEnv); err == nil && value != "" {
		return []byte(value)
	}
	if value, err := getSecretFromSecretsService(masterPasswordEnv); err == nil && value != "" {
		return []byte(value)
	}
	return nil
}

// GetPassword gets a password from the user
//
// This is a mockable entry point for testing and wraps the password function.
var GetPassword func(title, description, prompt string) ([]byte, error) = password

// password asks the user for a password using pinentry if available and
// falls back to stdin if not.
func password(title, description, prompt string) ([]byte, error) {
	var (
		err         error
		client      *pinentry.Client
		password    string
		usePinentry bool = true
	)

	if client, err = GetPinentry(
		pinentry.WithBinaryNameFromGnuPGAgentConf(),
		pinentry.WithDesc(description),
		pinentry.WithGPGTTY(),
		pinentry.WithPrompt(prompt),
		pinentry.WithTitle(title),
	); err != nil {
		var b []byte
		if b, err = readPassword(prompt); err != nil {
			return nil, err
		}
		password = string(b)
		usePinentry = false
	}

	if usePinentry {
		defer client.Close()
		password, _, err = client.GetPIN()
		if pinentry.IsCancelled(err) {
			return nil, ErrAborted
		}
	}
	if password == "" {
		return nil, fmt.Errorf("No password provided")
	}
	password = strings.TrimSpace(password)
	return []byte(password), err
}

// GetPinentry gets a pinentry client
//
// This is a mockable entry point for testing and wraps the pinentry client.
var GetPinentry func(options ...pinentry.ClientOption) (c *pinentry.Client, err error) = func(options ...pinentry.ClientOption) (c *pinentry.Client, err error) {
	return pinentry.NewClient(options...)
}

var readPassword func(prompt string) ([]byte, error) = func(prompt string) ([]byte, error) {
	return ReadPassword(prompt)
}
