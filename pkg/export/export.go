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

// Package export writes the decrypted name to seed mapping as a
// symmetrically encrypted OpenPGP file. The plaintext collection is
// streamed straight into the encryption writer and never touches disk.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/google/uuid"
)

// Secrets encrypts the name to seed mapping under passphrase and writes
// it to outPath. Relative paths land in exportsDir; a .gpg suffix is
// enforced. The final path is returned.
func Secrets(exportsDir string, secrets map[string]string, passphrase []byte, outPath string) (string, error) {
	if len(secrets) == 0 {
		return "", fmt.Errorf("no secrets to export")
	}
	if len(passphrase) == 0 {
		return "", fmt.Errorf("no passphrase provided")
	}

	path, err := resolve(exportsDir, outPath)
	if err != nil {
		return "", err
	}

	// Write to a uniquely named temporary file first so a failed export
	// never leaves a truncated archive behind.
	var tmp string = filepath.Join(filepath.Dir(path), fmt.Sprintf(".export-%s.tmp", uuid.New().String()))
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}

	pt, err := openpgp.SymmetricallyEncrypt(f, passphrase, nil, nil)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("encrypt export: %w", err)
	}

	if err = json.NewEncoder(pt).Encode(secrets); err != nil {
		pt.Close()
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("write export: %w", err)
	}
	if err = pt.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("finalize export: %w", err)
	}
	if err = f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("close export file: %w", err)
	}

	if err = os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("replace export file: %w", err)
	}
	return path, nil
}

// resolve cleans up a user supplied export path: quotes stripped,
// Windows-style paths reduced to their basename, .gpg suffix enforced,
// relative paths placed in the exports directory.
func resolve(exportsDir, outPath string) (string, error) {
	outPath = strings.Trim(strings.TrimSpace(outPath), `"'`)
	if outPath == "" {
		return "", fmt.Errorf("no export path provided")
	}
	if strings.ContainsAny(outPath, `\:`) {
		if i := strings.LastIndexAny(outPath, `\/`); i >= 0 {
			outPath = outPath[i+1:]
		}
	}
	if !strings.HasSuffix(outPath, ".gpg") {
		outPath += ".gpg"
	}
	if !filepath.IsAbs(outPath) {
		outPath = filepath.Join(exportsDir, outPath)
	}
	return outPath, nil
}
