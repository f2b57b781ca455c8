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
package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/kylelemons/godebug/pretty"
)

func decrypt(t *testing.T, path string, passphrase []byte) map[string]string {
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Expected nil error but got %v", err)
	}
	defer f.Close()

	var attempts int
	md, err := openpgp.ReadMessage(f, nil, func(keys []openpgp.Key, symmetric bool) ([]byte, error) {
		attempts++
		if attempts > 1 {
			t.Fatal("passphrase rejected")
		}
		return passphrase, nil
	}, nil)
	if err != nil {
		t.Fatalf("Expected nil error but got %v", err)
	}

	var out map[string]string
	if err = json.NewDecoder(md.UnverifiedBody).Decode(&out); err != nil {
		t.Fatalf("Expected nil error but got %v", err)
	}
	return out
}

func TestSecretsRoundTrip(t *testing.T) {
	exportsDir := t.TempDir()
	secrets := map[string]string{
		"github": "JBSWY3DPEHPK3PXP",
		"gitlab": "GEZDGNBVGY3TQOJQ",
	}

	path, err := Secrets(exportsDir, secrets, []byte("passphrase"), "backup")
	if err != nil {
		t.Fatalf("Expected nil error but got %v", err)
	}

	if path != filepath.Join(exportsDir, "backup.gpg") {
		t.Errorf("Expected path under exports dir but got %q", path)
	}
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Expected nil error but got %v", err)
	}
	if fi.Mode().Perm() != 0o600 {
		t.Errorf("Expected mode 0600 but got %o", fi.Mode().Perm())
	}

	out := decrypt(t, path, []byte("passphrase"))
	if diff := pretty.Compare(out, secrets); diff != "" {
		t.Errorf("Export mismatch (-got +want):\n%s", diff)
	}
}

func TestSecretsLeavesNoTemporaryFiles(t *testing.T) {
	exportsDir := t.TempDir()
	if _, err := Secrets(exportsDir, map[string]string{"a": "b"}, []byte("pw"), "out"); err != nil {
		t.Fatalf("Expected nil error but got %v", err)
	}

	entries, err := os.ReadDir(exportsDir)
	if err != nil {
		t.Fatalf("Expected nil error but got %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".export-") {
			t.Errorf("Expected no temporary files but found %q", e.Name())
		}
	}
}

func TestSecretsRequiresInput(t *testing.T) {
	exportsDir := t.TempDir()

	if _, err := Secrets(exportsDir, nil, []byte("pw"), "out"); err == nil {
		t.Error("Expected error but got nil")
	}
	if _, err := Secrets(exportsDir, map[string]string{"a": "b"}, nil, "out"); err == nil {
		t.Error("Expected error but got nil")
	}
	if _, err := Secrets(exportsDir, map[string]string{"a": "b"}, []byte("pw"), "  "); err == nil {
		t.Error("Expected error but got nil")
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "bare name gains suffix",
			input:    "backup",
			expected: "/exports/backup.gpg",
		}, {
			name:     "existing suffix kept",
			input:    "backup.gpg",
			expected: "/exports/backup.gpg",
		}, {
			name:     "quoted input",
			input:    `"backup"`,
			expected: "/exports/backup.gpg",
		}, {
			name:     "windows path reduced to basename",
			input:    `C:\Users\alice\backup`,
			expected: "/exports/backup.gpg",
		}, {
			name:     "absolute path honoured",
			input:    "/tmp/backup",
			expected: "/tmp/backup.gpg",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path, err := resolve("/exports", test.input)
			if err != nil {
				t.Fatalf("Expected nil error but got %v", err)
			}
			if path != test.expected {
				t.Errorf("Expected %q but got %q", test.expected, path)
			}
		})
	}
}
