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
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setupSuite(t *testing.T) func(t *testing.T) {
	t.Log("Setting up config suite")
	tempDir := t.TempDir()
	ConfigPath = func() string {
		return filepath.Join(tempDir, "truefa.yaml")
	}
	err := os.WriteFile(ConfigPath(), []byte(`
storage_dir: /var/lib/truefa
images_dir: /srv/qr
expire_after: 2m
unlock_attempts: 5
`), 0644)
	if err != nil {
		t.Fatal(err)
	}

	return func(t *testing.T) {
		ConfigPath = getConfigPath
	}
}

func TestDefaults(t *testing.T) {
	c := New()

	home, _ := os.UserHomeDir()
	if c.StorageDir != filepath.Join(home, ".truefa") {
		t.Errorf("Expected storage dir under home but got %q", c.StorageDir)
	}
	if filepath.Base(c.ImagesDir) != "images" {
		t.Errorf("Expected images dir to end in images but got %q", c.ImagesDir)
	}
	if c.ExpireAfter != 5*time.Minute {
		t.Errorf("Expected expiry 5m but got %v", c.ExpireAfter)
	}
	if c.UnlockAttempts != 3 {
		t.Errorf("Expected 3 unlock attempts but got %d", c.UnlockAttempts)
	}
}

func TestConfig_Load(t *testing.T) {
	teardownSuite := setupSuite(t)
	defer teardownSuite(t)

	c := New()
	if err := c.Load(); err != nil {
		t.Errorf("Expected nil error but got %v", err)
	}

	if c.StorageDir != "/var/lib/truefa" {
		t.Errorf("Expected storage dir %q but got %q", "/var/lib/truefa", c.StorageDir)
	}
	if c.ImagesDir != "/srv/qr" {
		t.Errorf("Expected images dir %q but got %q", "/srv/qr", c.ImagesDir)
	}
	if c.ExpireAfter != 2*time.Minute {
		t.Errorf("Expected expiry 2m but got %v", c.ExpireAfter)
	}
	if c.UnlockAttempts != 5 {
		t.Errorf("Expected 5 unlock attempts but got %d", c.UnlockAttempts)
	}
}

func TestConfig_LoadMissingFileKeepsDefaults(t *testing.T) {
	tempDir := t.TempDir()
	ConfigPath = func() string {
		return filepath.Join(tempDir, "does-not-exist.yaml")
	}
	defer func() { ConfigPath = getConfigPath }()

	c := New()
	if err := c.Load(); err != nil {
		t.Errorf("Expected nil error but got %v", err)
	}
	if c.UnlockAttempts != 3 {
		t.Errorf("Expected 3 unlock attempts but got %d", c.UnlockAttempts)
	}
}

func TestConfig_MergeFlags(t *testing.T) {
	c := New()
	c.MergeFlags(Flags{StorageDir: "/tmp/flagged", UnlockAttempts: 7})

	if c.StorageDir != "/tmp/flagged" {
		t.Errorf("Expected storage dir %q but got %q", "/tmp/flagged", c.StorageDir)
	}
	if c.UnlockAttempts != 7 {
		t.Errorf("Expected 7 unlock attempts but got %d", c.UnlockAttempts)
	}

	// Zero values must not clobber loaded settings.
	if c.ExpireAfter != 5*time.Minute {
		t.Errorf("Expected expiry 5m but got %v", c.ExpireAfter)
	}
	if filepath.Base(c.ImagesDir) != "images" {
		t.Errorf("Expected images dir untouched but got %q", c.ImagesDir)
	}
}

func TestConfig_EnvironmentOverridesFile(t *testing.T) {
	teardownSuite := setupSuite(t)
	defer teardownSuite(t)

	t.Setenv("TRUEFA_STORAGE_DIR", "/tmp/elsewhere")
	t.Setenv("TRUEFA_EXPIRY", "30s")
	t.Setenv("TRUEFA_UNLOCK_ATTEMPTS", "1")
	t.Setenv("QR_IMAGES_DIR", "/tmp/qr")

	c := New()
	if err := c.Load(); err != nil {
		t.Errorf("Expected nil error but got %v", err)
	}

	if c.StorageDir != "/tmp/elsewhere" {
		t.Errorf("Expected storage dir %q but got %q", "/tmp/elsewhere", c.StorageDir)
	}
	if c.ImagesDir != "/tmp/qr" {
		t.Errorf("Expected images dir %q but got %q", "/tmp/qr", c.ImagesDir)
	}
	if c.ExpireAfter != 30*time.Second {
		t.Errorf("Expected expiry 30s but got %v", c.ExpireAfter)
	}
	if c.UnlockAttempts != 1 {
		t.Errorf("Expected 1 unlock attempt but got %d", c.UnlockAttempts)
	}
}
