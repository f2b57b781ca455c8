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
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v2"
)

// ConfigPath is referenced as a variable to enable it to be mocked in
// tests.
var ConfigPath func() string = getConfigPath

// Config carries the runtime settings for secret storage and QR scanning.
// Values are resolved in order: built-in defaults, the YAML config file,
// then the environment.
type Config struct {
	// StorageDir is the private directory holding encrypted secrets and
	// the master credential record.
	StorageDir string `yaml:"storage_dir" env:"TRUEFA_STORAGE_DIR"`

	// ImagesDir is the directory scanned for QR code images. Relative
	// image paths are resolved against it and may not escape it.
	ImagesDir string `yaml:"images_dir" env:"QR_IMAGES_DIR"`

	// ExpireAfter is how long a decrypted secret may stay live in memory
	// before it is automatically cleared.
	ExpireAfter time.Duration `yaml:"expire_after" env:"TRUEFA_EXPIRY"`

	// UnlockAttempts bounds consecutive master password attempts.
	UnlockAttempts int `yaml:"unlock_attempts" env:"TRUEFA_UNLOCK_ATTEMPTS"`
}

// New returns a config populated with defaults.
func New() *Config {
	home, _ := os.UserHomeDir()
	cwd, _ := os.Getwd()
	return &Config{
		StorageDir:     filepath.Join(home, ".truefa"),
		ImagesDir:      filepath.Join(cwd, "images"),
		ExpireAfter:    5 * time.Minute,
		UnlockAttempts: 3,
	}
}

// Load overlays the config file from the user local config directory and
// then checks the environment for overrides.
func (c *Config) Load() (err error) {
	if err = c.loadYaml(); err != nil {
		return
	}
	if err = c.loadEnv(); err != nil {
		return
	}
	return
}

func (c *Config) loadYaml() (err error) {
	var (
		cp       string = ConfigPath()
		yamlFile []byte
	)

	if _, err = os.Stat(cp); errors.Is(err, os.ErrNotExist) {
		err = nil
		return
	}
	if yamlFile, err = os.ReadFile(cp); err != nil {
		return err
	}
	return yaml.Unmarshal(yamlFile, c)
}

func (c *Config) loadEnv() (err error) {
	return env.Parse(c)
}

// Flags carries command line overrides. Zero values leave the loaded
// configuration untouched.
type Flags struct {
	StorageDir     string
	ImagesDir      string
	ExpireAfter    time.Duration
	UnlockAttempts int
}

// MergeFlags overlays command line values on top of the file and
// environment configuration.
func (c *Config) MergeFlags(f Flags) {
	if f.StorageDir != "" {
		c.StorageDir = f.StorageDir
	}
	if f.ImagesDir != "" {
		c.ImagesDir = f.ImagesDir
	}
	if f.ExpireAfter != 0 {
		c.ExpireAfter = f.ExpireAfter
	}
	if f.UnlockAttempts != 0 {
		c.UnlockAttempts = f.UnlockAttempts
	}
}

func getConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "truefa", "truefa.yaml")
}
