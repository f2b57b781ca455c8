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

// Package store persists one ciphertext blob per named secret, plus the
// master credential record, under a private owner-only directory.
package store

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/notapipeline/truefa/pkg/types"
)

const (
	secretExt  = ".enc"
	masterFile = ".master"
	exportsDir = "exports"
)

// masterRecord is the on-disk shape of the master credential.
type masterRecord struct {
	Hash string `json:"hash"`
	Salt string `json:"salt"`
}

// Store owns a private directory holding the master record and one
// base64-encoded `<name>.enc` file per secret.
type Store struct {
	dir string
	log zerolog.Logger
}

// New creates the private directory (and its exports subdirectory) with
// owner-only permissions and returns a store rooted there.
func New(dir string, logger zerolog.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory not specified")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage directory: %w", err)
	}
	if err = os.MkdirAll(abs, 0o700); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	// Resolve through any symlinks once so later containment checks
	// compare canonical paths.
	if abs, err = filepath.EvalSymlinks(abs); err != nil {
		return nil, fmt.Errorf("resolve storage directory: %w", err)
	}
	if err = os.MkdirAll(filepath.Join(abs, exportsDir), 0o700); err != nil {
		return nil, fmt.Errorf("create exports directory: %w", err)
	}
	return &Store{dir: abs, log: logger}, nil
}

// Dir returns the private storage directory.
func (s *Store) Dir() string {
	return s.dir
}

// ExportsDir returns the destination directory for encrypted exports.
func (s *Store) ExportsDir() string {
	return filepath.Join(s.dir, exportsDir)
}

// SaveMasterCredential writes the salt/hash pair as a single JSON record,
// overwriting any previous record.
func (s *Store) SaveMasterCredential(salt, hash []byte) error {
	data, err := json.Marshal(masterRecord{
		Hash: base64.StdEncoding.EncodeToString(hash),
		Salt: base64.StdEncoding.EncodeToString(salt),
	})
	if err != nil {
		return fmt.Errorf("encode master record: %w", err)
	}
	return s.writeFile(filepath.Join(s.dir, masterFile), data)
}

// LoadMasterCredential reads the master record. types.ErrNotFound means
// the system is in its first-use state.
func (s *Store) LoadMasterCredential() ([]byte, []byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, masterFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, types.ErrNotFound
		}
		return nil, nil, fmt.Errorf("read master record: %w", err)
	}

	var rec masterRecord
	if err = json.Unmarshal(data, &rec); err != nil {
		return nil, nil, fmt.Errorf("decode master record: %w", err)
	}
	hash, err := base64.StdEncoding.DecodeString(rec.Hash)
	if err != nil {
		return nil, nil, fmt.Errorf("decode master record: %w", err)
	}
	salt, err := base64.StdEncoding.DecodeString(rec.Salt)
	if err != nil {
		return nil, nil, fmt.Errorf("decode master record: %w", err)
	}
	return salt, hash, nil
}

// SaveSecret writes one file for the named secret, base64 text of the
// opaque blob, overwriting if present.
func (s *Store) SaveSecret(name string, blob []byte) error {
	path, err := s.secretPath(name)
	if err != nil {
		return err
	}
	return s.writeFile(path, []byte(base64.StdEncoding.EncodeToString(blob)))
}

// LoadSecret returns the stored blob for name, or types.ErrNotFound.
func (s *Store) LoadSecret(name string) ([]byte, error) {
	path, err := s.secretPath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("read secret %q: %w", name, err)
	}
	blob, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decode secret %q: %w", name, err)
	}
	return blob, nil
}

// ListSecrets returns the names of all stored secrets.
func (s *Store) ListSecrets() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list secrets: %w", err)
	}

	var names []string = make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), secretExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), secretExt))
	}
	return names, nil
}

// secretPath resolves the file path for name, refusing anything that
// would land outside the private directory. Escapes are logged as
// security violations and refused, never corrected.
func (s *Store) secretPath(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("secret name cannot be empty")
	}
	if strings.ContainsAny(name, `/\`) || name != filepath.Base(name) || name == ".." {
		s.log.Warn().Str("name", name).Msg("refusing secret name that escapes the storage directory")
		return "", types.PathEscapeError{Name: name}
	}

	var path string = filepath.Join(s.dir, name+secretExt)

	// Never follow a symlink out of the private directory.
	if fi, err := os.Lstat(path); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		resolved, err := filepath.EvalSymlinks(path)
		if err != nil || !strings.HasPrefix(resolved, s.dir+string(os.PathSeparator)) {
			s.log.Warn().Str("name", name).Str("path", path).Msg("refusing symlink that leaves the storage directory")
			return "", types.PathEscapeError{Name: name}
		}
	}
	return path, nil
}

// writeFile writes data atomically with owner-only permissions: a unique
// temporary file is written and fsynced, then renamed over the target.
func (s *Store) writeFile(path string, data []byte) error {
	var tmp string = filepath.Join(s.dir, fmt.Sprintf(".tmp-%s", uuid.New().String()))

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if _, err = f.Write(data); err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}

	if err = os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
