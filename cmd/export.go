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
	"errors"
	"fmt"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	"github.com/notapipeline/truefa/pkg/export"
	"github.com/notapipeline/truefa/pkg/memory"
	"github.com/notapipeline/truefa/pkg/tools"
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "Export all secrets as an encrypted archive",
	Long: `The export command decrypts every stored secret and writes the
	name to seed mapping as a symmetrically encrypted OpenPGP file. The
	plaintext mapping only ever exists in memory.

	Relative paths are placed in the exports subdirectory of the storage
	directory.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked("export secrets"); err != nil {
			return err
		}
		path, err := exportSecrets(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Secrets exported to %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

// exportSecrets decrypts every stored secret into an in-memory mapping
// and hands it to the detached encryption tool together with a freshly
// prompted passphrase.
func exportSecrets(outPath string) (string, error) {
	names, err := st.ListSecrets()
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no secrets to export")
	}

	var secrets map[string]string = make(map[string]string, len(names))
	for _, name := range names {
		blob, err := st.LoadSecret(name)
		if err != nil {
			return "", err
		}
		var h *memory.SecretHandle
		if h, err = vlt.Decrypt(blob, name); err != nil {
			return "", fmt.Errorf("failed to decrypt secret %q", name)
		}
		var seed []byte = h.Get()
		h.Clear()
		if seed == nil {
			return "", fmt.Errorf("failed to decrypt secret %q", name)
		}
		secrets[name] = string(seed)
		memguard.WipeBytes(seed)
	}

	passphrase, err := tools.GetPassword("truefa",
		"Enter a passphrase for the export archive", "Passphrase: ")
	if err != nil {
		if errors.Is(err, tools.ErrAborted) {
			shutdown(0)
		}
		return "", err
	}
	defer memguard.WipeBytes(passphrase)

	return export.Secrets(st.ExportsDir(), secrets, passphrase, outPath)
}
