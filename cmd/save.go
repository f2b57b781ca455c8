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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/notapipeline/truefa/pkg/memory"
)

// saveCmd represents the save command
var saveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Encrypt and store the current secret under a name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked("save the secret"); err != nil {
			return err
		}
		if err := saveSecret(args[0]); err != nil {
			return err
		}
		fmt.Printf("Secret saved as %q\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(saveCmd)
}

// saveSecret encrypts the session secret under name and persists it. The
// plaintext crosses to the vault through a scoped temporary handle that
// is cleared on every exit path; the live session handle stays installed.
func saveSecret(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	var h *memory.SecretHandle = session.get()
	if h == nil || !h.Live() {
		return fmt.Errorf("no secret currently set")
	}
	var plaintext []byte = h.Get()
	if plaintext == nil {
		return fmt.Errorf("no secret currently set")
	}

	var blob []byte
	var err error = memory.With(plaintext, func(tmp *memory.SecretHandle) error {
		var encErr error
		blob, encErr = vlt.Encrypt(tmp, name)
		return encErr
	})
	if err != nil {
		return fmt.Errorf("error saving secret: %w", err)
	}
	return st.SaveSecret(name, blob)
}
