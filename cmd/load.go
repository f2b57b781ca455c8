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

	"github.com/spf13/cobra"

	"github.com/notapipeline/truefa/pkg/memory"
	"github.com/notapipeline/truefa/pkg/types"
)

// loadCmd represents the load command
var loadCmd = &cobra.Command{
	Use:   "load <name>",
	Short: "Decrypt a stored secret and make it current",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked("load saved secrets"); err != nil {
			return err
		}
		if err := loadSecret(args[0]); err != nil {
			return err
		}
		fmt.Printf("Secret %q loaded successfully!\n", args[0])
		return showCodes(loadWatch)
	},
}

var loadWatch bool

func init() {
	rootCmd.AddCommand(loadCmd)
	loadCmd.Flags().BoolVarP(&loadWatch, "watch", "w", false, "keep refreshing the code until interrupted")
}

// loadSecret reconstitutes the named secret and installs it, clearing
// any previously live handle.
func loadSecret(name string) error {
	blob, err := st.LoadSecret(name)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return fmt.Errorf("no saved secret found with name %q", name)
		}
		return err
	}

	var h *memory.SecretHandle
	if h, err = vlt.Decrypt(blob, name); err != nil {
		return fmt.Errorf("failed to decrypt secret")
	}
	session.install(h)
	return nil
}
