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

	"github.com/notapipeline/truefa/pkg/otp"
)

// addCmd represents the add command
var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Enter a seed manually",
	Long: `The add command prompts for a base32 encoded seed and installs it as
	the current secret.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		seed, err := promptSeed()
		if err != nil {
			return err
		}
		if err = ensureUnlocked("view 2FA codes"); err != nil {
			return err
		}
		installSeed(seed)
		fmt.Println("Secret key successfully set!")
		return showCodes(addWatch)
	},
}

var addWatch bool

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().BoolVarP(&addWatch, "watch", "w", false, "keep refreshing the code until interrupted")
}

func promptSeed() (string, error) {
	// Seeds are read without echo; they are as sensitive as the codes
	// they produce.
	input, err := readPassword("Enter the secret key: ")
	if err != nil {
		return "", err
	}
	var seed string = string(input)
	if !otp.ValidateSeed(seed) {
		return "", fmt.Errorf("invalid secret key format, must be base32 encoded")
	}
	return seed, nil
}
