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
	"log"

	"github.com/spf13/cobra"

	"github.com/notapipeline/truefa/pkg/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "truefa",
	Short: "Two-factor authentication secret vault",
	Long: `
Two-factor authentication secret vault

truefa keeps TOTP seed material encrypted at rest behind a master password
and page-locked while decrypted in memory. Seeds are loaded from QR code
provisioning images or entered manually, saved as named secrets, and used
to display the current one-time codes.

Called without a subcommand it starts the interactive menu.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive()
	},
}

var fatal func(format string, v ...interface{}) = log.Fatalf

// flags are merged over the file and environment configuration in setup.
var flags config.Flags

func init() {
	rootCmd.PersistentFlags().StringVar(&flags.StorageDir, "storage-dir", "", "directory holding encrypted secrets")
	rootCmd.PersistentFlags().StringVar(&flags.ImagesDir, "images-dir", "", "directory scanned for QR code images")
	rootCmd.PersistentFlags().DurationVar(&flags.ExpireAfter, "expiry", 0, "how long a decrypted secret may stay live")
	rootCmd.PersistentFlags().IntVar(&flags.UnlockAttempts, "unlock-attempts", 0, "bound on consecutive master password attempts")
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fatal("%s", err)
	}
}
