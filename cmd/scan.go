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
	"os"

	"github.com/spf13/cobra"

	"github.com/notapipeline/truefa/pkg/otp"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan <image>",
	Short: "Load a seed from a QR code image",
	Long: `The scan command decodes a QR code provisioning image, extracts the
	seed from its otpauth URL and installs it as the current secret.

	Relative image paths are resolved against the configured images
	directory; paths outside that directory are refused.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seed, err := scanImage(args[0])
		if err != nil {
			return err
		}
		if err = ensureUnlocked("view 2FA codes"); err != nil {
			return err
		}
		installSeed(seed)
		fmt.Println("Secret key successfully extracted from QR code!")
		return showCodes(scanWatch)
	},
}

var scanWatch bool

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().BoolVarP(&scanWatch, "watch", "w", false, "keep refreshing the code until interrupted")
}

// scanImage decodes the QR image at path and returns the embedded seed.
func scanImage(path string) (string, error) {
	resolved, err := otp.ResolveImagePath(cfg.ImagesDir, path)
	if err != nil {
		return "", fmt.Errorf("invalid image path or file not found")
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("could not read the image file: %s", resolved)
	}

	payloads, err := decoder.Decode(data)
	if err != nil {
		return "", err
	}
	if len(payloads) == 0 {
		return "", fmt.Errorf("no QR code found in the image")
	}
	return otp.ExtractFromPayloads(payloads)
}
