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
	"strings"

	"github.com/spf13/cobra"
)

// interactiveCmd represents the interactive command
var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Run the interactive menu loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive()
	},
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}

const menu = `
=== TrueFA ===
1. Load QR code from image
2. Enter secret key manually
3. Save current secret
4. Load saved secret
5. Export secrets
6. Clear screen
7. Exit
`

func runInteractive() error {
	fmt.Printf("\nNote: place your QR code images in: %s\n", cfg.ImagesDir)
	fmt.Println("You can use either the full path or just the filename if it's in the images directory")

	for {
		if session.expire(cfg.ExpireAfter) {
			fmt.Println("\nAuto-clearing old secret for security...")
		}

		fmt.Print(menu)
		choice, err := readLine("\nEnter your choice (1-7): ")
		if err != nil {
			return err
		}

		var showAfter bool
		switch strings.TrimSpace(string(choice)) {
		case "1":
			showAfter = menuScan()
		case "2":
			showAfter = menuAdd()
		case "3":
			menuSave()
		case "4":
			showAfter = menuLoad()
		case "5":
			menuExport()
		case "6":
			// ANSI clear; the secrets never hit the scrollback anyway.
			fmt.Print("\033[2J\033[H")
		case "7":
			session.clear()
			vlt.Lock()
			fmt.Println("Goodbye!")
			return nil
		default:
			fmt.Println("Invalid choice. Please try again.")
		}

		if showAfter {
			if err := showCodes(true); err != nil {
				fmt.Printf("Error: %s\n", err)
			}
		}
	}
}

func menuScan() bool {
	path, err := readLine("Enter the path to the QR code image: ")
	if err != nil {
		return false
	}
	seed, err := scanImage(string(path))
	if err != nil {
		fmt.Printf("Error: %s\n", err)
		return false
	}
	if err = ensureUnlocked("view 2FA codes"); err != nil {
		fmt.Printf("Error: %s\n", err)
		return false
	}
	installSeed(seed)
	fmt.Println("Secret key successfully extracted from QR code!")
	return true
}

func menuAdd() bool {
	seed, err := promptSeed()
	if err != nil {
		fmt.Printf("Error: %s\n", err)
		return false
	}
	if err = ensureUnlocked("view 2FA codes"); err != nil {
		fmt.Printf("Error: %s\n", err)
		return false
	}
	installSeed(seed)
	fmt.Println("Secret key successfully set!")
	return true
}

func menuSave() {
	if h := session.get(); h == nil || !h.Live() {
		fmt.Println("No secret currently set!")
		return
	}
	if err := ensureUnlocked("save the secret"); err != nil {
		fmt.Printf("Error: %s\n", err)
		return
	}
	name, err := readLine("Enter a name for this secret: ")
	if err != nil {
		return
	}
	if err = saveSecret(strings.TrimSpace(string(name))); err != nil {
		fmt.Printf("Error: %s\n", err)
		return
	}
	fmt.Printf("Secret saved as %q\n", strings.TrimSpace(string(name)))
}

func menuLoad() bool {
	if err := ensureUnlocked("load saved secrets"); err != nil {
		fmt.Printf("Error: %s\n", err)
		return false
	}
	name, err := readLine("Enter the name of the secret to load: ")
	if err != nil {
		return false
	}
	if err = loadSecret(strings.TrimSpace(string(name))); err != nil {
		fmt.Printf("Error: %s\n", err)
		return false
	}
	fmt.Printf("Secret %q loaded successfully!\n", strings.TrimSpace(string(name)))
	return true
}

func menuExport() {
	if err := ensureUnlocked("export secrets"); err != nil {
		fmt.Printf("Error: %s\n", err)
		return
	}
	path, err := readLine("Enter path for exported file (will be encrypted): ")
	if err != nil {
		return
	}
	out, err := exportSecrets(strings.TrimSpace(string(path)))
	if err != nil {
		fmt.Printf("Export failed: %s\n", err)
		return
	}
	fmt.Printf("Secrets exported to %s\n", out)
}
