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
	"github.com/spf13/cobra"
)

// codeCmd represents the code command
var codeCmd = &cobra.Command{
	Use:   "code",
	Short: "Show the current one-time code",
	Long: `The code command prints the current one-time code for the live
	secret along with the seconds remaining before it rotates. There is no
	live secret unless scan, add or load ran earlier in an interactive
	session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return showCodes(codeWatch)
	},
}

var codeWatch bool

func init() {
	rootCmd.AddCommand(codeCmd)
	codeCmd.Flags().BoolVarP(&codeWatch, "watch", "w", false, "keep refreshing the code until interrupted")
}
