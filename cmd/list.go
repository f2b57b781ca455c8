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

	"github.com/hokaccha/go-prettyjson"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the names of all stored secrets",
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := st.ListSecrets()
		if err != nil {
			return err
		}

		if listJson {
			out, err := prettyjson.Marshal(map[string][]string{"secrets": names})
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}

		var t table.Writer = table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"#", "Name"})
		for i, name := range names {
			t.AppendRow(table.Row{i + 1, name})
		}
		t.Render()
		return nil
	},
}

var listJson bool

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVarP(&listJson, "json", "j", false, "output as JSON")
}
