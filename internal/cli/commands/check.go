// Copyright 2025 EclipseFS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check <image>",
	Short: "Verify image integrity",
	Long: `Walk every record in the image, verifying table entries, record
structure, content checksums and directory liveness.

Examples:
  eclipsefs check disk.img`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	f, err := mountImage(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	report := f.Check()
	fmt.Printf("Checked %d nodes\n", report.NodesChecked)
	if report.ReadOnly {
		fmt.Println("Image is mounted read-only (incomplete journal recovery)")
	}
	if report.OK() {
		fmt.Println("No errors found")
		return nil
	}
	for _, e := range report.Errors {
		fmt.Printf("  error: %s\n", e)
	}
	return fmt.Errorf("%d errors found", len(report.Errors))
}
