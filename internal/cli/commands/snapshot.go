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
	"strconv"

	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage point-in-time snapshots",
}

var snapshotCreateCmd = &cobra.Command{
	Use:   "create <image> <id> <name>",
	Short: "Create a snapshot",
	Long: `Freeze the current state of the image under a numeric id and a name.
Enables copy-on-write on the image if it is not active yet.

Examples:
  eclipsefs snapshot create disk.img 1 before-upgrade`,
	Args: cobra.ExactArgs(3),
	RunE: runSnapshotCreate,
}

var snapshotListCmd = &cobra.Command{
	Use:   "list <image>",
	Short: "List snapshots",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotList,
}

var snapshotDeleteCmd = &cobra.Command{
	Use:   "delete <image> <id>",
	Short: "Delete a snapshot",
	Args:  cobra.ExactArgs(2),
	RunE:  runSnapshotDelete,
}

func init() {
	snapshotCmd.AddCommand(snapshotCreateCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotDeleteCmd)
	rootCmd.AddCommand(snapshotCmd)
}

func parseSnapshotID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid snapshot id %q: %w", s, err)
	}
	return id, nil
}

func runSnapshotCreate(cmd *cobra.Command, args []string) error {
	id, err := parseSnapshotID(args[1])
	if err != nil {
		return err
	}
	f, err := mountImage(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	f.EnableCopyOnWrite()
	if err := f.CreateSnapshot(id, args[2]); err != nil {
		return err
	}
	fmt.Printf("Created snapshot %d (%s)\n", id, args[2])
	return nil
}

func runSnapshotList(cmd *cobra.Command, args []string) error {
	f, err := mountImage(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	snaps := f.ListSnapshots()
	if len(snaps) == 0 {
		fmt.Println("No snapshots")
		return nil
	}
	for _, s := range snaps {
		fmt.Printf("%4d  %-20s  %s  session %s  (%d nodes)\n",
			s.ID, s.Name, s.CreatedAt.Format("2006-01-02 15:04:05"), s.Session, s.Nodes)
	}
	return nil
}

func runSnapshotDelete(cmd *cobra.Command, args []string) error {
	id, err := parseSnapshotID(args[1])
	if err != nil {
		return err
	}
	f, err := mountImage(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.DeleteSnapshot(id); err != nil {
		return err
	}
	fmt.Printf("Deleted snapshot %d\n", id)
	return nil
}
