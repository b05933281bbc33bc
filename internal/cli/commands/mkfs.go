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

	"eclipsefs/internal/device"
	"eclipsefs/internal/format"
	"eclipsefs/internal/fs"
)

var (
	mkfsMaxInodes uint32
	mkfsSize      int64
	mkfsJournal   bool
)

var mkfsCmd = &cobra.Command{
	Use:   "mkfs <image>",
	Short: "Create an empty EclipseFS image",
	Long: `Create a new EclipseFS image file with an empty root directory.

Examples:
  eclipsefs mkfs disk.img
  eclipsefs mkfs --max-inodes 65536 --size 268435456 disk.img
  eclipsefs mkfs --journal disk.img`,
	Args: cobra.ExactArgs(1),
	RunE: runMkfs,
}

func init() {
	mkfsCmd.Flags().Uint32Var(&mkfsMaxInodes, "max-inodes", 4096, "inode table capacity")
	mkfsCmd.Flags().Int64Var(&mkfsSize, "size", 0, "pre-size the image file in bytes")
	mkfsCmd.Flags().BoolVar(&mkfsJournal, "journal", false, "enable the write-ahead journal")
	rootCmd.AddCommand(mkfsCmd)
}

func runMkfs(cmd *cobra.Command, args []string) error {
	path := args[0]
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Journal.Enabled = cfg.Journal.Enabled || mkfsJournal

	size := mkfsSize
	if size == 0 {
		size = int64(format.HeaderSize) + int64(mkfsMaxInodes)*format.TableEntrySize
	}
	dev, err := device.CreateFile(path, size)
	if err != nil {
		return err
	}
	f, err := fs.Format(dev, mkfsMaxInodes, cfg)
	if err != nil {
		dev.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Printf("Created %s (max inodes: %d, journal: %v)\n",
		path, mkfsMaxInodes, cfg.Journal.Enabled)
	return nil
}
