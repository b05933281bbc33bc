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
	"sort"

	"github.com/spf13/cobra"

	"eclipsefs/internal/fs"
)

var infoTree bool

var infoCmd = &cobra.Command{
	Use:   "info <image>",
	Short: "Show image header and content summary",
	Long: `Print the image header fields, node counts and snapshots.

Examples:
  eclipsefs info disk.img
  eclipsefs info --tree disk.img`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	infoCmd.Flags().BoolVar(&infoTree, "tree", false, "print the directory tree")
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	f, err := mountImage(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	hdr := f.Header()
	fmt.Printf("Image: %s\n", args[0])
	fmt.Printf("Format version: %d\n", hdr.Version)
	fmt.Printf("Inode table: offset %d, %d of %d slots used\n",
		hdr.InodeTableOffset, hdr.TotalInodes, hdr.MaxInodes())
	fmt.Printf("Read-only: %v\n", f.ReadOnly())

	if snaps := f.ListSnapshots(); len(snaps) > 0 {
		fmt.Printf("Snapshots: %d\n", len(snaps))
		for _, s := range snaps {
			fmt.Printf("  %4d  %-20s  %s  (%d nodes)\n",
				s.ID, s.Name, s.CreatedAt.Format("2006-01-02 15:04:05"), s.Nodes)
		}
	}

	if infoTree {
		fmt.Println()
		return printTree(f, fs.RootInode, "/", 0)
	}
	return nil
}

func printTree(f *fs.FileSystem, ino uint64, name string, depth int) error {
	n, err := f.ReadNode(ino)
	if err != nil {
		return err
	}
	for i := 0; i < depth; i++ {
		fmt.Print("  ")
	}
	switch n.Kind {
	case fs.KindDirectory:
		fmt.Printf("%s/\n", name)
		names := make([]string, 0, len(n.Children))
		for child := range n.Children {
			names = append(names, child)
		}
		sort.Strings(names)
		for _, child := range names {
			if err := printTree(f, n.Children[child], child, depth+1); err != nil {
				return err
			}
		}
	case fs.KindSymlink:
		target, _ := n.SymlinkTarget()
		fmt.Printf("%s -> %s\n", name, target)
	default:
		fmt.Printf("%s (%d bytes)\n", name, n.Size)
	}
	return nil
}
