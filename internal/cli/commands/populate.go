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
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	efs "eclipsefs/internal/fs"
)

var populateCmd = &cobra.Command{
	Use:   "populate <image> <source-dir>",
	Short: "Import a directory tree into an image",
	Long: `Copy the contents of a host directory into the root of an image.
Regular files, directories and symlinks are imported; other file types
are skipped with a warning.

Examples:
  eclipsefs populate disk.img ./testdata`,
	Args: cobra.ExactArgs(2),
	RunE: runPopulate,
}

func init() {
	rootCmd.AddCommand(populateCmd)
}

func runPopulate(cmd *cobra.Command, args []string) error {
	image, src := args[0], args[1]
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", src)
	}

	f, err := mountImage(image)
	if err != nil {
		return err
	}
	defer f.Close()

	// Map from host directory to its inode in the image.
	dirs := map[string]uint64{src: efs.RootInode}
	var files, bytes int64

	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == src {
			return nil
		}
		parent, ok := dirs[filepath.Dir(path)]
		if !ok {
			return fs.SkipDir
		}
		name := filepath.Base(path)

		switch {
		case d.IsDir():
			n, err := f.CreateNode(parent, name, efs.KindDirectory, "")
			if err != nil {
				return fmt.Errorf("mkdir %s: %w", path, err)
			}
			dirs[path] = n.Ino
		case d.Type()&fs.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			if _, err := f.CreateNode(parent, name, efs.KindSymlink, target); err != nil {
				return fmt.Errorf("symlink %s: %w", path, err)
			}
		case d.Type().IsRegular():
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			n, err := f.CreateNode(parent, name, efs.KindFile, "")
			if err != nil {
				return fmt.Errorf("create %s: %w", path, err)
			}
			n.SetContent(data)
			if err := f.WriteNode(n); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			files++
			bytes += int64(len(data))
		default:
			logrus.WithField("path", path).Warn("skipping special file")
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := f.Flush(); err != nil {
		return err
	}

	fmt.Printf("Imported %d files (%d bytes) from %s\n", files, bytes, src)
	return nil
}
