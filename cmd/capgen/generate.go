package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reglet-dev/reglet-appcore/codegen"
	"github.com/reglet-dev/reglet-appcore/profile"
)

func (a *app) generateCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write one bindings file per profile and pin them in the lockfile",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			src, comps, err := a.load()
			if err != nil {
				return err
			}
			files, err := a.generator(src).GenerateAll(comps)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(outDir, 0o750); err != nil {
				return fmt.Errorf("failed to create %q: %w", outDir, err)
			}
			root, err := os.OpenRoot(outDir)
			if err != nil {
				return fmt.Errorf("failed to open %q: %w", outDir, err)
			}
			defer func() { _ = root.Close() }()

			lock := profile.NewLockfile(generatorName, src.Digest())
			for i, f := range files {
				if err := root.WriteFile(f.Name, f.Source, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", f.Name, err)
				}
				if err := lock.Pin(comps[i], f.Name, f.Digest()); err != nil {
					return err
				}
				a.log.Info("bindings generated", "profile", f.Profile, "file", f.Name)
			}
			if err := removeStale(root, files); err != nil {
				return err
			}

			store := profile.NewLockStore(outDir)
			if err := store.Save(profile.LockfileName, lock); err != nil {
				return err
			}
			a.log.Info("lockfile written", "path", store.Path(profile.LockfileName), "fingerprint", codegen.Fingerprint(files))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory of the appcore package")
	return cmd
}

// removeStale deletes bindings files of profiles no longer in the manifest.
func removeStale(root *os.Root, keep []codegen.File) error {
	entries, err := fs.ReadDir(root.FS(), ".")
	if err != nil {
		return fmt.Errorf("failed to list output directory: %w", err)
	}
	wanted := make(map[string]bool, len(keep))
	for _, f := range keep {
		wanted[f.Name] = true
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || wanted[name] || !strings.HasPrefix(name, "bindings_") || !strings.HasSuffix(name, "_gen.go") {
			continue
		}
		if err := root.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove stale %s: %w", name, err)
		}
	}
	return nil
}
