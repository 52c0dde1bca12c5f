package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/reglet-dev/reglet-appcore/profile"
)

func (a *app) verifyCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that the bindings and lockfile match the manifest",
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

			lock, err := profile.NewLockStore(outDir).Load(profile.LockfileName)
			if err != nil {
				return err
			}
			if lock == nil {
				return fmt.Errorf("%w: no %s in %s", profile.ErrLockDrift, profile.LockfileName, outDir)
			}

			root, err := os.OpenRoot(outDir)
			if err != nil {
				return fmt.Errorf("failed to open %q: %w", outDir, err)
			}
			defer func() { _ = root.Close() }()

			onDisk := make(map[profile.Name]string, len(files))
			var drift []string
			for _, f := range files {
				raw, err := fs.ReadFile(root.FS(), f.Name)
				switch {
				case errors.Is(err, fs.ErrNotExist):
					drift = append(drift, fmt.Sprintf("profile %s: %s is missing", f.Profile, f.Name))
					continue
				case err != nil:
					return fmt.Errorf("failed to read %s: %w", f.Name, err)
				}
				onDisk[f.Profile] = profile.Digest(raw)
				if onDisk[f.Profile] != f.Digest() {
					drift = append(drift, fmt.Sprintf("profile %s: %s is not what the manifest generates", f.Profile, f.Name))
				}
			}
			drift = append(drift, lock.Drift(src.Digest(), comps, onDisk)...)

			if len(drift) > 0 {
				for _, d := range drift {
					fmt.Fprintln(a.out, d)
				}
				return fmt.Errorf("%w: %d difference(s), run capgen generate", profile.ErrLockDrift, len(drift))
			}
			fmt.Fprintf(a.out, "%d profiles up to date\n", len(files))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory of the appcore package")
	return cmd
}
