package main

import (
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/reglet-dev/reglet-appcore/codegen"
	"github.com/reglet-dev/reglet-appcore/profile"
)

const generatorName = "capgen"

type app struct {
	out, errOut  io.Writer
	log          *slog.Logger
	manifestPath string
	verbose      bool
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "capgen",
		Short:         "Compose capability profiles and generate their bindings",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			level := slog.LevelInfo
			if a.verbose {
				level = slog.LevelDebug
			}
			a.log = slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: level}))
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().StringVarP(&a.manifestPath, "manifest", "m", "", "profile manifest (YAML or JSON); built-in when empty")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log debug output")

	root.AddCommand(
		a.generateCmd(),
		a.verifyCmd(),
		a.composeCmd(),
		a.explainCmd(),
		a.schemaCmd(),
	)
	return root
}

// load reads the manifest and composes every profile it declares.
func (a *app) load() (*profile.Source, []*profile.Composition, error) {
	src, err := profile.Load(a.manifestPath)
	if err != nil {
		return nil, nil, err
	}
	comps, err := profile.ComposeAll(src.Manifest)
	if err != nil {
		return nil, nil, err
	}
	a.log.Debug("manifest composed", "path", a.sourceLabel(src), "profiles", len(comps), "digest", src.Digest())
	return src, comps, nil
}

func (a *app) sourceLabel(src *profile.Source) string {
	if src.Path == "" {
		return "profiles.yaml"
	}
	return filepath.Base(src.Path)
}

func (a *app) generator(src *profile.Source) *codegen.Generator {
	return codegen.New(a.sourceLabel(src), src.Manifest.ProfileNames())
}
