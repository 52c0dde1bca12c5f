package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/reglet-dev/reglet-appcore/capability"
	"github.com/reglet-dev/reglet-appcore/profile"
)

var errNoProfile = errors.New("a profile argument is required when stdin is not a terminal")

// pickProfile asks for a profile on the terminal.
func pickProfile(names []profile.Name) (profile.Name, error) {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return "", errNoProfile
	}
	opts := make([]huh.Option[profile.Name], 0, len(names))
	for _, n := range names {
		opts = append(opts, huh.NewOption(string(n), n))
	}
	var selected profile.Name
	err := huh.NewSelect[profile.Name]().
		Title("Profile to explain").
		Options(opts...).
		Value(&selected).
		Run()
	if err != nil {
		return "", err
	}
	return selected, nil
}

func (a *app) explainCmd() *cobra.Command {
	var with []string
	cmd := &cobra.Command{
		Use:   "explain [profile]",
		Short: "Describe the modules, variants and facets of a profile",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			src, err := profile.Load(a.manifestPath)
			if err != nil {
				return err
			}

			var name profile.Name
			if len(args) == 1 {
				name = profile.Name(args[0])
			} else if name, err = pickProfile(src.Manifest.ProfileNames()); err != nil {
				return err
			}

			c, err := profile.Compose(src.Manifest, name, with...)
			if err != nil {
				return err
			}
			a.explain(src.Manifest, c)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&with, "with", nil, "optional modules to include")
	return cmd
}

func (a *app) explain(m *profile.Manifest, c *profile.Composition) {
	r := lipgloss.NewRenderer(a.out)
	heading := r.NewStyle().Bold(true)
	dim := r.NewStyle().Faint(true)

	spec := m.Profiles[c.Profile]
	fmt.Fprintf(a.out, "%s %s\n", heading.Render("profile "+string(c.Profile)), dim.Render(spec.Description))
	fmt.Fprintf(a.out, "  build tag  -tags %s\n", c.Profile.BuildTag())
	fmt.Fprintf(a.out, "  sizing     %s (arena %d, pool %d)\n", c.Sizing, c.Sizing.ArenaBytes(), c.Sizing.PoolBudget())
	if len(spec.Optional) > 0 {
		fmt.Fprintf(a.out, "  optional   %s\n", strings.Join(spec.Optional, ", "))
	}

	fmt.Fprintln(a.out, heading.Render("modules"))
	for _, mod := range c.Modules {
		fmt.Fprintf(a.out, "  %-16s %s\n", mod, dim.Render(m.Modules[mod].Description))
	}

	fmt.Fprintln(a.out, heading.Render("bindings"))
	for _, b := range c.Bindings {
		var facets []string
		if v, ok := capability.LookupVariant(b.Capability, b.Variant); ok {
			for _, f := range v.Facets {
				facets = append(facets, string(f))
			}
		}
		fmt.Fprintf(a.out, "  %-12s %-17s %s  %s\n", b.Capability, b.Variant, b.Contract, dim.Render(strings.Join(facets, " ")))
	}
}
