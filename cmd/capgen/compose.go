package main

import (
	"encoding/json"
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/reglet-dev/reglet-appcore/profile"
)

func (a *app) composeCmd() *cobra.Command {
	var (
		with   []string
		format string
	)
	cmd := &cobra.Command{
		Use:   "compose <profile>",
		Short: "Print the composition of one profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			src, err := profile.Load(a.manifestPath)
			if err != nil {
				return err
			}
			c, err := profile.Compose(src.Manifest, profile.Name(args[0]), with...)
			if err != nil {
				return err
			}

			var out []byte
			switch format {
			case "yaml":
				out, err = yaml.Marshal(c)
			case "json":
				out, err = json.MarshalIndent(c, "", "  ")
				out = append(out, '\n')
			default:
				return fmt.Errorf("unknown format %q, want yaml or json", format)
			}
			if err != nil {
				return fmt.Errorf("failed to encode composition: %w", err)
			}
			_, err = a.out.Write(out)
			return err
		},
	}
	cmd.Flags().StringSliceVar(&with, "with", nil, "optional modules to include")
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "output format: yaml or json")
	return cmd
}

func (a *app) schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the profile manifest",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			raw, err := profile.SchemaJSON()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.out, "%s\n", raw)
			return err
		},
	}
}
