// Command capgen composes application profiles and generates the
// build-tagged binding files of the appcore package.
//
//	capgen generate --out .          write bindings_*_gen.go and the lockfile
//	capgen verify --out .            fail when the bindings drifted
//	capgen compose webapp            print one composition
//	capgen explain                   describe a profile, interactively on a terminal
//	capgen schema                    print the manifest JSON schema
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "capgen: %v\n", err)
		os.Exit(1)
	}
}
