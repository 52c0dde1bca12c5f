package profile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/reglet-dev/reglet-appcore/capability"
)

// Sentinel errors for composition failures. A *CompositionError wraps
// exactly one of them.
var (
	ErrUnknownProfile       = errors.New("unknown profile")
	ErrUnknownModule        = errors.New("unknown module")
	ErrUnknownVariant       = errors.New("unknown variant")
	ErrUnsatisfiable        = errors.New("no variant selected for required capability")
	ErrAmbiguous            = errors.New("more than one variant selected")
	ErrMissingFacet         = errors.New("selected variant lacks required facet")
	ErrContract             = errors.New("capability contract does not satisfy constraint")
	ErrUndefinedCombination = errors.New("module is not defined for profile")
	ErrInvalidManifest      = errors.New("invalid manifest")
)

// CompositionError describes why a profile cannot be composed.
type CompositionError struct {
	Err        error
	Profile    Name
	Module     string
	Capability capability.ID
	Variant    capability.VariantID
	Detail     string
}

func (e *CompositionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "profile %s", e.Profile)
	if e.Module != "" {
		fmt.Fprintf(&b, ": module %s", e.Module)
	}
	if e.Capability != "" {
		fmt.Fprintf(&b, ": capability %s", e.Capability)
	}
	if e.Variant != "" {
		fmt.Fprintf(&b, " (%s)", e.Variant)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	if e.Detail != "" {
		b.WriteString(": " + e.Detail)
	}
	return b.String()
}

func (e *CompositionError) Unwrap() error { return e.Err }
