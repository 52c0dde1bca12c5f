// Package codegen renders a composition into the build-tagged Go file that
// binds the variants of one profile to the appcore package.
package codegen

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"text/template"

	"golang.org/x/tools/imports"

	"github.com/reglet-dev/reglet-appcore/capability"
	"github.com/reglet-dev/reglet-appcore/profile"
)

// ErrUnsupportedVariant is returned for variants the generator has no code for.
var ErrUnsupportedVariant = errors.New("codegen: unsupported variant")

//go:embed bindings.go.tmpl
var bindingsTemplate string

var tmpl = template.Must(template.New("bindings").Parse(bindingsTemplate))

// File is one generated source file.
type File struct {
	Name    string
	Profile profile.Name
	Source  []byte
}

// Digest returns the sha256 of the file contents, as recorded in lockfiles.
func (f File) Digest() string { return profile.Digest(f.Source) }

// Generator renders compositions for one package.
type Generator struct {
	// Package is the package clause of the generated files.
	Package string
	// Source names the manifest in the generated header.
	Source string
	// Default is the profile active when a build sets no profile tag.
	Default profile.Name
	// Profiles lists every profile with a generated file. The default
	// profile's constraint excludes all the others.
	Profiles []profile.Name
}

// New returns a generator for the appcore package.
func New(source string, profiles []profile.Name) *Generator {
	return &Generator{
		Package:  "appcore",
		Source:   source,
		Default:  profile.DefaultProfile,
		Profiles: profiles,
	}
}

// FileName returns the generated file name of a profile.
func FileName(n profile.Name) string {
	return fmt.Sprintf("bindings_%s_gen.go", n)
}

// Constraint returns the //go:build expression selecting n.
func (g *Generator) Constraint(n profile.Name) string {
	if n != g.Default {
		return n.BuildTag()
	}
	var others []string
	for _, p := range g.Profiles {
		if p != n {
			others = append(others, p.BuildTag())
		}
	}
	if len(others) == 0 {
		return n.BuildTag()
	}
	return fmt.Sprintf("%s || !(%s)", n.BuildTag(), strings.Join(others, " || "))
}

type bindingData struct {
	Capability string
	Variant    string
}

type buildData struct {
	Type string
	Body string
}

type fileData struct {
	Source      string
	Constraint  string
	Package     string
	Profile     profile.Name
	Imports     []string
	Modules     string
	ArenaBytes  int64
	PoolBudget  int64
	Bindings    []bindingData
	Diagnostics buildData
	System      buildData
	Memory      buildData
	Concurrency buildData
}

// Generate renders c. The composition must bind all four capabilities.
func (g *Generator) Generate(c *profile.Composition) (File, error) {
	data := fileData{
		Source:     g.Source,
		Constraint: g.Constraint(c.Profile),
		Package:    g.Package,
		Profile:    c.Profile,
		ArenaBytes: c.Sizing.ArenaBytes(),
		PoolBudget: c.Sizing.PoolBudget(),
		Imports: []string{
			modulePath + "/capability",
			modulePath + "/diagnostics",
			modulePath + "/registry",
		},
	}

	quoted := make([]string, len(c.Modules))
	for i, m := range c.Modules {
		quoted[i] = fmt.Sprintf("%q", m)
	}
	data.Modules = strings.Join(quoted, ", ")

	targets := map[capability.ID]*buildData{
		capability.Diagnostics: &data.Diagnostics,
		capability.SystemAPI:   &data.System,
		capability.Memory:      &data.Memory,
		capability.Concurrency: &data.Concurrency,
	}
	for _, id := range capability.InitOrder() {
		v, ok := c.Variant(id)
		if !ok {
			return File{}, fmt.Errorf("profile %s: %s is not bound", c.Profile, id)
		}
		code, ok := variants[v]
		if !ok {
			return File{}, fmt.Errorf("%w: %s (%s)", ErrUnsupportedVariant, v, id)
		}
		data.Imports = append(data.Imports, code.imports...)
		data.Bindings = append(data.Bindings, bindingData{
			Capability: capabilityConsts[id],
			Variant:    code.constName,
		})
		*targets[id] = buildData{Type: code.typ, Body: code.build}
	}
	slices.Sort(data.Imports)
	data.Imports = slices.Compact(data.Imports)

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return File{}, fmt.Errorf("failed to render %s: %w", c.Profile, err)
	}
	name := FileName(c.Profile)
	src, err := imports.Process(name, buf.Bytes(), &imports.Options{Comments: true, TabIndent: true, TabWidth: 8, FormatOnly: true})
	if err != nil {
		return File{}, fmt.Errorf("failed to format %s: %w", name, err)
	}
	return File{Name: name, Profile: c.Profile, Source: src}, nil
}

// GenerateAll renders every composition.
func (g *Generator) GenerateAll(comps []*profile.Composition) ([]File, error) {
	files := make([]File, 0, len(comps))
	for _, c := range comps {
		f, err := g.Generate(c)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// Fingerprint hashes a set of files in order, for quick comparisons in logs.
func Fingerprint(files []File) string {
	h := sha256.New()
	for _, f := range files {
		h.Write([]byte(f.Name))
		h.Write(f.Source)
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}
