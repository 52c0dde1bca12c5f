package codegen_test

import (
	"go/ast"
	"go/build/constraint"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-appcore/capability"
	"github.com/reglet-dev/reglet-appcore/codegen"
	"github.com/reglet-dev/reglet-appcore/profile"
)

func generateDefault(t *testing.T) []codegen.File {
	t.Helper()
	m, err := profile.Default()
	require.NoError(t, err)
	comps, err := profile.ComposeAll(m)
	require.NoError(t, err)
	files, err := codegen.New("profiles.yaml", m.ProfileNames()).GenerateAll(comps)
	require.NoError(t, err)
	return files
}

// The checked-in bindings must be exactly what the built-in manifest generates.
func TestGenerate_MatchesCheckedInBindings(t *testing.T) {
	for _, f := range generateDefault(t) {
		t.Run(string(f.Profile), func(t *testing.T) {
			onDisk, err := os.ReadFile(filepath.Join("..", f.Name))
			require.NoError(t, err)
			assert.Equal(t, string(onDisk), string(f.Source), "run go generate to refresh %s", f.Name)
		})
	}
}

func TestGenerate_Contents(t *testing.T) {
	tests := []struct {
		profile profile.Name
		types   map[string]string
		imports []string
	}{
		{profile.WebApp, map[string]string{"System": "*osapi.API", "Memory": "*pool.Allocator", "Concurrency": "*cooploop.Loop"},
			[]string{"sysapi/osapi", "memory/pool", "concurrency/cooploop"}},
		{profile.Desktop, map[string]string{"System": "*osapi.API", "Memory": "*general.Allocator", "Concurrency": "*threadpool.Pool"},
			[]string{"sysapi/osapi", "memory/general", "concurrency/threadpool"}},
		{profile.Automation, map[string]string{"System": "*osapi.API", "Memory": "*arena.Allocator", "Concurrency": "*direct.Executor"},
			[]string{"sysapi/osapi", "memory/arena", "concurrency/direct"}},
		{profile.Embedded, map[string]string{"System": "*bare.API", "Memory": "*arena.Allocator", "Concurrency": "*direct.Executor"},
			[]string{"sysapi/bare", "memory/arena", "concurrency/direct"}},
	}

	files := make(map[profile.Name]codegen.File)
	for _, f := range generateDefault(t) {
		files[f.Profile] = f
	}

	for _, tt := range tests {
		t.Run(string(tt.profile), func(t *testing.T) {
			f, ok := files[tt.profile]
			require.True(t, ok)
			assert.Equal(t, codegen.FileName(tt.profile), f.Name)

			parsed, err := parser.ParseFile(token.NewFileSet(), f.Name, f.Source, parser.ParseComments)
			require.NoError(t, err)
			assert.True(t, ast.IsGenerated(parsed))
			assert.Equal(t, "appcore", parsed.Name.Name)

			var imports []string
			for _, spec := range parsed.Imports {
				path, err := strconv.Unquote(spec.Path.Value)
				require.NoError(t, err)
				imports = append(imports, path)
			}
			for _, want := range tt.imports {
				assert.Contains(t, imports, "github.com/reglet-dev/reglet-appcore/"+want)
			}

			aliases := make(map[string]string)
			var funcs []string
			ast.Inspect(parsed, func(n ast.Node) bool {
				switch n := n.(type) {
				case *ast.TypeSpec:
					if n.Assign.IsValid() {
						aliases[n.Name.Name] = exprString(n.Type)
					}
				case *ast.FuncDecl:
					funcs = append(funcs, n.Name.Name)
				}
				return true
			})
			assert.Equal(t, tt.types, aliases)
			assert.ElementsMatch(t, []string{"buildDiagnostics", "buildSystem", "buildMemory", "buildConcurrency"}, funcs)
			assert.Contains(t, string(f.Source), `const ActiveProfile = "`+string(tt.profile)+`"`)
		})
	}
}

func exprString(e ast.Expr) string {
	switch e := e.(type) {
	case *ast.StarExpr:
		return "*" + exprString(e.X)
	case *ast.SelectorExpr:
		return exprString(e.X) + "." + e.Sel.Name
	case *ast.Ident:
		return e.Name
	default:
		return ""
	}
}

// Exactly one bindings file is compiled for every tag set.
func TestGenerate_ConstraintsSelectOneFile(t *testing.T) {
	files := generateDefault(t)

	exprs := make(map[profile.Name]constraint.Expr, len(files))
	for _, f := range files {
		line := strings.Split(string(f.Source), "\n")[2]
		expr, err := constraint.Parse(line)
		require.NoError(t, err, f.Name)
		exprs[f.Profile] = expr
	}

	cases := map[string]profile.Name{"": profile.DefaultProfile}
	for _, n := range profile.Names() {
		cases[n.BuildTag()] = n
	}
	for tag, want := range cases {
		t.Run("tag="+tag, func(t *testing.T) {
			var selected []profile.Name
			for n, expr := range exprs {
				if expr.Eval(func(s string) bool { return s == tag }) {
					selected = append(selected, n)
				}
			}
			assert.Equal(t, []profile.Name{want}, selected)
		})
	}
}

func TestGenerator_Constraint(t *testing.T) {
	g := codegen.New("profiles.yaml", []profile.Name{profile.WebApp, profile.Desktop, profile.Embedded})
	assert.Equal(t, "appcore_webapp", g.Constraint(profile.WebApp))
	assert.Equal(t, "appcore_desktop || !(appcore_webapp || appcore_embedded)", g.Constraint(profile.Desktop))

	alone := codegen.New("profiles.yaml", []profile.Name{profile.Desktop})
	assert.Equal(t, "appcore_desktop", alone.Constraint(profile.Desktop))
}

func TestGenerate_Errors(t *testing.T) {
	g := codegen.New("profiles.yaml", profile.Names())

	partial := &profile.Composition{
		Profile: profile.Embedded,
		Bindings: []profile.Binding{
			{Capability: capability.Diagnostics, Variant: capability.RingBuffer},
		},
	}
	_, err := g.Generate(partial)
	assert.ErrorContains(t, err, "system_api is not bound")

	unknown := &profile.Composition{
		Profile: profile.Embedded,
		Bindings: []profile.Binding{
			{Capability: capability.Diagnostics, Variant: "syslog"},
			{Capability: capability.SystemAPI, Variant: capability.Constrained},
			{Capability: capability.Memory, Variant: capability.ArenaAllocator},
			{Capability: capability.Concurrency, Variant: capability.SingleThread},
		},
	}
	_, err = g.Generate(unknown)
	assert.ErrorIs(t, err, codegen.ErrUnsupportedVariant)
}

func TestFile_Digest(t *testing.T) {
	f := codegen.File{Name: "x.go", Source: []byte("package x\n")}
	assert.Equal(t, profile.Digest(f.Source), f.Digest())
	assert.Len(t, codegen.Fingerprint([]codegen.File{f}), 12)
}
