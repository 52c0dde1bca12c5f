// Package appcore is the application core: one set of capabilities
// (concurrency, memory, system API, diagnostics) whose concrete variants are
// chosen per profile at build time.
//
// The profile is a build tag. Building with -tags appcore_embedded links the
// bare system API, the arena allocator, the direct executor and the ring
// diagnostics sink and nothing else; with no profile tag the desktop profile
// is used. The bindings_<profile>_gen.go files are generated by cmd/capgen
// from the profile manifest and must not be edited by hand.
//
// Call sites use the typed accessors of Core, whose return types are the
// variants of the active profile:
//
//	core, err := appcore.New(ctx)
//	if err != nil {
//		return err
//	}
//	defer core.Close(ctx)
//
//	h, err := core.Submit(ctx, work)
package appcore

//go:generate go run ./cmd/capgen generate --out .
