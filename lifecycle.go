package appcore

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrAlreadyStarted is returned by Start while a process-wide core runs.
	ErrAlreadyStarted = errors.New("appcore: already started")
	// ErrNotStarted is returned by Stop when no process-wide core runs.
	ErrNotStarted = errors.New("appcore: not started")
)

var (
	defaultMu   sync.Mutex
	defaultCore *Core
)

// Start builds the process-wide core returned by Default. Applications
// that pass a Core around explicitly use New instead.
func Start(ctx context.Context, opts ...Option) (*Core, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultCore != nil {
		return nil, ErrAlreadyStarted
	}
	c, err := New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	defaultCore = c
	return c, nil
}

// Default returns the core built by Start, or nil.
func Default() *Core {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultCore
}

// Stop closes the process-wide core. Start may be called again afterwards.
func Stop(ctx context.Context) error {
	defaultMu.Lock()
	c := defaultCore
	defaultCore = nil
	defaultMu.Unlock()
	if c == nil {
		return ErrNotStarted
	}
	return c.Close(ctx)
}
