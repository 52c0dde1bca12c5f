//go:build linux && !appcore_embedded

package osapi

import "golang.org/x/sys/unix"

func processID() int { return unix.Getpid() }

func threadID() int { return unix.Gettid() }
