//go:build !linux && !appcore_embedded

package osapi

import "os"

func processID() int { return os.Getpid() }

// threadID is not exposed portably outside Linux.
func threadID() int { return 0 }
