//go:build !unix && !appcore_embedded

package osapi

func mapRegion(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func unmapRegion([]byte) error { return nil }
