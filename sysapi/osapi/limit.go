//go:build !appcore_embedded

package osapi

import (
	"errors"
	"fmt"
	"io"
)

// limitedReader fails with *SizeLimitError once more than limit bytes are
// available, instead of silently truncating like io.LimitReader.
type limitedReader struct {
	r     io.Reader
	n     int64
	limit int64
	read  int64
	eof   bool
}

func newLimitedReader(r io.Reader, limit int64) *limitedReader {
	return &limitedReader{r: r, n: limit, limit: limit}
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.eof {
		return 0, io.EOF
	}
	if l.n <= 0 {
		return 0, &SizeLimitError{Limit: l.limit, Read: l.read}
	}
	if int64(len(p)) > l.n {
		p = p[:l.n]
	}

	n, err := l.r.Read(p)
	l.n -= int64(n)
	l.read += int64(n)

	if l.n == 0 && err == nil {
		// One more byte tells "exactly limit" from "over limit".
		var buf [1]byte
		extra, extraErr := l.r.Read(buf[:])
		if extra > 0 {
			return n, &SizeLimitError{Limit: l.limit, Read: l.read + 1}
		}
		if errors.Is(extraErr, io.EOF) {
			l.eof = true
		} else if extraErr != nil {
			return n, extraErr
		}
	}
	return n, err
}

// SizeLimitError is returned when a read exceeds the configured limit.
type SizeLimitError struct {
	Limit int64
	Read  int64
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("size limit exceeded: read %d bytes, limit is %s", e.Read, FormatSize(e.Limit))
}

// FormatSize returns a human-readable size string.
func FormatSize(bytes int64) string {
	const (
		KiB = 1024
		MiB = KiB * 1024
		GiB = MiB * 1024
	)

	switch {
	case bytes >= GiB:
		return fmt.Sprintf("%.1f GiB", float64(bytes)/GiB)
	case bytes >= MiB:
		return fmt.Sprintf("%.1f MiB", float64(bytes)/MiB)
	case bytes >= KiB:
		return fmt.Sprintf("%.1f KiB", float64(bytes)/KiB)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
