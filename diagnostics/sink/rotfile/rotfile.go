// Package rotfile writes diagnostic events as JSON lines to daily log files
// named "{service}_{YYYY-MM-DD}.log", rotating by size with a bounded number
// of backups.
package rotfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/reglet-dev/reglet-appcore/diagnostics"
)

// Name is the sink name registered with the facade.
const Name = "file"

const (
	DefaultMaxBytes   int64 = 16 << 20
	DefaultMaxBackups       = 3
	dateLayout              = "2006-01-02"
)

// Sink is a size- and date-rotated JSON log file.
type Sink struct {
	root       *os.Root
	file       *os.File
	handler    slog.Handler
	now        func() time.Time
	dir        string
	service    string
	day        string
	size       int64
	maxBytes   int64
	maxBackups int
	mu         sync.Mutex
}

var (
	_ diagnostics.Sink    = (*Sink)(nil)
	_ diagnostics.Flusher = (*Sink)(nil)
	_ diagnostics.Closer  = (*Sink)(nil)
)

// Option configures a Sink.
type Option func(*Sink)

// WithService sets the file name prefix and the "service" attribute.
func WithService(name string) Option {
	return func(s *Sink) {
		if name != "" {
			s.service = name
		}
	}
}

// WithMaxBytes sets the size at which the current file is rotated.
func WithMaxBytes(n int64) Option {
	return func(s *Sink) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithMaxBackups sets how many rotated files are kept per day.
func WithMaxBackups(n int) Option {
	return func(s *Sink) {
		if n >= 0 {
			s.maxBackups = n
		}
	}
}

// WithClock overrides the clock used to name files.
func WithClock(now func() time.Time) Option {
	return func(s *Sink) {
		if now != nil {
			s.now = now
		}
	}
}

// New opens (creating when needed) dir and the log file for today.
func New(dir string, opts ...Option) (*Sink, error) {
	s := &Sink{
		dir:        dir,
		service:    "appcore",
		maxBytes:   DefaultMaxBytes,
		maxBackups: DefaultMaxBackups,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create log directory %q: %w", dir, err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open log directory %q: %w", dir, err)
	}
	s.root = root

	if err := s.open(s.now().Format(dateLayout)); err != nil {
		_ = root.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) Name() string { return Name }

// Path returns the path of the file currently written.
func (s *Sink) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filepath.Join(s.dir, s.fileName(s.day))
}

func (s *Sink) fileName(day string) string {
	return fmt.Sprintf("%s_%s.log", s.service, day)
}

// Write appends ev as one JSON line.
func (s *Sink) Write(ctx context.Context, ev diagnostics.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.root == nil {
		return os.ErrClosed
	}
	if s.file == nil {
		// A failed rotation left no file open.
		if err := s.open(s.day); err != nil {
			return err
		}
	}
	if !ev.Time.IsZero() {
		if day := ev.Time.Format(dateLayout); day != s.day {
			if err := s.switchTo(day); err != nil {
				return err
			}
		}
	}
	if s.size >= s.maxBytes {
		if err := s.rotate(); err != nil {
			return err
		}
	}

	rec := slog.NewRecord(ev.Time, ev.Severity.SlogLevel(), ev.Message, 0)
	if ev.Source != "" {
		rec.AddAttrs(slog.String("source", string(ev.Source)))
	}
	for _, f := range ev.Fields {
		rec.AddAttrs(slog.Any(f.Key, f.Value))
	}
	if err := s.handler.Handle(ctx, rec); err != nil {
		return fmt.Errorf("rotfile: failed to write event: %w", err)
	}
	return nil
}

// Flush syncs the current file to stable storage.
func (s *Sink) Flush(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	return s.file.Sync()
}

// Close syncs and closes the current file.
func (s *Sink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.file != nil {
		if err := s.file.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("sync log file: %w", err))
		}
		if err := s.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close log file: %w", err))
		}
		s.file = nil
	}
	if s.root != nil {
		if err := s.root.Close(); err != nil {
			errs = append(errs, err)
		}
		s.root = nil
	}
	return errors.Join(errs...)
}

// open must be called with mu held or before the sink is shared.
func (s *Sink) open(day string) error {
	name := s.fileName(day)
	f, err := s.root.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("failed to open log file %q: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to stat log file %q: %w", name, err)
	}

	s.file = f
	s.day = day
	s.size = info.Size()
	var h slog.Handler = slog.NewJSONHandler(countingWriter{s}, &slog.HandlerOptions{Level: slog.LevelDebug})
	s.handler = h.WithAttrs([]slog.Attr{slog.String("service", s.service)})
	return nil
}

func (s *Sink) switchTo(day string) error {
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	s.file = nil
	return s.open(day)
}

// rotate shifts name.log.N to name.log.N+1, dropping the oldest, then reopens.
func (s *Sink) rotate() error {
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	s.file = nil

	base := s.fileName(s.day)
	if s.maxBackups == 0 {
		if err := s.root.Remove(base); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove log file: %w", err)
		}
		return s.open(s.day)
	}

	oldest := fmt.Sprintf("%s.%d", base, s.maxBackups)
	if err := s.root.Remove(oldest); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove backup %q: %w", oldest, err)
	}
	for i := s.maxBackups - 1; i >= 1; i-- {
		from := fmt.Sprintf("%s.%d", base, i)
		to := fmt.Sprintf("%s.%d", base, i+1)
		if err := s.root.Rename(from, to); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to rotate %q: %w", from, err)
		}
	}
	if err := s.root.Rename(base, base+".1"); err != nil {
		return fmt.Errorf("failed to rotate %q: %w", base, err)
	}
	return s.open(s.day)
}

// countingWriter tracks the file size; it runs under the sink mutex.
type countingWriter struct{ s *Sink }

func (w countingWriter) Write(p []byte) (int, error) {
	n, err := w.s.file.Write(p)
	w.s.size += int64(n)
	return n, err
}
