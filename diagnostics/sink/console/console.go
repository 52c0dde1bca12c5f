// Package console writes diagnostic events as human-readable lines, coloured
// when the destination is a terminal.
package console

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/reglet-dev/reglet-appcore/diagnostics"
)

// Name is the sink name registered with the facade.
const Name = "console"

const timeLayout = "15:04:05.000"

var (
	colorDebug = lipgloss.Color("#2C4A54")
	colorInfo  = lipgloss.Color("#20B9B4")
	colorWarn  = lipgloss.Color("#F4D03F")
	colorError = lipgloss.Color("#E74C3C")
)

type styles struct {
	time     lipgloss.Style
	source   lipgloss.Style
	key      lipgloss.Style
	severity map[diagnostics.Severity]lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		time:   r.NewStyle().Foreground(colorDebug),
		source: r.NewStyle().Bold(true),
		key:    r.NewStyle().Foreground(colorDebug),
		severity: map[diagnostics.Severity]lipgloss.Style{
			diagnostics.SeverityDebug: r.NewStyle().Foreground(colorDebug),
			diagnostics.SeverityInfo:  r.NewStyle().Foreground(colorInfo),
			diagnostics.SeverityWarn:  r.NewStyle().Foreground(colorWarn).Bold(true),
			diagnostics.SeverityError: r.NewStyle().Foreground(colorError).Bold(true),
		},
	}
}

// Sink renders events to a writer, one line per event.
type Sink struct {
	w       io.Writer
	styles  styles
	service string
	mu      sync.Mutex
	color   *bool
}

var _ diagnostics.Sink = (*Sink)(nil)

// Option configures a console Sink.
type Option func(*Sink)

// WithWriter sets the destination. Defaults to os.Stderr.
func WithWriter(w io.Writer) Option {
	return func(s *Sink) { s.w = w }
}

// WithColor forces colour on or off regardless of terminal detection.
func WithColor(enabled bool) Option {
	return func(s *Sink) { s.color = &enabled }
}

// WithService prefixes every line with a service name.
func WithService(name string) Option {
	return func(s *Sink) { s.service = name }
}

// New creates a console sink.
func New(opts ...Option) *Sink {
	s := &Sink{w: os.Stderr}
	for _, opt := range opts {
		opt(s)
	}
	if s.color == nil {
		tty := isTerminal(s.w)
		s.color = &tty
	}
	s.styles = newStyles(lipgloss.NewRenderer(s.w))
	return s
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (s *Sink) Name() string { return Name }

// Write formats ev as "time LEVEL [source] message key=value ...".
func (s *Sink) Write(_ context.Context, ev diagnostics.Event) error {
	var buf bytes.Buffer
	buf.WriteString(s.render(s.styles.time, ev.Time.Format(timeLayout)))
	buf.WriteByte(' ')
	buf.WriteString(s.render(s.styles.severity[ev.Severity], fmt.Sprintf("%-5s", ev.Severity)))
	if s.service != "" {
		buf.WriteString(" " + s.service)
	}
	if ev.Source != "" {
		buf.WriteString(" " + s.render(s.styles.source, "["+string(ev.Source)+"]"))
	}
	buf.WriteByte(' ')
	buf.WriteString(ev.Message)
	for _, f := range ev.Fields {
		buf.WriteByte(' ')
		buf.WriteString(s.render(s.styles.key, f.Key+"="))
		fmt.Fprintf(&buf, "%v", f.Value)
	}
	buf.WriteByte('\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("console: failed to write event: %w", err)
	}
	return nil
}

func (s *Sink) render(st lipgloss.Style, text string) string {
	if !*s.color {
		return text
	}
	return st.Render(text)
}
