package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
)

// sink is the shared destination of every category logger. Swapping it
// redirects loggers that were handed out earlier.
type sink struct {
	mu   sync.Mutex
	w    io.Writer
	file *os.File
}

func (s *sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.w.Write(p)
	if s.file != nil {
		s.file.Sync() // flush immediately so we see logs even on crash
	}
	return n, err
}

func (s *sink) set(w io.Writer, f *os.File) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		s.file.Close()
	}
	s.w = w
	s.file = f
}

var (
	out = &sink{w: io.Discard}

	mu      sync.Mutex
	level   = log.DebugLevel
	loggers = make(map[string]*log.Logger)
)

// DefaultPath returns ~/.config/go-motif/debug.log
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "go-motif", "debug.log")
}

// Enable starts debug logging to path, truncating it. An empty path means
// DefaultPath.
func Enable(path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	out.set(f, f)
	Logger("debug").Info("=== Debug logging started ===")
	return nil
}

// EnableWriter sends debug logging to w, typically stderr when no TUI owns
// the terminal.
func EnableWriter(w io.Writer) {
	out.set(w, nil)
}

// Disable stops debug logging
func Disable() {
	out.set(io.Discard, nil)
}

// SetLevel changes the minimum level of every category logger.
func SetLevel(l log.Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
	for _, lg := range loggers {
		lg.SetLevel(l)
	}
}

// Logger returns the structured logger for category. Loggers are cached, so
// calling this on every use is fine outside hot paths.
func Logger(category string) *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	if lg, ok := loggers[category]; ok {
		return lg
	}
	lg := log.NewWithOptions(out, log.Options{
		Prefix:          category,
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
		Level:           level,
	})
	loggers[category] = lg
	return lg
}

// Log writes a message to the debug log
func Log(category, format string, args ...any) {
	Logger(category).Debug(fmt.Sprintf(format, args...))
}

// LogEvery logs only every N calls (use for high-frequency events)
var counters = make(map[string]int)

func LogEvery(n int, category, format string, args ...any) {
	mu.Lock()
	key := category + format
	counters[key]++
	count := counters[key]
	mu.Unlock()

	if n > 0 && count%n == 0 {
		Log(category, format+" (every %d, count=%d)", append(args, n, count)...)
	}
}
