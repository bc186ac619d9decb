package errors

import (
	"fmt"
	"log/slog"
	"sync"
)

// Warner logs recoverable anomalies, once per distinct cause.
// It is safe for concurrent use.
type Warner struct {
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewWarner creates a Warner logging through logger (slog.Default() if nil).
func NewWarner(logger *slog.Logger) *Warner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Warner{
		logger: logger,
		seen:   make(map[string]struct{}),
	}
}

// Warn logs msg unless a warning with the same key was already logged.
// An empty key uses msg itself as the key.
func (w *Warner) Warn(key, msg string, args ...any) bool {
	if w == nil {
		return false
	}
	if key == "" {
		key = msg
	}

	w.mu.Lock()
	if _, ok := w.seen[key]; ok {
		w.mu.Unlock()
		return false
	}
	w.seen[key] = struct{}{}
	w.mu.Unlock()

	w.logger.Warn(msg, args...)
	return true
}

// Warnf logs a formatted warning keyed by its own text.
func (w *Warner) Warnf(format string, args ...any) bool {
	msg := fmt.Sprintf(format, args...)
	return w.Warn(msg, msg)
}

// Count returns the number of distinct warnings logged so far.
func (w *Warner) Count() int {
	if w == nil {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}
