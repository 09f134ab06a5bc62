package gitremap

import "log/slog"

var logger = slog.Default()

// SetLogger replaces the logger used by the package. By default, the
// logger is [slog.Default].
func SetLogger(l *slog.Logger) {
	logger = l
}
