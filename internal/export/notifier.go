package export

import "log/slog"

// Notifier is the user-facing channel for export status. The pipeline
// never calls a Notifier from more than one goroutine at a time.
type Notifier interface {
	Loading(msg string)
	Progress(done, total int)
	Success(msg string)
	Error(msg string)
}

// NopNotifier discards everything.
type NopNotifier struct{}

func (NopNotifier) Loading(string)    {}
func (NopNotifier) Progress(int, int) {}
func (NopNotifier) Success(string)    {}
func (NopNotifier) Error(string)      {}

// LogNotifier writes notifications to a slog.Logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) logger() *slog.Logger {
	if n.Logger == nil {
		return slog.Default()
	}
	return n.Logger
}

func (n LogNotifier) Loading(msg string) { n.logger().Info(msg) }

func (n LogNotifier) Progress(done, total int) {
	n.logger().Debug("export progress", "done", done, "total", total)
}

func (n LogNotifier) Success(msg string) { n.logger().Info(msg) }
func (n LogNotifier) Error(msg string)   { n.logger().Error(msg) }
