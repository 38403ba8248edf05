package questlog

import "log/slog"

// Logger is the logging interface used throughout questlog.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger is a no-op implementation of Logger. It is the default when no
// logger is supplied.
type NopLogger struct{}

func (NopLogger) Debug(msg string, args ...any) {}
func (NopLogger) Info(msg string, args ...any)  {}
func (NopLogger) Warn(msg string, args ...any)  {}
func (NopLogger) Error(msg string, args ...any) {}

// SlogLogger adapts a *slog.Logger to the Logger interface.
type SlogLogger struct {
	L *slog.Logger
}

func (s SlogLogger) Debug(msg string, args ...any) { s.L.Debug(msg, args...) }
func (s SlogLogger) Info(msg string, args ...any)  { s.L.Info(msg, args...) }
func (s SlogLogger) Warn(msg string, args ...any)  { s.L.Warn(msg, args...) }
func (s SlogLogger) Error(msg string, args ...any) { s.L.Error(msg, args...) }
