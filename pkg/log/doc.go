// Package log provides structured logging for quill components.
//
// Loggers are constructed explicitly and passed via dependency injection;
// there is no package-level default. The Field-based API is preferred:
//
//	logger := log.NewLogger(
//	    log.WithLevel(log.DebugLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	logger = logger.With(log.F("component", "queue"))
//	logger.Info("message leased", log.F("id", id), log.F("group", group))
//
// Records are routed through a log/slog handler so third-party code that
// speaks slog can share the same formatter and outputs.
package log
