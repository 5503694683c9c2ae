// Package log provides the structured logging facade for worksets components.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// simple Field type for structured context. Formatting and destinations are
// pluggable: TextFormatter for console use, JSONFormatter for machine
// consumption, ConsoleOutput and FileOutput as sinks.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.WithComponent("assigner")
//	l.Info("workset assigned", log.Str("workset", "workset_001"))
//
// Loggers are constructed in cmd and passed down explicitly; there is no
// package-level default logger.
package log
