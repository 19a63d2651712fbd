// Package logging configures the shared slog logger.
//
// Two output formats are supported: a human-oriented console format that
// promotes the component attribute into the message prefix, and standard JSON
// for machine consumption. Components obtain scoped loggers via
// NewComponentLogger so every line carries its origin.
package logging
