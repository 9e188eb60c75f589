// Package logging provides opt-in file logging with rotation for docrag.
// With --debug, structured JSON logs are written to ~/.docrag/logs/server.log.
// Without it, only warnings and errors reach stderr.
package logging
