// Package logging configures the process-wide slog logger.
//
// Records fan out to a text handler on stderr, an in-memory Ring that
// backs the log endpoints of the HTTP server, and optionally a JSON file.
package logging
