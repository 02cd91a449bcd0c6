// Package logging provides opt-in file-based logging with rotation for the
// indexing and completion core. When --debug is set, structured logs are
// written to ~/.axlrator/logs/ for troubleshooting; by default logging stays
// minimal and goes to stderr only.
package logging
