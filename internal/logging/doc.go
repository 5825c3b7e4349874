// Package logging builds slog loggers with console and JSON handlers plus
// helpers for the structured fields used across leadscout components.
package logging
