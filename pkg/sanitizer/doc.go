// Package sanitizer normalizes free-text input before validation and storage.
//
// All functions are idempotent. Invalid input collapses to an empty string or
// an empty slice rather than an error, so validation decides what is missing.
//
// Normalization includes:
//   - Display strings (room names, locations): collapse whitespace, trim
//   - Keys (auditorium, equipment): lowercase, non letters/digits become "_"
//   - Slices: remove duplicates and empty values after normalization
//   - Identifiers: trim, drop control characters
package sanitizer
