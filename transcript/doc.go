// Package transcript provides append-only conversation logs.
//
// Entries are scoped by agent name. List returns the most recent entries in
// the order they were appended.
package transcript
