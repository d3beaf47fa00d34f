// Package chain implements the file-backed chain step store.
//
// Each chain keeps its step responses in <root>/<chain name>/responses.json
// as a JSON object keyed by step number. Chain names are validated before
// any file access: they must not contain path separators and the resolved
// path must stay below the root directory.
//
// The store is shared across engine instances without locking. Writes
// replace the file atomically, so concurrent writers resolve as
// last-writer-wins.
package chain
