// Package templates provides prompt template stores.
//
// Defaults returns the built-in templates embedded in the binary. FileStore
// reads templates from a directory and falls back to the defaults:
//
//	<root>/<model id>/<name>.txt   model specific override
//	<root>/<name>.txt              shared override
//
// Loaded templates are cached until Invalidate is called or, when Watch is
// running, until a file below root changes.
package templates
