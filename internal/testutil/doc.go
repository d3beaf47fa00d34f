// Package testutil contains stub collaborators and builders used across
// tests to reduce boilerplate when wiring an engine: a scripted provider, a
// recording agent, a memory store backed by an in-process page graph, a map
// searcher and a map template store. They are not intended for production
// usage.
package testutil
