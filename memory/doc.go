// Package memory contains the long-term memory of an agent.
//
// Memories implements core.MemoryStore on top of a pluggable Backend: it
// splits text into chunks, stores them under the agent's collection and
// renders the best matching chunks as prompt context. Web pages are read
// through a core.PageFetcher and stored the same way.
//
// InMemoryBackend is a process-local backend for tests and single process
// deployments; the redis sub package persists memories in Redis.
package memory
