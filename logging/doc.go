// Package logging provides the minimal logging interface used across
// PromptMesh and adapters for common backends.
//
// Components accept a Logger via their Options and default to NoOpLogger.
// Available adapters:
//
//   - SlogAdapter wrapping *slog.Logger
//   - ZapAdapter wrapping *zap.Logger (sugared key/value calls)
//   - StructuredLogger, a slog based logger with component cloning and
//     helpers for provider calls, command executions and pipelines
//   - NoOpLogger for silent operation (tests, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	eng := engine.New(agent, func(o *engine.Options) { o.Logger = logger })
package logging
