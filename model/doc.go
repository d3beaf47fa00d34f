// Package model defines the provider-agnostic abstractions and concrete
// helpers for talking to language models.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Keep request/response shapes minimal and transport independent
//   - Expose any Model as the synchronous core.Provider the engine calls
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Vendors (OpenAI, Anthropic, Gemini) live in sub packages so the engine
// stays decoupled from SDKs.
package model
