// Package agent provides the concrete agent an interaction runs for.
//
// An Agent bundles an identity, a capability registry built once at
// construction, the provider used for generation, a memory store and a
// transcript log. It holds no per-request state and can be shared by any
// number of engines.
package agent
