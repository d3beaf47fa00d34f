// Package extension provides the built-in capabilities that let an agent
// delegate work to other agents and chains.
//
// The capabilities call back into a Runner, usually the Mesh that owns the
// agents, so an agent can ask another agent a question, give it an
// instruction, run a task list or start a chain.
package extension
