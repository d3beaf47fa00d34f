// Package command turns model replies into executed commands.
//
// A reply may embed a JSON object of the form
//
//	{"response": "...", "commands": {"Display Name": {"arg": "value"}}}
//
// Extract locates the first balanced object in the reply, Dispatcher runs
// the first command against the agent's capabilities and Handler drives the
// self-healing loop: malformed objects trigger a regeneration and failed
// commands trigger a corrective prompt, until a pass succeeds or generation
// gives up.
package command
