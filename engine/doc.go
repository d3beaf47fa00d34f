// Package engine coordinates a single interaction between an agent and its
// provider.
//
// # Run
//
// Engine.Run executes one request:
//
//  1. An optional learning file is read into the agent's memory. When that
//     fails the run ends with LearnFileFailedNotice.
//  2. The prompt is formatted (template lookup, memory context, chain step
//     substitution, standard bindings).
//  3. When web search is requested a research session browses results into
//     memory. It runs after formatting and therefore only enriches later
//     runs.
//  4. The provider is called under the retry controller. Failed calls are
//     retried after a fixed backoff with one less memory result each time;
//     after the fifth consecutive failure Run returns ErrNoResult.
//  5. If the unformatted template contains {COMMANDS} the reply is parsed for
//     a structured object and its first command is dispatched to the agent.
//     Malformed objects are regenerated and failed commands are sent back to
//     the model with the ValidationFailed template until a pass succeeds or
//     the failure budget runs out. The reply is then rewritten to include
//     the executed commands and their output.
//  6. A non-empty response is stored in memory and both turns are logged to
//     the agent's transcript. Failures in this step are logged only.
//
// # State
//
// The failure counter and the browsed link set live on the Engine and
// survive across runs, including the nested runs issued by research and
// consensus pipelines. An Engine is therefore not safe for concurrent use.
// Pool hands out one engine per request and resets both before reuse.
//
// # Chains
//
// RunChain runs a list of steps where each step may reference the previous
// step's response through a {STEP<n>} token. Responses are persisted in the
// configured core.StepStore.
//
// # Callbacks
//
// A CallbackManager can observe model calls, the command loop and the final
// response. Model callbacks may fail an attempt; the others are advisory.
package engine
